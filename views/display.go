package views

import (
	"strconv"

	"github.com/AdamBeresnev/tourney-live/internal/service"
)

func pageTitle(data *BracketData) string {
	if data != nil && data.Name != "" {
		return data.Name
	}
	return "Display"
}

func teamLabel(t service.TeamView) string {
	switch {
	case t.Bye:
		return "BYE"
	case t.Pending:
		return "TBD"
	}
	return t.Name
}

func scoreLabel(m *service.MatchView, t service.TeamView) string {
	if m.IsBye || t.Bye || t.Pending {
		return ""
	}
	return strconv.Itoa(t.Score)
}
