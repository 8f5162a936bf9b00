package export

import (
	"fmt"
	"io"

	"github.com/AdamBeresnev/tourney-live/internal/bracket"
	"github.com/xuri/excelize/v2"
)

const (
	StandingsSheet = "Standings"
	ScheduleSheet  = "Schedule"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var (
	standingsHeader = []any{"Rank", "Team", "Played", "Wins", "Losses", "Byes", "Points For", "Points Against", "Diff"}
	scheduleHeader  = []any{"Round", "Side", "Match", "Team 1", "Score 1", "Score 2", "Team 2", "State", "Winner"}
)

// Workbook lays out the standings table and the full schedule of t.
// The caller owns the returned file and must close it.
func Workbook(t *bracket.Tournament, standings []bracket.Standing) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), StandingsSheet); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.NewSheet(ScheduleSheet); err != nil {
		f.Close()
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, err
	}

	rows := [][]any{standingsHeader}
	for _, s := range standings {
		rows = append(rows, []any{s.Rank, s.TeamName, s.Played, s.Wins, s.Losses, s.Byes, s.PointsFor, s.PointsAgainst, s.PointDiff()})
	}
	if err := writeRows(f, StandingsSheet, rows, bold); err != nil {
		f.Close()
		return nil, err
	}

	rows = [][]any{scheduleHeader}
	for _, m := range t.MatchesInOrder() {
		rows = append(rows, []any{
			m.RoundNumber,
			string(m.BracketSide),
			m.MatchOrder,
			slotLabel(t, m, 1),
			m.Score(1),
			m.Score(2),
			slotLabel(t, m, 2),
			string(m.State),
			t.TeamName(m.WinnerID),
		})
	}
	if err := writeRows(f, ScheduleSheet, rows, bold); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// Write streams the workbook as xlsx.
func Write(w io.Writer, t *bracket.Tournament, standings []bracket.Standing) error {
	f, err := Workbook(t, standings)
	if err != nil {
		return fmt.Errorf("failed to build workbook: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	for idx, row := range rows {
		axis, err := excelize.CoordinatesToCellName(1, idx+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, axis, &row); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", idx+1, sheet, err)
		}
	}
	return f.SetRowStyle(sheet, 1, 1, headerStyle)
}

func slotLabel(t *bracket.Tournament, m *bracket.Match, slot int) string {
	s := m.Slot(slot)
	switch s.Kind {
	case bracket.SlotBye:
		return "BYE"
	case bracket.SlotAwaiting:
		return "TBD"
	}
	id, _ := s.Team()
	return t.TeamName(&id)
}
