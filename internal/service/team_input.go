package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/AdamBeresnev/tourney-live/internal/bracket"
)

// ParseTeamList reads one team per line: "name[, player 1, player 2][ #seed]".
// Blank lines are skipped, so a pasted list with trailing newlines still works.
func ParseTeamList(text string) ([]TeamInput, error) {
	var teams []TeamInput

	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		team, err := parseTeamLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		teams = append(teams, team)
	}

	return teams, nil
}

func parseTeamLine(line string) (TeamInput, error) {
	var team TeamInput

	if idx := strings.LastIndex(line, "#"); idx >= 0 {
		seed, err := strconv.Atoi(strings.TrimSpace(line[idx+1:]))
		if err != nil || seed < 1 {
			return team, fmt.Errorf("%w: bad seed %q", bracket.ErrFormatConstraint, line[idx+1:])
		}
		team.Seed = &seed
		line = strings.TrimSpace(line[:idx])
	}

	parts := strings.Split(line, ",")
	team.Name = strings.TrimSpace(parts[0])
	if team.Name == "" {
		return team, fmt.Errorf("%w: team without a name", bracket.ErrFormatConstraint)
	}
	if len(parts) > 1 {
		team.Player1 = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		team.Player2 = strings.TrimSpace(parts[2])
	}
	return team, nil
}
