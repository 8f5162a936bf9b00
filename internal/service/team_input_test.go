package service

import (
	"testing"

	"github.com/AdamBeresnev/tourney-live/internal/bracket"
	"github.com/AdamBeresnev/tourney-live/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTeamList(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected []TeamInput
	}{
		{
			name:     "names only",
			input:    "Lions\nTigers\n",
			expected: []TeamInput{{Name: "Lions"}, {Name: "Tigers"}},
		},
		{
			name:  "players and seed",
			input: "Lions, Ann, Bob #2\n\n  Tigers,Cy,Dee",
			expected: []TeamInput{
				{Name: "Lions", Player1: "Ann", Player2: "Bob", Seed: utils.Ptr(2)},
				{Name: "Tigers", Player1: "Cy", Player2: "Dee"},
			},
		},
		{
			name:     "empty input",
			input:    " \n\n",
			expected: nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			actual, err := ParseTeamList(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, actual)
		})
	}
}

func TestParseTeamListErrors(t *testing.T) {
	for _, input := range []string{"Lions #first", "Lions #0", ", Ann, Bob"} {
		_, err := ParseTeamList("Tigers\n" + input)
		require.ErrorIs(t, err, bracket.ErrFormatConstraint, input)
		assert.Contains(t, err.Error(), "line 2")
	}
}
