package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	testCases := []struct {
		name     string
		in       string
		max      int
		expected string
	}{
		{name: "trims", in: "  Owls ", max: 8, expected: "Owls"},
		{name: "truncates", in: "Thunderbirds", max: 8, expected: "Thunderb"},
		{name: "strips markup", in: "<b>Foxes</b>", max: 0, expected: "bFoxes/b"},
		{name: "collapses whitespace", in: "Red \t\n Team", max: 0, expected: "Red Team"},
		{name: "multibyte", in: "Équipe Ünïcode", max: 6, expected: "Équipe"},
		{name: "empty", in: "   ", max: 8, expected: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Sanitize(tc.in, tc.max))
		})
	}
}

func TestSanitizeOrNil(t *testing.T) {
	assert.Nil(t, SanitizeOrNil(" \t", 10))
	assert.Equal(t, "Ana", *SanitizeOrNil(" Ana ", 10))
	assert.Equal(t, 0, OrZero[int](nil))
	assert.Equal(t, 3, OrZero(Ptr(3)))
}
