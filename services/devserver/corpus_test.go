// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package devserver

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfidence(t *testing.T) {
	tests := []struct {
		name     string
		score    float64
		maxScore float64
		rank     int
		want     int
	}{
		{"high top", 12, 12, 0, 100},
		{"med top", 6, 6, 0, 80},
		{"low top", 3, 3, 0, 50},
		{"weak top", 1, 1, 0, 30},
		{"med second", 5, 20, 1, 63},
		{"zero max", 0, 0, 0, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Confidence(tt.score, tt.maxScore, tt.rank))
		})
	}
}

func TestSearch_RanksAndLimits(t *testing.T) {
	matches := Search(DefaultCorpus(), "class action lawsuit certified", DefaultResultSize)
	require.NotEmpty(t, matches)
	assert.LessOrEqual(t, len(matches), DefaultResultSize)
	assert.Equal(t, "Litigation Glossary", matches[0].Doc.Name)

	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i-1].Score, matches[i].Score)
	}
	for _, m := range matches {
		assert.GreaterOrEqual(t, m.Confidence, 10)
		assert.LessOrEqual(t, m.Confidence, 100)
	}
}

func TestSearch_NoTerms(t *testing.T) {
	assert.Empty(t, Search(DefaultCorpus(), "what is the", 3))
	assert.Empty(t, Search(nil, "contract", 3))
}

func TestTokenize_RoundTrips(t *testing.T) {
	text := "Rent is due.  Late fees apply."
	tokens := Tokenize(text)
	assert.Equal(t, text, strings.Join(tokens, ""))
	assert.Equal(t, "Rent", tokens[0])
	assert.Equal(t, " is", tokens[1])
	assert.Equal(t, "  Late", tokens[3])
}

func TestSentences(t *testing.T) {
	assert.Equal(t, []string{"One.", "Two!", "Three"}, Sentences("One. Two! Three"))
	assert.Empty(t, Sentences(""))
}

func TestComposeAnswer(t *testing.T) {
	matches := Search(DefaultCorpus(), "security deposit", 3)
	answer := ComposeAnswer("security deposit", matches)
	assert.True(t, strings.HasPrefix(answer, "According to Residential Lease Agreement.pdf: The landlord must return the security deposit"))

	assert.Equal(t, NoMatchAnswer, ComposeAnswer("anything", nil))
}
