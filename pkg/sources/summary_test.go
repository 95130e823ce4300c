// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package sources

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSummary(t *testing.T) {
	tests := []struct {
		name      string
		fragments []string
		maxWords  int
		want      []string
	}{
		{
			name:      "punctuation and digits removed",
			fragments: []string{"Hello, World! 123"},
			maxWords:  10,
			want:      []string{"Hello world"},
		},
		{
			name:      "non-breaking space separates words",
			fragments: []string{"a\u00a0b"},
			maxWords:  1,
			want:      []string{"A"},
		},
		{
			name:      "unicode and vertical-tab spaces collapse",
			fragments: []string{"rent\u2003is\vdue\u3000monthly\ufeff"},
			maxWords:  10,
			want:      []string{"Rent is due monthly"},
		},
		{
			name:      "budget truncates across fragments",
			fragments: []string{"a b c", "d e"},
			maxWords:  4,
			want:      []string{"A b c", "D"},
		},
		{
			name:      "budget exhausted drops later fragments",
			fragments: []string{"one two", "three", "four"},
			maxWords:  2,
			want:      []string{"One two"},
		},
		{
			name:      "underscores and dashes removed",
			fragments: []string{"self-help snake_case"},
			maxWords:  10,
			want:      []string{"Selfhelp snakecase"},
		},
		{
			name:      "empty fragments omitted and not counted",
			fragments: []string{"!!! 42", "", "real words here"},
			maxWords:  3,
			want:      []string{"Real words here"},
		},
		{
			name:      "whitespace collapsed",
			fragments: []string{"  spaced\t\tout \n text  "},
			maxWords:  10,
			want:      []string{"Spaced out text"},
		},
		{
			name:      "zero budget",
			fragments: []string{"anything"},
			maxWords:  0,
			want:      []string{},
		},
		{
			name:      "nil input",
			fragments: nil,
			maxWords:  10,
			want:      []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeSummary(tt.fragments, tt.maxWords))
		})
	}
}

func TestNormalizeSummary_NeverExceedsBudget(t *testing.T) {
	fragments := []string{
		strings.Repeat("word ", 90),
		strings.Repeat("more ", 90),
		strings.Repeat("extra ", 10),
	}

	out := NormalizeSummary(fragments, DefaultSummaryWords)

	total := 0
	for _, f := range out {
		total += len(strings.Fields(f))
	}
	assert.Equal(t, DefaultSummaryWords, total)
	assert.Len(t, out, 2)
}
