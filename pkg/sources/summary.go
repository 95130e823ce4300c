// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package sources

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultSummaryWords is the word budget applied to a source summary.
const DefaultSummaryWords = 150

// spaceClass is the body of a character class for whitespace: ASCII spaces
// plus \v, NBSP, the Unicode space separators, line/paragraph separators and
// the BOM. RE2's \s covers only the ASCII ones.
const spaceClass = `\s\v\x{00A0}\x{1680}\x{2000}-\x{200A}\x{2028}\x{2029}\x{202F}\x{205F}\x{3000}\x{FEFF}`

var (
	nonWordPattern    = regexp.MustCompile(`[^\w` + spaceClass + `]`)
	digitsPattern     = regexp.MustCompile(`\d+`)
	separatorPattern  = regexp.MustCompile(`[_\-]+`)
	whitespacePattern = regexp.MustCompile(`[` + spaceClass + `]+`)
)

// NormalizeSummary cleans summary fragments for display and truncates them to
// a shared word budget.
//
// Each fragment is lowercased, stripped of punctuation, digits, underscores
// and dashes, whitespace-collapsed and given a capital first letter. Fragments
// are then taken in order while the running word count stays within maxWords;
// the fragment that crosses the budget keeps only its leading words. Fragments
// that end up with no words are dropped and do not count.
func NormalizeSummary(fragments []string, maxWords int) []string {
	out := []string{}
	total := 0
	for _, fragment := range fragments {
		if total >= maxWords {
			break
		}
		words := strings.Fields(cleanFragment(fragment))
		if len(words) == 0 {
			continue
		}
		if remaining := maxWords - total; len(words) > remaining {
			words = words[:remaining]
		}
		total += len(words)
		out = append(out, capitalizeFirst(strings.Join(words, " ")))
	}
	return out
}

func cleanFragment(text string) string {
	text = strings.ToLower(text)
	text = nonWordPattern.ReplaceAllString(text, "")
	text = digitsPattern.ReplaceAllString(text, "")
	text = separatorPattern.ReplaceAllString(text, "")
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func capitalizeFirst(text string) string {
	r, size := utf8.DecodeRuneInString(text)
	if r == utf8.RuneError {
		return text
	}
	return string(unicode.ToUpper(r)) + text[size:]
}
