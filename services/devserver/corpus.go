// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package devserver

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"time"
)

// =============================================================================
// Corpus
// =============================================================================

// Document is one fixture document the dev server can cite.
type Document struct {
	Name      string
	Icon      string
	URL       string
	Body      string
	UpdatedAt time.Time
}

// Match is a scored search hit.
type Match struct {
	Doc        Document
	Score      float64
	Confidence int
}

// Relevance thresholds on the raw score and the confidence band each selects.
const (
	HighRelevanceThreshold = 10.0
	MedRelevanceThreshold  = 5.0
	LowRelevanceThreshold  = 2.0

	// DefaultResultSize is how many documents a question cites at most.
	DefaultResultSize = 3
)

var wordRE = regexp.MustCompile(`[a-z0-9]+`)

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "what": true, "does": true,
	"how": true, "when": true, "who": true, "why": true, "with": true, "that": true,
	"this": true, "from": true, "have": true, "has": true, "can": true, "stand": true,
	"into": true, "its": true, "was": true, "were": true, "will": true, "your": true,
}

// terms lowercases text and keeps words of three or more letters that are
// not stop words.
func terms(text string) []string {
	var out []string
	for _, w := range wordRE.FindAllString(strings.ToLower(text), -1) {
		if len(w) < 3 || stopWords[w] {
			continue
		}
		out = append(out, w)
	}
	return out
}

// Search scores every document against query with a BM25-style term weight
// and returns the best size matches with a positive score, best first.
func Search(corpus []Document, query string, size int) []Match {
	q := terms(query)
	if len(q) == 0 || len(corpus) == 0 {
		return nil
	}

	const k1, b = 1.2, 0.75

	docTerms := make([][]string, len(corpus))
	df := map[string]int{}
	totalLen := 0
	for i, d := range corpus {
		docTerms[i] = terms(d.Name + " " + d.Body)
		totalLen += len(docTerms[i])
		seen := map[string]bool{}
		for _, t := range docTerms[i] {
			if !seen[t] {
				seen[t] = true
				df[t]++
			}
		}
	}
	avgLen := math.Max(float64(totalLen)/float64(len(corpus)), 1)
	n := float64(len(corpus))

	var matches []Match
	for i, d := range corpus {
		tf := map[string]int{}
		for _, t := range docTerms[i] {
			tf[t]++
		}
		dl := float64(len(docTerms[i]))

		score := 0.0
		for _, t := range q {
			f := float64(tf[t])
			if f == 0 {
				continue
			}
			idf := math.Log(1 + (n-float64(df[t])+0.5)/(float64(df[t])+0.5))
			score += idf * f * (k1 + 1) / (f + k1*(1-b+b*dl/avgLen))
		}
		if score > 0 {
			matches = append(matches, Match{Doc: d, Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if size > 0 && len(matches) > size {
		matches = matches[:size]
	}
	for i := range matches {
		matches[i].Confidence = Confidence(matches[i].Score, matches[0].Score, i)
	}
	return matches
}

// Confidence converts a raw score into a 10-100 percentage. The band comes
// from the score's own threshold; the position within the band from its
// share of the best score and its rank.
func Confidence(score, maxScore float64, rank int) int {
	var base, spread float64
	switch {
	case score >= HighRelevanceThreshold:
		base, spread = 0.8, 20
	case score >= MedRelevanceThreshold:
		base, spread = 0.5, 30
	case score >= LowRelevanceThreshold:
		base, spread = 0.3, 20
	default:
		base, spread = 0.1, 20
	}

	relative := 0.0
	if maxScore > 0 {
		relative = math.Sqrt(score / maxScore)
	}
	position := 1.0 - float64(rank)*0.08

	c := int(base*100 + relative*position*spread)
	return min(100, max(10, c))
}

// Sentences splits a body into trimmed sentences.
func Sentences(body string) []string {
	var out []string
	for _, s := range sentenceRE.FindAllString(body, -1) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

var sentenceRE = regexp.MustCompile(`[^.!?]+[.!?]*`)

// DefaultCorpus returns the built-in fixture documents. "Scanned Exhibit B"
// has no extractable text, so its summary always fails.
func DefaultCorpus() []Document {
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }
	return []Document{
		{
			Name:      "Residential Lease Agreement.pdf",
			Icon:      "pdf",
			URL:       "https://docs.example.com/leases/residential.pdf",
			UpdatedAt: day(2024, time.March, 4),
			Body: "The tenant shall pay rent on the first day of each month. " +
				"Late fees apply after a five day grace period. " +
				"The landlord must return the security deposit within thirty days after the lease ends, " +
				"less any deductions for damage beyond normal wear. " +
				"Either party may terminate a month to month lease with thirty days written notice.",
		},
		{
			Name:      "Contract Formation Basics",
			Icon:      "web",
			URL:       "https://docs.example.com/guides/contract-formation",
			UpdatedAt: day(2023, time.November, 18),
			Body: "A valid contract requires an offer, acceptance, consideration and mutual intent to be bound. " +
				"The parties must have legal capacity and the purpose of the contract must be lawful. " +
				"Some contracts, such as those for the sale of land, must be in writing to be enforceable.",
		},
		{
			Name:      "Litigation Glossary",
			Icon:      "confluence",
			URL:       "https://docs.example.com/wiki/litigation-glossary",
			UpdatedAt: day(2024, time.January, 9),
			Body: "ATD stands for Attorney Trust Deposit in a legal context, the client funds held in trust by counsel. " +
				"A class action lawsuit lets one or more plaintiffs sue on behalf of a larger group. " +
				"A court certifies a class action when the class is numerous, shares common questions of law or fact, " +
				"and the representatives' claims are typical of the class.",
		},
		{
			Name:      "Estate Planning FAQ",
			Icon:      "doc",
			URL:       "https://docs.example.com/faq/estate-planning",
			UpdatedAt: day(2022, time.August, 30),
			Body: "A will takes effect at death and passes through probate. " +
				"A living trust holds assets during life and can avoid probate. " +
				"A trust usually costs more to set up than a will but keeps the estate private.",
		},
		{
			Name:      "Employment Policy Handbook",
			Icon:      "sharepoint",
			URL:       "https://docs.example.com/hr/handbook",
			UpdatedAt: day(2024, time.June, 12),
			Body: "A non-compete agreement is enforceable when it protects a legitimate business interest " +
				"and is reasonable in duration, geography and scope. " +
				"Several states refuse to enforce non-compete clauses for most employees.",
		},
		{
			Name: "Scanned Exhibit B",
			Icon: "pdf",
			URL:  "https://docs.example.com/exhibits/b.pdf",
			Body: "",
		},
	}
}
