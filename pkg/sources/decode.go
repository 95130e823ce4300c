// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sources

import (
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

// ErrMissingName is returned when a source payload carries no name.
var ErrMissingName = errors.New("source payload has no name")

// ErrInvalidPayload is returned when a source payload is not a JSON object.
var ErrInvalidPayload = errors.New("source payload is not a JSON object")

// updatedAtLayouts are the timestamp shapes accepted for "updated_at".
var updatedAtLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// DecodeUpdate turns a backend source payload into an Update.
//
// # Description
//
// Only keys present in the payload become non-nil fields, so the result can
// be merged without clobbering data from earlier events. "summary" may be a
// string (one fragment) or an array of strings. "loading", "enhanced" and
// "error" decode to separate flags; a non-empty error string counts as true.
//
// # Inputs
//
//   - raw: The JSON object following a [SOURCE] or [ENRICH] tag.
//
// # Outputs
//
//   - Update: The partial update.
//   - error: ErrInvalidPayload or ErrMissingName.
//
// # Limitations
//
//   - An unparseable "updated_at" is treated as absent rather than an error.
func DecodeUpdate(raw []byte) (Update, error) {
	if !gjson.ValidBytes(raw) {
		return Update{}, ErrInvalidPayload
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return Update{}, ErrInvalidPayload
	}

	name := doc.Get("name")
	if !name.Exists() || name.String() == "" {
		return Update{}, ErrMissingName
	}

	u := Update{Name: name.String()}

	if v := doc.Get("icon"); v.Exists() && v.Type != gjson.Null {
		u.Icon = Ptr(v.String())
	}
	if v := doc.Get("url"); v.Exists() && v.Type != gjson.Null {
		u.URL = Ptr(v.String())
	}
	if v := doc.Get("confidence"); v.Exists() && v.Type == gjson.Number {
		u.Confidence = Ptr(v.Float())
	}
	if v := doc.Get("summary"); v.Exists() && v.Type != gjson.Null {
		s := decodeSummary(v)
		u.Summary = &s
	}
	if v := doc.Get("updated_at"); v.Exists() && v.Type == gjson.String {
		if t, err := parseUpdatedAt(v.String()); err == nil {
			u.UpdatedAt = &t
		}
	}

	if v := doc.Get("loading"); v.Exists() && v.Type != gjson.Null {
		u.Loading = Ptr(v.Bool())
	}
	if v := doc.Get("enhanced"); v.Exists() && v.Type != gjson.Null {
		u.Enhanced = Ptr(v.Bool())
	}
	if v := doc.Get("error"); v.Exists() && v.Type != gjson.Null {
		u.Failed = Ptr(truthy(v))
	}

	return u, nil
}

// truthy treats a non-empty error string the same as error=true.
func truthy(v gjson.Result) bool {
	if v.Type == gjson.String {
		return v.String() != "" && v.String() != "false"
	}
	return v.Bool()
}

func decodeSummary(v gjson.Result) Summary {
	if v.IsArray() {
		out := Summary{}
		v.ForEach(func(_, item gjson.Result) bool {
			if item.Type != gjson.Null {
				out = append(out, item.String())
			}
			return true
		})
		return out
	}
	return Summary{v.String()}
}

func parseUpdatedAt(s string) (time.Time, error) {
	for _, layout := range updatedAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized updated_at %q", s)
}
