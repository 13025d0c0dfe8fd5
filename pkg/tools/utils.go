// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later
package tools

import (
	"fmt"
	"strconv"
	"strings"
)

// escapableRegexChars are the regex metacharacters EscapeRegex rewrites.
const escapableRegexChars = `.()[]{}+*?^$|\`

// EscapeRegex escapes regex metacharacters for the CozoDB regex engine,
// which needs [X] bracket notation: backslash escaping doesn't work
// reliably there.
func EscapeRegex(s string) string {
	var result []byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if strings.IndexByte(escapableRegexChars, c) >= 0 {
			result = append(result, '[', c, ']')
		} else {
			result = append(result, c)
		}
	}
	return string(result)
}

// ExtractFileName returns the final path segment.
func ExtractFileName(path string) string {
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		return path[idx+1:]
	}
	return path
}

// ExtractDir returns the directory portion of a path, or "." for a bare
// file name.
func ExtractDir(path string) string {
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		return path[:idx]
	}
	return "."
}

// ExtractTopDir returns the first one or two path segments, the
// granularity the status breakdown groups files at.
func ExtractTopDir(path string) string {
	var parts []string
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			parts = append(parts, seg)
		}
	}
	switch len(parts) {
	case 0:
		return "."
	case 1:
		return parts[0]
	default:
		return parts[0] + "/" + parts[1]
	}
}

// FormatRows formats query result rows as a Markdown list, capped at 20
// rows.
func FormatRows(rows [][]any) string {
	if len(rows) == 0 {
		return "_No results_\n"
	}
	var sb strings.Builder
	for i, row := range rows {
		if i >= 20 {
			fmt.Fprintf(&sb, "_... and %d more_\n", len(rows)-20)
			break
		}
		switch {
		case len(row) >= 3:
			fmt.Fprintf(&sb, "- `%s` in `%s:%v`\n", row[0], row[1], row[2])
		case len(row) >= 2:
			fmt.Fprintf(&sb, "- `%s` in `%s`\n", row[0], row[1])
		case len(row) >= 1:
			fmt.Fprintf(&sb, "- `%s`\n", row[0])
		}
	}
	return sb.String()
}

// ContainsStr reports whether s contains substr.
func ContainsStr(s, substr string) bool {
	return strings.Contains(s, substr)
}

// ContainsAny reports whether s contains any of substrs.
func ContainsAny(s string, substrs []string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// ToLower lowercases ASCII letters; the index stores identifiers and
// paths, which are ASCII in practice.
func ToLower(s string) string {
	return strings.ToLower(s)
}

// queryStopWords are dropped when extracting searchable terms from a
// natural-language question.
var queryStopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"is": true, "are": true, "was": true, "were": true,
	"how": true, "what": true, "where": true, "when": true, "why": true,
	"does": true, "do": true, "did": true,
	"in": true, "on": true, "at": true, "to": true, "for": true,
	"of": true, "with": true, "by": true, "that": true, "this": true,
	"function": true, "code": true, "find": true, "search": true,
}

// ExtractKeyTerms extracts up to five searchable terms from a query,
// dropping stop words and anything three characters or shorter.
func ExtractKeyTerms(query string) []string {
	var terms []string
	words := strings.FieldsFunc(query, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == ',' || r == '.'
	})
	for _, w := range words {
		if len(w) > 2 && !queryStopWords[strings.ToLower(w)] {
			terms = append(terms, w)
		}
		if len(terms) == 5 {
			break
		}
	}
	return terms
}

// AnyToString converts a query result cell to a display string. Unlike
// anyToStr it renders fractional floats at two decimal places, the
// precision the similarity displays use.
func AnyToString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', 2, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}
