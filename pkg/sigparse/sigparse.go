// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package sigparse extracts parameter names and base types from stored
// function signature strings. The parsers store signatures as flat text,
// so downstream consumers (type-usage linking, enrichment display) parse
// them back here rather than each keeping its own string-splitting code.
package sigparse

import "strings"

// ParamInfo is one parsed parameter: its name and normalized base type.
type ParamInfo struct {
	Name string
	Type string
}

// ExtractParamString returns the text inside a signature's parameter
// list, skipping a method receiver group if present. Returns "" when the
// signature has no parameter list or no parameters.
func ExtractParamString(signature string) string {
	groups := topLevelParenGroups(signature)
	if len(groups) == 0 {
		return ""
	}

	// "func (r *T) Name(...)": the first group is the receiver when it
	// directly follows the func keyword.
	rest := strings.TrimSpace(signature)
	if strings.HasPrefix(rest, "func") {
		afterFunc := strings.TrimSpace(rest[len("func"):])
		if strings.HasPrefix(afterFunc, "(") && len(groups) > 1 {
			return groups[1]
		}
	}
	return groups[0]
}

// topLevelParenGroups returns the contents of each parenthesized group
// at nesting depth one, in order of appearance.
func topLevelParenGroups(s string) []string {
	var groups []string
	depth := 0
	start := -1
	for i, c := range s {
		switch c {
		case '(':
			depth++
			if depth == 1 {
				start = i + 1
			}
		case ')':
			depth--
			if depth == 0 && start >= 0 {
				groups = append(groups, s[start:i])
				start = -1
			}
		}
	}
	return groups
}

// ParseGoParams parses a Go signature's parameter list into ParamInfo
// entries. Grouped parameters ("a, b int") each get the shared type;
// a method receiver is excluded. Types are normalized via NormalizeType.
func ParseGoParams(signature string) []ParamInfo {
	paramStr := strings.TrimSpace(ExtractParamString(signature))
	if paramStr == "" {
		return nil
	}

	segments := splitTopLevel(paramStr, ',')

	// First pass: split each segment into name and raw type. Segments
	// without a type ("a" in "a, b int") share the next typed segment's
	// type, so backfill right to left.
	type rawParam struct {
		name    string
		rawType string
	}
	params := make([]rawParam, 0, len(segments))
	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		name, rawType := splitNameType(seg)
		params = append(params, rawParam{name: name, rawType: rawType})
	}

	for i := len(params) - 2; i >= 0; i-- {
		if params[i].rawType == "" {
			params[i].rawType = params[i+1].rawType
		}
	}

	out := make([]ParamInfo, 0, len(params))
	for _, p := range params {
		if p.name == "" {
			continue
		}
		out = append(out, ParamInfo{Name: p.name, Type: NormalizeType(p.rawType)})
	}
	return out
}

// splitNameType splits one parameter segment at the first top-level
// space: "fn func(int) error" -> ("fn", "func(int) error"). A bare
// identifier has no type yet (grouped parameter).
func splitNameType(seg string) (string, string) {
	depth := 0
	for i, c := range seg {
		switch c {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ' ':
			if depth == 0 {
				return seg[:i], strings.TrimSpace(seg[i+1:])
			}
		}
	}
	return seg, ""
}

// splitTopLevel splits s on sep, ignoring separators nested inside
// parentheses, brackets, or braces.
func splitTopLevel(s string, sep rune) []string {
	var out []string
	depth := 0
	start := 0
	for i, c := range s {
		switch c {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case sep:
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}

// NormalizeType reduces a type expression to the base named type the
// graph stores: pointers, slices, variadics, and package qualifiers are
// stripped, and any function type collapses to "func".
func NormalizeType(t string) string {
	t = strings.TrimSpace(t)
	t = strings.TrimPrefix(t, "...")
	for {
		switch {
		case strings.HasPrefix(t, "*"):
			t = t[1:]
		case strings.HasPrefix(t, "[]"):
			t = t[2:]
		default:
			goto stripped
		}
	}
stripped:
	if strings.HasPrefix(t, "func") {
		return "func"
	}
	if idx := strings.LastIndex(t, "."); idx >= 0 && !strings.Contains(t, "(") {
		return t[idx+1:]
	}
	return t
}
