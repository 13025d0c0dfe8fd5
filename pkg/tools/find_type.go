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
	"context"
	"fmt"
	"strings"
)

// TypeInfo is a type row as the navigation tools surface it.
type TypeInfo struct {
	ID        string
	Name      string
	Kind      string
	FilePath  string
	CodeText  string
	StartLine int
	EndLine   int
}

// FindTypeArgs holds arguments for FindType.
type FindTypeArgs struct {
	Name        string
	Kind        string // optional: "struct", "interface", "class", "type_alias", "enum"
	PathPattern string
	Limit       int
}

// FindType finds type definitions (structs, interfaces, classes, type
// aliases) by name, optionally filtered by kind and file path.
func FindType(ctx context.Context, client Querier, args FindTypeArgs) (*ToolResult, error) {
	name := strings.TrimSpace(args.Name)
	if name == "" {
		return NewError("Error: 'name' is required"), nil
	}
	if args.Limit <= 0 {
		args.Limit = 20
	}

	conditions := []string{fmt.Sprintf(`regex_matches(name, "(?i)%s")`, EscapeRegex(name))}
	if args.Kind != "" {
		conditions = append(conditions, fmt.Sprintf("kind = %q", args.Kind))
	}
	if args.PathPattern != "" {
		conditions = append(conditions, fmt.Sprintf(`regex_matches(file_path, "(?i)%s")`, EscapeRegex(args.PathPattern)))
	}

	script := fmt.Sprintf(
		`?[name, kind, file_path, start_line, end_line] := *cie_type { name, kind, file_path, start_line, end_line }, %s :order file_path, start_line :limit %d`,
		strings.Join(conditions, ", "), args.Limit)

	result, err := client.Query(ctx, script)
	if err != nil {
		return NewError(fmt.Sprintf("Query error: %v", err)), nil
	}

	if len(result.Rows) == 0 {
		return NewResult(fmt.Sprintf("No types found matching '%s'.", name)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "**Types matching '%s'** (%d found):\n\n", name, len(result.Rows))
	for _, row := range result.Rows {
		fmt.Fprintf(&sb, "• **%s** (%s)\n  %s:%v-%v\n\n",
			anyToStr(row[0]), anyToStr(row[1]), anyToStr(row[2]), row[3], row[4])
	}

	return NewResult(sb.String()), nil
}

// GetTypeCode retrieves the source code of a type definition by name.
// filePath, when non-empty, disambiguates same-named types across files.
// The output carries the type's stored justification when available.
func GetTypeCode(ctx context.Context, client Querier, typeName, filePath string) (*ToolResult, error) {
	name := strings.TrimSpace(typeName)
	if name == "" {
		return NewError("Error: 'type_name' is required"), nil
	}

	conditions := []string{fmt.Sprintf(`regex_matches(name, "(?i)^%s$")`, EscapeRegex(name))}
	if filePath != "" {
		conditions = append(conditions, fmt.Sprintf("ends_with(file_path, %q)", filePath))
	}

	script := fmt.Sprintf(
		`?[name, kind, file_path, code_text, start_line, end_line, id] := *cie_type { id, name, kind, file_path, start_line, end_line }, *cie_type_code { type_id: id, code_text }, %s :limit 1`,
		strings.Join(conditions, ", "))

	result, err := client.Query(ctx, script)
	if err != nil {
		return NewError(fmt.Sprintf("Query error: %v", err)), nil
	}

	if len(result.Rows) == 0 {
		// Relax to a partial name match before giving up.
		script = fmt.Sprintf(
			`?[name, kind, file_path, code_text, start_line, end_line, id] := *cie_type { id, name, kind, file_path, start_line, end_line }, *cie_type_code { type_id: id, code_text }, regex_matches(name, "(?i)%s") :limit 1`,
			EscapeRegex(name))
		result, err = client.Query(ctx, script)
		if err != nil {
			return NewError(fmt.Sprintf("Query error: %v", err)), nil
		}
	}

	if len(result.Rows) == 0 {
		return NewResult(fmt.Sprintf("Type '%s' not found.", name)), nil
	}

	row := result.Rows[0]
	resolvedPath := anyToStr(row[2])

	var sb strings.Builder
	fmt.Fprintf(&sb, "**Type**: %s (%s)\n", anyToStr(row[0]), anyToStr(row[1]))
	fmt.Fprintf(&sb, "**File**: %s:%v-%v\n", resolvedPath, row[4], row[5])
	if len(row) > 6 {
		appendJustification(&sb, lookupJustification(ctx, client, anyToStr(row[6])))
	}
	fmt.Fprintf(&sb, "\n```%s\n%s\n```", detectLanguage(resolvedPath), anyToStr(row[3]))

	return NewResult(sb.String()), nil
}

// detectLanguage maps a file path to the fenced-code-block language tag
// used when rendering source. Unrecognized extensions report "unknown".
func detectLanguage(filePath string) string {
	lower := strings.ToLower(filePath)
	switch {
	case strings.HasSuffix(lower, ".go"):
		return "go"
	case strings.HasSuffix(lower, ".py"):
		return "python"
	case strings.HasSuffix(lower, ".ts"), strings.HasSuffix(lower, ".tsx"):
		return "typescript"
	case strings.HasSuffix(lower, ".js"), strings.HasSuffix(lower, ".jsx"):
		return "javascript"
	case strings.HasSuffix(lower, ".rs"):
		return "rust"
	case strings.HasSuffix(lower, ".java"):
		return "java"
	default:
		return "unknown"
	}
}
