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

// GetFunctionCodeArgs holds arguments for GetFunctionCode.
type GetFunctionCodeArgs struct {
	FunctionName string
	FullCode     bool // return complete code without truncation
}

// maxInlineCodeLen bounds how much source text a lookup returns before
// pointing the caller at the file instead.
const maxInlineCodeLen = 3000

// GetFunctionCode retrieves the source code of a function by name,
// trying an exact (case-insensitive) match before a partial one. The
// output is annotated with the function's stored justification when the
// justify pass has run.
func GetFunctionCode(ctx context.Context, client Querier, args GetFunctionCodeArgs) (*ToolResult, error) {
	funcName := strings.TrimSpace(args.FunctionName)
	if funcName == "" {
		return NewError("Error: function_name cannot be empty"), nil
	}

	row, err := queryFunctionWithCode(ctx, client, funcName)
	if err != nil {
		return NewError(fmt.Sprintf("Query error: %v", err)), nil
	}
	if row == nil {
		return NewResult(fmt.Sprintf("Function '%s' not found.", funcName)), nil
	}

	name := anyToStr(row[0])
	filePath := anyToStr(row[1])
	signature := anyToStr(row[2])
	codeText := anyToStr(row[3])
	startLine := row[4]
	endLine := row[5]
	functionID := ""
	if len(row) > 6 {
		functionID = anyToStr(row[6])
	}

	truncated := false
	if !args.FullCode && len(codeText) > maxInlineCodeLen {
		codeText = codeText[:maxInlineCodeLen]
		truncated = true
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "**Function**: %s\n", name)
	fmt.Fprintf(&sb, "**File**: %s:%v-%v\n", filePath, startLine, endLine)
	fmt.Fprintf(&sb, "**Signature**: %s\n", signature)
	if functionID != "" {
		appendJustification(&sb, lookupJustification(ctx, client, functionID))
	}
	fmt.Fprintf(&sb, "\n```%s\n%s\n```", detectLanguage(filePath), codeText)

	if truncated {
		sb.WriteString("\n\n**Code truncated.** Re-run with `full_code: true` for the rest, or open ")
		fmt.Fprintf(&sb, "`%s` at lines %v-%v.", filePath, startLine, endLine)
	}

	return NewResult(sb.String()), nil
}

// queryFunctionWithCode resolves funcName to its metadata plus code text,
// exact match first, partial second. Returns nil with no error when the
// function isn't indexed.
func queryFunctionWithCode(ctx context.Context, client Querier, funcName string) ([]any, error) {
	for _, anchor := range []string{"^%s$", "%s"} {
		pattern := fmt.Sprintf(anchor, EscapeRegex(funcName))
		script := fmt.Sprintf(
			`?[name, file_path, signature, code_text, start_line, end_line, id] := *cie_function { id, name, file_path, signature, start_line, end_line }, *cie_function_code { function_id: id, code_text }, regex_matches(name, "(?i)%s") :limit 1`,
			pattern)
		result, err := client.Query(ctx, script)
		if err != nil {
			return nil, err
		}
		if len(result.Rows) > 0 {
			return result.Rows[0], nil
		}
	}
	return nil, nil
}

// GetCallGraphArgs holds arguments for GetCallGraph.
type GetCallGraphArgs struct {
	FunctionName string
}

// GetCallGraph combines FindCallers and FindCallees into a single view
// of a function's position in the call graph.
func GetCallGraph(ctx context.Context, client Querier, args GetCallGraphArgs) (*ToolResult, error) {
	funcName := strings.TrimSpace(args.FunctionName)
	if funcName == "" {
		return NewError("Error: function_name cannot be empty"), nil
	}

	callersResult, err := FindCallers(ctx, client, FindCallersArgs{FunctionName: funcName})
	if err != nil {
		return nil, fmt.Errorf("find callers for %s: %w", funcName, err)
	}

	calleesResult, err := FindCallees(ctx, client, FindCalleesArgs{FunctionName: funcName})
	if err != nil {
		return nil, fmt.Errorf("find callees for %s: %w", funcName, err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Call Graph for '%s'\n\n", funcName)
	sb.WriteString("## Callers (functions that call this):\n")
	sb.WriteString(callersResult.Text)
	sb.WriteString("\n\n## Callees (functions called by this):\n")
	sb.WriteString(calleesResult.Text)

	return NewResult(sb.String()), nil
}

// GetFileSummaryArgs holds arguments for GetFileSummary.
type GetFileSummaryArgs struct {
	FilePath string
}

// GetFileSummary summarizes every entity a file defines: types first,
// then functions and methods, each with its line. When the file itself
// has a justification, the summary leads with it.
func GetFileSummary(ctx context.Context, client Querier, args GetFileSummaryArgs) (*ToolResult, error) {
	filePath := strings.TrimSpace(args.FilePath)
	if filePath == "" {
		return NewError("Error: file_path cannot be empty"), nil
	}

	typeResult, funcResult, err := queryFileSummaryEntities(ctx, client, filePath)
	if err != nil {
		return NewError(fmt.Sprintf("Query error: %v", err)), nil
	}

	if len(typeResult.Rows) == 0 && len(funcResult.Rows) == 0 {
		return NewResult(fmt.Sprintf("No entities found in '%s'.", filePath)), nil
	}

	fileJust := lookupFileJustification(ctx, client, filePath)
	return NewResult(formatFileSummary(filePath, fileJust, typeResult.Rows, funcResult.Rows)), nil
}

// lookupFileJustification resolves filePath to its file ID and loads the
// justification stored for it, if any.
func lookupFileJustification(ctx context.Context, client Querier, filePath string) *JustificationInfo {
	script := fmt.Sprintf(`?[id] := *cie_file { id, path }, ends_with(path, %q) :limit 1`, filePath)
	result, err := client.Query(ctx, script)
	if err != nil || len(result.Rows) == 0 {
		return nil
	}
	return lookupJustification(ctx, client, anyToStr(result.Rows[0][0]))
}

func queryFileSummaryEntities(ctx context.Context, client Querier, filePath string) (*QueryResult, *QueryResult, error) {
	escapedPath := EscapeRegex(filePath)
	typeScript := fmt.Sprintf(`?[name, kind, start_line] := *cie_type { name, kind, file_path, start_line }, regex_matches(file_path, "(?i)%s") :order start_line :limit 100`, escapedPath)
	typeResult, _ := client.Query(ctx, typeScript)
	if typeResult == nil {
		typeResult = &QueryResult{}
	}

	funcScript := fmt.Sprintf(`?[name, signature, start_line] := *cie_function { name, signature, file_path, start_line }, regex_matches(file_path, "(?i)%s") :order start_line :limit 100`, escapedPath)
	funcResult, err := client.Query(ctx, funcScript)
	return typeResult, funcResult, err
}

func formatFileSummary(filePath string, fileJust *JustificationInfo, typeRows, funcRows [][]any) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Summary of %s\n\n", filePath)
	if fileJust != nil {
		appendJustification(&sb, fileJust)
		sb.WriteString("\n")
	}

	formatFileSummaryTypes(&sb, typeRows)
	formatFileSummaryFunctions(&sb, funcRows)

	sb.WriteString("---\n")
	fmt.Fprintf(&sb, "**Total**: %d types, %d functions/methods\n", len(typeRows), len(funcRows))
	return sb.String()
}

func formatFileSummaryTypes(sb *strings.Builder, rows [][]any) {
	if len(rows) == 0 {
		return
	}
	_, _ = fmt.Fprintf(sb, "## Types (%d)\n\n", len(rows))
	for _, row := range rows {
		_, _ = fmt.Fprintf(sb, "• **Line %v**: `%s` (%s)\n", row[2], anyToStr(row[0]), anyToStr(row[1]))
	}
	sb.WriteString("\n")
}

func formatFileSummaryFunctions(sb *strings.Builder, rows [][]any) {
	if len(rows) == 0 {
		return
	}
	var methods, functions [][]any
	for _, row := range rows {
		if strings.Contains(anyToStr(row[0]), ".") {
			methods = append(methods, row)
		} else {
			functions = append(functions, row)
		}
	}
	formatFuncSection(sb, "Functions", functions)
	formatFuncSection(sb, "Methods", methods)
}

func formatFuncSection(sb *strings.Builder, title string, rows [][]any) {
	if len(rows) == 0 {
		return
	}
	_, _ = fmt.Fprintf(sb, "## %s (%d)\n\n", title, len(rows))
	for _, row := range rows {
		name, signature := anyToStr(row[0]), anyToStr(row[1])
		_, _ = fmt.Fprintf(sb, "• **Line %v**: `%s`\n", row[2], name)
		if len(signature) > 0 && len(signature) < 100 {
			_, _ = fmt.Fprintf(sb, "  `%s`\n", signature)
		}
	}
	sb.WriteString("\n")
}
