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

//go:build cozodb
// +build cozodb

// Shared fixtures for the cozodb-tagged integration tests: an in-memory
// database with the production schema, plus row-insert helpers.

package tools

import (
	"fmt"
	"strings"
	"testing"

	cozo "github.com/kraklabs/cie-engine/pkg/cozodb"
)

// openTestDB creates an in-memory CozoDB with the engine schema applied,
// closed automatically when the test finishes.
func openTestDB(tb testing.TB) *cozo.CozoDB {
	tb.Helper()

	db, err := cozo.New("mem", "", nil)
	if err != nil {
		tb.Fatalf("open in-memory cozodb: %v", err)
	}
	tb.Cleanup(func() { db.Close() })

	schema := []string{
		`:create cie_file { id: String => path: String, hash: String, language: String, size: Int }`,
		`:create cie_function { id: String => name: String, signature: String, file_path: String, start_line: Int, end_line: Int, start_col: Int, end_col: Int }`,
		`:create cie_function_code { function_id: String => code_text: String }`,
		`:create cie_function_embedding { function_id: String => embedding: <F32; 1536> }`,
		`:create cie_defines { id: String => file_id: String, function_id: String }`,
		`:create cie_calls { id: String => caller_id: String, callee_id: String }`,
		`:create cie_type { id: String => name: String, kind: String, file_path: String, start_line: Int, end_line: Int, start_col: Int, end_col: Int }`,
		`:create cie_type_code { type_id: String => code_text: String }`,
		`:create cie_ghost { id: String => name: String, package_hint: String }`,
		`:create cie_justification { id: String =>
			entity_id: String,
			entity_type: String,
			hierarchy_depth: Int,
			purpose_summary: String,
			business_value: String,
			feature_context: String,
			detailed_description: String,
			tags: [String],
			confidence_score: Float,
			confidence_level: String,
			reasoning: String,
			pending_questions: [String],
			clarification_pending: Bool,
			inferred_from: String,
			version: Int,
			created_at: String,
			updated_at: String
		}`,
	}
	for _, stmt := range schema {
		if _, err := db.Run(stmt, nil); err != nil {
			tb.Fatalf("create schema relation: %v\n%s", err, stmt)
		}
	}

	return &db
}

// quoteTestString escapes a value for inclusion in a test mutation.
func quoteTestString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return `"` + s + `"`
}

func mustRun(tb testing.TB, db *cozo.CozoDB, script string) {
	tb.Helper()
	if _, err := db.Run(script, nil); err != nil {
		tb.Fatalf("test mutation failed: %v\n%s", err, script)
	}
}

// insertTestFile inserts a cie_file row.
func insertTestFile(tb testing.TB, db *cozo.CozoDB, id, path, language string) {
	tb.Helper()
	mustRun(tb, db, fmt.Sprintf(
		`?[id, path, hash, language, size] <- [[%s, %s, "testhash", %s, 100]] :put cie_file { id => path, hash, language, size }`,
		quoteTestString(id), quoteTestString(path), quoteTestString(language)))
}

// insertTestFunction inserts a cie_function row plus its code text.
func insertTestFunction(tb testing.TB, db *cozo.CozoDB, id, name, filePath, signature, codeText string, startLine int) {
	tb.Helper()
	endLine := startLine + strings.Count(codeText, "\n")
	mustRun(tb, db, fmt.Sprintf(
		`?[id, name, signature, file_path, start_line, end_line, start_col, end_col] <- [[%s, %s, %s, %s, %d, %d, 0, 0]] :put cie_function { id => name, signature, file_path, start_line, end_line, start_col, end_col }`,
		quoteTestString(id), quoteTestString(name), quoteTestString(signature), quoteTestString(filePath), startLine, endLine))
	mustRun(tb, db, fmt.Sprintf(
		`?[function_id, code_text] <- [[%s, %s]] :put cie_function_code { function_id => code_text }`,
		quoteTestString(id), quoteTestString(codeText)))
}

// insertTestType inserts a cie_type row plus its code text.
func insertTestType(tb testing.TB, db *cozo.CozoDB, id, name, kind, filePath, codeText string, startLine int) {
	tb.Helper()
	endLine := startLine + strings.Count(codeText, "\n")
	mustRun(tb, db, fmt.Sprintf(
		`?[id, name, kind, file_path, start_line, end_line, start_col, end_col] <- [[%s, %s, %s, %s, %d, %d, 0, 0]] :put cie_type { id => name, kind, file_path, start_line, end_line, start_col, end_col }`,
		quoteTestString(id), quoteTestString(name), quoteTestString(kind), quoteTestString(filePath), startLine, endLine))
	mustRun(tb, db, fmt.Sprintf(
		`?[type_id, code_text] <- [[%s, %s]] :put cie_type_code { type_id => code_text }`,
		quoteTestString(id), quoteTestString(codeText)))
}

// insertTestCall inserts a cie_calls edge.
func insertTestCall(tb testing.TB, db *cozo.CozoDB, id, callerID, calleeID string) {
	tb.Helper()
	mustRun(tb, db, fmt.Sprintf(
		`?[id, caller_id, callee_id] <- [[%s, %s, %s]] :put cie_calls { id => caller_id, callee_id }`,
		quoteTestString(id), quoteTestString(callerID), quoteTestString(calleeID)))
}

// insertTestJustification inserts a minimal cie_justification row for an
// entity, for tests exercising justification-enriched output.
func insertTestJustification(tb testing.TB, db *cozo.CozoDB, entityID, purpose, level string) {
	tb.Helper()
	mustRun(tb, db, fmt.Sprintf(
		`?[id, entity_id, entity_type, hierarchy_depth, purpose_summary, business_value, feature_context, detailed_description, tags, confidence_score, confidence_level, reasoning, pending_questions, clarification_pending, inferred_from, version, created_at, updated_at] <- [[%s, %s, "function", 2, %s, "", "", "", [], 0.9, %s, "", [], false, "llm", 1, "2025-01-01T00:00:00Z", "2025-01-01T00:00:00Z"]] :put cie_justification { id => entity_id, entity_type, hierarchy_depth, purpose_summary, business_value, feature_context, detailed_description, tags, confidence_score, confidence_level, reasoning, pending_questions, clarification_pending, inferred_from, version, created_at, updated_at }`,
		quoteTestString("just:"+entityID), quoteTestString(entityID), quoteTestString(purpose), quoteTestString(level)))
}
