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

package justify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kraklabs/cie-engine/pkg/storage"
)

// entityRow is a single entity discovered by a hierarchy scan: a file, a
// type, or a function, flattened to the fields the engine needs to build
// a prompt and compute HierarchyDepth.
type entityRow struct {
	ID       string
	Type     EntityType
	Name     string
	FilePath string
	CodeText string
	ParentID string // file ID for a type/function; empty for a file
}

// quoteString escapes a value for inclusion in a CozoScript literal.
func quoteString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// ScanEntities returns every file, type, and function currently stored,
// in hierarchy order (files first, then types, then functions), so the
// engine can justify parents before the children that cite them.
func ScanEntities(ctx context.Context, backend storage.Backend) ([]entityRow, error) {
	var out []entityRow

	files, err := backend.Query(ctx, `?[id, path] := *cie_file { id, path }`)
	if err != nil {
		return nil, fmt.Errorf("scan files: %w", err)
	}
	fileIDByPath := make(map[string]string, len(files.Rows))
	for _, row := range files.Rows {
		id, _ := row[0].(string)
		path, _ := row[1].(string)
		fileIDByPath[path] = id
		out = append(out, entityRow{ID: id, Type: EntityFile, Name: path, FilePath: path})
	}

	types, err := backend.Query(ctx, `?[id, name, file_path] := *cie_type { id, name, file_path }`)
	if err != nil {
		return nil, fmt.Errorf("scan types: %w", err)
	}
	for _, row := range types.Rows {
		id, _ := row[0].(string)
		name, _ := row[1].(string)
		path, _ := row[2].(string)
		out = append(out, entityRow{ID: id, Type: EntityTypeDef, Name: name, FilePath: path, ParentID: fileIDByPath[path]})
	}

	functions, err := backend.Query(ctx, `?[id, name, file_path] := *cie_function { id, name, file_path }`)
	if err != nil {
		return nil, fmt.Errorf("scan functions: %w", err)
	}
	for _, row := range functions.Rows {
		id, _ := row[0].(string)
		name, _ := row[1].(string)
		path, _ := row[2].(string)
		out = append(out, entityRow{ID: id, Type: EntityFunction, Name: name, FilePath: path, ParentID: fileIDByPath[path]})
	}

	codeByFunction, err := functionCodeText(ctx, backend)
	if err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Type == EntityFunction {
			out[i].CodeText = codeByFunction[out[i].ID]
		}
	}

	return out, nil
}

func functionCodeText(ctx context.Context, backend storage.Backend) (map[string]string, error) {
	result, err := backend.Query(ctx, `?[function_id, code_text] := *cie_function_code { function_id, code_text }`)
	if err != nil {
		return map[string]string{}, nil
	}
	out := make(map[string]string, len(result.Rows))
	for _, row := range result.Rows {
		id, _ := row[0].(string)
		code, _ := row[1].(string)
		out[id] = code
	}
	return out, nil
}

// callerNames returns the names of the topN functions that call
// functionID.
func callerNames(ctx context.Context, backend storage.Backend, functionID string, topN int) ([]string, error) {
	script := fmt.Sprintf(`?[name] := *cie_calls { caller_id, callee_id },
  *cie_function { id: caller_id, name },
  callee_id = %s
:limit %d`, quoteString(functionID), topN)
	result, err := backend.Query(ctx, script)
	if err != nil {
		return nil, err
	}
	return namesFromRows(result.Rows), nil
}

// calleeNames returns the names of the topN functions functionID calls.
func calleeNames(ctx context.Context, backend storage.Backend, functionID string, topN int) ([]string, error) {
	script := fmt.Sprintf(`?[name] := *cie_calls { caller_id, callee_id },
  *cie_function { id: callee_id, name },
  caller_id = %s
:limit %d`, quoteString(functionID), topN)
	result, err := backend.Query(ctx, script)
	if err != nil {
		return nil, err
	}
	return namesFromRows(result.Rows), nil
}

// siblingNames returns the names of other functions defined in the same
// file as functionID, excluding functionID itself.
func siblingNames(ctx context.Context, backend storage.Backend, filePath, excludeID string, topN int) ([]string, error) {
	script := fmt.Sprintf(`?[name] := *cie_function { id, name, file_path },
  file_path = %s,
  id != %s
:limit %d`, quoteString(filePath), quoteString(excludeID), topN)
	result, err := backend.Query(ctx, script)
	if err != nil {
		return nil, err
	}
	return namesFromRows(result.Rows), nil
}

func namesFromRows(rows [][]any) []string {
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		if name, ok := row[0].(string); ok {
			out = append(out, name)
		}
	}
	return out
}

// GetJustification loads the stored Justification for entityID, if any.
func GetJustification(ctx context.Context, backend storage.Backend, entityID string) (*Justification, error) {
	script := fmt.Sprintf(`?[id, entity_id, entity_type, hierarchy_depth, purpose_summary, business_value,
	feature_context, detailed_description, tags, confidence_score, confidence_level, reasoning,
	pending_questions, clarification_pending, inferred_from, version, created_at, updated_at] :=
	*cie_justification { id, entity_id, entity_type, hierarchy_depth, purpose_summary, business_value,
	feature_context, detailed_description, tags, confidence_score, confidence_level, reasoning,
	pending_questions, clarification_pending, inferred_from, version, created_at, updated_at },
	entity_id = %s`,
		quoteString(entityID))

	result, err := backend.Query(ctx, script)
	if err != nil || len(result.Rows) == 0 {
		return nil, nil
	}
	return justificationFromRow(result.Rows[0]), nil
}

func justificationFromRow(row []any) *Justification {
	get := func(i int) string {
		if i >= len(row) {
			return ""
		}
		s, _ := row[i].(string)
		return s
	}
	getFloat := func(i int) float64 {
		if i >= len(row) {
			return 0
		}
		f, _ := row[i].(float64)
		return f
	}
	getBool := func(i int) bool {
		if i >= len(row) {
			return false
		}
		b, _ := row[i].(bool)
		return b
	}
	getInt := func(i int) int {
		return int(getFloat(i))
	}
	var tags, pending []string
	if raw, ok := row[8].([]any); ok {
		for _, t := range raw {
			if s, ok := t.(string); ok {
				tags = append(tags, s)
			}
		}
	}
	if raw, ok := row[12].([]any); ok {
		for _, t := range raw {
			if s, ok := t.(string); ok {
				pending = append(pending, s)
			}
		}
	}
	createdAt, _ := time.Parse(time.RFC3339, get(16))
	updatedAt, _ := time.Parse(time.RFC3339, get(17))
	return &Justification{
		ID:                   get(0),
		EntityID:             get(1),
		EntityType:           EntityType(get(2)),
		HierarchyDepth:       getInt(3),
		PurposeSummary:       get(4),
		BusinessValue:        get(5),
		FeatureContext:       get(6),
		DetailedDescription:  get(7),
		Tags:                 tags,
		ConfidenceScore:      getFloat(9),
		ConfidenceLevel:      ConfidenceLevel(get(10)),
		Reasoning:            get(11),
		PendingQuestions:     pending,
		ClarificationPending: getBool(13),
		InferredFrom:         InferredFrom(get(14)),
		Version:              getInt(15),
		CreatedAt:            createdAt,
		UpdatedAt:            updatedAt,
	}
}

// SaveJustification upserts j into cie_justification.
func SaveJustification(ctx context.Context, backend storage.Backend, j *Justification) error {
	tagsLit := stringListLiteral(j.Tags)
	pendingLit := stringListLiteral(j.PendingQuestions)
	script := fmt.Sprintf(`?[id, entity_id, entity_type, hierarchy_depth, purpose_summary, business_value,
	feature_context, detailed_description, tags, confidence_score, confidence_level, reasoning,
	pending_questions, clarification_pending, inferred_from, version, created_at, updated_at] <- [[
	%s, %s, %s, %d, %s, %s, %s, %s, %s, %f, %s, %s, %s, %v, %s, %d, %s, %s
]] :put cie_justification {
	id => entity_id, entity_type, hierarchy_depth, purpose_summary, business_value, feature_context,
	detailed_description, tags, confidence_score, confidence_level, reasoning, pending_questions,
	clarification_pending, inferred_from, version, created_at, updated_at
}`,
		quoteString(j.ID), quoteString(j.EntityID), quoteString(string(j.EntityType)), j.HierarchyDepth,
		quoteString(j.PurposeSummary), quoteString(j.BusinessValue), quoteString(j.FeatureContext),
		quoteString(j.DetailedDescription), tagsLit, j.ConfidenceScore, quoteString(string(j.ConfidenceLevel)),
		quoteString(j.Reasoning), pendingLit, j.ClarificationPending, quoteString(string(j.InferredFrom)),
		j.Version, quoteString(j.CreatedAt.Format(time.RFC3339)), quoteString(j.UpdatedAt.Format(time.RFC3339)))

	return backend.Execute(ctx, script)
}

func stringListLiteral(vals []string) string {
	if len(vals) == 0 {
		return "[]"
	}
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = quoteString(v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
