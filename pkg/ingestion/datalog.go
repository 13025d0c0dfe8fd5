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

package ingestion

import (
	"fmt"
	"math"
	"strings"
)

// ValidationError describes a single entity that failed validation before
// being committed to storage.
type ValidationError struct {
	EntityType string
	EntityID   string
	Field      string
	Message    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %q: field %q: %s", e.EntityType, e.EntityID, e.Field, e.Message)
}

// ValidateEntities checks required fields and embedding dimension
// consistency before a mutation batch is built. It returns the first
// failure encountered.
func ValidateEntities(files []FileEntity, functions []FunctionEntity, defines []DefinesEdge, calls []CallsEdge) error {
	if err := validateFiles(files); err != nil {
		return err
	}
	if err := validateFunctions(functions); err != nil {
		return err
	}
	if err := validateDefinesEdges(defines, files, functions); err != nil {
		return err
	}
	if err := validateCallsEdges(calls); err != nil {
		return err
	}
	return nil
}

func validateFiles(files []FileEntity) error {
	for _, f := range files {
		if f.ID == "" {
			return &ValidationError{EntityType: "file", EntityID: f.Path, Field: "ID", Message: "must not be empty"}
		}
		if f.Path == "" {
			return &ValidationError{EntityType: "file", EntityID: f.ID, Field: "Path", Message: "must not be empty"}
		}
	}
	return nil
}

func validateFunctions(functions []FunctionEntity) error {
	var dim int
	for _, fn := range functions {
		if fn.ID == "" {
			return &ValidationError{EntityType: "function", EntityID: fn.Name, Field: "ID", Message: "must not be empty"}
		}
		if fn.Name == "" {
			return &ValidationError{EntityType: "function", EntityID: fn.ID, Field: "Name", Message: "must not be empty"}
		}
		if err := validateFunctionEmbedding(fn, &dim); err != nil {
			return err
		}
	}
	return nil
}

func validateFunctionEmbedding(fn FunctionEntity, dim *int) error {
	if len(fn.Embedding) == 0 {
		return nil
	}
	for _, v := range fn.Embedding {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return &ValidationError{EntityType: "function", EntityID: fn.ID, Field: "Embedding", Message: "contains NaN or Inf"}
		}
	}
	if *dim == 0 {
		*dim = len(fn.Embedding)
		return nil
	}
	if len(fn.Embedding) != *dim {
		return &ValidationError{
			EntityType: "function",
			EntityID:   fn.ID,
			Field:      "Embedding",
			Message:    fmt.Sprintf("dimension %d does not match prior embedding dimension %d", len(fn.Embedding), *dim),
		}
	}
	return nil
}

func validateDefinesEdges(defines []DefinesEdge, files []FileEntity, functions []FunctionEntity) error {
	for _, d := range defines {
		if d.FileID == "" || d.FunctionID == "" {
			return &ValidationError{EntityType: "defines_edge", EntityID: d.FileID + "|" + d.FunctionID, Field: "FileID/FunctionID", Message: "must not be empty"}
		}
	}
	return nil
}

func validateCallsEdges(calls []CallsEdge) error {
	for _, c := range calls {
		if c.CallerID == "" || c.CalleeID == "" {
			return &ValidationError{EntityType: "calls_edge", EntityID: c.CallerID + "|" + c.CalleeID, Field: "CallerID/CalleeID", Message: "must not be empty"}
		}
	}
	return nil
}

// DatalogBuilder generates CozoScript mutation and deletion statements from
// in-memory entity slices. It carries no state and is safe for concurrent
// use.
type DatalogBuilder struct{}

// NewDatalogBuilder returns a ready-to-use DatalogBuilder.
func NewDatalogBuilder() *DatalogBuilder {
	return &DatalogBuilder{}
}

// BuildMutationsWithTypes renders :put statements for every relation touched
// by a full or incremental index write. Entity kinds with no rows produce no
// statement.
func (b *DatalogBuilder) BuildMutationsWithTypes(
	files []FileEntity,
	functions []FunctionEntity,
	types []TypeEntity,
	defines []DefinesEdge,
	definesTypes []DefinesTypeEdge,
	calls []CallsEdge,
	imports []ImportEntity,
) string {
	var sb strings.Builder

	if len(files) > 0 {
		rows := make([]string, len(files))
		for i, f := range files {
			rows[i] = fmt.Sprintf("[%s, %s, %s]", quoteString(f.ID), quoteString(f.Path), quoteString(f.Language))
		}
		fmt.Fprintf(&sb, "?[id, path, language] <- [%s] :put cie_file {id => path, language}\n\n", strings.Join(rows, ", "))
	}

	if len(functions) > 0 {
		rows := make([]string, len(functions))
		for i, fn := range functions {
			rows[i] = fmt.Sprintf("[%s, %s, %s, %s, %d, %d, %d, %d]",
				quoteString(fn.ID), quoteString(fn.Name), quoteString(fn.Signature), quoteString(fn.FilePath),
				fn.StartLine, fn.EndLine, fn.StartCol, fn.EndCol)
		}
		fmt.Fprintf(&sb, "?[id, name, signature, file_path, start_line, end_line, start_col, end_col] <- [%s] :put cie_function {id => name, signature, file_path, start_line, end_line, start_col, end_col}\n\n",
			strings.Join(rows, ", "))

		codeRows := make([]string, 0, len(functions))
		embedRows := make([]string, 0, len(functions))
		for _, fn := range functions {
			if fn.CodeText != "" {
				codeRows = append(codeRows, fmt.Sprintf("[%s, %s]", quoteString(fn.ID), quoteString(fn.CodeText)))
			}
			if len(fn.Embedding) > 0 {
				embedRows = append(embedRows, fmt.Sprintf("[%s, %s]", quoteString(fn.ID), formatFloatArray(fn.Embedding)))
			}
		}
		if len(codeRows) > 0 {
			fmt.Fprintf(&sb, "?[function_id, code_text] <- [%s] :put cie_function_code {function_id => code_text}\n\n", strings.Join(codeRows, ", "))
		}
		if len(embedRows) > 0 {
			fmt.Fprintf(&sb, "?[function_id, embedding] <- [%s] :put cie_function_embedding {function_id => embedding}\n\n", strings.Join(embedRows, ", "))
		}
	}

	if len(types) > 0 {
		rows := make([]string, len(types))
		for i, t := range types {
			rows[i] = fmt.Sprintf("[%s, %s, %s, %s, %d, %d, %d, %d]",
				quoteString(t.ID), quoteString(t.Name), quoteString(t.Kind), quoteString(t.FilePath),
				t.StartLine, t.EndLine, t.StartCol, t.EndCol)
		}
		fmt.Fprintf(&sb, "?[id, name, kind, file_path, start_line, end_line, start_col, end_col] <- [%s] :put cie_type {id => name, kind, file_path, start_line, end_line, start_col, end_col}\n\n",
			strings.Join(rows, ", "))

		codeRows := make([]string, 0, len(types))
		embedRows := make([]string, 0, len(types))
		for _, t := range types {
			if t.CodeText != "" {
				codeRows = append(codeRows, fmt.Sprintf("[%s, %s]", quoteString(t.ID), quoteString(t.CodeText)))
			}
			if len(t.Embedding) > 0 {
				embedRows = append(embedRows, fmt.Sprintf("[%s, %s]", quoteString(t.ID), formatFloatArray(t.Embedding)))
			}
		}
		if len(codeRows) > 0 {
			fmt.Fprintf(&sb, "?[type_id, code_text] <- [%s] :put cie_type_code {type_id => code_text}\n\n", strings.Join(codeRows, ", "))
		}
		if len(embedRows) > 0 {
			fmt.Fprintf(&sb, "?[type_id, embedding] <- [%s] :put cie_type_embedding {type_id => embedding}\n\n", strings.Join(embedRows, ", "))
		}
	}

	if len(defines) > 0 {
		rows := make([]string, len(defines))
		for i, d := range defines {
			id := "def:" + d.FileID + "|" + d.FunctionID
			rows[i] = fmt.Sprintf("[%s, %s, %s]", quoteString(id), quoteString(d.FileID), quoteString(d.FunctionID))
		}
		fmt.Fprintf(&sb, "?[id, file_id, function_id] <- [%s] :put cie_defines {id => file_id, function_id}\n\n", strings.Join(rows, ", "))
	}

	if len(definesTypes) > 0 {
		rows := make([]string, len(definesTypes))
		for i, d := range definesTypes {
			id := "deft:" + d.FileID + "|" + d.TypeID
			rows[i] = fmt.Sprintf("[%s, %s, %s]", quoteString(id), quoteString(d.FileID), quoteString(d.TypeID))
		}
		fmt.Fprintf(&sb, "?[id, file_id, type_id] <- [%s] :put cie_defines_type {id => file_id, type_id}\n\n", strings.Join(rows, ", "))
	}

	if len(calls) > 0 {
		rows := make([]string, len(calls))
		for i, c := range calls {
			id := "call:" + c.CallerID + "|" + c.CalleeID
			rows[i] = fmt.Sprintf("[%s, %s, %s, %d]", quoteString(id), quoteString(c.CallerID), quoteString(c.CalleeID), c.CallLine)
		}
		fmt.Fprintf(&sb, "?[id, caller_id, callee_id, call_line] <- [%s] :put cie_calls {id => caller_id, callee_id, call_line}\n\n", strings.Join(rows, ", "))
	}

	if len(imports) > 0 {
		rows := make([]string, len(imports))
		for i, imp := range imports {
			rows[i] = fmt.Sprintf("[%s, %s, %s, %s, %d]",
				quoteString(imp.ID), quoteString(imp.FilePath), quoteString(imp.ImportPath), quoteString(imp.Alias), imp.StartLine)
		}
		fmt.Fprintf(&sb, "?[id, file_path, import_path, alias, start_line] <- [%s] :put cie_import {id => file_path, import_path, alias, start_line}\n\n", strings.Join(rows, ", "))
	}

	return sb.String()
}

// DeletionSet names entities and edges to remove from storage. ID-based
// fields are the primary mechanism; the Edges fields remain for callers that
// still carry composite tuples rather than synthesized edge IDs.
type DeletionSet struct {
	FileIDs     []string
	FunctionIDs []string
	TypeIDs     []string

	DefinesEdgeIDs     []string
	DefinesTypeEdgeIDs []string
	CallsEdgeIDs       []string

	// DefinesEdges, DefinesTypeEdges, and CallsEdges support deletion by
	// tuple when edge IDs were not tracked by the caller. Prefer the
	// *EdgeIDs fields above.
	DefinesEdges     []DefinesEdge
	DefinesTypeEdges []DefinesTypeEdge
	CallsEdges       []CallsEdge
}

// BuildDeletions renders :rm statements for a DeletionSet, edges first so
// that foreign-key-like edge rows never outlive the entities they reference.
func (b *DatalogBuilder) BuildDeletions(d DeletionSet) string {
	var sb strings.Builder

	definesEdgeIDs := append([]string{}, d.DefinesEdgeIDs...)
	for _, e := range d.DefinesEdges {
		definesEdgeIDs = append(definesEdgeIDs, "def:"+e.FileID+"|"+e.FunctionID)
	}
	if len(definesEdgeIDs) > 0 {
		writeRmByID(&sb, "cie_defines", definesEdgeIDs)
	}

	definesTypeEdgeIDs := append([]string{}, d.DefinesTypeEdgeIDs...)
	for _, e := range d.DefinesTypeEdges {
		definesTypeEdgeIDs = append(definesTypeEdgeIDs, "deft:"+e.FileID+"|"+e.TypeID)
	}
	if len(definesTypeEdgeIDs) > 0 {
		writeRmByID(&sb, "cie_defines_type", definesTypeEdgeIDs)
	}

	callsEdgeIDs := append([]string{}, d.CallsEdgeIDs...)
	for _, e := range d.CallsEdges {
		callsEdgeIDs = append(callsEdgeIDs, "call:"+e.CallerID+"|"+e.CalleeID)
	}
	if len(callsEdgeIDs) > 0 {
		writeRmByID(&sb, "cie_calls", callsEdgeIDs)
	}

	if len(d.FunctionIDs) > 0 {
		writeRmByID(&sb, "cie_function", d.FunctionIDs)
		writeRmByID(&sb, "cie_function_code", d.FunctionIDs, "function_id")
		writeRmByID(&sb, "cie_function_embedding", d.FunctionIDs, "function_id")
	}

	if len(d.TypeIDs) > 0 {
		writeRmByID(&sb, "cie_type", d.TypeIDs)
		writeRmByID(&sb, "cie_type_code", d.TypeIDs, "type_id")
		writeRmByID(&sb, "cie_type_embedding", d.TypeIDs, "type_id")
	}

	if len(d.FileIDs) > 0 {
		writeRmByID(&sb, "cie_file", d.FileIDs)
	}

	return sb.String()
}

// writeRmByID emits a `:rm` statement deleting rows by a single key column.
// The column name defaults to "id" unless overridden.
func writeRmByID(sb *strings.Builder, relation string, ids []string, column ...string) {
	col := "id"
	if len(column) > 0 {
		col = column[0]
	}
	rows := make([]string, len(ids))
	for i, id := range ids {
		rows[i] = fmt.Sprintf("[%s]", quoteString(id))
	}
	fmt.Fprintf(sb, "{ ?[%s] <- [%s] :rm %s {%s} }\n", col, strings.Join(rows, ", "), relation, col)
}

// BuildIncrementalMutationsWithTypes renders deletions for stale entities
// followed by upserts for the new/changed entities, in a single script.
func (b *DatalogBuilder) BuildIncrementalMutationsWithTypes(
	deletions DeletionSet,
	files []FileEntity,
	functions []FunctionEntity,
	types []TypeEntity,
	defines []DefinesEdge,
	definesTypes []DefinesTypeEdge,
	calls []CallsEdge,
	imports []ImportEntity,
) string {
	var sb strings.Builder
	sb.WriteString(b.BuildDeletions(deletions))
	sb.WriteString(b.BuildMutationsWithTypes(files, functions, types, defines, definesTypes, calls, imports))
	return sb.String()
}

// IncrementalMutationStats summarizes the size of an incremental write for
// logging.
type IncrementalMutationStats struct {
	FilesDeleted     int
	FunctionsDeleted int
	TypesDeleted     int
	FilesWritten     int
	FunctionsWritten int
	TypesWritten     int
}

// ComputeIncrementalStats tallies a DeletionSet against the new entity
// slices being written in the same run.
func ComputeIncrementalStats(deletions DeletionSet, files []FileEntity, functions []FunctionEntity, types []TypeEntity) IncrementalMutationStats {
	return IncrementalMutationStats{
		FilesDeleted:     len(deletions.FileIDs),
		FunctionsDeleted: len(deletions.FunctionIDs),
		TypesDeleted:     len(deletions.TypeIDs),
		FilesWritten:     len(files),
		FunctionsWritten: len(functions),
		TypesWritten:     len(types),
	}
}

// CountMutations returns the total number of entity and edge rows a mutation
// batch would write, used to decide when to flush a batch.
func CountMutations(files []FileEntity, functions []FunctionEntity, types []TypeEntity, defines []DefinesEdge, definesTypes []DefinesTypeEdge, calls []CallsEdge, imports []ImportEntity) int {
	return len(files) + len(functions) + len(types) + len(defines) + len(definesTypes) + len(calls) + len(imports)
}

// quoteString escapes a string for embedding as a CozoScript literal.
func quoteString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return `"` + s + `"`
}

// formatFloatArray renders a float32 embedding vector as a CozoScript array
// literal.
func formatFloatArray(v []float32) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = formatFloat(f)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// formatFloat renders a single embedding component, falling back to 0 for
// non-finite values so a single bad dimension cannot corrupt a whole batch.
func formatFloat(f float32) string {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0"
	}
	return fmt.Sprintf("%g", v)
}
