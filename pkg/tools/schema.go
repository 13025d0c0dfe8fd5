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

import "context"

// schemaDoc is the static schema reference GetSchema serves. Keep in
// sync with storage.EnsureSchema when relations change.
const schemaDoc = `# CIE Database Schema (Schema v3)

Schema v3 uses vertical partitioning: entity metadata, source text, and
embeddings live in separate relations so metadata scans never drag code
blobs or vectors through memory.

## Core Tables

### cie_file
File entities, one row per indexed source file.
- id: String (primary key)
- path, hash, language: String
- size: Int

### cie_function
Function/method metadata (source text and embeddings partitioned out).
- id: String (primary key)
- name, signature, file_path: String
- start_line, end_line, start_col, end_col: Int

### cie_function_code
Function source text, loaded only when displaying code.
- function_id: String (primary key)
- code_text: String

### cie_function_embedding
Function embeddings for semantic search (HNSW-indexed).
- function_id: String (primary key)
- embedding: <F32; D> (D fixed at store creation; 768 by default)

### cie_type / cie_type_code / cie_type_embedding
Type definitions (structs, interfaces, classes, type aliases) with the
same vertical partitioning as functions.
- cie_type: id => name, kind, file_path, start_line, end_line, start_col, end_col
- cie_type_code: type_id => code_text
- cie_type_embedding: type_id => embedding

### cie_ghost
Placeholder nodes for calls that resolve to external symbols.
- id: String (primary key)
- name, package_hint: String

### cie_justification
Inferred purpose and business value per entity (see the justify pass).
- id: String (primary key)
- entity_id, entity_type, purpose_summary, business_value, feature_context: String
- confidence_score: Float; confidence_level, inferred_from: String
- clarification_pending: Bool; pending_questions: [String]

### cie_analysis_finding
Per-function analyzer findings (taint, purity, patterns).
- id: String (primary key)
- function_id, category, detail: String
- line: Int

### cie_ledger_entry
Append-only change ledger entries.
- id: String (primary key)
- kind, entity_id, detail, created_at: String

## Edge Tables

### cie_defines
File-to-function edges: id => file_id, function_id

### cie_defines_type
File-to-type edges: id => file_id, type_id

### cie_calls
Function-to-function call edges: id => caller_id, callee_id
(callee_id may reference cie_ghost for external calls)

### cie_import
Import statements: id => file_path, import_path, alias, start_line

### cie_uses_type
Entity-uses-type edges derived from function signatures:
id => from_id, type_id, context, param_name

## CozoScript Operators

- *relation { col1, col2 }     read rows from a stored relation
- ?[out1, out2] := ...         bind the result columns
- regex_matches(col, "pat")    regex filter ([.] for a literal dot)
- ends_with(col, "suffix")     suffix match
- negate(expr)                 negation (no lookahead in regex)
- :limit N / :order col        result shaping
- ~rel:idx { ... | query: q }  HNSW vector search

## Example Queries

Find a function by name:
    ?[name, file_path] := *cie_function { name, file_path }, name = "main"

Callers of a function:
    ?[caller_name] := *cie_calls { caller_id, callee_id },
      *cie_function { id: callee_id, name: "Run" },
      *cie_function { id: caller_id, name: caller_name }

Functions in a file with their purposes:
    ?[name, purpose_summary] := *cie_function { id, name, file_path },
      *cie_justification { entity_id: id, purpose_summary },
      ends_with(file_path, "service.go")

## CIE Tools Quick Reference

- FindFunction / FindType: name lookup (get_class)
- FindCallers / FindCallees / GetCallGraph: call graph (get_callers, get_callees)
- GetFunctionCode / GetTypeCode / GetFileSummary: source retrieval
- SemanticSearch / SearchText: the two search legs
- Analyze: architectural questions over the index
- ListFiles / IndexStatus / RawQuery: diagnostics and escape hatches
`

// GetSchema returns the schema reference for the local store. Static:
// it documents the relations the indexer writes, not whatever happens
// to exist in a given database.
func GetSchema(_ context.Context) (*ToolResult, error) {
	return NewResult(schemaDoc), nil
}
