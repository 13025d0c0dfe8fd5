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

import "time"

// FileEntity represents a source file in the repository.
type FileEntity struct {
	ID       string
	Path     string
	Hash     string
	Language string
	Size     int64
}

// FunctionEntity represents a function/method extracted from code.
// CodeText and Embedding are stored in separate CozoDB relations
// (cie_function_code, cie_function_embedding) for query performance, but
// travel together on this struct through the pipeline.
type FunctionEntity struct {
	ID        string
	Name      string
	Signature string
	FilePath  string
	CodeText  string
	Embedding []float32
	StartLine int
	EndLine   int
	StartCol  int
	EndCol    int
}

// TypeEntity represents a type/interface/class/struct definition.
// Normalizes across Go (struct, interface, type_alias), Python (class),
// TypeScript (interface, class, type_alias), JavaScript (class).
type TypeEntity struct {
	ID        string
	Name      string
	Kind      string
	FilePath  string
	CodeText  string
	Embedding []float32
	StartLine int
	EndLine   int
	StartCol  int
	EndCol    int
}

// DefinesEdge represents a "file defines function" relationship.
type DefinesEdge struct {
	FileID     string
	FunctionID string
}

// DefinesTypeEdge represents a "file defines type" relationship.
type DefinesTypeEdge struct {
	FileID string
	TypeID string
}

// CallsEdge represents a "function calls function" relationship, including
// cross-package calls resolved via imports.
type CallsEdge struct {
	CallerID string
	CalleeID string
	CallLine int
}

// ImportEntity represents an import statement in a source file.
type ImportEntity struct {
	ID         string
	FilePath   string
	ImportPath string
	Alias      string
	StartLine  int
}

// UnresolvedCall represents a function call that couldn't be resolved during
// per-file parsing. Collected and resolved in the call-graph linking pass
// using cross-file import information.
type UnresolvedCall struct {
	CallerID   string
	CalleeName string
	FilePath   string
	Line       int
}

// UnresolvedTypeRef is a type name referenced by an entity (currently a
// function's parameter types, derived from its stored signature) whose
// defining TypeEntity isn't known at extraction time. Resolved against
// the global type registry after all files have parsed, the same way
// UnresolvedCall resolves against the function registry.
type UnresolvedTypeRef struct {
	SourceID      string // referencing entity (function ID)
	TypeName      string // normalized base type name
	Context       string // "parameter" (others reserved)
	ParameterName string
}

// UsesTypeEdge is a resolved entity-uses-type relationship.
type UsesTypeEdge struct {
	FromID        string
	TypeID        string
	Context       string
	ParameterName string
}

// EmbeddingChunk is one unit of text queued for vectorization: the
// entity it belongs to, the kind of entity, and the (possibly truncated)
// source text the embedding provider sees.
type EmbeddingChunk struct {
	EntityID   string
	EntityType string // "function" or "type"
	Text       string
}

// PackageInfo represents a package and the files that belong to it.
type PackageInfo struct {
	PackagePath string
	PackageName string
	Files       []string
}

// ParseResult is the output of parsing a single source file.
type ParseResult struct {
	File            FileEntity
	Functions       []FunctionEntity
	Types           []TypeEntity
	Defines         []DefinesEdge
	DefinesTypes    []DefinesTypeEdge
	Calls           []CallsEdge
	Imports         []ImportEntity
	UnresolvedCalls []UnresolvedCall
	PackageName     string
}

// RetryConfig controls retry/backoff behavior for transient failures
// (embedding calls, LLM calls, lexical RPCs).
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// FileChangeType classifies how a file changed between two scans or commits.
type FileChangeType string

const (
	// FileAdded indicates the file did not previously exist.
	FileAdded FileChangeType = "added"

	// FileModified indicates the file's content hash changed.
	FileModified FileChangeType = "modified"

	// FileDeleted indicates the file existed previously but no longer does.
	FileDeleted FileChangeType = "deleted"

	// FileRenamed indicates git detected the file as a rename from another path.
	FileRenamed FileChangeType = "renamed"

	// FileUnchanged indicates the file's content hash is unchanged.
	FileUnchanged FileChangeType = "unchanged"
)
