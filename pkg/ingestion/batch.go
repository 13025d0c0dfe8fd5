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

// CozoBatch groups extracted rows per store relation, plus the
// unresolved references handed to the cross-file linker. One batch
// accumulates either a single file's extraction or, during a run, the
// merge of every parsed file; the Graph Writer consumes it relation by
// relation.
type CozoBatch struct {
	Files        []FileEntity
	Functions    []FunctionEntity
	Types        []TypeEntity
	Defines      []DefinesEdge
	DefinesTypes []DefinesTypeEdge
	Calls        []CallsEdge
	Imports      []ImportEntity

	UnresolvedCalls    []UnresolvedCall
	UnresolvedTypeRefs []UnresolvedTypeRef
}

// Append merges one file's ParseResult into the batch, deriving the
// file's unresolved type references from its function signatures as it
// goes.
func (b *CozoBatch) Append(pr *ParseResult) {
	b.Files = append(b.Files, pr.File)
	b.Functions = append(b.Functions, pr.Functions...)
	b.Types = append(b.Types, pr.Types...)
	b.Defines = append(b.Defines, pr.Defines...)
	b.DefinesTypes = append(b.DefinesTypes, pr.DefinesTypes...)
	b.Calls = append(b.Calls, pr.Calls...)
	b.Imports = append(b.Imports, pr.Imports...)
	b.UnresolvedCalls = append(b.UnresolvedCalls, pr.UnresolvedCalls...)
	b.UnresolvedTypeRefs = append(b.UnresolvedTypeRefs, DeriveTypeRefs(pr.Functions)...)
}

// Merge folds another batch into this one.
func (b *CozoBatch) Merge(other *CozoBatch) {
	b.Files = append(b.Files, other.Files...)
	b.Functions = append(b.Functions, other.Functions...)
	b.Types = append(b.Types, other.Types...)
	b.Defines = append(b.Defines, other.Defines...)
	b.DefinesTypes = append(b.DefinesTypes, other.DefinesTypes...)
	b.Calls = append(b.Calls, other.Calls...)
	b.Imports = append(b.Imports, other.Imports...)
	b.UnresolvedCalls = append(b.UnresolvedCalls, other.UnresolvedCalls...)
	b.UnresolvedTypeRefs = append(b.UnresolvedTypeRefs, other.UnresolvedTypeRefs...)
}

// EmbeddingChunks returns the vectorization units for every function and
// type in the batch that carries code text. The chunk text is whatever
// the parser stored (already truncated to MaxCodeTextBytes), so the
// embedding provider never sees unbounded input.
func (b *CozoBatch) EmbeddingChunks() []EmbeddingChunk {
	chunks := make([]EmbeddingChunk, 0, len(b.Functions)+len(b.Types))
	for _, fn := range b.Functions {
		if fn.CodeText == "" {
			continue
		}
		chunks = append(chunks, EmbeddingChunk{EntityID: fn.ID, EntityType: "function", Text: fn.CodeText})
	}
	for _, t := range b.Types {
		if t.CodeText == "" {
			continue
		}
		chunks = append(chunks, EmbeddingChunk{EntityID: t.ID, EntityType: "type", Text: t.CodeText})
	}
	return chunks
}

// DeriveTypeRefs extracts unresolved type references from function
// signatures: each parameter whose base type is a named type (not a
// builtin or a function value) becomes an UnresolvedTypeRef for the
// type-usage linking pass.
func DeriveTypeRefs(functions []FunctionEntity) []UnresolvedTypeRef {
	var refs []UnresolvedTypeRef
	for _, fn := range functions {
		if fn.Signature == "" {
			continue
		}
		for _, param := range ParseGoSignatureParams(fn.Signature) {
			if !isLinkableTypeName(param.Type) {
				continue
			}
			refs = append(refs, UnresolvedTypeRef{
				SourceID:      fn.ID,
				TypeName:      param.Type,
				Context:       "parameter",
				ParameterName: param.Name,
			})
		}
	}
	return refs
}

// builtinTypeNames are base types that never resolve to a TypeEntity.
var builtinTypeNames = map[string]bool{
	"string": true, "bool": true, "byte": true, "rune": true, "error": true,
	"int": true, "int8": true, "int16": true, "int32": true, "int64": true,
	"uint": true, "uint8": true, "uint16": true, "uint32": true, "uint64": true,
	"uintptr": true, "float32": true, "float64": true,
	"complex64": true, "complex128": true, "any": true, "func": true,
	"interface{}": true, "struct{}": true, "map": true, "chan": true,
}

func isLinkableTypeName(name string) bool {
	if name == "" {
		return false
	}
	return !builtinTypeNames[name]
}

// ResolveTypeRefs matches unresolved type references against the types
// in the batch by simple name, producing USES_TYPE edges. References
// whose type name isn't defined in the indexed tree are dropped (the
// type lives in an external package); the count of dropped references
// is returned for logging.
func ResolveTypeRefs(refs []UnresolvedTypeRef, types []TypeEntity) ([]UsesTypeEdge, int) {
	byName := make(map[string]string, len(types))
	for _, t := range types {
		// First definition wins on name collisions across packages,
		// matching the call resolver's simple-name fallback behavior.
		if _, ok := byName[t.Name]; !ok {
			byName[t.Name] = t.ID
		}
	}

	var edges []UsesTypeEdge
	unresolved := 0
	for _, ref := range refs {
		typeID, ok := byName[ref.TypeName]
		if !ok {
			unresolved++
			continue
		}
		edges = append(edges, UsesTypeEdge{
			FromID:        ref.SourceID,
			TypeID:        typeID,
			Context:       ref.Context,
			ParameterName: ref.ParameterName,
		})
	}
	return edges, unresolved
}
