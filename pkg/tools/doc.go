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

// Package tools implements the query operations the engine serves over
// its local index: entity lookup, call-graph navigation, text and
// semantic search, and index health reporting. The hybrid search service
// and the CLI both sit on top of these functions.
//
// # Quick Start
//
// Create a client over an embedded backend and run a tool:
//
//	client := tools.NewEmbeddedClient(backend, "myproject")
//	client.SetEmbeddingConfig("http://localhost:11434", "nomic-embed-text")
//
//	result, err := tools.SemanticSearch(ctx, client, tools.SemanticSearchArgs{
//		Query: "authentication handler",
//		Limit: 10,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(result.Text)
//
// # Tool Categories
//
// The surface is deliberately narrow: the call-graph and definition
// lookups the engine's query scenarios exercise, the two search legs,
// and index health. Broader exploration goes through the hybrid search
// service, not ad-hoc tools.
//
// Search:
//   - SemanticSearch: find code by meaning using embeddings
//   - SearchText: regex search over function code/signatures/names
//
// Navigation:
//   - FindFunction, FindType
//   - FindCallers, FindCallees, GetCallGraph
//   - GetFunctionCode, GetTypeCode, GetFileSummary
//
// Analysis:
//   - Analyze: answer architectural questions via semantic search
//
// Utility:
//   - GetSchema, IndexStatus, ListFiles, RawQuery
//
// Where the index carries justifications (see the justify package), the
// lookup and summary tools annotate their output with each entity's
// inferred purpose, so a result explains why code exists, not only where
// it is.
//
// # Error Handling
//
// Tool functions return a ToolResult carrying output text and an IsError
// flag. The error return value reports execution failures (a dead store,
// a cancelled context); IsError reports tool-level problems (bad
// arguments, nothing found) that the caller should surface verbatim:
//
//	result, err := tools.FindCallers(ctx, client, args)
//	if err != nil {
//		return err
//	}
//	if result.IsError {
//		return fmt.Errorf("find callers: %s", result.Text)
//	}
//	fmt.Println(result.Text)
//
// # Architecture
//
// All reads go through the Querier interface against the local CozoDB
// store the indexer writes. The schema separates metadata from content:
//   - cie_function: function metadata (name, signature, file, lines)
//   - cie_function_code: function source text
//   - cie_function_embedding: function embeddings (HNSW-indexed)
//   - cie_type / cie_type_code: type metadata and source text
//   - cie_calls: resolved call edges; cie_ghost: external placeholders
//   - cie_justification: inferred purpose and business value per entity
//
// Unit tests supply in-memory Querier fakes; the cozodb build tag
// enables TestCIEClient, which runs the same queries against a real
// embedded instance.
//
// # Role-Based Filtering
//
// Search tools accept a role to scope what kind of file qualifies:
//   - "source": regular source code (excludes tests and generated files)
//   - "test": test files only
//   - "generated": generated code files
//   - "entry_point": main functions and entry points
//   - "router": route definition functions
//   - "handler": HTTP request handler functions
//   - "any": no filtering
//
// Example:
//
//	result, err := tools.SemanticSearch(ctx, client, tools.SemanticSearchArgs{
//		Query: "authentication",
//		Role:  "source",
//		Limit: 10,
//	})
package tools
