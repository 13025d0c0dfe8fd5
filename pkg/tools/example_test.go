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

package tools_test

import (
	"fmt"

	"github.com/kraklabs/cie-engine/pkg/tools"
)

// ExampleSemanticSearch demonstrates how to search for code by meaning using
// semantic embeddings. This is the most powerful search feature for finding
// code that matches a natural language description.
func ExampleSemanticSearch() {
	// Configure semantic search with natural language query
	args := tools.SemanticSearchArgs{
		Query: "authentication handler",
		Limit: 5,
		Role:  "source", // Exclude tests and generated code
	}

	fmt.Printf("Searching for: %s\n", args.Query)
	fmt.Printf("Role filter: %s\n", args.Role)
	fmt.Printf("Max results: %d\n", args.Limit)

	// Output:
	// Searching for: authentication handler
	// Role filter: source
	// Max results: 5
}

// ExampleFindType demonstrates how to locate a type definition (struct,
// interface, class) by name, optionally narrowed by kind or path.
func ExampleFindType() {
	args := tools.FindTypeArgs{
		Name:  "UserService",
		Kind:  "class",
		Limit: 10,
	}

	fmt.Printf("Finding type: %s\n", args.Name)
	fmt.Printf("Kind filter: %s\n", args.Kind)
	fmt.Printf("Max results: %d\n", args.Limit)

	// Output:
	// Finding type: UserService
	// Kind filter: class
	// Max results: 10
}

// ExampleFindFunction demonstrates how to locate a function by name.
// Handles Go receiver syntax automatically (e.g., searching 'Batch' finds 'Batcher.Batch').
func ExampleFindFunction() {
	args := tools.FindFunctionArgs{
		Name:        "BuildRouter",
		ExactMatch:  false,
		IncludeCode: true,
	}

	fmt.Printf("Finding function: %s\n", args.Name)
	fmt.Printf("Exact match: %v\n", args.ExactMatch)
	fmt.Printf("Include code: %v\n", args.IncludeCode)

	// Output:
	// Finding function: BuildRouter
	// Exact match: false
	// Include code: true
}

// ExampleFindCallers demonstrates how to find all functions that call a given function.
// This is useful for understanding code dependencies and impact analysis.
func ExampleFindCallers() {
	args := tools.FindCallersArgs{
		FunctionName:    "handleAuth",
		IncludeIndirect: false,
	}

	fmt.Printf("Finding callers of: %s\n", args.FunctionName)
	fmt.Printf("Include indirect: %v\n", args.IncludeIndirect)

	// Output:
	// Finding callers of: handleAuth
	// Include indirect: false
}

// ExampleFindCallees demonstrates how to list the functions a given
// function calls, including ghost entries for external targets.
func ExampleFindCallees() {
	args := tools.FindCalleesArgs{
		FunctionName: "main",
	}

	fmt.Printf("Finding callees of: %s\n", args.FunctionName)

	// Output:
	// Finding callees of: main
}

// ExampleAnalyze demonstrates how to ask architectural questions about the codebase
// using LLM-powered analysis. The tool combines semantic search with narrative generation.
func ExampleAnalyze() {
	args := tools.AnalyzeArgs{
		Question:    "What are the main entry points?",
		PathPattern: "cmd/",
		Role:        "source",
	}

	fmt.Printf("Question: %s\n", args.Question)
	fmt.Printf("Path pattern: %s\n", args.PathPattern)
	fmt.Printf("Role filter: %s\n", args.Role)

	// Output:
	// Question: What are the main entry points?
	// Path pattern: cmd/
	// Role filter: source
}
