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

// Package main implements the CIE CLI for indexing repositories, inferring
// business-level justifications, and querying the Code Intelligence Engine.
//
// Usage:
//
//	cie init                      Create .cie/project.yaml configuration
//	cie index                     Index the current repository
//	cie justify                   Infer purpose/business value for entities
//	cie search <query>            Hybrid semantic + lexical search
//	cie status [--json]           Show project status
//	cie query <script> [--json]   Execute CozoScript query
//	cie --mcp                     Start as MCP server (JSON-RPC over stdio)
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/kraklabs/cie-engine/internal/ui"
)

// Version information (set via ldflags during build)
var (
	version = "dev"     // Version string
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

func main() {
	// Global flags
	var (
		showVersion = flag.Bool("version", false, "Show version and exit")
		mcpMode     = flag.Bool("mcp", false, "Start as MCP server (JSON-RPC over stdio)")
		configPath  = flag.String("config", "", "Path to .cie/project.yaml (default: ./.cie/project.yaml)")
		jsonOut     = flag.Bool("json", false, "Machine-readable JSON output where supported")
		noColor     = flag.Bool("no-color", false, "Disable colored output")
		quiet       = flag.Bool("quiet", false, "Suppress progress output")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `CIE - Code Intelligence Engine CLI

Usage:
  cie <command> [options]

Commands:
  init          Create .cie/project.yaml configuration
  index         Index the current repository
  justify       Infer purpose and business value for indexed entities
  search        Hybrid semantic + lexical search over the index
  status        Show project status
  query         Execute CozoScript query
  reset         Reset local project data (destructive!)
  install-hook  Install git post-commit hook for auto-indexing
  start         Start the local model runtime used for embeddings
  stop          Stop the local model runtime
  completion    Generate shell completion scripts

Global Options:
  --mcp         Start as MCP server (JSON-RPC over stdio)
  --config      Path to .cie/project.yaml
  --json        Machine-readable output where supported
  --no-color    Disable colored output
  --quiet       Suppress progress output
  --version     Show version and exit

Examples:
  cie init                           Create configuration interactively
  cie index                          Incremental index of the repository
  cie index --full                   Force full re-index
  cie justify --interactive          Infer purposes, then answer questions
  cie search "who calls findById"    Usage-intent hybrid search
  cie status --json                  Output as JSON (for tooling)
  cie query "?[name] := *cie_function{name}"
  cie --mcp                          Start as MCP server

Data Storage:
  Data is stored locally in ~/.cie/data/<project_id>/

Environment Variables:
  OLLAMA_HOST        Ollama URL for justify's LLM (default: http://localhost:11434)
  OLLAMA_BASE_URL    Ollama URL for embeddings (default: http://localhost:11434)
  OLLAMA_EMBED_MODEL Embedding model (default: nomic-embed-text)
  OPENAI_API_KEY     API key for the openai provider
  ANTHROPIC_API_KEY  API key for the anthropic provider
  GOOGLE_API_KEY     API key for the google provider

`)
	}

	flag.Parse()

	// Only force colors off; otherwise keep fatih/color's TTY and NO_COLOR detection.
	if *noColor {
		ui.InitColors(true)
	}

	if *showVersion {
		fmt.Printf("cie version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
		os.Exit(0)
	}

	// MCP mode takes precedence
	if *mcpMode {
		runMCPServer(*configPath)
		return
	}

	globals := GlobalFlags{JSON: *jsonOut, NoColor: *noColor, Quiet: *quiet}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "init":
		runInit(cmdArgs)
	case "index":
		runIndex(cmdArgs, *configPath)
	case "justify":
		runJustify(cmdArgs, *configPath)
	case "search":
		runSearch(cmdArgs, *configPath)
	case "status":
		runStatus(cmdArgs, *configPath)
	case "query":
		runQuery(cmdArgs, *configPath)
	case "reset":
		runReset(cmdArgs, *configPath)
	case "install-hook":
		runInstallHook(cmdArgs, *configPath)
	case "start":
		runStart(cmdArgs, *configPath, globals)
	case "stop":
		runStop(cmdArgs, globals)
	case "completion":
		runCompletion(cmdArgs, *configPath)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}
