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

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/kraklabs/cie-engine/pkg/ingestion"
	"github.com/kraklabs/cie-engine/pkg/search"
	"github.com/kraklabs/cie-engine/pkg/storage"
	"github.com/kraklabs/cie-engine/pkg/tools"
)

// mcpRequest is a JSON-RPC 2.0 request read from stdin.
type mcpRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// mcpResponse is a JSON-RPC 2.0 response written to stdout.
type mcpResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *mcpError       `json:"error,omitempty"`
}

type mcpError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// mcpToolDef describes one callable tool in the tools/list response.
type mcpToolDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// mcpToolArgs is the union of every tool's call parameters; each handler
// reads the subset it understands.
type mcpToolArgs struct {
	Query        string `json:"query,omitempty"`
	Name         string `json:"name,omitempty"`
	FunctionName string `json:"function_name,omitempty"`
	TypeName     string `json:"type_name,omitempty"`
	FilePath     string `json:"file_path,omitempty"`
	PathPattern  string `json:"path_pattern,omitempty"`
	Question     string `json:"question,omitempty"`
	Script       string `json:"script,omitempty"`
	Role         string `json:"role,omitempty"`
	Scope        string `json:"scope,omitempty"`
	Limit        int    `json:"limit,omitempty"`
	FullCode     bool   `json:"full_code,omitempty"`
	ExactMatch   bool   `json:"exact_match,omitempty"`
	IncludeCode  bool   `json:"include_code,omitempty"`
}

// mcpServer bundles the collaborators tool calls need: the query client
// for the graph lookups, and the hybrid search service for cie_search.
type mcpServer struct {
	client *tools.Client
	search *search.Service
}

// runMCPServer serves the engine's query operations over stdio:
// newline-delimited JSON-RPC 2.0 with the initialize, tools/list, and
// tools/call methods. The surface is the narrow one the engine itself
// defines — definition lookup (get_class), call-graph navigation
// (get_callers/get_callees), source retrieval, the two search legs, and
// the fused hybrid search — not a general exploration toolbox. Logs go
// to stderr; stdout carries only protocol frames.
func runMCPServer(configPath string) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg, err := LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	dataDir := filepath.Join(homeDir, ".cie", "data", cfg.ProjectID)

	backend, err := storage.NewEmbeddedBackend(storage.EmbeddedConfig{
		DataDir:   dataDir,
		Engine:    "rocksdb",
		ProjectID: cfg.ProjectID,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot open database: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = backend.Close() }()

	client := tools.NewEmbeddedClient(backend, cfg.ProjectID)
	client.SetEmbeddingConfig(cfg.Embedding.BaseURL, cfg.Embedding.Model)
	provider := buildLLMProvider(cfg, false, logger)
	if provider != nil {
		client.SetLLMProvider(provider, cfg.LLM.MaxTokens)
	}

	// The hybrid search tool shares the backend and degrades leg by leg
	// like the CLI search command: a dead embedder leaves the lexical
	// leg, a missing provider just disables synthesis.
	var embedder search.EmbeddingProvider
	if p, err := ingestion.CreateEmbeddingProvider(mapEmbeddingProvider(cfg.Embedding.Provider), logger); err != nil {
		logger.Warn("mcp.embedder.unavailable", "err", err)
	} else {
		embedder = p
	}
	srv := &mcpServer{
		client: client,
		search: search.NewService(search.Config{
			Backend:         backend,
			Embedder:        embedder,
			Provider:        provider,
			Logger:          logger,
			EnableSynthesis: provider != nil,
		}),
	}

	logger.Info("mcp.server.start", "project_id", cfg.ProjectID)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	encoder := json.NewEncoder(os.Stdout)
	ctx := context.Background()

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req mcpRequest
		if err := json.Unmarshal(line, &req); err != nil {
			_ = encoder.Encode(mcpResponse{JSONRPC: "2.0", Error: &mcpError{Code: -32700, Message: "parse error"}})
			continue
		}

		resp := srv.handle(ctx, &req)
		if resp != nil {
			_ = encoder.Encode(resp)
		}
	}
}

func (s *mcpServer) handle(ctx context.Context, req *mcpRequest) *mcpResponse {
	switch req.Method {
	case "initialize":
		return &mcpResponse{JSONRPC: "2.0", ID: req.ID, Result: map[string]any{
			"protocolVersion": "2024-11-05",
			"serverInfo":      map[string]any{"name": "cie", "version": version},
			"capabilities":    map[string]any{"tools": map[string]any{}},
		}}
	case "notifications/initialized":
		return nil
	case "tools/list":
		return &mcpResponse{JSONRPC: "2.0", ID: req.ID, Result: map[string]any{"tools": mcpToolDefs()}}
	case "tools/call":
		return s.handleToolCall(ctx, req)
	default:
		if req.ID == nil {
			return nil // unknown notification; ignore
		}
		return &mcpResponse{JSONRPC: "2.0", ID: req.ID, Error: &mcpError{Code: -32601, Message: "method not found: " + req.Method}}
	}
}

// mcpToolDefs lists the served tools. Input schemas mark only the core
// arguments as required; further validation happens in the tool
// implementations, which return usable error text.
func mcpToolDefs() []mcpToolDef {
	str := func(desc string) map[string]any { return map[string]any{"type": "string", "description": desc} }
	integer := map[string]any{"type": "integer"}
	boolean := map[string]any{"type": "boolean"}
	schema := func(props map[string]any, required ...string) map[string]any {
		s := map[string]any{"type": "object", "properties": props}
		if len(required) > 0 {
			s["required"] = required
		}
		return s
	}

	return []mcpToolDef{
		{"cie_search", "Hybrid semantic + lexical search with intent-tuned fusion", schema(map[string]any{"query": str("search query or question"), "limit": integer, "scope": str("feature context to restrict results to")}, "query")},
		{"cie_semantic_search", "Find code by meaning using embeddings", schema(map[string]any{"query": str("natural language query"), "limit": integer, "path_pattern": str("path filter regex"), "role": str("source|test|generated|any")}, "query")},
		{"cie_find_function", "Find functions by name", schema(map[string]any{"name": str("function name"), "exact_match": boolean, "include_code": boolean}, "name")},
		{"cie_get_class", "Find type definitions (classes, interfaces, structs) by name", schema(map[string]any{"name": str("type name"), "path_pattern": str("path filter")}, "name")},
		{"cie_get_callers", "Functions that call the named function", schema(map[string]any{"function_name": str("callee name")}, "function_name")},
		{"cie_get_callees", "Functions the named function calls (external calls appear as ghosts)", schema(map[string]any{"function_name": str("caller name")}, "function_name")},
		{"cie_call_graph", "Callers and callees of a function in one view", schema(map[string]any{"function_name": str("function name")}, "function_name")},
		{"cie_get_function_code", "Source code of a function, annotated with its justification", schema(map[string]any{"function_name": str("function name"), "full_code": boolean}, "function_name")},
		{"cie_get_type_code", "Source code of a type definition", schema(map[string]any{"type_name": str("type name"), "file_path": str("disambiguating file path")}, "type_name")},
		{"cie_file_summary", "Entities defined in one file, led by the file's justification", schema(map[string]any{"file_path": str("file path")}, "file_path")},
		{"cie_analyze", "Answer an architectural question over the index", schema(map[string]any{"question": str("question"), "path_pattern": str("path filter"), "role": str("source|test|any")}, "question")},
		{"cie_list_files", "List indexed files", schema(map[string]any{"path_pattern": str("path filter"), "limit": integer})},
		{"cie_index_status", "Index health and coverage", schema(map[string]any{"path_pattern": str("path filter")})},
		{"cie_schema", "Store schema reference", schema(map[string]any{})},
		{"cie_query", "Raw CozoScript query", schema(map[string]any{"script": str("CozoScript")}, "script")},
	}
}

func (s *mcpServer) handleToolCall(ctx context.Context, req *mcpRequest) *mcpResponse {
	var params struct {
		Name      string      `json:"name"`
		Arguments mcpToolArgs `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return &mcpResponse{JSONRPC: "2.0", ID: req.ID, Error: &mcpError{Code: -32602, Message: "invalid params"}}
	}

	result, err := s.dispatch(ctx, params.Name, params.Arguments)
	if err != nil {
		return &mcpResponse{JSONRPC: "2.0", ID: req.ID, Error: &mcpError{Code: -32000, Message: err.Error()}}
	}

	return &mcpResponse{JSONRPC: "2.0", ID: req.ID, Result: map[string]any{
		"content": []map[string]any{{"type": "text", "text": result.Text}},
		"isError": result.IsError,
	}}
}

func (s *mcpServer) dispatch(ctx context.Context, name string, a mcpToolArgs) (*tools.ToolResult, error) {
	client := s.client
	switch name {
	case "cie_search":
		return s.hybridSearch(ctx, a)
	case "cie_semantic_search":
		return tools.SemanticSearch(ctx, client, tools.SemanticSearchArgs{
			Query: a.Query, Limit: a.Limit, Role: a.Role, PathPattern: a.PathPattern,
			EmbeddingURL: client.EmbeddingURL, EmbeddingModel: client.EmbeddingModel,
		})
	case "cie_find_function":
		return tools.FindFunction(ctx, client, tools.FindFunctionArgs{Name: a.Name, ExactMatch: a.ExactMatch, IncludeCode: a.IncludeCode})
	case "cie_get_class":
		return tools.FindType(ctx, client, tools.FindTypeArgs{Name: a.Name, PathPattern: a.PathPattern, Limit: a.Limit})
	case "cie_get_callers":
		return tools.FindCallers(ctx, client, tools.FindCallersArgs{FunctionName: a.FunctionName})
	case "cie_get_callees":
		return tools.FindCallees(ctx, client, tools.FindCalleesArgs{FunctionName: a.FunctionName})
	case "cie_call_graph":
		return tools.GetCallGraph(ctx, client, tools.GetCallGraphArgs{FunctionName: a.FunctionName})
	case "cie_get_function_code":
		return tools.GetFunctionCode(ctx, client, tools.GetFunctionCodeArgs{FunctionName: a.FunctionName, FullCode: a.FullCode})
	case "cie_get_type_code":
		return tools.GetTypeCode(ctx, client, a.TypeName, a.FilePath)
	case "cie_file_summary":
		return tools.GetFileSummary(ctx, client, tools.GetFileSummaryArgs{FilePath: a.FilePath})
	case "cie_analyze":
		return tools.Analyze(ctx, client, tools.AnalyzeArgs{Question: a.Question, PathPattern: a.PathPattern, Role: a.Role})
	case "cie_list_files":
		return tools.ListFiles(ctx, client, tools.ListFilesArgs{PathPattern: a.PathPattern, Limit: a.Limit})
	case "cie_index_status":
		return tools.IndexStatus(ctx, client, a.PathPattern)
	case "cie_schema":
		return tools.GetSchema(ctx)
	case "cie_query":
		return tools.RawQuery(ctx, client, tools.RawQueryArgs{Script: a.Script})
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// hybridSearch runs the fused search pipeline and renders its ranked,
// enriched results (and any synthesized answer) as tool text.
func (s *mcpServer) hybridSearch(ctx context.Context, a mcpToolArgs) (*tools.ToolResult, error) {
	resp, err := s.search.Search(ctx, search.Request{
		Query:         a.Query,
		Limit:         a.Limit,
		BusinessScope: a.Scope,
	})
	if err != nil {
		return tools.NewError(fmt.Sprintf("search failed: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Results for %q (intent: %s)\n\n", a.Query, resp.Intent)
	if len(resp.Results) == 0 {
		sb.WriteString("No results.\n")
	}
	for i, r := range resp.Results {
		fmt.Fprintf(&sb, "%d. %s", i+1, r.FilePath)
		if r.FunctionName != "" {
			fmt.Fprintf(&sb, "  %s", r.FunctionName)
		}
		fmt.Fprintf(&sb, "  (score %.3f)\n", r.Score)
		if r.PurposeSummary != "" {
			fmt.Fprintf(&sb, "   purpose: %s\n", r.PurposeSummary)
		}
		if r.Snippet != "" {
			fmt.Fprintf(&sb, "   | %s\n", strings.ReplaceAll(strings.TrimSpace(r.Snippet), "\n", "\n   | "))
		}
	}
	if resp.Synthesis != "" {
		sb.WriteString("\n---\n")
		sb.WriteString(resp.Synthesis)
	}
	return tools.NewResult(sb.String()), nil
}
