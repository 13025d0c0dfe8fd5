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

package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/kraklabs/cie-engine/pkg/storage"
)

// LineMatch is a single matched line within a lexical result file.
type LineMatch struct {
	Line       string
	LineNumber int
}

// LexicalFileResult is one file's worth of matches from the lexical
// backend.
type LexicalFileResult struct {
	FileName    string
	LineMatches []LineMatch
}

// LexicalClient talks to the external, process-managed lexical search
// backend over HTTP. The backend is started and stopped by the CLI
// orchestrator against a configurable port; this client just issues
// requests against it.
type LexicalClient struct {
	baseURL string
	client  *http.Client
}

// NewLexicalClient creates a client against an already-running lexical
// backend at baseURL (e.g. "http://localhost:7800").
func NewLexicalClient(baseURL string) *LexicalClient {
	return &LexicalClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type lexicalSearchRequest struct {
	Query       string `json:"query"`
	FilePattern string `json:"filePattern,omitempty"`
	MaxResults  int    `json:"maxResults,omitempty"`
}

type lexicalSearchResponse struct {
	Results []LexicalFileResult `json:"results"`
	Error   string              `json:"error,omitempty"`
}

// Search queries the lexical backend for query, optionally scoped to
// filePattern (a glob or regex the backend understands), returning one
// entry per matching file. A non-nil error means the backend is
// unreachable or returned malformed output; callers should degrade to
// semantic-only per the documented failure semantics.
func (c *LexicalClient) Search(ctx context.Context, query, filePattern string, maxResults int) ([]LexicalFileResult, error) {
	body, err := json.Marshal(lexicalSearchRequest{Query: query, FilePattern: filePattern, MaxResults: maxResults})
	if err != nil {
		return nil, fmt.Errorf("encode lexical request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build lexical request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lexical backend unreachable: %w", err)
	}
	defer resp.Body.Close()

	var parsed lexicalSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode lexical response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("lexical backend error: %s", parsed.Error)
	}
	return parsed.Results, nil
}

// FallbackLexicalSearch runs the lexical leg directly against the graph
// store via a regex scan over cie_function_code, exactly matching the
// degrade-to-regex behavior the semantic leg falls back to when the
// embedder is unavailable. Used when no external lexical backend is
// configured rather than as an error-path fallback.
func FallbackLexicalSearch(ctx context.Context, backend storage.Backend, query string, filePaths []string, maxResults int) ([]LexicalFileResult, error) {
	pattern, err := regexp.Compile("(?i)" + regexp.QuoteMeta(query))
	if err != nil {
		return nil, fmt.Errorf("compile fallback pattern: %w", err)
	}

	result, err := backend.Query(ctx, `?[file_path, code_text] :=
		*cie_function { id, file_path },
		*cie_function_code { function_id: id, code_text }`)
	if err != nil {
		return nil, fmt.Errorf("fallback lexical query: %w", err)
	}

	allowed := make(map[string]bool, len(filePaths))
	for _, p := range filePaths {
		allowed[p] = true
	}

	byFile := make(map[string]*LexicalFileResult)
	var order []string
	for _, row := range result.Rows {
		if len(row) < 2 {
			continue
		}
		path, _ := row[0].(string)
		code, _ := row[1].(string)
		if len(allowed) > 0 && !allowed[path] {
			continue
		}
		loc := pattern.FindStringIndex(code)
		if loc == nil {
			continue
		}
		if _, ok := byFile[path]; !ok {
			byFile[path] = &LexicalFileResult{FileName: path}
			order = append(order, path)
		}
		line := lineContaining(code, loc[0])
		byFile[path].LineMatches = append(byFile[path].LineMatches, LineMatch{Line: line})
		if len(order) >= maxResults {
			break
		}
	}

	out := make([]LexicalFileResult, 0, len(order))
	for _, path := range order {
		out = append(out, *byFile[path])
	}
	return out, nil
}

func lineContaining(text string, offset int) string {
	start := offset
	for start > 0 && text[start-1] != '\n' {
		start--
	}
	end := offset
	for end < len(text) && text[end] != '\n' {
		end++
	}
	return text[start:end]
}
