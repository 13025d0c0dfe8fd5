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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sync"

	"log/slog"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// TreeSitterParser extracts functions, types, and call graphs from source
// files using Tree-sitter grammars. It is the primary parser: precise
// ranges, full signatures (including generics), and same-file call
// resolution. A single *sitter.Parser is kept per language, since each
// ParseFile call uses its own tree and Tree-sitter parsers are not
// safe for concurrent use from multiple goroutines against the same
// instance - callers that parse concurrently should use one
// TreeSitterParser per worker goroutine.
//
// The TypeScript grammar is a superset of JavaScript, so "javascript" and
// "typescript" share tsParser/parseTypeScriptAST.
type TreeSitterParser struct {
	goParser *sitter.Parser
	tsParser *sitter.Parser
	pyParser *sitter.Parser

	logger *slog.Logger

	maxCodeTextSize int64
	truncatedCount  int
	mu              sync.Mutex
}

// NewTreeSitterParser creates a Tree-sitter based parser for Go, Python,
// JavaScript, and TypeScript source.
func NewTreeSitterParser(logger *slog.Logger) *TreeSitterParser {
	if logger == nil {
		logger = slog.Default()
	}

	goParser := sitter.NewParser()
	goParser.SetLanguage(golang.GetLanguage())

	tsParser := sitter.NewParser()
	tsParser.SetLanguage(typescript.GetLanguage())

	pyParser := sitter.NewParser()
	pyParser.SetLanguage(python.GetLanguage())

	return &TreeSitterParser{
		goParser:        goParser,
		tsParser:        tsParser,
		pyParser:        pyParser,
		logger:          logger,
		maxCodeTextSize: 100 * 1024,
	}
}

// SetMaxCodeTextSize sets the maximum size for CodeText (in bytes).
func (p *TreeSitterParser) SetMaxCodeTextSize(size int64) {
	p.maxCodeTextSize = size
}

// GetTruncatedCount returns the number of CodeTexts that were truncated.
func (p *TreeSitterParser) GetTruncatedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.truncatedCount
}

// ResetTruncatedCount resets the truncation counter.
func (p *TreeSitterParser) ResetTruncatedCount() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.truncatedCount = 0
}

// truncateCodeText truncates codeText if it exceeds maxCodeTextSize,
// counting the truncation for later reporting.
func (p *TreeSitterParser) truncateCodeText(codeText string) string {
	if p.maxCodeTextSize > 0 && int64(len(codeText)) > p.maxCodeTextSize {
		p.mu.Lock()
		p.truncatedCount++
		p.mu.Unlock()
		return codeText[:p.maxCodeTextSize]
	}
	return codeText
}

// ParseFile reads the file at fileInfo.FullPath and extracts its
// functions, types, and call graph using the Tree-sitter grammar
// matching fileInfo.Language. Unsupported languages and malformed
// source never produce an error: Tree-sitter parses error-tolerantly,
// and an unrecognized language yields a file-only result.
func (p *TreeSitterParser) ParseFile(fileInfo FileInfo) (*ParseResult, error) {
	content, err := os.ReadFile(fileInfo.FullPath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	hash := sha256.Sum256(content)
	fileID := GenerateFileID(fileInfo.Path)
	fileEntity := FileEntity{
		ID:       fileID,
		Path:     fileInfo.Path,
		Hash:     hex.EncodeToString(hash[:]),
		Language: fileInfo.Language,
		Size:     fileInfo.Size,
	}

	var functions []FunctionEntity
	var types []TypeEntity
	var calls []CallsEdge
	var imports []ImportEntity
	var unresolvedCalls []UnresolvedCall
	var packageName string

	switch fileInfo.Language {
	case "go":
		goResult, goErr := p.parseGoAST(content, fileInfo.Path)
		if goErr != nil {
			return nil, fmt.Errorf("parse go AST: %w", goErr)
		}
		functions = goResult.Functions
		types = goResult.Types
		calls = goResult.Calls
		imports = goResult.Imports
		unresolvedCalls = goResult.UnresolvedCalls
		packageName = goResult.PackageName
	case "typescript", "javascript":
		functions, types, calls, err = p.parseTypeScriptAST(content, fileInfo.Path)
		if err != nil {
			return nil, fmt.Errorf("parse %s AST: %w", fileInfo.Language, err)
		}
	case "python":
		functions, types, calls, err = p.parsePythonAST(content, fileInfo.Path)
		if err != nil {
			return nil, fmt.Errorf("parse python AST: %w", err)
		}
	case "protobuf":
		functions, calls = parseProtobufSimplified(content, fileInfo.Path, p)
	default:
		p.logger.Debug("parser.treesitter.skip_unsupported",
			"path", fileInfo.Path,
			"language", fileInfo.Language,
		)
		return &ParseResult{File: fileEntity}, nil
	}

	defines := make([]DefinesEdge, len(functions))
	for i, fn := range functions {
		defines[i] = DefinesEdge{FileID: fileID, FunctionID: fn.ID}
	}

	definesTypes := make([]DefinesTypeEdge, len(types))
	for i, t := range types {
		definesTypes[i] = DefinesTypeEdge{FileID: fileID, TypeID: t.ID}
	}

	return &ParseResult{
		File:            fileEntity,
		Functions:       functions,
		Types:           types,
		Defines:         defines,
		DefinesTypes:    definesTypes,
		Calls:           calls,
		Imports:         imports,
		UnresolvedCalls: unresolvedCalls,
		PackageName:     packageName,
	}, nil
}

// =============================================================================
// SHARED AST HELPERS
// =============================================================================

// countErrors counts ERROR nodes in a Tree-sitter AST, used to decide
// whether a syntax-error warning is worth logging.
func countErrors(node *sitter.Node) int {
	if node == nil {
		return 0
	}
	count := 0
	if node.Type() == "ERROR" {
		count++
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		count += countErrors(node.Child(i))
	}
	return count
}

// findNodeAtPosition finds the deepest node containing the given
// 0-indexed row/column. Go's AST walk keeps a direct *sitter.Node
// reference per function (see goFunctionWithNode); the Python/JS/TS
// walkers only keep FunctionEntity values, so call extraction re-locates
// the function's node by its recorded start position.
func findNodeAtPosition(node *sitter.Node, row, col uint32) *sitter.Node {
	if node == nil {
		return nil
	}

	startRow := node.StartPoint().Row
	startCol := node.StartPoint().Column
	endRow := node.EndPoint().Row
	endCol := node.EndPoint().Column

	var inNode bool
	switch {
	case row > startRow && row < endRow:
		inNode = true
	case row == startRow && row == endRow:
		inNode = col >= startCol && col <= endCol
	case row == startRow:
		inNode = col >= startCol
	case row == endRow:
		inNode = col <= endCol
	}

	if !inNode {
		return nil
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		if found := findNodeAtPosition(node.Child(i), row, col); found != nil {
			return found
		}
	}

	return node
}

// =============================================================================
// SIMPLIFIED PARSER (no Tree-sitter, used for ParserModeSimplified; auto
// mode selects Tree-sitter and does not fall back to it per file)
// =============================================================================

// Parser extracts functions and same-file calls using line-oriented
// pattern matching rather than an AST. It is faster and dependency-free,
// at the cost of precision: nested declarations, generics, and call
// graphs are handled best-effort. The coordinator uses it only when
// ParserModeSimplified is selected explicitly.
type Parser struct {
	logger          *slog.Logger
	maxCodeTextSize int64
	truncatedCount  int
	mu              sync.Mutex
}

// NewParser creates a simplified, pattern-matching based code parser.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{
		logger:          logger,
		maxCodeTextSize: 100 * 1024,
	}
}

// SetMaxCodeTextSize sets the maximum size for CodeText (in bytes).
func (p *Parser) SetMaxCodeTextSize(size int64) {
	p.maxCodeTextSize = size
}

// GetTruncatedCount returns the number of CodeTexts that were truncated.
func (p *Parser) GetTruncatedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.truncatedCount
}

// ResetTruncatedCount resets the truncation counter.
func (p *Parser) ResetTruncatedCount() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.truncatedCount = 0
}

// truncateCodeText truncates codeText if it exceeds maxCodeTextSize,
// counting the truncation for later reporting.
func (p *Parser) truncateCodeText(codeText string) string {
	if p.maxCodeTextSize > 0 && int64(len(codeText)) > p.maxCodeTextSize {
		p.mu.Lock()
		p.truncatedCount++
		p.mu.Unlock()
		return codeText[:p.maxCodeTextSize]
	}
	return codeText
}

// ParseFile extracts functions from a source file using simplified,
// language-specific pattern matching. Unsupported languages return an
// empty, non-error result.
func (p *Parser) ParseFile(fileInfo FileInfo) (*ParseResult, error) {
	content, err := os.ReadFile(fileInfo.FullPath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	hash := sha256.Sum256(content)
	fileID := GenerateFileID(fileInfo.Path)
	fileEntity := FileEntity{
		ID:       fileID,
		Path:     fileInfo.Path,
		Hash:     hex.EncodeToString(hash[:]),
		Language: fileInfo.Language,
		Size:     fileInfo.Size,
	}

	var functions []FunctionEntity
	var calls []CallsEdge

	switch fileInfo.Language {
	case "go":
		functions, calls = p.parseGoFile(string(content), fileInfo.Path)
	case "python":
		functions, calls = p.parsePythonFile(string(content), fileInfo.Path)
	case "javascript", "typescript":
		functions, calls = p.parseJSFile(string(content), fileInfo.Path)
	case "protobuf":
		functions, calls = parseProtobufContent(string(content), fileInfo.Path, p.truncateCodeText)
	default:
		p.logger.Debug("parser.simplified.skip_unsupported",
			"path", fileInfo.Path,
			"language", fileInfo.Language,
		)
	}

	defines := make([]DefinesEdge, len(functions))
	for i, fn := range functions {
		defines[i] = DefinesEdge{FileID: fileID, FunctionID: fn.ID}
	}

	return &ParseResult{
		File:      fileEntity,
		Functions: functions,
		Defines:   defines,
		Calls:     calls,
	}, nil
}
