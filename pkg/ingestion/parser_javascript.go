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
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// =============================================================================
// JAVASCRIPT/TYPESCRIPT FUNCTION EXTRACTION
//
// walkTSFunctions (parser_typescript.go) dispatches function_declaration,
// variable_declarator, method_definition, and bare arrow_function nodes to
// the extractors below. These cover plain JavaScript as well, since the
// TypeScript grammar parses JS source directly.
// =============================================================================

// extractJSFunction extracts a function declaration: function foo() {}.
func (p *TreeSitterParser) extractJSFunction(node *sitter.Node, content []byte, filePath string) *FunctionEntity {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := string(content[nameNode.StartByte():nameNode.EndByte()])

	paramsNode := node.ChildByFieldName("parameters")
	var params string
	if paramsNode != nil {
		params = string(content[paramsNode.StartByte():paramsNode.EndByte()])
	}

	signature := fmt.Sprintf("function %s%s", name, params)

	startLine := int(node.StartPoint().Row) + 1
	endLine := int(node.EndPoint().Row) + 1
	startCol := int(node.StartPoint().Column) + 1
	endCol := int(node.EndPoint().Column) + 1

	codeText := p.truncateCodeText(string(content[node.StartByte():node.EndByte()]))

	id := GenerateFunctionID(filePath, name, signature, startLine, endLine, startCol, endCol)

	return &FunctionEntity{
		ID:        id,
		Name:      name,
		Signature: signature,
		FilePath:  filePath,
		CodeText:  codeText,
		StartLine: startLine,
		EndLine:   endLine,
		StartCol:  startCol,
		EndCol:    endCol,
	}
}

// extractJSArrowOrExpressionFunction extracts a function bound to a name
// through a variable declarator: const foo = (x) => x, or
// const foo = function(x) { ... }.
func (p *TreeSitterParser) extractJSArrowOrExpressionFunction(nameNode, valueNode *sitter.Node, content []byte, filePath string) *FunctionEntity {
	name := string(content[nameNode.StartByte():nameNode.EndByte()])

	paramsNode := valueNode.ChildByFieldName("parameters")
	if paramsNode == nil {
		paramsNode = valueNode.ChildByFieldName("parameter")
	}
	var params string
	if paramsNode != nil {
		params = string(content[paramsNode.StartByte():paramsNode.EndByte()])
		if !strings.HasPrefix(params, "(") {
			params = "(" + params + ")"
		}
	} else {
		params = "()"
	}

	var signature string
	if valueNode.Type() == "arrow_function" {
		signature = fmt.Sprintf("const %s = %s =>", name, params)
	} else {
		signature = fmt.Sprintf("const %s = function%s", name, params)
	}

	startLine := int(nameNode.StartPoint().Row) + 1
	endLine := int(valueNode.EndPoint().Row) + 1
	startCol := int(nameNode.StartPoint().Column) + 1
	endCol := int(valueNode.EndPoint().Column) + 1

	// Widen to the enclosing const/let/var declaration when present, so the
	// recorded range covers the whole statement rather than just the RHS.
	if parent := nameNode.Parent(); parent != nil {
		if grandparent := parent.Parent(); grandparent != nil {
			if grandparent.Type() == "lexical_declaration" || grandparent.Type() == "variable_declaration" {
				startLine = int(grandparent.StartPoint().Row) + 1
				startCol = int(grandparent.StartPoint().Column) + 1
			}
		}
	}

	codeText := p.truncateCodeText(string(content[nameNode.StartByte():valueNode.EndByte()]))

	id := GenerateFunctionID(filePath, name, signature, startLine, endLine, startCol, endCol)

	return &FunctionEntity{
		ID:        id,
		Name:      name,
		Signature: signature,
		FilePath:  filePath,
		CodeText:  codeText,
		StartLine: startLine,
		EndLine:   endLine,
		StartCol:  startCol,
		EndCol:    endCol,
	}
}

// extractJSMethod extracts a method_definition node (class/object method,
// including constructors).
func (p *TreeSitterParser) extractJSMethod(node *sitter.Node, content []byte, filePath string) *FunctionEntity {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := string(content[nameNode.StartByte():nameNode.EndByte()])

	paramsNode := node.ChildByFieldName("parameters")
	var params string
	if paramsNode != nil {
		params = string(content[paramsNode.StartByte():paramsNode.EndByte()])
	}

	signature := fmt.Sprintf("%s%s", name, params)

	startLine := int(node.StartPoint().Row) + 1
	endLine := int(node.EndPoint().Row) + 1
	startCol := int(node.StartPoint().Column) + 1
	endCol := int(node.EndPoint().Column) + 1

	codeText := p.truncateCodeText(string(content[node.StartByte():node.EndByte()]))

	id := GenerateFunctionID(filePath, name, signature, startLine, endLine, startCol, endCol)

	return &FunctionEntity{
		ID:        id,
		Name:      name,
		Signature: signature,
		FilePath:  filePath,
		CodeText:  codeText,
		StartLine: startLine,
		EndLine:   endLine,
		StartCol:  startCol,
		EndCol:    endCol,
	}
}

// extractJSAnonymousArrow extracts an arrow function that is not bound to a
// name (e.g. a callback argument), using the same position-based naming
// convention as Go's func_literal handling.
func (p *TreeSitterParser) extractJSAnonymousArrow(node *sitter.Node, content []byte, filePath string, anonCounter int) *FunctionEntity {
	name := fmt.Sprintf("$anon_%d", anonCounter)

	paramsNode := node.ChildByFieldName("parameters")
	if paramsNode == nil {
		paramsNode = node.ChildByFieldName("parameter")
	}
	var params string
	if paramsNode != nil {
		params = string(content[paramsNode.StartByte():paramsNode.EndByte()])
	}

	signature := fmt.Sprintf("%s =>", params)

	startLine := int(node.StartPoint().Row) + 1
	endLine := int(node.EndPoint().Row) + 1
	startCol := int(node.StartPoint().Column) + 1
	endCol := int(node.EndPoint().Column) + 1

	codeText := p.truncateCodeText(string(content[node.StartByte():node.EndByte()]))

	id := GenerateFunctionID(filePath, name, signature, startLine, endLine, startCol, endCol)

	return &FunctionEntity{
		ID:        id,
		Name:      name,
		Signature: signature,
		FilePath:  filePath,
		CodeText:  codeText,
		StartLine: startLine,
		EndLine:   endLine,
		StartCol:  startCol,
		EndCol:    endCol,
	}
}

// =============================================================================
// JAVASCRIPT/TYPESCRIPT CALL EXTRACTION
// =============================================================================

// extractJSCalls finds same-file calls made from within fn's body. Unlike
// the Go walker, which keeps a *sitter.Node per function during its first
// pass, the JS/TS walker only carries FunctionEntity values forward, so the
// function's node is re-located by its recorded start position.
func (p *TreeSitterParser) extractJSCalls(rootNode *sitter.Node, content []byte, fn FunctionEntity, funcNameToID map[string]string) []CallsEdge {
	var calls []CallsEdge

	fnNode := findNodeAtPosition(rootNode, uint32(fn.StartLine-1), uint32(fn.StartCol-1)) //nolint:gosec // G115: line/col come from a just-parsed tree, always non-negative
	if fnNode == nil {
		return calls
	}

	p.walkJSCallExpressions(fnNode, content, fn.ID, funcNameToID, &calls)
	return calls
}

// walkJSCallExpressions finds call_expression nodes and resolves them
// against functions known in the same file.
func (p *TreeSitterParser) walkJSCallExpressions(node *sitter.Node, content []byte, callerID string, funcNameToID map[string]string, calls *[]CallsEdge) {
	if node == nil {
		return
	}

	if node.Type() == "call_expression" {
		if funcNode := node.ChildByFieldName("function"); funcNode != nil {
			if calleeName := p.extractJSCalleeName(funcNode, content); calleeName != "" {
				if calleeID, exists := funcNameToID[calleeName]; exists && calleeID != callerID {
					*calls = append(*calls, CallsEdge{
						CallerID: callerID,
						CalleeID: calleeID,
						CallLine: int(node.StartPoint().Row) + 1,
					})
				}
			}
		}
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		p.walkJSCallExpressions(node.Child(i), content, callerID, funcNameToID, calls)
	}
}

// extractJSCalleeName extracts the callable's simple name: foo() -> "foo",
// obj.method() -> "method".
func (p *TreeSitterParser) extractJSCalleeName(node *sitter.Node, content []byte) string {
	switch node.Type() {
	case "identifier":
		return string(content[node.StartByte():node.EndByte()])
	case "member_expression":
		if propNode := node.ChildByFieldName("property"); propNode != nil {
			return string(content[propNode.StartByte():propNode.EndByte()])
		}
	}
	return ""
}

// =============================================================================
// SIMPLIFIED JAVASCRIPT/TYPESCRIPT PARSER (no Tree-sitter)
// =============================================================================

// parseJSFile extracts functions from JavaScript/TypeScript source using
// line-oriented pattern matching.
// Limitations: may miss methods, destructured parameters, and arrow
// functions split across lines. Use TreeSitterParser for accurate parsing.
func (p *Parser) parseJSFile(content, filePath string) ([]FunctionEntity, []CallsEdge) {
	var functions []FunctionEntity

	lines := strings.Split(content, "\n")

	for i, line := range lines {
		lineNum := i + 1
		trimmed := strings.TrimSpace(line)

		if strings.Contains(trimmed, "function ") {
			parts := strings.Fields(trimmed)
			for j, part := range parts {
				if part != "function" || j+1 >= len(parts) {
					continue
				}
				name := strings.TrimSpace(strings.TrimSuffix(strings.TrimSuffix(parts[j+1], "{"), "("))
				if name == "" {
					continue
				}
				endLine := p.findJSFunctionEnd(lines, i)
				codeText := p.truncateCodeText(strings.Join(lines[i:endLine], "\n"))

				functions = append(functions, FunctionEntity{
					ID:        GenerateFunctionID(filePath, name, trimmed, lineNum, endLine, 1, len(line)),
					Name:      name,
					Signature: trimmed,
					FilePath:  filePath,
					CodeText:  codeText,
					StartLine: lineNum,
					EndLine:   endLine,
					StartCol:  1,
					EndCol:    len(line),
				})
				break
			}
		}

		if strings.Contains(trimmed, "=>") {
			if name, signature := p.extractJSArrowFunction(trimmed, line); name != "" {
				endLine := p.findJSFunctionEnd(lines, i)
				codeText := p.truncateCodeText(strings.Join(lines[i:endLine], "\n"))

				functions = append(functions, FunctionEntity{
					ID:        GenerateFunctionID(filePath, name, signature, lineNum, endLine, 1, len(line)),
					Name:      name,
					Signature: signature,
					FilePath:  filePath,
					CodeText:  codeText,
					StartLine: lineNum,
					EndLine:   endLine,
					StartCol:  1,
					EndCol:    len(line),
				})
			}
		}
	}

	return functions, p.extractJSCallsSimplified(functions)
}

// extractJSArrowFunction extracts name and signature from a line declaring
// an arrow function: const/let/var name = (...) =>.
func (p *Parser) extractJSArrowFunction(trimmed, line string) (name, signature string) {
	trimmed = strings.TrimPrefix(trimmed, "export default ")
	trimmed = strings.TrimPrefix(trimmed, "export ")
	trimmed = strings.TrimPrefix(trimmed, "const ")
	trimmed = strings.TrimPrefix(trimmed, "let ")
	trimmed = strings.TrimPrefix(trimmed, "var ")

	eqIdx := strings.Index(trimmed, "=")
	if eqIdx == -1 {
		return "", ""
	}

	name = strings.TrimSpace(trimmed[:eqIdx])
	if !isValidJSIdentifier(name) {
		return "", ""
	}
	return name, line
}

// isValidJSIdentifier reports whether name is a plain JS identifier
// (no destructuring) and not a reserved word.
func isValidJSIdentifier(name string) bool {
	if len(name) == 0 || !isJSIdentStart(name[0]) {
		return false
	}
	for i := 1; i < len(name); i++ {
		if !isJSIdentChar(name[i]) {
			return false
		}
	}
	return !isJSKeyword(name)
}

// extractJSCallsSimplified resolves same-file calls by name matching
// within each function's already-extracted CodeText.
func (p *Parser) extractJSCallsSimplified(functions []FunctionEntity) []CallsEdge {
	var calls []CallsEdge

	funcNameToID := make(map[string]string, len(functions))
	for _, fn := range functions {
		funcNameToID[fn.Name] = fn.ID
	}

	for _, caller := range functions {
		seen := make(map[string]bool)
		for _, calledName := range p.findJSCalls(caller.CodeText) {
			calleeID, exists := funcNameToID[calledName]
			if !exists || calleeID == caller.ID {
				continue
			}
			edgeKey := caller.ID + "->" + calleeID
			if seen[edgeKey] {
				continue
			}
			seen[edgeKey] = true
			calls = append(calls, CallsEdge{CallerID: caller.ID, CalleeID: calleeID})
		}
	}

	return calls
}

// jsParseState tracks lexical state while scanning JavaScript source for
// call-like tokens.
type jsParseState struct {
	code          string
	pos           int
	inString      bool
	stringChar    byte
	inTemplate    bool
	inComment     bool
	inLineComment bool
}

// findJSCalls extracts identifiers immediately followed by "(", skipping
// over string/template/comment content.
func (p *Parser) findJSCalls(code string) []string {
	var calls []string
	state := &jsParseState{code: code}

	for state.pos < len(code) {
		if state.handleJSComment() {
			continue
		}
		if state.inComment || state.inLineComment {
			state.pos++
			continue
		}
		if state.handleJSTemplate() {
			continue
		}
		if state.inTemplate {
			state.pos++
			continue
		}
		if state.handleJSString() {
			continue
		}
		if state.inString {
			state.pos++
			continue
		}
		if call := state.extractJSCall(); call != "" {
			calls = append(calls, call)
			continue
		}
		state.pos++
	}
	return calls
}

func (s *jsParseState) handleJSComment() bool {
	if s.inString || s.inTemplate {
		return false
	}
	if s.pos+1 < len(s.code) {
		if s.code[s.pos] == '/' && s.code[s.pos+1] == '/' {
			s.inLineComment = true
			s.pos += 2
			return true
		}
		if s.code[s.pos] == '/' && s.code[s.pos+1] == '*' {
			s.inComment = true
			s.pos += 2
			return true
		}
	}
	if s.inLineComment && s.pos < len(s.code) && s.code[s.pos] == '\n' {
		s.inLineComment = false
		s.pos++
		return true
	}
	if s.inComment && s.pos+1 < len(s.code) && s.code[s.pos] == '*' && s.code[s.pos+1] == '/' {
		s.inComment = false
		s.pos += 2
		return true
	}
	return false
}

func (s *jsParseState) handleJSTemplate() bool {
	if s.inString || s.pos >= len(s.code) || s.code[s.pos] != '`' {
		return false
	}
	s.inTemplate = !s.inTemplate
	s.pos++
	return true
}

func (s *jsParseState) handleJSString() bool {
	if s.pos >= len(s.code) {
		return false
	}
	c := s.code[s.pos]
	if !s.inString && (c == '"' || c == '\'') {
		s.stringChar = c
		s.inString = true
		s.pos++
		return true
	}
	if s.inString && c == s.stringChar && (s.pos == 0 || s.code[s.pos-1] != '\\') {
		s.inString = false
		s.pos++
		return true
	}
	return false
}

func (s *jsParseState) extractJSCall() string {
	if s.pos >= len(s.code) || !isJSIdentStart(s.code[s.pos]) {
		return ""
	}
	start := s.pos
	for s.pos < len(s.code) && isJSIdentChar(s.code[s.pos]) {
		s.pos++
	}
	name := s.code[start:s.pos]

	for s.pos < len(s.code) && (s.code[s.pos] == ' ' || s.code[s.pos] == '\t' || s.code[s.pos] == '\n') {
		s.pos++
	}

	if s.pos < len(s.code) && s.code[s.pos] == '(' && !isJSKeyword(name) {
		return name
	}
	return ""
}

func isJSIdentStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' || c == '$'
}

func isJSIdentChar(c byte) bool {
	return isJSIdentStart(c) || (c >= '0' && c <= '9')
}

func isJSKeyword(name string) bool {
	keywords := map[string]bool{
		"break": true, "case": true, "catch": true, "continue": true,
		"debugger": true, "default": true, "delete": true, "do": true,
		"else": true, "finally": true, "for": true, "function": true,
		"if": true, "in": true, "instanceof": true, "new": true,
		"return": true, "switch": true, "this": true, "throw": true,
		"try": true, "typeof": true, "var": true, "void": true,
		"while": true, "with": true, "class": true, "const": true,
		"enum": true, "export": true, "extends": true, "import": true,
		"super": true, "implements": true, "interface": true, "let": true,
		"package": true, "private": true, "protected": true, "public": true,
		"static": true, "yield": true, "async": true, "await": true,
		"console": true, "window": true, "document": true, "process": true,
		"require": true, "module": true, "exports": true, "global": true,
		"undefined": true, "null": true, "true": true, "false": true,
		"NaN": true, "Infinity": true, "Array": true, "Object": true,
		"String": true, "Number": true, "Boolean": true, "Symbol": true,
		"Promise": true, "Map": true, "Set": true, "WeakMap": true,
		"WeakSet": true, "Error": true, "JSON": true, "Math": true,
		"Date": true, "RegExp": true, "parseInt": true, "parseFloat": true,
		"isNaN": true, "isFinite": true, "setTimeout": true, "setInterval": true,
	}
	return keywords[name]
}

// findJSFunctionEnd finds the 1-indexed line after a brace-balanced
// function body starting at startIdx (0-indexed).
func (p *Parser) findJSFunctionEnd(lines []string, startIdx int) int {
	braceCount := 0
	started := false

	for i := startIdx; i < len(lines); i++ {
		line := lines[i]
		braceCount += strings.Count(line, "{") - strings.Count(line, "}")
		if !started && strings.Contains(line, "{") {
			started = true
		}
		if started && braceCount == 0 {
			return i + 1
		}
	}

	return len(lines)
}
