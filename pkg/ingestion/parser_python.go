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

// parsePythonAST extracts functions, classes, and same-file calls from
// Python source using the Python grammar.
func (p *TreeSitterParser) parsePythonAST(content []byte, filePath string) ([]FunctionEntity, []TypeEntity, []CallsEdge, error) {
	tree := p.pyParser.Parse(nil, content)
	if tree == nil {
		return nil, nil, nil, fmt.Errorf("python parse returned nil tree")
	}
	root := tree.RootNode()

	if errCount := countErrors(root); errCount > 0 {
		p.logger.Debug("parser.python.syntax_errors", "path", filePath, "count", errCount)
	}

	anonCounter := 0
	functions := p.walkPythonFunctions(root, content, filePath, "", &anonCounter)
	types := p.extractPythonTypes(root, content, filePath)

	funcNameToID := make(map[string]string, len(functions))
	for _, fn := range functions {
		funcNameToID[fn.Name] = fn.ID
	}

	var calls []CallsEdge
	for _, fn := range functions {
		calls = append(calls, p.extractPythonCalls(root, content, fn, funcNameToID)...)
	}

	return functions, types, calls, nil
}

// =============================================================================
// PYTHON FUNCTION EXTRACTION
// =============================================================================

// walkPythonFunctions recursively finds function_definition and lambda
// nodes. class_definition is handled explicitly so method names can be
// prefixed with their class ("ClassName.method"), and returns early to
// avoid descending into the class body a second time via the generic walk.
func (p *TreeSitterParser) walkPythonFunctions(node *sitter.Node, content []byte, filePath, classPrefix string, anonCounter *int) []FunctionEntity {
	var functions []FunctionEntity
	if node == nil {
		return functions
	}

	switch node.Type() {
	case "function_definition":
		if fn := p.extractPythonFunction(node, content, filePath, classPrefix); fn != nil {
			functions = append(functions, *fn)
		}
		if bodyNode := node.ChildByFieldName("body"); bodyNode != nil {
			functions = append(functions, p.walkPythonFunctions(bodyNode, content, filePath, classPrefix, anonCounter)...)
		}
		return functions

	case "lambda":
		if fn := p.extractPythonLambda(node, content, filePath, anonCounter); fn != nil {
			functions = append(functions, *fn)
		}
		for i := 0; i < int(node.ChildCount()); i++ {
			functions = append(functions, p.walkPythonFunctions(node.Child(i), content, filePath, classPrefix, anonCounter)...)
		}
		return functions

	case "class_definition":
		className := ""
		if nameNode := node.ChildByFieldName("name"); nameNode != nil {
			className = string(content[nameNode.StartByte():nameNode.EndByte()])
		}
		if bodyNode := node.ChildByFieldName("body"); bodyNode != nil {
			functions = append(functions, p.walkPythonFunctions(bodyNode, content, filePath, className, anonCounter)...)
		}
		return functions
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		functions = append(functions, p.walkPythonFunctions(node.Child(i), content, filePath, classPrefix, anonCounter)...)
	}
	return functions
}

// extractPythonFunction extracts a def statement, prefixing the name with
// its enclosing class when classPrefix is non-empty.
func (p *TreeSitterParser) extractPythonFunction(node *sitter.Node, content []byte, filePath, classPrefix string) *FunctionEntity {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := string(content[nameNode.StartByte():nameNode.EndByte()])

	fullName := name
	if classPrefix != "" {
		fullName = classPrefix + "." + name
	}

	paramsNode := node.ChildByFieldName("parameters")
	var params string
	if paramsNode != nil {
		params = string(content[paramsNode.StartByte():paramsNode.EndByte()])
	}

	signature := fmt.Sprintf("def %s%s", fullName, params)
	if returnTypeNode := node.ChildByFieldName("return_type"); returnTypeNode != nil {
		signature += " -> " + string(content[returnTypeNode.StartByte():returnTypeNode.EndByte()])
	}

	startLine := int(node.StartPoint().Row) + 1
	endLine := int(node.EndPoint().Row) + 1
	startCol := int(node.StartPoint().Column) + 1
	endCol := int(node.EndPoint().Column) + 1

	codeText := p.truncateCodeText(string(content[node.StartByte():node.EndByte()]))

	id := GenerateFunctionID(filePath, fullName, signature, startLine, endLine, startCol, endCol)

	return &FunctionEntity{
		ID:        id,
		Name:      fullName,
		Signature: signature,
		FilePath:  filePath,
		CodeText:  codeText,
		StartLine: startLine,
		EndLine:   endLine,
		StartCol:  startCol,
		EndCol:    endCol,
	}
}

// extractPythonLambda extracts a lambda expression under a synthetic name,
// since lambdas have no identifier of their own.
func (p *TreeSitterParser) extractPythonLambda(node *sitter.Node, content []byte, filePath string, anonCounter *int) *FunctionEntity {
	name := fmt.Sprintf("$lambda_%d", *anonCounter)
	*anonCounter++

	codeText := string(content[node.StartByte():node.EndByte()])
	signature := codeText
	if len(signature) > 100 {
		signature = signature[:100] + "..."
	}

	startLine := int(node.StartPoint().Row) + 1
	endLine := int(node.EndPoint().Row) + 1
	startCol := int(node.StartPoint().Column) + 1
	endCol := int(node.EndPoint().Column) + 1

	id := GenerateFunctionID(filePath, name, signature, startLine, endLine, startCol, endCol)

	return &FunctionEntity{
		ID:        id,
		Name:      name,
		Signature: signature,
		FilePath:  filePath,
		CodeText:  p.truncateCodeText(codeText),
		StartLine: startLine,
		EndLine:   endLine,
		StartCol:  startCol,
		EndCol:    endCol,
	}
}

// =============================================================================
// PYTHON CALL EXTRACTION
// =============================================================================

// extractPythonCalls finds same-file calls made from within fn's body.
func (p *TreeSitterParser) extractPythonCalls(rootNode *sitter.Node, content []byte, fn FunctionEntity, funcNameToID map[string]string) []CallsEdge {
	var calls []CallsEdge

	fnNode := findNodeAtPosition(rootNode, uint32(fn.StartLine-1), uint32(fn.StartCol-1)) //nolint:gosec // G115: line/col come from a just-parsed tree, always non-negative
	if fnNode == nil {
		return calls
	}

	p.walkPythonCallExpressions(fnNode, content, fn.ID, funcNameToID, &calls)
	return calls
}

// walkPythonCallExpressions finds call nodes and resolves them against
// functions known in the same file.
func (p *TreeSitterParser) walkPythonCallExpressions(node *sitter.Node, content []byte, callerID string, funcNameToID map[string]string, calls *[]CallsEdge) {
	if node == nil {
		return
	}

	if node.Type() == "call" {
		if funcNode := node.ChildByFieldName("function"); funcNode != nil {
			if calleeName := p.extractPythonCalleeName(funcNode, content); calleeName != "" {
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
		p.walkPythonCallExpressions(node.Child(i), content, callerID, funcNameToID, calls)
	}
}

// extractPythonCalleeName extracts the callable's simple name: foo() ->
// "foo", obj.method() -> "method".
func (p *TreeSitterParser) extractPythonCalleeName(node *sitter.Node, content []byte) string {
	switch node.Type() {
	case "identifier":
		return string(content[node.StartByte():node.EndByte()])
	case "attribute":
		if attrNode := node.ChildByFieldName("attribute"); attrNode != nil {
			return string(content[attrNode.StartByte():attrNode.EndByte()])
		}
	}
	return ""
}

// =============================================================================
// PYTHON TYPE (CLASS) EXTRACTION
// =============================================================================

// extractPythonTypes finds class_definition nodes anywhere in the tree.
func (p *TreeSitterParser) extractPythonTypes(root *sitter.Node, content []byte, filePath string) []TypeEntity {
	var types []TypeEntity
	p.walkPythonTypesAST(root, content, filePath, &types)
	return types
}

func (p *TreeSitterParser) walkPythonTypesAST(node *sitter.Node, content []byte, filePath string, types *[]TypeEntity) {
	if node == nil {
		return
	}

	if node.Type() == "class_definition" {
		if t := p.extractPythonClass(node, content, filePath); t != nil {
			*types = append(*types, *t)
		}
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		p.walkPythonTypesAST(node.Child(i), content, filePath, types)
	}
}

func (p *TreeSitterParser) extractPythonClass(node *sitter.Node, content []byte, filePath string) *TypeEntity {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := string(content[nameNode.StartByte():nameNode.EndByte()])

	startLine := int(node.StartPoint().Row) + 1
	endLine := int(node.EndPoint().Row) + 1

	codeText := p.truncateCodeText(string(content[node.StartByte():node.EndByte()]))

	id := GenerateTypeID(filePath, name, startLine, endLine)

	return &TypeEntity{
		ID:        id,
		Name:      name,
		Kind:      "class",
		FilePath:  filePath,
		CodeText:  codeText,
		StartLine: startLine,
		EndLine:   endLine,
	}
}

// =============================================================================
// SIMPLIFIED PYTHON PARSER (no Tree-sitter)
// =============================================================================

// parsePythonFile extracts functions from Python source using
// indentation-based pattern matching.
// Limitations: nested defs, decorators spanning multiple lines, and
// multi-line signatures are handled best-effort. Use TreeSitterParser for
// accurate parsing.
func (p *Parser) parsePythonFile(content, filePath string) ([]FunctionEntity, []CallsEdge) {
	var functions []FunctionEntity

	lines := strings.Split(content, "\n")

	for i, line := range lines {
		lineNum := i + 1
		trimmed := strings.TrimSpace(line)

		if !strings.HasPrefix(trimmed, "def ") && !strings.HasPrefix(trimmed, "async def ") {
			continue
		}

		rest := strings.TrimPrefix(trimmed, "async ")
		rest = strings.TrimPrefix(rest, "def ")

		parenIdx := strings.Index(rest, "(")
		if parenIdx == -1 {
			continue
		}
		name := strings.TrimSpace(rest[:parenIdx])
		if name == "" {
			continue
		}

		endLine := p.findPythonFunctionEnd(lines, i)
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
	}

	return functions, p.extractPythonCallsSimplified(functions)
}

// extractPythonCallsSimplified resolves same-file calls by name matching
// within each function's already-extracted CodeText.
func (p *Parser) extractPythonCallsSimplified(functions []FunctionEntity) []CallsEdge {
	var calls []CallsEdge

	funcNameToID := make(map[string]string, len(functions))
	for _, fn := range functions {
		funcNameToID[fn.Name] = fn.ID
	}

	for _, caller := range functions {
		seen := make(map[string]bool)
		for _, calledName := range p.findPythonCalls(caller.CodeText) {
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

// pythonParseState tracks lexical state while scanning Python source for
// call-like tokens.
type pythonParseState struct {
	code       string
	pos        int
	inString   bool
	stringChar byte
	tripleQuote bool
}

// findPythonCalls extracts identifiers immediately followed by "(",
// skipping over string/comment content.
func (p *Parser) findPythonCalls(code string) []string {
	var calls []string
	state := &pythonParseState{code: code}

	for state.pos < len(code) {
		if !state.inString && state.code[state.pos] == '#' {
			state.skipPythonComment()
			continue
		}
		if state.skipPythonTripleQuote() {
			continue
		}
		if state.handlePythonString() {
			continue
		}
		if state.inString {
			state.pos++
			continue
		}
		if call := state.extractPythonCall(); call != "" {
			calls = append(calls, call)
			continue
		}
		state.pos++
	}
	return calls
}

func (s *pythonParseState) skipPythonComment() {
	for s.pos < len(s.code) && s.code[s.pos] != '\n' {
		s.pos++
	}
}

func (s *pythonParseState) skipPythonTripleQuote() bool {
	if s.inString {
		return false
	}
	if s.pos+2 < len(s.code) &&
		(s.code[s.pos:s.pos+3] == `"""` || s.code[s.pos:s.pos+3] == "'''") {
		quote := s.code[s.pos : s.pos+3]
		s.pos += 3
		for s.pos+2 < len(s.code) && s.code[s.pos:s.pos+3] != quote {
			s.pos++
		}
		s.pos += 3
		if s.pos > len(s.code) {
			s.pos = len(s.code)
		}
		return true
	}
	return false
}

func (s *pythonParseState) handlePythonString() bool {
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

func (s *pythonParseState) extractPythonCall() string {
	if s.pos >= len(s.code) || !isPythonIdentStart(s.code[s.pos]) {
		return ""
	}
	start := s.pos
	for s.pos < len(s.code) && isPythonIdentChar(s.code[s.pos]) {
		s.pos++
	}
	name := s.code[start:s.pos]

	for s.pos < len(s.code) && (s.code[s.pos] == ' ' || s.code[s.pos] == '\t') {
		s.pos++
	}

	if s.pos < len(s.code) && s.code[s.pos] == '(' && !isPythonKeyword(name) {
		return name
	}
	return ""
}

func isPythonIdentStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

func isPythonIdentChar(c byte) bool {
	return isPythonIdentStart(c) || (c >= '0' && c <= '9')
}

func isPythonKeyword(name string) bool {
	keywords := map[string]bool{
		"and": true, "as": true, "assert": true, "async": true, "await": true,
		"break": true, "class": true, "continue": true, "def": true,
		"del": true, "elif": true, "else": true, "except": true,
		"finally": true, "for": true, "from": true, "global": true,
		"if": true, "import": true, "in": true, "is": true, "lambda": true,
		"nonlocal": true, "not": true, "or": true, "pass": true,
		"raise": true, "return": true, "try": true, "while": true,
		"with": true, "yield": true, "None": true, "True": true, "False": true,
		"print": true, "len": true, "range": true, "int": true, "str": true,
		"float": true, "bool": true, "list": true, "dict": true, "set": true,
		"tuple": true, "type": true, "isinstance": true, "super": true,
		"open": true, "enumerate": true, "zip": true, "map": true, "filter": true,
	}
	return keywords[name]
}

// findPythonFunctionEnd finds the 1-indexed line where a def's indented
// body ends, based on indentation dropping back to or below the def's own
// level.
func (p *Parser) findPythonFunctionEnd(lines []string, startIdx int) int {
	defIndent := pythonIndentOf(lines[startIdx])

	for i := startIdx + 1; i < len(lines); i++ {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			continue
		}
		if pythonIndentOf(line) <= defIndent {
			return i
		}
	}

	return len(lines)
}

func pythonIndentOf(line string) int {
	indent := 0
	for _, c := range line {
		if c == ' ' {
			indent++
		} else if c == '\t' {
			indent += 8
		} else {
			break
		}
	}
	return indent
}
