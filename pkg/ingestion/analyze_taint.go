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
	"context"
	"regexp"
	"strings"
)

// taintSinkPattern pairs a sink category with the regex used to spot it in
// a function's source text.
type taintSinkPattern struct {
	category string
	pattern  *regexp.Regexp
}

// taintSinkPatterns enumerates the sink categories a TaintAnalyzer flags.
// Each is intentionally broad (a name match, not a dataflow proof) since
// this runs per-function with no cross-function call graph available yet.
var taintSinkPatterns = []taintSinkPattern{
	{"user_input", regexp.MustCompile(`(?i)\b(req\.(body|query|params)|request\.form|input\(|readline\(|os\.Args|flag\.String)\b`)},
	{"network", regexp.MustCompile(`(?i)\b(http\.(Get|Post|Client)|net\.Dial|fetch\(|requests\.(get|post)|urllib)\b`)},
	{"filesystem", regexp.MustCompile(`(?i)\b(os\.(Open|ReadFile|WriteFile|Remove)|ioutil\.|open\(|fs\.readFile)\b`)},
	{"database", regexp.MustCompile(`(?i)\b(\.Query\(|\.Exec\(|db\.Run|cursor\.execute|SELECT\s|INSERT\s+INTO)\b`)},
	{"environment", regexp.MustCompile(`(?i)\b(os\.Getenv|os\.Environ|process\.env)\b`)},
	{"time", regexp.MustCompile(`(?i)\b(time\.Now\(\)|Date\.now\(\)|datetime\.now\()`)},
	{"randomness", regexp.MustCompile(`(?i)\b(math/rand|crypto/rand|random\.|Math\.random\()\b`)},
	{"external_api", regexp.MustCompile(`(?i)\b(client\.(Do|Call)|grpc\.Dial|sdk\.)\b`)},
}

// TaintAnalyzer flags functions whose source text references a known taint
// sink category (user input, network, filesystem, database, environment,
// time, randomness, or an external API client).
type TaintAnalyzer struct{}

// NewTaintAnalyzer creates a TaintAnalyzer.
func NewTaintAnalyzer() *TaintAnalyzer {
	return &TaintAnalyzer{}
}

// Name identifies this analyzer in logs and error wrapping.
func (a *TaintAnalyzer) Name() string { return "taint" }

// Run scans every function's code text against the registered sink
// patterns, emitting one Finding per category matched.
func (a *TaintAnalyzer) Run(_ context.Context, functions []FunctionEntity) (PartialBatch, error) {
	var out PartialBatch
	for _, fn := range functions {
		if fn.CodeText == "" {
			continue
		}
		for _, sp := range taintSinkPatterns {
			if loc := sp.pattern.FindStringIndex(fn.CodeText); loc != nil {
				line := fn.StartLine + strings.Count(fn.CodeText[:loc[0]], "\n")
				out.Findings = append(out.Findings, Finding{
					FunctionID: fn.ID,
					Category:   "taint:" + sp.category,
					Detail:     sp.pattern.FindString(fn.CodeText),
					Line:       line,
				})
			}
		}
	}
	return out, nil
}
