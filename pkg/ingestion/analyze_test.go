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
	"strings"
	"testing"
)

func findingCategories(findings []Finding) map[string]int {
	out := make(map[string]int)
	for _, f := range findings {
		out[f.Category]++
	}
	return out
}

func TestTaintAnalyzer_FlagsSinkCategories(t *testing.T) {
	functions := []FunctionEntity{
		{
			ID:        "fn1",
			Name:      "loadUser",
			StartLine: 10,
			CodeText: `func loadUser(id string) {
	data := os.Getenv("USER_DB")
	row := db.Run(data)
	_ = row
}`,
		},
	}

	batch, err := NewTaintAnalyzer().Run(context.Background(), functions)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	cats := findingCategories(batch.Findings)
	if cats["taint:environment"] != 1 {
		t.Errorf("expected one environment finding, got %v", cats)
	}
	if cats["taint:database"] != 1 {
		t.Errorf("expected one database finding, got %v", cats)
	}

	// Line attribution points inside the function body.
	for _, f := range batch.Findings {
		if f.Line < 10 {
			t.Errorf("finding line %d precedes function start", f.Line)
		}
	}
}

func TestTaintAnalyzer_CleanFunctionHasNoFindings(t *testing.T) {
	functions := []FunctionEntity{
		{ID: "fn1", Name: "add", CodeText: "func add(a, b int) int { return a + b }"},
	}

	batch, err := NewTaintAnalyzer().Run(context.Background(), functions)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(batch.Findings) != 0 {
		t.Errorf("expected no findings for a pure arithmetic function, got %v", batch.Findings)
	}
}

func TestPurityAnalyzer_PureAndImpure(t *testing.T) {
	functions := []FunctionEntity{
		{ID: "pure1", Name: "add", CodeText: "func add(a, b int) int { return a + b }"},
		{ID: "impure1", Name: "log", CodeText: `func log(msg string) { fmt.Println(msg) }`},
		{ID: "impure2", Name: "stamp", CodeText: `func stamp() int64 { return time.Now().Unix() }`},
	}

	batch, err := NewPurityAnalyzer().Run(context.Background(), functions)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(batch.Findings) != 3 {
		t.Fatalf("expected one verdict per function, got %d", len(batch.Findings))
	}

	byID := make(map[string]Finding)
	for _, f := range batch.Findings {
		byID[f.FunctionID] = f
	}
	if byID["pure1"].Category != "purity:pure" {
		t.Errorf("add should be pure, got %s", byID["pure1"].Category)
	}
	if byID["impure1"].Category != "purity:impure" {
		t.Errorf("log should be impure, got %s", byID["impure1"].Category)
	}
	if byID["impure2"].Category != "purity:impure" {
		t.Errorf("stamp should be impure (reads the clock), got %s", byID["impure2"].Category)
	}
}

func TestPatternAnalyzer_RecognizesShapes(t *testing.T) {
	functions := []FunctionEntity{
		{ID: "f1", Name: "NewCoordinator", CodeText: "func NewCoordinator() *Coordinator { return &Coordinator{} }"},
		{ID: "f2", Name: "GetInstance", CodeText: "var once sync.Once\nfunc GetInstance() *S { once.Do(initS); return s }"},
		{ID: "f3", Name: "Subscribe", CodeText: "func Subscribe(fn func(Entry)) {}"},
		{ID: "f4", Name: "plainHelper", CodeText: "func plainHelper() {}"},
	}

	batch, err := NewPatternAnalyzer().Run(context.Background(), functions)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	byID := make(map[string][]string)
	for _, f := range batch.Findings {
		byID[f.FunctionID] = append(byID[f.FunctionID], f.Category)
	}

	if len(byID["f1"]) == 0 || !strings.Contains(strings.Join(byID["f1"], ","), "pattern:factory") {
		t.Errorf("NewCoordinator should match the factory pattern, got %v", byID["f1"])
	}
	if !strings.Contains(strings.Join(byID["f2"], ","), "pattern:singleton") {
		t.Errorf("GetInstance should match the singleton pattern, got %v", byID["f2"])
	}
	if !strings.Contains(strings.Join(byID["f3"], ","), "pattern:observer") {
		t.Errorf("Subscribe should match the observer pattern, got %v", byID["f3"])
	}
	if len(byID["f4"]) != 0 {
		t.Errorf("plainHelper should match nothing, got %v", byID["f4"])
	}
}

// erroringAnalyzer always fails, for the continue-on-error contract.
type erroringAnalyzer struct{}

func (erroringAnalyzer) Name() string { return "boom" }
func (erroringAnalyzer) Run(context.Context, []FunctionEntity) (PartialBatch, error) {
	return PartialBatch{}, context.DeadlineExceeded
}

func TestRunAnalyzers_OneFailureDoesNotAbortOthers(t *testing.T) {
	functions := []FunctionEntity{
		{ID: "fn1", Name: "add", CodeText: "func add(a, b int) int { return a + b }"},
	}

	findings, errs := RunAnalyzers(context.Background(), []Analyzer{
		erroringAnalyzer{},
		NewPurityAnalyzer(),
	}, functions)

	if len(errs) != 1 {
		t.Fatalf("expected exactly one analyzer error, got %v", errs)
	}
	if len(findings) != 1 {
		t.Fatalf("expected the purity verdict despite the failing analyzer, got %v", findings)
	}
	if !strings.HasPrefix(errs[0].Error(), "boom:") {
		t.Errorf("error should name the failing analyzer, got %v", errs[0])
	}
}
