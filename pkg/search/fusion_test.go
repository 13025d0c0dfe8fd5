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

import "testing"

func TestFuse_FavorsSemanticForDefinitionIntent(t *testing.T) {
	semanticRanks := map[string]int{"a.go": 1, "b.go": 2}
	lexicalRanks := map[string]int{"b.go": 1, "a.go": 2}

	scores := Fuse(IntentDefinition, semanticRanks, lexicalRanks)
	if scores["a.go"] <= scores["b.go"] {
		t.Errorf("expected a.go (top semantic rank) to outscore b.go under definition intent: a=%v b=%v",
			scores["a.go"], scores["b.go"])
	}
}

func TestFuse_FavorsLexicalForUsageIntent(t *testing.T) {
	semanticRanks := map[string]int{"a.go": 1, "b.go": 2}
	lexicalRanks := map[string]int{"b.go": 1, "a.go": 2}

	scores := Fuse(IntentUsage, semanticRanks, lexicalRanks)
	if scores["b.go"] <= scores["a.go"] {
		t.Errorf("expected b.go (top lexical rank) to outscore a.go under usage intent: a=%v b=%v",
			scores["a.go"], scores["b.go"])
	}
}

func TestFuse_FileOnlyInOneLegStillScores(t *testing.T) {
	semanticRanks := map[string]int{"only-semantic.go": 1}
	lexicalRanks := map[string]int{}

	scores := Fuse(IntentKeyword, semanticRanks, lexicalRanks)
	if scores["only-semantic.go"] <= 0 {
		t.Errorf("expected a nonzero score for a file found by only one leg")
	}
}

func TestConstantsFor_UnknownIntentDefaultsToKeyword(t *testing.T) {
	got := constantsFor(Intent("nonsense"))
	want := constantsByIntent[IntentKeyword]
	if got != want {
		t.Errorf("constantsFor(unknown) = %+v, want keyword default %+v", got, want)
	}
}
