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

// rrfConstants holds the (k_s, k_l) pair Reciprocal Rank Fusion uses for
// an Intent: k_s weighs the semantic leg, k_l the lexical leg. A smaller
// constant gives that leg's top ranks more relative weight.
type rrfConstants struct {
	ks, kl float64
}

// constantsByIntent fixes the per-intent (k_s, k_l) pairs: definition
// favors the semantic leg (low k_s), usage favors the lexical leg (low
// k_l), conceptual and keyword split the difference.
var constantsByIntent = map[Intent]rrfConstants{
	IntentDefinition: {ks: 40, kl: 80},
	IntentUsage:      {ks: 80, kl: 40},
	IntentConceptual: {ks: 50, kl: 70},
	IntentKeyword:    {ks: 60, kl: 60},
}

// constantsFor returns the RRF constants for intent, defaulting to the
// keyword pair for an unrecognized intent.
func constantsFor(intent Intent) rrfConstants {
	if c, ok := constantsByIntent[intent]; ok {
		return c
	}
	return constantsByIntent[IntentKeyword]
}

// legRank is a single leg's 1-based rank for a file; a leg that never
// surfaced the file contributes rank 0 (no score).
type legRank struct {
	semanticRank int
	lexicalRank  int
}

// Fuse combines semantic and lexical leg rankings (each a file path to
// 1-based rank, best first) into one score per file using Reciprocal
// Rank Fusion: score = 1/(k_s + rank_s) + 1/(k_l + rank_l), summed across
// whichever legs contributed a rank for that file.
func Fuse(intent Intent, semanticRanks, lexicalRanks map[string]int) map[string]float64 {
	c := constantsFor(intent)

	ranks := make(map[string]*legRank)
	for path, rank := range semanticRanks {
		ranks[path] = &legRank{semanticRank: rank}
	}
	for path, rank := range lexicalRanks {
		if r, ok := ranks[path]; ok {
			r.lexicalRank = rank
		} else {
			ranks[path] = &legRank{lexicalRank: rank}
		}
	}

	scores := make(map[string]float64, len(ranks))
	for path, r := range ranks {
		var score float64
		if r.semanticRank > 0 {
			score += 1.0 / (c.ks + float64(r.semanticRank))
		}
		if r.lexicalRank > 0 {
			score += 1.0 / (c.kl + float64(r.lexicalRank))
		}
		scores[path] = score
	}
	return scores
}
