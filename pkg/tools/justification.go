// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"context"
	"fmt"
	"strings"
)

// JustificationInfo is the slice of a stored justification the tools
// attach to lookup results: enough to say why the entity exists without
// reproducing the full record.
type JustificationInfo struct {
	PurposeSummary  string
	BusinessValue   string
	FeatureContext  string
	ConfidenceLevel string
}

// lookupJustification fetches the stored justification for entityID.
// Returns nil (not an error) when the justification layer hasn't run yet
// or the relation doesn't exist: enrichment is best-effort and lookup
// tools must keep working on a freshly indexed store.
func lookupJustification(ctx context.Context, client Querier, entityID string) *JustificationInfo {
	script := fmt.Sprintf(
		`?[purpose_summary, business_value, feature_context, confidence_level] := *cie_justification { entity_id, purpose_summary, business_value, feature_context, confidence_level }, entity_id = %q :limit 1`,
		entityID)

	result, err := client.Query(ctx, script)
	if err != nil || len(result.Rows) == 0 {
		return nil
	}

	row := result.Rows[0]
	info := &JustificationInfo{
		PurposeSummary:  anyToStr(row[0]),
		BusinessValue:   anyToStr(row[1]),
		FeatureContext:  anyToStr(row[2]),
		ConfidenceLevel: anyToStr(row[3]),
	}
	if info.PurposeSummary == "" {
		return nil
	}
	return info
}

// appendJustification writes the purpose/business-value annotation lines
// for info, if any, in the shared format all lookup tools use.
func appendJustification(sb *strings.Builder, info *JustificationInfo) {
	if info == nil {
		return
	}
	fmt.Fprintf(sb, "**Purpose**: %s", info.PurposeSummary)
	if info.ConfidenceLevel != "" {
		fmt.Fprintf(sb, " _(%s confidence)_", info.ConfidenceLevel)
	}
	sb.WriteString("\n")
	if info.BusinessValue != "" {
		fmt.Fprintf(sb, "**Business value**: %s\n", info.BusinessValue)
	}
	if info.FeatureContext != "" {
		fmt.Fprintf(sb, "**Feature**: %s\n", info.FeatureContext)
	}
}

// countJustifications returns how many entities currently carry a stored
// justification, for index status reporting. Zero on any error.
func countJustifications(ctx context.Context, client Querier) int {
	result, err := client.Query(ctx, `?[count(id)] := *cie_justification { id }`)
	if err != nil || len(result.Rows) == 0 {
		return 0
	}
	if n, ok := result.Rows[0][0].(float64); ok {
		return int(n)
	}
	return len(result.Rows)
}
