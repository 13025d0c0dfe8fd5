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
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/kraklabs/cie-engine/pkg/storage"
)

// ResolveBusinessScope narrows a search to files whose stored
// justification's feature_context mentions scope, returning their file
// paths. An empty scope resolves to no restriction (nil, meaning
// "search everything").
func ResolveBusinessScope(ctx context.Context, backend storage.Backend, scope string) ([]string, error) {
	if strings.TrimSpace(scope) == "" {
		return nil, nil
	}

	pattern, err := regexp.Compile("(?i)" + regexp.QuoteMeta(scope))
	if err != nil {
		return nil, fmt.Errorf("compile scope pattern: %w", err)
	}

	script := `?[entity_id, entity_type, feature_context] := *cie_justification { entity_id, entity_type, feature_context }`
	result, err := backend.Query(ctx, script)
	if err != nil {
		return nil, fmt.Errorf("query justifications for scope: %w", err)
	}

	fileIDs := make(map[string]bool)
	for _, row := range result.Rows {
		if len(row) < 3 {
			continue
		}
		entityID, _ := row[0].(string)
		entityType, _ := row[1].(string)
		featureContext, _ := row[2].(string)
		if entityType != "file" {
			continue
		}
		if pattern.MatchString(featureContext) {
			fileIDs[entityID] = true
		}
	}
	if len(fileIDs) == 0 {
		return nil, nil
	}

	filesResult, err := backend.Query(ctx, `?[id, path] := *cie_file { id, path }`)
	if err != nil {
		return nil, fmt.Errorf("query files for scope: %w", err)
	}
	var paths []string
	for _, row := range filesResult.Rows {
		if len(row) < 2 {
			continue
		}
		id, _ := row[0].(string)
		path, _ := row[1].(string)
		if fileIDs[id] {
			paths = append(paths, path)
		}
	}
	return paths, nil
}
