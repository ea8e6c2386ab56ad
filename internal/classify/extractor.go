// Copyright 2026 The triage Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package classify

import (
	"sort"

	"github.com/tenantry/triage/internal/tenant"
)

// ExtractEntities applies every entity pattern of the tenant against text and
// returns the matches per entity type, in order of appearance. A type with no
// matches is absent from the result, never present as an empty list. Values
// are the literal matched substrings; normalization is the consuming
// handler's concern.
//
// Patterns are independent: a single span may satisfy multiple entity types.
// The extractor does not disambiguate.
func ExtractEntities(text string, patterns map[string]*tenant.EntityPattern) map[string][]string {
	if text == "" || len(patterns) == 0 {
		return nil
	}

	var result map[string][]string
	for typeName, pattern := range patterns {
		if pattern == nil {
			continue
		}
		values := matchInOrder(text, pattern)
		if len(values) == 0 {
			continue
		}
		if result == nil {
			result = make(map[string][]string)
		}
		result[typeName] = values
	}
	return result
}

type span struct {
	start, end int
}

// matchInOrder collects all matches of the pattern set, ordered by position
// in the text. Identical spans matched by more than one pattern of the same
// type are reported once.
func matchInOrder(text string, pattern *tenant.EntityPattern) []string {
	var spans []span
	seen := make(map[span]struct{})

	for _, re := range pattern.Regexps() {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			sp := span{start: loc[0], end: loc[1]}
			if _, dup := seen[sp]; dup {
				continue
			}
			seen[sp] = struct{}{}
			spans = append(spans, sp)
		}
	}
	if len(spans) == 0 {
		return nil
	}

	sort.Slice(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end < spans[j].end
	})

	values := make([]string, len(spans))
	for i, sp := range spans {
		values[i] = text[sp.start:sp.end]
	}
	return values
}
