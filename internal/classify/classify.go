// Package classify implements the Feature Classifier: matching a feature
// against a tileset's ordered feature-definition list, first match wins.
package classify

import (
	"github.com/MeKo-Tech/tilegen/internal/types"
)

// Match returns the first FeatureDefinition within ts whose MatchRule
// accepts f, or false if none does. Checks run in the order the spec
// fixes: geometry kind, tag inclusion, tag exclusion, area bounds,
// population bounds, requires_name.
func Match(f *types.Feature, ts types.Tileset) (types.FeatureDefinition, bool) {
	for _, def := range ts.Features {
		if matches(f, def.Match) {
			return def, true
		}
	}
	return types.FeatureDefinition{}, false
}

func matches(f *types.Feature, rule types.MatchRule) bool {
	if len(rule.Geometry) > 0 {
		if _, ok := rule.Geometry[f.Kind]; !ok {
			return false
		}
	}

	if !matchesTagInclusion(f.Tags, rule.Tags, rule.MatchAll) {
		return false
	}

	if matchesTagExclusion(f.Tags, rule.TagsExclude) {
		return false
	}

	if rule.MinAreaKM2 != nil || rule.MaxAreaKM2 != nil {
		area := f.AreaKM2()
		if rule.MinAreaKM2 != nil && area < *rule.MinAreaKM2 {
			return false
		}
		if rule.MaxAreaKM2 != nil && area > *rule.MaxAreaKM2 {
			return false
		}
	}

	if rule.PopulationMin != nil || rule.PopulationMax != nil {
		pop, ok := population(f.Tags)
		if !ok {
			return false
		}
		if rule.PopulationMin != nil && pop < *rule.PopulationMin {
			return false
		}
		if rule.PopulationMax != nil && pop > *rule.PopulationMax {
			return false
		}
	}

	if rule.RequiresName && !f.HasName() {
		return false
	}

	return true
}

// matchesTagInclusion reports whether tags satisfy the rule's tags block.
// With no tags block, every feature passes. With match_all, every key in
// the block must match; otherwise any single key matching is sufficient
// (§4.1 "match_all").
func matchesTagInclusion(tags map[string]string, want map[string]map[string]struct{}, matchAll bool) bool {
	if len(want) == 0 {
		return true
	}

	if matchAll {
		for key, allowed := range want {
			if !tagMatches(tags, key, allowed) {
				return false
			}
		}
		return true
	}

	for key, allowed := range want {
		if tagMatches(tags, key, allowed) {
			return true
		}
	}
	return false
}

func tagMatches(tags map[string]string, key string, allowed map[string]struct{}) bool {
	value, ok := tags[key]
	if !ok {
		return false
	}
	if _, wildcard := allowed["*"]; wildcard {
		return true
	}
	_, ok = allowed[value]
	return ok
}

// matchesTagExclusion reports whether any excluded tag/value pair is
// present; a single match rejects the feature.
func matchesTagExclusion(tags map[string]string, exclude map[string]map[string]struct{}) bool {
	for key, forbidden := range exclude {
		value, ok := tags[key]
		if !ok {
			continue
		}
		if _, wildcard := forbidden["*"]; wildcard {
			return true
		}
		if _, ok := forbidden[value]; ok {
			return true
		}
	}
	return false
}

func population(tags map[string]string) (int, bool) {
	raw, ok := tags["population"]
	if !ok {
		return 0, false
	}
	n := 0
	any := false
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
		any = true
	}
	return n, any
}
