// Package analyzer computes the structural fingerprint of a candidate element and
// groups candidates that share one (C2 Structural Analyzer).
package analyzer

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"

	"github.com/assistedscrape/engine/internal/models"
	"github.com/assistedscrape/engine/internal/probe"
)

var stateOrUtilityClass = regexp.MustCompile(`^(hover|active|focus|selected|ng-|js-|_|[0-9])`)

// filterClasses drops state/utility classes per the Glossary's state/utility filter.
func filterClasses(classes []string) []string {
	out := make([]string, 0, len(classes))
	for _, c := range classes {
		if !stateOrUtilityClass.MatchString(c) {
			out = append(out, c)
		}
	}
	return out
}

// tagPath splits a selector built by the probe's ancestor walk back into per-level
// tag names, capped at 10 entries as the spec's Structural Fingerprint requires.
func tagPath(selector string) []string {
	levels := strings.Split(selector, ">")
	out := make([]string, 0, len(levels))
	for _, lvl := range levels {
		lvl = strings.TrimSpace(lvl)
		if lvl == "" {
			continue
		}
		tag := lvl
		for _, sep := range []string{".", "#", "[", ":"} {
			if i := strings.Index(tag, sep); i >= 0 {
				tag = tag[:i]
			}
		}
		if tag == "" {
			tag = lvl
		}
		out = append(out, tag)
	}
	if len(out) > 10 {
		out = out[len(out)-10:]
	}
	return out
}

// childStructureHash hashes the first five children's tag:childCount:classCount
// descriptors, the way the Structural Fingerprint defines childStructureHash.
func childStructureHash(childSummaries []string) string {
	summaries := childSummaries
	if len(summaries) > 5 {
		summaries = summaries[:5]
	}
	return shortHash(strings.Join(summaries, "|"))
}

func shortHash(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])[:16]
}

// Fingerprint computes the structural fingerprint of one candidate.
func Fingerprint(c probe.Candidate) models.Fingerprint {
	classes := filterClasses(c.Classes)
	sort.Strings(classes)

	path := tagPath(c.Selector)
	childHash := childStructureHash(c.ChildSummaries)
	nesting := c.Structural.NestingDepth

	hashInput := strings.Join(path, "/") + "|" + strings.Join(classes, ",") + "|" + childHash
	return models.Fingerprint{
		TagPath:         path,
		ClassPatterns:   classes,
		NestingDepth:    nesting,
		ChildStructHash: childHash,
		Hash:            shortHash(hashInput),
	}
}

// Group assigns every candidate's fingerprint hash to a pattern group and returns
// {fingerprintHash -> [selector, ...]}.
func Group(candidates []probe.Candidate) map[string][]string {
	groups := make(map[string][]string)
	for _, c := range candidates {
		fp := Fingerprint(c)
		groups[fp.Hash] = append(groups[fp.Hash], c.Selector)
	}
	return groups
}

// jaccard computes set similarity over two string slices.
func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	set := make(map[string]struct{}, len(a))
	for _, x := range a {
		set[x] = struct{}{}
	}
	intersection := 0
	union := len(set)
	for _, x := range b {
		if _, ok := set[x]; ok {
			intersection++
		} else {
			union++
		}
	}
	if union == 0 {
		return 1
	}
	return float64(intersection) / float64(union)
}

// tagPathSimilarity is a simple positional edit similarity over two tag-path slices.
func tagPathSimilarity(a, b []string) float64 {
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}
	matches := 0
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] == b[i] {
			matches++
		}
	}
	return float64(matches) / float64(maxLen)
}

// Similarity returns the weighted pairwise similarity between two fingerprints: 40%
// tag-path similarity, 30% Jaccard over filtered classes, 30% child-structure
// equality.
func Similarity(a, b models.Fingerprint) float64 {
	tagSim := tagPathSimilarity(a.TagPath, b.TagPath)
	classSim := jaccard(a.ClassPatterns, b.ClassPatterns)
	childSim := 0.0
	if a.ChildStructHash == b.ChildStructHash {
		childSim = 1.0
	}
	return 0.4*tagSim + 0.3*classSim + 0.3*childSim
}

// SiblingAnalysis returns the sibling-group analysis for a candidate: count, average
// pairwise similarity across the group, and a grid-likelihood score derived from
// whether the parent's computed display is grid/flex.
func SiblingAnalysis(c probe.Candidate, siblingsInGroup []probe.Candidate) models.SiblingAnalysis {
	count := len(siblingsInGroup)

	similaritySum, pairs := 0.0, 0
	fpSelf := Fingerprint(c)
	for _, s := range siblingsInGroup {
		if s.Selector == c.Selector {
			continue
		}
		similaritySum += Similarity(fpSelf, Fingerprint(s))
		pairs++
	}
	similarity := 1.0
	if pairs > 0 {
		similarity = similaritySum / float64(pairs)
	}

	gridLikelihood := 0.3
	if c.Visual.ParentIsGrid {
		gridLikelihood = 0.8
		if count >= 3 {
			gridLikelihood = 1.0
		}
	}

	return models.SiblingAnalysis{
		Count:           count,
		SimilarityScore: similarity,
		GridLikelihood:  gridLikelihood,
	}
}

// DominantGroup returns the hash and members of the largest fingerprint group, or
// ok=false if candidates is empty.
func DominantGroup(candidates []probe.Candidate) (hash string, members []string, ok bool) {
	groups := Group(candidates)
	best := ""
	for h, sels := range groups {
		if len(sels) > len(groups[best]) {
			best = h
		}
	}
	if best == "" {
		return "", nil, false
	}
	return best, groups[best], true
}
