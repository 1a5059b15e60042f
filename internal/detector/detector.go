// Package detector implements the Product Detector orchestrator (C5): it drives the
// DOM probe, structural analyzer, content classifier, and element scorer through the
// Idle -> Stabilize -> InjectHelpers -> GatherCandidates -> Score -> Classify+Adjust ->
// PatternGroup+Boost -> SelectBest -> SynthesizeGenericSelector -> Finalize -> Idle
// state machine and returns one DetectionResult per run.
package detector

import (
	"context"
	"fmt"

	"github.com/assistedscrape/engine/internal/analyzer"
	"github.com/assistedscrape/engine/internal/classifier"
	"github.com/assistedscrape/engine/internal/config"
	"github.com/assistedscrape/engine/internal/models"
	"github.com/assistedscrape/engine/internal/probe"
	"github.com/assistedscrape/engine/internal/scorer"
)

// scored bundles a candidate with everything computed about it during one detection
// run, so SelectBest can apply the tie-break rules without recomputing anything.
type scored struct {
	candidate   probe.Candidate
	elementScore models.ElementScore
	fingerprint models.Fingerprint
}

// Detector runs the full Product Detector state machine against one page.
type Detector struct {
	probe *probe.Probe
	cfg   config.DetectionConfig
}

// New builds a Detector bound to a probe and the detection tuning config.
func New(p *probe.Probe, cfg config.DetectionConfig) *Detector {
	return &Detector{probe: p, cfg: cfg}
}

// Detect runs one full Idle->...->Idle cycle and returns the selected product
// container plus a fallback recommendation when confidence is too low to trust.
func (d *Detector) Detect(ctx context.Context) (models.DetectionResult, error) {
	// Stabilize
	if err := d.probe.WaitForPageStability(ctx); err != nil {
		return models.DetectionResult{}, fmt.Errorf("stabilize: %w", err)
	}

	// InjectHelpers + GatherCandidates
	maxCandidates := d.cfg.MaxCandidates
	if maxCandidates <= 0 {
		maxCandidates = 500
	}
	candidates, err := d.probe.GatherCandidates(ctx, maxCandidates)
	if err != nil {
		return models.DetectionResult{}, fmt.Errorf("gather candidates: %w", err)
	}
	if len(candidates) == 0 {
		return models.DetectionResult{
			Confidence:          0,
			FallbackRecommended: true,
			Reason:              "no candidates gathered",
		}, nil
	}

	// PatternGroup: compute fingerprints and group membership once, up front, so
	// Score/Classify+Adjust can look up each candidate's group size.
	groups := analyzer.Group(candidates)

	results := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		fp := analyzer.Fingerprint(c)
		groupSize := len(groups[fp.Hash])

		total, breakdown := scorer.Score(c, d.cfg.Weights)
		class := classifier.Classify(c)
		adjustedTotal, confidence := scorer.Adjust(c, total, class, groupSize, d.cfg)

		results = append(results, scored{
			candidate: c,
			fingerprint: fp,
			elementScore: models.ElementScore{
				Selector:         c.Selector,
				TagName:          c.Tag,
				TotalScore:       adjustedTotal,
				Confidence:       confidence,
				Breakdown:        breakdown,
				Signals:          c.Signals(),
				PatternGroup:     fp.Hash,
				PatternGroupSize: groupSize,
			},
		})
	}

	// SelectBest
	best := SelectBest(results)

	allScores := make([]models.ElementScore, 0, len(results))
	for _, r := range results {
		allScores = append(allScores, r.elementScore)
	}

	groupHash, groupMembers, hasGroup := analyzer.DominantGroup(candidates)
	var dominant *models.DominantPattern
	if hasGroup && len(groupMembers) >= d.cfg.MinPatternSize {
		dominant = &models.DominantPattern{
			Hash:           groupHash,
			Count:          len(groupMembers),
			SampleSelector: groupMembers[0],
		}
	}

	// SynthesizeGenericSelector
	group := membersOf(results, best.fingerprint.Hash)
	generic, err := SynthesizeGenericSelector(ctx, d.probe, best.candidate, group)
	if err != nil {
		return models.DetectionResult{}, fmt.Errorf("synthesize generic selector: %w", err)
	}

	minConfidence := d.cfg.MinConfidence
	if minConfidence <= 0 {
		minConfidence = 0.6
	}

	selected := &models.SelectedElement{
		SpecificSelector: best.candidate.Selector,
		GenericSelector:  generic,
		BBox:             best.candidate.Visual.BBox,
	}

	result := models.DetectionResult{
		SelectedElement:     selected,
		Confidence:          best.elementScore.Confidence,
		AllCandidates:       allScores,
		DominantPattern:     dominant,
		FallbackRecommended: best.elementScore.Confidence < minConfidence,
	}
	if result.FallbackRecommended {
		result.Reason = "confidence below minimum threshold"
	}
	return result, nil
}

// membersOf returns the raw candidates sharing fingerprint hash h.
func membersOf(results []scored, h string) []probe.Candidate {
	var out []probe.Candidate
	for _, r := range results {
		if r.fingerprint.Hash == h {
			out = append(out, r.candidate)
		}
	}
	return out
}

// SelectBest picks the highest-scoring candidate, applying the tie-break rule: an
// anchor candidate within 30 points of the leading div and carrying a product-like
// class token (or within 25 points and carrying at least one class) is preferred,
// since anchors are more likely to be the actual clickable product link rather than
// a purely decorative wrapper.
func SelectBest(results []scored) scored {
	best := results[0]
	for _, r := range results[1:] {
		if r.elementScore.TotalScore > best.elementScore.TotalScore {
			best = r
			continue
		}
		if isAnchorOverDiv(r, best) {
			best = r
		}
	}
	return best
}

// isAnchorOverDiv applies the tie-break: an anchor displaces a leading div candidate
// only when it's close behind, and only when it looks like a product link rather than
// some unrelated "read more" anchor with no identifying classes.
func isAnchorOverDiv(candidate, current scored) bool {
	if candidate.candidate.Tag != "a" || current.candidate.Tag != "div" {
		return false
	}
	gap := current.elementScore.TotalScore - candidate.elementScore.TotalScore
	if gap < 30 && hasProductClassToken(candidate.candidate.Classes) {
		return true
	}
	if gap < 25 && len(candidate.candidate.Classes) > 0 {
		return true
	}
	return false
}

func hasProductClassToken(classes []string) bool {
	for _, c := range classes {
		if productClassToken.MatchString(c) {
			return true
		}
	}
	return false
}
