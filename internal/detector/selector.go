package detector

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/assistedscrape/engine/internal/probe"
)

var productClassToken = regexp.MustCompile(`(?i)product|item|card|tile|box|listing`)

// tailwindUtilityPrefixes filters generic-selector candidate classes, per the
// Glossary's Tailwind utility class prefix list. Classes containing bracketed
// arbitrary values are kept regardless (site-specific, not framework utility noise).
var tailwindUtilityPrefixes = []string{
	"flex", "grid", "block", "inline", "hidden", "relative", "absolute", "fixed", "sticky",
	"w-", "h-", "min-", "max-", "p-", "m-", "px-", "py-", "mx-", "my-", "pt-", "pb-", "pl-", "pr-",
	"mt-", "mb-", "ml-", "mr-", "gap-", "space-", "text-", "font-", "bg-", "border-", "rounded",
	"shadow", "opacity-", "z-", "top-", "bottom-", "left-", "right-", "inset-", "items-", "justify-",
	"self-", "place-", "order-", "col-", "row-", "overflow", "cursor-", "pointer-", "select-",
	"resize", "whitespace-", "break-", "truncate", "leading-", "tracking-", "align-", "decoration-",
	"list-", "outline-", "ring-", "fill-", "stroke-", "sr-only", "transition", "duration-", "ease-",
	"delay-", "animate-", "hover:", "focus:", "active:", "disabled:", "group-", "peer-",
	"sm:", "md:", "lg:", "xl:", "2xl:", "dark:",
}

func isTailwindUtility(class string) bool {
	if strings.Contains(class, "[") {
		return false
	}
	for _, prefix := range tailwindUtilityPrefixes {
		if strings.HasPrefix(class, prefix) || class == prefix {
			return true
		}
	}
	return false
}

// intersectClasses returns the classes common to every candidate in the group.
func intersectClasses(group []probe.Candidate) []string {
	if len(group) == 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, c := range group {
		seen := make(map[string]bool)
		for _, cl := range c.Classes {
			if seen[cl] {
				continue
			}
			seen[cl] = true
			counts[cl]++
		}
	}
	var common []string
	for cl, n := range counts {
		if n == len(group) {
			common = append(common, cl)
		}
	}
	return common
}

// selectorTester abstracts the live-DOM match-count check the synthesis loop needs;
// satisfied by *probe.Probe in production and a goquery-backed fake in tests.
type selectorTester interface {
	TestSelector(ctx context.Context, css string) (valid bool, count int, err error)
}

// SynthesizeGenericSelector attempts, in order, each candidate generic selector until
// one matches between 2 and 200 elements in the live DOM, retrying the whole sequence
// up to 3 times with a 500ms wait if every attempt falls back to a bare tag.
func SynthesizeGenericSelector(ctx context.Context, tester selectorTester, best probe.Candidate, group []probe.Candidate) (string, error) {
	for attempt := 0; attempt < 3; attempt++ {
		selector, bare := trySynthesize(ctx, tester, best, group)
		if !bare {
			return selector, nil
		}
		if attempt < 2 {
			time.Sleep(500 * time.Millisecond)
		}
	}
	return best.Tag, nil
}

func trySynthesize(ctx context.Context, tester selectorTester, best probe.Candidate, group []probe.Candidate) (selector string, bare bool) {
	candidates := buildCandidateSelectors(best, group)
	for _, css := range candidates {
		valid, count, err := tester.TestSelector(ctx, css)
		if err != nil || !valid {
			continue
		}
		if count >= 2 && count <= 200 {
			return css, false
		}
	}
	return best.Tag, true
}

func buildCandidateSelectors(best probe.Candidate, group []probe.Candidate) []string {
	var out []string

	// 1. pattern-group class intersection
	if len(group) >= 3 {
		common := intersectClasses(group)
		if len(common) > 0 {
			n := len(common)
			if n > 2 {
				n = 2
			}
			classPart := strings.Join(common[:n], ".")
			out = append(out, fmt.Sprintf("%s.%s", best.Tag, classPart))
		}
	}

	// 2. product-like class token
	for _, cl := range best.Classes {
		if productClassToken.MatchString(cl) {
			out = append(out, fmt.Sprintf("%s.%s", best.Tag, cl))
		}
	}

	// 3. non-generic classes (utility-filtered)
	for _, cl := range best.Classes {
		if !isTailwindUtility(cl) {
			out = append(out, fmt.Sprintf("%s.%s", best.Tag, cl))
		}
	}

	// 4. remaining classes
	for _, cl := range best.Classes {
		out = append(out, fmt.Sprintf("%s.%s", best.Tag, cl))
	}

	// 5 & 6: ancestor walk fallbacks. The probe's selector already encodes the
	// ancestor chain (space/`>`-joined); reuse its second-to-last segment as the
	// ancestor contribution.
	if ancestorSel := ancestorFallback(best.Selector, best.Tag); ancestorSel != "" {
		out = append(out, ancestorSel)
	}

	// 7. fallback: bare tag (signals "bare" to the caller via trySynthesize)
	out = append(out, best.Tag)

	return dedupe(out)
}

func ancestorFallback(fullSelector, tag string) string {
	parts := strings.Split(fullSelector, ">")
	if len(parts) < 2 {
		return ""
	}
	ancestor := strings.TrimSpace(parts[len(parts)-2])
	if ancestor == "" {
		return ""
	}
	return fmt.Sprintf("%s %s", ancestor, tag)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
