package resolver

import (
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"
)

// fuzzyThreshold is the minimum JaroWinkler similarity for a candidate to
// survive the fuzzy fallback.
const fuzzyThreshold = 0.75

// rank filters candidates by prefix, sorts and dedupes them. When a
// non-empty prefix matches nothing it falls back to fuzzy ranking so a
// typo'd prefix still surfaces near misses.
func rank(prefix string, candidates []Candidate) []Candidate {
	var matched []Candidate
	for _, c := range candidates {
		if strings.HasPrefix(c.Label, prefix) {
			matched = append(matched, c)
		}
	}
	if len(matched) == 0 && prefix != "" {
		return fuzzyRank(prefix, candidates)
	}
	sortCandidates(matched)
	return dedupeCandidates(matched)
}

func sortKey(c Candidate) string {
	if c.SortText != "" {
		return c.SortText
	}
	return c.Label
}

func sortCandidates(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		ki, kj := sortKey(candidates[i]), sortKey(candidates[j])
		if ki != kj {
			return ki < kj
		}
		return candidates[i].Label < candidates[j].Label
	})
}

// dedupeCandidates drops repeated labels, keeping the first (best-ranked)
// occurrence. Input must already be sorted.
func dedupeCandidates(candidates []Candidate) []Candidate {
	seen := make(map[string]bool, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		if seen[c.Label] {
			continue
		}
		seen[c.Label] = true
		out = append(out, c)
	}
	return out
}

func fuzzyRank(prefix string, candidates []Candidate) []Candidate {
	type scored struct {
		candidate Candidate
		score     float32
	}
	var kept []scored
	for _, c := range candidates {
		score, err := edlib.StringsSimilarity(prefix, c.Label, edlib.JaroWinkler)
		if err != nil || score < fuzzyThreshold {
			continue
		}
		kept = append(kept, scored{candidate: c, score: score})
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].score != kept[j].score {
			return kept[i].score > kept[j].score
		}
		return kept[i].candidate.Label < kept[j].candidate.Label
	})
	out := make([]Candidate, 0, len(kept))
	for _, s := range kept {
		out = append(out, s.candidate)
	}
	return dedupeCandidates(out)
}
