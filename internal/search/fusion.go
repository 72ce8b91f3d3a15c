package search

import (
	"sort"

	"github.com/velorahq/studysearch/pkg/types"
)

// DefaultFusionK is the standard RRF smoothing constant. Larger values
// flatten the difference between adjacent ranks.
const DefaultFusionK = 60.0

// reciprocalRankFusion merges ranked lists into one list ordered by combined
// rank evidence. Each list contributes 1/(k + position + 1) per item, summed
// across lists, so an item ranked well by several matchers beats an item
// ranked first by only one. Absolute scores on the inputs are ignored.
//
// The returned result carries the fields of the item's first occurrence
// (earlier lists win) with Score replaced by the fused score. Ties are broken
// by ID so output order is deterministic. Ranks are reassigned 1-based.
func reciprocalRankFusion(lists [][]types.SearchResult, k float64) []types.SearchResult {
	if k <= 0 {
		k = DefaultFusionK
	}

	scores := make(map[string]float64)
	first := make(map[string]types.SearchResult)
	var order []string

	for _, list := range lists {
		for pos, result := range list {
			if _, seen := scores[result.ID]; !seen {
				first[result.ID] = result
				order = append(order, result.ID)
			}
			scores[result.ID] += 1.0 / (k + float64(pos) + 1.0)
		}
	}

	fused := make([]types.SearchResult, 0, len(order))
	for _, id := range order {
		result := first[id]
		result.Score = scores[id]
		fused = append(fused, result)
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return fused[i].ID < fused[j].ID
	})

	for i := range fused {
		fused[i].Rank = i + 1
	}

	return fused
}
