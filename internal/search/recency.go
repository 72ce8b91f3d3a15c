package search

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/velorahq/studysearch/pkg/types"
)

// Recency boost defaults. The bonus is additive on top of the fused score:
// a brand-new chunk gets close to the full weight, and the bonus halves
// roughly every three days at the default decay rate.
const (
	DefaultBoostWeight = 0.2
	DefaultDecayRate   = 0.01 // per hour
)

// recencyBonus computes the additive boost for content created at createdAt.
// Content from the future (clock skew) is treated as brand new.
func recencyBonus(createdAt, now time.Time, decayRate, weight float64) float64 {
	hours := now.Sub(createdAt).Hours()
	if hours < 0 {
		hours = 0
	}
	return math.Exp(-decayRate*hours) * weight
}

// timestampResolver is the slice of the store the booster needs
type timestampResolver interface {
	GetChunkTimestamps(ctx context.Context, chunkIDs []string) (map[string]time.Time, error)
}

// applyRecencyBoost adds a freshness bonus to each result whose creation time
// resolves through the chunks table, then re-sorts and re-ranks. Note results
// never resolve there and keep their fused score untouched: notes are pinned
// by the user, not competing on freshness. A failed timestamp lookup leaves
// all scores unchanged rather than failing the query.
func applyRecencyBoost(ctx context.Context, resolver timestampResolver, results []types.SearchResult, now time.Time, decayRate, weight float64) []types.SearchResult {
	if len(results) == 0 {
		return results
	}

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}

	timestamps, err := resolver.GetChunkTimestamps(ctx, ids)
	if err != nil {
		return results
	}

	for i := range results {
		if createdAt, ok := timestamps[results[i].ID]; ok {
			results[i].Score += recencyBonus(createdAt, now, decayRate, weight)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	for i := range results {
		results[i].Rank = i + 1
	}

	return results
}
