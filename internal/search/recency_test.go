package search

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velorahq/studysearch/pkg/types"
)

// mapResolver resolves timestamps from a fixed map
type mapResolver struct {
	timestamps map[string]time.Time
	err        error
}

func (m *mapResolver) GetChunkTimestamps(ctx context.Context, ids []string) (map[string]time.Time, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]time.Time)
	for _, id := range ids {
		if ts, ok := m.timestamps[id]; ok {
			out[id] = ts
		}
	}
	return out, nil
}

func TestRecencyBonusDecay(t *testing.T) {
	now := time.Now()

	fresh := recencyBonus(now, now, DefaultDecayRate, DefaultBoostWeight)
	assert.InDelta(t, DefaultBoostWeight, fresh, 1e-9)

	hourOld := recencyBonus(now.Add(-time.Hour), now, DefaultDecayRate, DefaultBoostWeight)
	assert.InDelta(t, math.Exp(-0.01)*0.2, hourOld, 1e-9)

	monthOld := recencyBonus(now.Add(-30*24*time.Hour), now, DefaultDecayRate, DefaultBoostWeight)
	assert.Less(t, monthOld, hourOld)
	assert.Greater(t, monthOld, 0.0)

	// Clock skew: future content counts as brand new
	future := recencyBonus(now.Add(time.Hour), now, DefaultDecayRate, DefaultBoostWeight)
	assert.InDelta(t, DefaultBoostWeight, future, 1e-9)
}

func TestRecencyBoostReordersEqualScores(t *testing.T) {
	now := time.Now()
	resolver := &mapResolver{timestamps: map[string]time.Time{
		"yesterday": now.Add(-1 * time.Hour),
		"old":       now.Add(-500 * time.Hour),
	}}

	results := []types.SearchResult{
		{ID: "old", Score: 0.5, Rank: 1},
		{ID: "yesterday", Score: 0.5, Rank: 2},
	}

	boosted := applyRecencyBoost(context.Background(), resolver, results, now, DefaultDecayRate, DefaultBoostWeight)
	require.Len(t, boosted, 2)

	assert.Equal(t, "yesterday", boosted[0].ID)
	assert.Equal(t, 1, boosted[0].Rank)
	assert.Equal(t, "old", boosted[1].ID)
	assert.Equal(t, 2, boosted[1].Rank)

	expectedGap := 0.2 * (math.Exp(-0.01*1) - math.Exp(-0.01*500))
	assert.InDelta(t, expectedGap, boosted[0].Score-boosted[1].Score, 1e-9)
}

func TestRecencyBoostSkipsUnresolvedIDs(t *testing.T) {
	now := time.Now()
	resolver := &mapResolver{timestamps: map[string]time.Time{
		"chunk": now,
	}}

	results := []types.SearchResult{
		{ID: "note", Score: 0.5, Provenance: types.ProvenanceNote},
		{ID: "chunk", Score: 0.4, Provenance: types.ProvenanceMaterial},
	}

	boosted := applyRecencyBoost(context.Background(), resolver, results, now, DefaultDecayRate, DefaultBoostWeight)

	// The note keeps its fused score; the fresh chunk gains the full weight
	var noteScore, chunkScore float64
	for _, r := range boosted {
		switch r.ID {
		case "note":
			noteScore = r.Score
		case "chunk":
			chunkScore = r.Score
		}
	}
	assert.InDelta(t, 0.5, noteScore, 1e-9)
	assert.InDelta(t, 0.6, chunkScore, 1e-9)

	// Boost can flip material above a note
	assert.Equal(t, "chunk", boosted[0].ID)
}

func TestRecencyBoostLookupFailureLeavesScores(t *testing.T) {
	resolver := &mapResolver{err: errors.New("db closed")}

	results := []types.SearchResult{
		{ID: "a", Score: 0.7, Rank: 1},
		{ID: "b", Score: 0.3, Rank: 2},
	}

	boosted := applyRecencyBoost(context.Background(), resolver, results, time.Now(), DefaultDecayRate, DefaultBoostWeight)
	require.Len(t, boosted, 2)
	assert.InDelta(t, 0.7, boosted[0].Score, 1e-9)
	assert.InDelta(t, 0.3, boosted[1].Score, 1e-9)
}

func TestRecencyBoostEmptyInput(t *testing.T) {
	resolver := &mapResolver{}
	assert.Empty(t, applyRecencyBoost(context.Background(), resolver, nil, time.Now(), DefaultDecayRate, DefaultBoostWeight))
}
