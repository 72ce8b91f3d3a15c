package search

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/velorahq/studysearch/internal/embedder"
	"github.com/velorahq/studysearch/internal/logger"
	"github.com/velorahq/studysearch/internal/storage"
	"github.com/velorahq/studysearch/pkg/types"
)

// Limits and cache defaults
const (
	DefaultLimit     = 5
	MaxLimit         = 50
	OverfetchFactor  = 2 // each source fetches limit*factor before fusion
	DefaultCacheSize = 1000
	DefaultCacheTTL  = 5 * time.Minute
)

// Params tunes ranking behavior. The zero value of any field falls back to
// the package default.
type Params struct {
	FusionK     float64 // RRF smoothing constant
	BoostWeight float64 // Maximum additive recency bonus
	DecayRate   float64 // Recency decay per hour
}

func (p *Params) applyDefaults() {
	if p.FusionK <= 0 {
		p.FusionK = DefaultFusionK
	}
	if p.BoostWeight <= 0 {
		p.BoostWeight = DefaultBoostWeight
	}
	if p.DecayRate <= 0 {
		p.DecayRate = DefaultDecayRate
	}
}

// Request contains parameters for a hybrid search
type Request struct {
	Query    string
	UserID   string
	ClassID  string // Empty searches all of the user's content
	Limit    int    // 0 means DefaultLimit
	UseCache bool
	CacheTTL time.Duration
}

// Response contains ranked results and query metadata
type Response struct {
	Results     []types.SearchResult
	Duration    time.Duration
	CacheHit    bool
	VectorHits  int // raw hits per source, before fusion
	NoteHits    int
	LexicalHits int
}

// cacheEntry holds a cached response with its expiration time
type cacheEntry struct {
	response  *Response
	expiresAt time.Time
}

// Searcher fans a query out to the vector, note, and lexical matchers
// concurrently, fuses the ranked lists, and boosts recent material. A failing
// source degrades the result instead of failing the query; the error is
// logged and that source contributes nothing.
type Searcher struct {
	store   storage.Store
	emb     embedder.Embedder
	vectors *VectorMatcher
	notes   *NoteMatcher
	lexical *LexicalMatcher
	params  Params

	cache   *lru.Cache[[32]byte, *cacheEntry]
	cacheMu sync.RWMutex

	now func() time.Time
}

// NewSearcher creates a hybrid searcher with the given ranking parameters
func NewSearcher(store storage.Store, emb embedder.Embedder, params Params) *Searcher {
	params.applyDefaults()

	cache, err := lru.New[[32]byte, *cacheEntry](DefaultCacheSize)
	if err != nil {
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}

	return &Searcher{
		store:   store,
		emb:     emb,
		vectors: NewVectorMatcher(store, emb),
		notes:   NewNoteMatcher(store, emb),
		lexical: NewLexicalMatcher(store),
		params:  params,
		cache:   cache,
		now:     time.Now,
	}
}

// Vectors exposes the material vector matcher for direct single-source queries
func (s *Searcher) Vectors() *VectorMatcher { return s.vectors }

// Notes exposes the note vector matcher for direct single-source queries
func (s *Searcher) Notes() *NoteMatcher { return s.notes }

// Lexical exposes the substring matcher for direct single-source queries
func (s *Searcher) Lexical() *LexicalMatcher { return s.lexical }

// Search runs the hybrid pipeline: concurrent fan-out, reciprocal rank
// fusion, recency boost, truncation to the requested limit.
func (s *Searcher) Search(ctx context.Context, req Request) (*Response, error) {
	start := s.now()

	if err := s.validateRequest(&req); err != nil {
		return nil, err
	}

	if req.UseCache {
		if cached := s.checkCache(req); cached != nil {
			cached.CacheHit = true
			cached.Duration = time.Since(start)
			return cached, nil
		}
	}

	scope := storage.Scope{UserID: req.UserID, ClassID: req.ClassID}
	fetch := req.Limit * OverfetchFactor

	// Embed the query once; both vector sources share it. If embedding is
	// down the lexical source still answers.
	queryVector, embErr := s.emb.Embed(ctx, req.Query)
	if embErr != nil {
		logger.Warn("query embedding failed, vector sources skipped: %v", embErr)
	}

	var wg sync.WaitGroup
	var vectorResults, noteResults, lexicalResults []types.SearchResult
	var vectorErr, noteErr, lexicalErr error

	if embErr == nil {
		wg.Add(2)
		go func() {
			defer wg.Done()
			vectorResults, vectorErr = s.vectors.SearchVector(ctx, scope, queryVector, fetch)
		}()
		go func() {
			defer wg.Done()
			noteResults, noteErr = s.notes.SearchVector(ctx, scope, queryVector, fetch)
		}()
	} else {
		vectorErr = fmt.Errorf("%w: %v", types.ErrEmbeddingUnavailable, embErr)
		noteErr = vectorErr
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		lexicalResults, lexicalErr = s.lexical.Search(ctx, scope, req.Query, fetch)
	}()

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if vectorErr != nil {
		logger.Warn("vector search failed: %v", vectorErr)
	}
	if noteErr != nil {
		logger.Warn("note search failed: %v", noteErr)
	}
	if lexicalErr != nil {
		logger.Warn("lexical search failed: %v", lexicalErr)
	}
	// Even with every source down, an empty result set is the answer: callers
	// treat it as "no relevant material found".
	fused := reciprocalRankFusion(
		[][]types.SearchResult{vectorResults, noteResults, lexicalResults},
		s.params.FusionK,
	)

	fused = applyRecencyBoost(ctx, s.store, fused, s.now(), s.params.DecayRate, s.params.BoostWeight)

	if len(fused) > req.Limit {
		fused = fused[:req.Limit]
	}

	response := &Response{
		Results:     fused,
		Duration:    time.Since(start),
		VectorHits:  len(vectorResults),
		NoteHits:    len(noteResults),
		LexicalHits: len(lexicalResults),
	}

	logger.Debug("search %q: %d vector, %d note, %d lexical -> %d fused in %s",
		req.Query, response.VectorHits, response.NoteHits, response.LexicalHits,
		len(response.Results), response.Duration)

	if req.UseCache {
		s.storeInCache(req, response)
	}

	return response, nil
}

func (s *Searcher) validateRequest(req *Request) error {
	if strings.TrimSpace(req.Query) == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if req.UserID == "" {
		return fmt.Errorf("user ID cannot be empty")
	}
	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}
	if req.Limit > MaxLimit {
		req.Limit = MaxLimit
	}
	if req.CacheTTL <= 0 {
		req.CacheTTL = DefaultCacheTTL
	}
	return nil
}

// InvalidateCache drops all cached responses. Called after ingestion so new
// content becomes visible immediately.
func (s *Searcher) InvalidateCache() {
	s.cacheMu.Lock()
	s.cache.Purge()
	s.cacheMu.Unlock()
}

func (s *Searcher) checkCache(req Request) *Response {
	key := cacheKey(req)

	s.cacheMu.RLock()
	entry, found := s.cache.Get(key)
	if !found {
		s.cacheMu.RUnlock()
		return nil
	}

	if s.now().After(entry.expiresAt) {
		s.cacheMu.RUnlock()
		s.cacheMu.Lock()
		s.cache.Remove(key)
		s.cacheMu.Unlock()
		return nil
	}

	response := copyResponse(entry.response)
	s.cacheMu.RUnlock()
	return response
}

func (s *Searcher) storeInCache(req Request, response *Response) {
	entry := &cacheEntry{
		response:  copyResponse(response),
		expiresAt: s.now().Add(req.CacheTTL),
	}

	s.cacheMu.Lock()
	s.cache.Add(cacheKey(req), entry)
	s.cacheMu.Unlock()
}

// cacheKey hashes every request field that affects the result set
func cacheKey(req Request) [32]byte {
	var b strings.Builder
	b.WriteString(req.Query)
	b.WriteString("|")
	b.WriteString(req.UserID)
	b.WriteString("|")
	b.WriteString(req.ClassID)
	b.WriteString("|")
	fmt.Fprintf(&b, "%d", req.Limit)
	return sha256.Sum256([]byte(b.String()))
}

// copyResponse deep-copies a response so cached entries are isolated from
// caller mutation
func copyResponse(src *Response) *Response {
	if src == nil {
		return nil
	}
	dst := &Response{
		Duration:    src.Duration,
		CacheHit:    src.CacheHit,
		VectorHits:  src.VectorHits,
		NoteHits:    src.NoteHits,
		LexicalHits: src.LexicalHits,
		Results:     make([]types.SearchResult, len(src.Results)),
	}
	copy(dst.Results, src.Results)
	return dst
}
