package services_test

import (
	"context"
	"errors"
	"hash/fnv"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zatekoja/productsearch/internal/domain/entities"
	apperrors "github.com/zatekoja/productsearch/pkg/errors"
	"github.com/zatekoja/productsearch/pkg/utils"
)

var errStoreDown = errors.New("store unavailable")

// fakeProductRepo is an in-memory catalog that keeps insertion order.
type fakeProductRepo struct {
	mu         sync.Mutex
	products   map[string]*entities.Product
	order      []string
	embeddings *fakeEmbeddingRepo
	err        error
	calls      int
}

func newFakeProductRepo(products ...*entities.Product) *fakeProductRepo {
	r := &fakeProductRepo{products: make(map[string]*entities.Product)}
	for _, p := range products {
		r.add(p)
	}
	return r
}

func (r *fakeProductRepo) add(p *entities.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[p.ID]; !ok {
		r.order = append(r.order, p.ID)
	}
	r.products[p.ID] = p
}

func (r *fakeProductRepo) all() []*entities.Product {
	out := make([]*entities.Product, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.products[id])
	}
	return out
}

func (r *fakeProductRepo) GetByID(ctx context.Context, id string) (*entities.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	p, ok := r.products[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("product " + id + " not found")
	}
	return p, nil
}

func (r *fakeProductRepo) GetByIDs(ctx context.Context, ids []string) ([]*entities.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	out := make([]*entities.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakeProductRepo) FindCandidates(ctx context.Context, words []string, limit int) ([]*entities.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	var out []*entities.Product
	for _, p := range r.all() {
		fields := utils.NormalizeQuery(strings.Join([]string{p.Name, p.Description, p.Category, p.Brand}, " | "))
		for _, w := range words {
			if strings.Contains(fields, w) {
				out = append(out, p)
				break
			}
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeProductRepo) SearchNames(ctx context.Context, fragment string, limit int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var out []string
	for _, p := range r.all() {
		if strings.Contains(utils.NormalizeQuery(p.Name), fragment) {
			out = append(out, p.Name)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeProductRepo) List(ctx context.Context, filter entities.ProductFilter) ([]*entities.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var out []*entities.Product
	for _, p := range r.all() {
		if filter.Matches(p) {
			out = append(out, p)
		}
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (r *fakeProductRepo) ListAll(ctx context.Context) ([]*entities.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return r.all(), nil
}

func (r *fakeProductRepo) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.products), r.err
}

func (r *fakeProductRepo) ListWithoutEmbedding(ctx context.Context, limit int) ([]*entities.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var out []*entities.Product
	for _, p := range r.all() {
		if r.embeddings != nil && r.embeddings.has(p.ID) {
			continue
		}
		out = append(out, p)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// fakeEmbeddingRepo stores one vector per product.
type fakeEmbeddingRepo struct {
	mu      sync.Mutex
	vectors map[string]*entities.ProductEmbedding
	upserts int
}

func newFakeEmbeddingRepo() *fakeEmbeddingRepo {
	return &fakeEmbeddingRepo{vectors: make(map[string]*entities.ProductEmbedding)}
}

func (r *fakeEmbeddingRepo) has(productID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.vectors[productID]
	return ok
}

func (r *fakeEmbeddingRepo) Upsert(ctx context.Context, e *entities.ProductEmbedding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	now := time.Now()
	if existing, ok := r.vectors[e.ProductID]; ok {
		e.ID = existing.ID
		e.CreatedAt = existing.CreatedAt
	} else {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	r.vectors[e.ProductID] = e
	return nil
}

func (r *fakeEmbeddingRepo) GetByProductID(ctx context.Context, productID string) (*entities.ProductEmbedding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.vectors[productID]
	if !ok {
		return nil, apperrors.NewNotFoundError("embedding not found")
	}
	return e, nil
}

func (r *fakeEmbeddingRepo) ListAll(ctx context.Context, excludeProductID string) ([]*entities.ProductEmbedding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entities.ProductEmbedding, 0, len(r.vectors))
	for id, e := range r.vectors {
		if id == excludeProductID {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (r *fakeEmbeddingRepo) ListHashes(ctx context.Context) (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.vectors))
	for id, e := range r.vectors {
		out[id] = e.ContentHash
	}
	return out, nil
}

func (r *fakeEmbeddingRepo) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.vectors), nil
}

// fakeEmbeddingProvider hashes words into a small bag-of-words vector, so
// texts sharing words are similar.
type fakeEmbeddingProvider struct {
	dims     int
	err      error
	failWith string
	calls    int64
}

func newFakeEmbeddingProvider() *fakeEmbeddingProvider {
	return &fakeEmbeddingProvider{dims: 16}
}

func (p *fakeEmbeddingProvider) vector(text string) []float32 {
	vec := make([]float32, p.dims)
	for _, w := range strings.Fields(utils.NormalizeQuery(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[h.Sum32()%uint32(p.dims)]++
	}
	return vec
}

func (p *fakeEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	atomic.AddInt64(&p.calls, 1)
	if p.err != nil {
		return nil, p.err
	}
	return p.vector(text), nil
}

func (p *fakeEmbeddingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	atomic.AddInt64(&p.calls, 1)
	if p.err != nil {
		return nil, p.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if p.failWith != "" && strings.Contains(t, p.failWith) {
			return nil, errors.New("provider rejected input")
		}
		out[i] = p.vector(t)
	}
	return out, nil
}

func (p *fakeEmbeddingProvider) Model() string { return "fake-embedding-1" }

func (p *fakeEmbeddingProvider) callCount() int64 { return atomic.LoadInt64(&p.calls) }

// fakeInteractionRepo keeps interactions in insertion order.
type fakeInteractionRepo struct {
	mu           sync.Mutex
	interactions []*entities.ProductInteraction
	counts       entities.InteractionCounts
	err          error
	listCalls    int
	updated      []string
}

func (r *fakeInteractionRepo) Create(ctx context.Context, i *entities.ProductInteraction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.interactions = append(r.interactions, i)
	return nil
}

func (r *fakeInteractionRepo) UpdateLatestView(ctx context.Context, sessionID, productID string, duration int, scrollDepth *int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	for idx := len(r.interactions) - 1; idx >= 0; idx-- {
		i := r.interactions[idx]
		if i.SessionID == sessionID && i.ProductID == productID && i.Type == entities.InteractionView {
			if i.Duration != nil {
				return false, nil
			}
			d := duration
			i.Duration = &d
			i.ScrollDepth = scrollDepth
			r.updated = append(r.updated, i.ID)
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeInteractionRepo) ListRecentByUser(ctx context.Context, userID string, limit int) ([]*entities.ProductInteraction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	if r.err != nil {
		return nil, r.err
	}
	var out []*entities.ProductInteraction
	for idx := len(r.interactions) - 1; idx >= 0 && len(out) < limit; idx-- {
		if r.interactions[idx].UserID == userID {
			out = append(out, r.interactions[idx])
		}
	}
	return out, nil
}

func (r *fakeInteractionRepo) TrendingProducts(ctx context.Context, since time.Time, limit int) ([]*entities.TrendingProduct, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	views := make(map[string]int)
	for _, i := range r.interactions {
		if i.Type == entities.InteractionView && !i.CreatedAt.Before(since) {
			views[i.ProductID]++
		}
	}
	out := make([]*entities.TrendingProduct, 0, len(views))
	for id, n := range views {
		out = append(out, &entities.TrendingProduct{ProductID: id, Views: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Views != out[j].Views {
			return out[i].Views > out[j].Views
		}
		return out[i].ProductID < out[j].ProductID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeInteractionRepo) CountCartActivity(ctx context.Context, since time.Time) (*entities.InteractionCounts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	counts := r.counts
	return &counts, nil
}

func (r *fakeInteractionRepo) snapshot() []*entities.ProductInteraction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*entities.ProductInteraction(nil), r.interactions...)
}

// fakeSearchQueryRepo records searches and clicks.
type fakeSearchQueryRepo struct {
	mu       sync.Mutex
	queries  []*entities.SearchQuery
	clicks   []*entities.SearchClick
	popular  []string
	keywords []*entities.KeywordStat
	noResult []*entities.NoResultQuery
	err      error
}

func (r *fakeSearchQueryRepo) Create(ctx context.Context, q *entities.SearchQuery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.queries = append(r.queries, q)
	return nil
}

func (r *fakeSearchQueryRepo) AttributeClick(ctx context.Context, click *entities.SearchClick) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	r.clicks = append(r.clicks, click)
	for idx := len(r.queries) - 1; idx >= 0; idx-- {
		q := r.queries[idx]
		if q.SessionID != click.SessionID {
			continue
		}
		if q.Query == click.Query && q.ClickedProductID == "" {
			pos := click.Position
			q.ClickedProductID = click.ProductID
			q.ClickPosition = &pos
			return true, nil
		}
		break
	}
	pos := click.Position
	r.queries = append(r.queries, &entities.SearchQuery{
		SessionID:        click.SessionID,
		Query:            click.Query,
		ResultsCount:     1,
		ClickedProductID: click.ProductID,
		ClickPosition:    &pos,
	})
	return false, nil
}

func (r *fakeSearchQueryRepo) PopularQueries(ctx context.Context, fragment string, since time.Time, limit int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var out []string
	for _, q := range r.popular {
		if strings.Contains(q, fragment) {
			out = append(out, q)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeSearchQueryRepo) TopKeywords(ctx context.Context, since time.Time, limit int) ([]*entities.KeywordStat, error) {
	return r.keywords, r.err
}

func (r *fakeSearchQueryRepo) NoResultQueries(ctx context.Context, since time.Time, limit int) ([]*entities.NoResultQuery, error) {
	return r.noResult, r.err
}

func (r *fakeSearchQueryRepo) snapshot() []*entities.SearchQuery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*entities.SearchQuery(nil), r.queries...)
}

func intPtr(v int) *int { return &v }
