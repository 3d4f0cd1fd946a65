package adapter

import (
	"book-inventory/internal/core/model"
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// CatalogRepo is the in-memory stand-in for the remote catalog store. The
// identifier index keeps the first book recorded under a key, so a
// KEEP_BOTH insert leaves the original as the canonical match.
type CatalogRepo struct {
	mu           sync.RWMutex
	books        map[string]model.Book      // id -> Book
	byIdentifier map[string]string          // normalized identifier -> first id
	pricing      map[string]model.Pricing   // id -> Pricing
	pricingByBk  map[string][]string        // book id -> pricing ids, insert order
	publishers   map[string]model.Publisher // id -> Publisher
	pubByName    map[string]string          // folded name -> id
}

func NewCatalogRepo() *CatalogRepo {
	return &CatalogRepo{
		books:        make(map[string]model.Book),
		byIdentifier: make(map[string]string),
		pricing:      make(map[string]model.Pricing),
		pricingByBk:  make(map[string][]string),
		publishers:   make(map[string]model.Publisher),
		pubByName:    make(map[string]string),
	}
}

func foldKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// copyBook detaches the pointer fields so neither the caller nor the
// store can write through the other's record.
func copyBook(b model.Book) model.Book {
	b.Year = clonePtr(b.Year)
	b.ISBN = clonePtr(b.ISBN)
	b.OtherCode = clonePtr(b.OtherCode)
	b.Edition = clonePtr(b.Edition)
	b.Remarks = clonePtr(b.Remarks)
	return b
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func (r *CatalogRepo) CreateBook(_ context.Context, b model.Book) (model.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b.ID == "" {
		return model.Book{}, model.ErrValidation
	}
	if _, ok := r.books[b.ID]; ok {
		return model.Book{}, model.ErrConflict
	}
	if key := b.Identifier(); key != "" {
		if _, exists := r.byIdentifier[key]; !exists {
			r.byIdentifier[key] = b.ID
		}
	}
	r.books[b.ID] = copyBook(b)
	return copyBook(b), nil
}

func (r *CatalogRepo) UpdateBook(_ context.Context, b model.Book) (model.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.books[b.ID]
	if !ok {
		return model.Book{}, model.ErrNotFound
	}
	// identifiers are immutable through update; keep the stored ones
	b.ISBN = old.ISBN
	b.OtherCode = old.OtherCode
	b.CreatedAt = old.CreatedAt
	r.books[b.ID] = copyBook(b)
	return copyBook(b), nil
}

func (r *CatalogRepo) GetBookByID(_ context.Context, id string) (model.Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.books[id]
	if !ok {
		return model.Book{}, model.ErrNotFound
	}
	return copyBook(b), nil
}

func (r *CatalogRepo) GetBookByIdentifier(_ context.Context, key string) (model.Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byIdentifier[key]
	if !ok {
		return model.Book{}, model.ErrNotFound
	}
	b, ok := r.books[id]
	if !ok {
		return model.Book{}, model.ErrNotFound
	}
	return copyBook(b), nil
}

// ListBooks returns a paginated slice of the catalog:
//
//  1. Snapshot under the read lock.
//  2. Apply q/author/year filters.
//  3. Sort by created_at descending, id as tie-breaker.
//  4. Apply pagination (page / page_size).
func (r *CatalogRepo) ListBooks(_ context.Context, q model.ListQuery) (model.Page[model.Book], error) {
	r.mu.RLock()
	items := make([]model.Book, 0, len(r.books))
	for _, b := range r.books {
		items = append(items, copyBook(b))
	}
	r.mu.RUnlock()

	out := items[:0]
	for _, b := range items {
		if !matchFilters(b, q) {
			continue
		}
		out = append(out, b)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})

	page := q.Page
	if page < 1 {
		page = 1
	}
	size := q.PageSize
	if size < 1 {
		size = 20
	}
	total := len(out)
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	paged := make([]model.Book, end-start)
	copy(paged, out[start:end])

	return model.Page[model.Book]{Data: paged, Page: page, PageSize: size, Total: total}, nil
}

func matchFilters(b model.Book, q model.ListQuery) bool {
	if q.Q != nil {
		if !strings.Contains(foldKey(b.Title), foldKey(*q.Q)) {
			return false
		}
	}
	if q.Author != nil {
		if !strings.Contains(foldKey(b.Author), foldKey(*q.Author)) {
			return false
		}
	}
	if q.Year != nil {
		if b.Year == nil || *b.Year != *q.Year {
			return false
		}
	}
	return true
}

func (r *CatalogRepo) PricingForBook(_ context.Context, bookID string) ([]model.Pricing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.pricingByBk[bookID]
	rows := make([]model.Pricing, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.pricing[id]; ok {
			rows = append(rows, p)
		}
	}
	return rows, nil
}

func (r *CatalogRepo) GetPricingByID(_ context.Context, id string) (model.Pricing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pricing[id]
	if !ok {
		return model.Pricing{}, model.ErrNotFound
	}
	return p, nil
}

func (r *CatalogRepo) CreatePricing(_ context.Context, p model.Pricing) (model.Pricing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == "" || p.BookID == "" {
		return model.Pricing{}, model.ErrValidation
	}
	if _, ok := r.books[p.BookID]; !ok {
		return model.Pricing{}, model.ErrNotFound
	}
	if _, ok := r.pricing[p.ID]; ok {
		return model.Pricing{}, model.ErrConflict
	}
	for _, id := range r.pricingByBk[p.BookID] {
		if foldKey(r.pricing[id].Source) == foldKey(p.Source) {
			return model.Pricing{}, model.ErrConflict
		}
	}
	r.pricing[p.ID] = p
	r.pricingByBk[p.BookID] = append(r.pricingByBk[p.BookID], p.ID)
	return p, nil
}

func (r *CatalogRepo) UpdatePricing(_ context.Context, p model.Pricing) (model.Pricing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.pricing[p.ID]
	if !ok {
		return model.Pricing{}, model.ErrNotFound
	}
	// row identity is fixed; only the priced values move
	p.BookID = old.BookID
	p.Source = old.Source
	r.pricing[p.ID] = p
	return p, nil
}

func (r *CatalogRepo) EnsurePublisher(_ context.Context, name string) (model.Publisher, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Publisher{}, model.ErrValidation
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.pubByName[foldKey(name)]; ok {
		return r.publishers[id], nil
	}
	p := model.Publisher{ID: uuid.NewString(), Name: name}
	r.publishers[p.ID] = p
	r.pubByName[foldKey(name)] = p.ID
	return p, nil
}

func (r *CatalogRepo) GetPublisher(_ context.Context, id string) (model.Publisher, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.publishers[id]
	if !ok {
		return model.Publisher{}, model.ErrNotFound
	}
	return p, nil
}

func (r *CatalogRepo) BookSuggestions(_ context.Context, q string, limit int) ([]model.Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	needle := foldKey(q)
	matches := make([]model.Book, 0, limit)
	for _, b := range r.books {
		if strings.Contains(foldKey(b.Title), needle) {
			matches = append(matches, copyBook(b))
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Title < matches[j].Title })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (r *CatalogRepo) PublisherSuggestions(_ context.Context, q string, limit int) ([]model.Publisher, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	needle := foldKey(q)
	matches := make([]model.Publisher, 0, limit)
	for _, p := range r.publishers {
		if strings.Contains(foldKey(p.Name), needle) {
			matches = append(matches, p)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Name < matches[j].Name })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}
