package adapter

import (
	"book-inventory/internal/core/model"
	"context"
	"sort"
	"sync"
)

// QuotationRepo is the in-memory stand-in for the remote quotation store.
type QuotationRepo struct {
	mu         sync.RWMutex
	quotations map[string]model.Quotation
}

func NewQuotationRepo() *QuotationRepo {
	return &QuotationRepo{quotations: make(map[string]model.Quotation)}
}

func (r *QuotationRepo) CreateQuotation(_ context.Context, q model.Quotation) (model.Quotation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if q.ID == "" {
		return model.Quotation{}, model.ErrValidation
	}
	if _, ok := r.quotations[q.ID]; ok {
		return model.Quotation{}, model.ErrConflict
	}
	r.quotations[q.ID] = copyQuotation(q)
	return copyQuotation(q), nil
}

func (r *QuotationRepo) UpdateQuotation(_ context.Context, q model.Quotation) (model.Quotation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.quotations[q.ID]
	if !ok {
		return model.Quotation{}, model.ErrNotFound
	}
	q.CreatedAt = old.CreatedAt
	r.quotations[q.ID] = copyQuotation(q)
	return copyQuotation(q), nil
}

func (r *QuotationRepo) GetQuotation(_ context.Context, id string) (model.Quotation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.quotations[id]
	if !ok {
		return model.Quotation{}, model.ErrNotFound
	}
	return copyQuotation(q), nil
}

func (r *QuotationRepo) ListQuotations(_ context.Context) ([]model.Quotation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Quotation, 0, len(r.quotations))
	for _, q := range r.quotations {
		out = append(out, copyQuotation(q))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func copyQuotation(q model.Quotation) model.Quotation {
	q.Items = append([]model.QuotationItem(nil), q.Items...)
	return q
}
