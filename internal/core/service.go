package core

import (
	"book-inventory/internal/core/isbn"
	"book-inventory/internal/core/model"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CatalogRepository is the external store boundary. Persistence itself is a
// remote concern; the engine only ever talks through these calls.
type CatalogRepository interface {
	CreateBook(ctx context.Context, b model.Book) (model.Book, error)
	UpdateBook(ctx context.Context, b model.Book) (model.Book, error)
	GetBookByID(ctx context.Context, id string) (model.Book, error)
	GetBookByIdentifier(ctx context.Context, key string) (model.Book, error)
	ListBooks(ctx context.Context, q model.ListQuery) (model.Page[model.Book], error)

	PricingForBook(ctx context.Context, bookID string) ([]model.Pricing, error)
	GetPricingByID(ctx context.Context, id string) (model.Pricing, error)
	CreatePricing(ctx context.Context, p model.Pricing) (model.Pricing, error)
	UpdatePricing(ctx context.Context, p model.Pricing) (model.Pricing, error)

	EnsurePublisher(ctx context.Context, name string) (model.Publisher, error)
	GetPublisher(ctx context.Context, id string) (model.Publisher, error)
	BookSuggestions(ctx context.Context, q string, limit int) ([]model.Book, error)
	PublisherSuggestions(ctx context.Context, q string, limit int) ([]model.Publisher, error)
}

// Service is the catalog-side reconciliation engine: it classifies
// submissions against the store and executes exactly one mutation per
// resolution.
type Service struct {
	Repo CatalogRepository
}

func NewService(repo CatalogRepository) *Service {
	return &Service{Repo: repo}
}

// ValidateSubmission enforces the local invariants before any store
// contact: required fields, the one-identifier rule, pricing ranges.
// The returned submission carries the normalized ISBN.
func ValidateSubmission(in model.Submission) (model.Submission, error) {
	if strings.TrimSpace(in.Title) == "" {
		return in, fmt.Errorf("%w: title is required", model.ErrValidation)
	}
	if strings.TrimSpace(in.Author) == "" {
		return in, fmt.Errorf("%w: author is required", model.ErrValidation)
	}
	if strings.TrimSpace(in.BindingType) == "" {
		return in, fmt.Errorf("%w: binding_type is required", model.ErrValidation)
	}

	hasISBN := in.ISBN != nil && strings.TrimSpace(*in.ISBN) != ""
	hasOther := in.OtherCode != nil && strings.TrimSpace(*in.OtherCode) != ""
	switch {
	case hasISBN && hasOther:
		return in, fmt.Errorf("%w: isbn and other_code are mutually exclusive", model.ErrValidation)
	case hasISBN:
		if !isbn.Validate(*in.ISBN) {
			return in, fmt.Errorf("%w: invalid isbn checksum", model.ErrValidation)
		}
		norm := isbn.Normalize(*in.ISBN)
		in.ISBN = &norm
		in.OtherCode = nil
	case hasOther:
		code := strings.TrimSpace(*in.OtherCode)
		in.OtherCode = &code
		in.ISBN = nil
	default:
		return in, fmt.Errorf("%w: either isbn or other_code is required", model.ErrValidation)
	}

	if strings.TrimSpace(in.PricingSource) == "" {
		return in, fmt.Errorf("%w: pricing source is required", model.ErrValidation)
	}
	if in.Rate < 0 {
		return in, fmt.Errorf("%w: rate must be >= 0", model.ErrValidation)
	}
	if in.DiscountPercent < 0 || in.DiscountPercent > 100 {
		return in, fmt.Errorf("%w: discount percent must be within 0-100", model.ErrValidation)
	}
	if strings.TrimSpace(in.Currency) == "" {
		return in, fmt.Errorf("%w: currency is required", model.ErrValidation)
	}
	return in, nil
}

func submissionIdentifier(in model.Submission) string {
	if in.ISBN != nil {
		return *in.ISBN
	}
	if in.OtherCode != nil {
		return *in.OtherCode
	}
	return ""
}

// fold normalizes a value for comparison only; stored values keep the
// submitted casing.
func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func strPtrVal(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// Classify decides how a submission relates to the catalog. The result is
// transient and meant to be consumed by exactly one Resolve call.
func (s *Service) Classify(ctx context.Context, in model.Submission) (model.ReconciliationResult, error) {
	in, err := ValidateSubmission(in)
	if err != nil {
		return model.ReconciliationResult{}, err
	}

	existing, err := s.Repo.GetBookByIdentifier(ctx, submissionIdentifier(in))
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.ReconciliationResult{
				BookStatus: model.StatusNew,
				Message:    "no existing book shares this identifier",
			}, nil
		}
		return model.ReconciliationResult{}, fmt.Errorf("%w: identifier lookup: %v", model.ErrUpstream, err)
	}

	conflicts := diffBookFields(existing, in)
	if len(conflicts) > 0 {
		status := model.StatusConflict
		msg := "identifier matches an existing book with different metadata"
		if _, ok := conflicts["author"]; ok {
			// author mismatch is its own state, mutually exclusive with
			// the generic conflict
			status = model.StatusAuthorConflict
			msg = "identifier matches an existing book with a different author"
		}
		return model.ReconciliationResult{
			BookStatus:     status,
			Message:        msg,
			ConflictFields: conflicts,
			BookID:         &existing.ID,
		}, nil
	}

	rows, err := s.Repo.PricingForBook(ctx, existing.ID)
	if err != nil {
		return model.ReconciliationResult{}, fmt.Errorf("%w: pricing lookup: %v", model.ErrUpstream, err)
	}
	return duplicateResult(existing, rows, in), nil
}

func diffBookFields(old model.Book, in model.Submission) map[string]model.FieldDiff {
	diffs := make(map[string]model.FieldDiff)
	add := func(field, oldVal, newVal string) {
		if fold(oldVal) != fold(newVal) {
			diffs[field] = model.FieldDiff{Field: field, Old: oldVal, New: newVal}
		}
	}
	add("title", old.Title, in.Title)
	add("author", old.Author, in.Author)
	add("edition", strPtrVal(old.Edition), strPtrVal(in.Edition))
	add("binding_type", old.BindingType, in.BindingType)
	add("classification", old.Classification, in.Classification)
	return diffs
}

func duplicateResult(existing model.Book, rows []model.Pricing, in model.Submission) model.ReconciliationResult {
	res := model.ReconciliationResult{
		BookStatus: model.StatusDuplicate,
		BookID:     &existing.ID,
	}

	var matched *model.Pricing
	for i := range rows {
		if fold(rows[i].Source) == fold(in.PricingSource) {
			matched = &rows[i]
			break
		}
	}
	if matched == nil {
		ps := model.PricingAddPrice
		res.PricingStatus = &ps
		res.Message = "duplicate book; pricing source not yet recorded"
		return res
	}

	var diffs []model.FieldDiff
	if matched.Rate != in.Rate {
		diffs = append(diffs, model.FieldDiff{Field: "rate",
			Old: fmt.Sprintf("%g", matched.Rate), New: fmt.Sprintf("%g", in.Rate)})
	}
	if matched.DiscountPercent != in.DiscountPercent {
		diffs = append(diffs, model.FieldDiff{Field: "discount_percent",
			Old: fmt.Sprintf("%g", matched.DiscountPercent), New: fmt.Sprintf("%g", in.DiscountPercent)})
	}
	if fold(matched.Currency) != fold(in.Currency) {
		diffs = append(diffs, model.FieldDiff{Field: "currency", Old: matched.Currency, New: in.Currency})
	}

	res.PricingID = &matched.ID
	if len(diffs) > 0 {
		ps := model.PricingUpdatePrice
		res.PricingStatus = &ps
		res.Differences = diffs
		res.Message = "duplicate book; pricing for this source differs"
	} else {
		ps := model.PricingNoChange
		res.PricingStatus = &ps
		res.Message = "duplicate book; identical pricing already recorded"
	}
	return res
}

// AllowedActions returns the resolution actions valid for a classification.
// The switch is exhaustive over the modeled protocol; anything outside it
// gets no actions.
func AllowedActions(status model.BookStatus, pricing *model.PricingStatus) []model.ResolutionAction {
	switch status {
	case model.StatusNew:
		return []model.ResolutionAction{model.ActionInsert}
	case model.StatusConflict, model.StatusAuthorConflict:
		return []model.ResolutionAction{model.ActionKeepNew, model.ActionKeepOld, model.ActionKeepBoth}
	case model.StatusDuplicate:
		if pricing == nil {
			return nil
		}
		switch *pricing {
		case model.PricingAddPrice:
			return []model.ResolutionAction{model.ActionAddPrice}
		case model.PricingUpdatePrice:
			return []model.ResolutionAction{model.ActionUpdatePrice, model.ActionIgnore}
		case model.PricingNoChange:
			return nil // terminal, nothing to mutate
		}
	}
	return nil
}

func actionAllowed(req model.ResolveRequest) bool {
	for _, a := range AllowedActions(req.Status, req.Pricing) {
		if a == req.Action {
			return true
		}
	}
	return false
}

// Resolve executes the user-chosen action. At most one mutating store call
// is issued; KEEP_OLD and IGNORE touch nothing. Stale context (the matched
// book or pricing row no longer in the state the classification saw) is
// rejected with ErrStaleResolution.
func (s *Service) Resolve(ctx context.Context, req model.ResolveRequest) (model.ResolveOutcome, error) {
	if !model.ValidBookStatus(req.Status) {
		return model.ResolveOutcome{}, fmt.Errorf("%w: unknown book status %q", model.ErrValidation, req.Status)
	}
	if !actionAllowed(req) {
		return model.ResolveOutcome{}, fmt.Errorf("%w: action %s not allowed for %s classification",
			model.ErrValidation, req.Action, req.Status)
	}
	in, err := ValidateSubmission(req.Submission)
	if err != nil {
		return model.ResolveOutcome{}, err
	}

	switch req.Action {
	case model.ActionInsert:
		if _, err := s.Repo.GetBookByIdentifier(ctx, submissionIdentifier(in)); err == nil {
			return model.ResolveOutcome{}, fmt.Errorf("%w: identifier was inserted concurrently", model.ErrStaleResolution)
		} else if !errors.Is(err, model.ErrNotFound) {
			return model.ResolveOutcome{}, fmt.Errorf("%w: %v", model.ErrUpstream, err)
		}
		return s.insertBook(ctx, in)

	case model.ActionKeepBoth:
		// new record next to the existing one; the existing book stays as is
		return s.insertBook(ctx, in)

	case model.ActionKeepNew:
		existing, err := s.matchedBook(ctx, req.BookID)
		if err != nil {
			return model.ResolveOutcome{}, err
		}
		existing.Title = in.Title
		existing.Author = in.Author
		existing.Year = in.Year
		existing.Edition = in.Edition
		existing.BindingType = in.BindingType
		existing.Classification = in.Classification
		existing.Remarks = in.Remarks
		existing.UpdatedAt = time.Now().UTC()
		updated, err := s.Repo.UpdateBook(ctx, existing)
		if err != nil {
			return model.ResolveOutcome{}, err
		}
		return model.ResolveOutcome{BookID: updated.ID, Mutated: true}, nil

	case model.ActionKeepOld, model.ActionIgnore:
		out := model.ResolveOutcome{Mutated: false}
		if req.BookID != nil {
			out.BookID = *req.BookID
		}
		return out, nil

	case model.ActionAddPrice:
		existing, err := s.matchedBook(ctx, req.BookID)
		if err != nil {
			return model.ResolveOutcome{}, err
		}
		rows, err := s.Repo.PricingForBook(ctx, existing.ID)
		if err != nil {
			return model.ResolveOutcome{}, fmt.Errorf("%w: %v", model.ErrUpstream, err)
		}
		for _, row := range rows {
			if fold(row.Source) == fold(in.PricingSource) {
				// a row for this source appeared after classification;
				// a second insert would duplicate it
				return model.ResolveOutcome{}, fmt.Errorf("%w: pricing source already recorded", model.ErrStaleResolution)
			}
		}
		created, err := s.Repo.CreatePricing(ctx, pricingFrom(in, existing.ID))
		if err != nil {
			return model.ResolveOutcome{}, err
		}
		return model.ResolveOutcome{BookID: existing.ID, PricingID: created.ID, Mutated: true}, nil

	case model.ActionUpdatePrice:
		if req.PricingID == nil {
			return model.ResolveOutcome{}, fmt.Errorf("%w: pricingId is required for UPDATE_PRICE", model.ErrValidation)
		}
		row, err := s.Repo.GetPricingByID(ctx, *req.PricingID)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return model.ResolveOutcome{}, fmt.Errorf("%w: matched pricing row no longer exists", model.ErrStaleResolution)
			}
			return model.ResolveOutcome{}, fmt.Errorf("%w: %v", model.ErrUpstream, err)
		}
		if req.BookID != nil && row.BookID != *req.BookID {
			return model.ResolveOutcome{}, fmt.Errorf("%w: pricing row moved to a different book", model.ErrStaleResolution)
		}
		row.Rate = in.Rate
		row.DiscountPercent = in.DiscountPercent
		row.Currency = in.Currency
		row.LastUpdated = time.Now().UTC()
		updated, err := s.Repo.UpdatePricing(ctx, row)
		if err != nil {
			return model.ResolveOutcome{}, err
		}
		return model.ResolveOutcome{BookID: row.BookID, PricingID: updated.ID, Mutated: true}, nil
	}

	return model.ResolveOutcome{}, fmt.Errorf("%w: unknown action %q", model.ErrValidation, req.Action)
}

func (s *Service) matchedBook(ctx context.Context, bookID *string) (model.Book, error) {
	if bookID == nil || *bookID == "" {
		return model.Book{}, fmt.Errorf("%w: bookId is required for this action", model.ErrValidation)
	}
	b, err := s.Repo.GetBookByID(ctx, *bookID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Book{}, fmt.Errorf("%w: matched book no longer exists", model.ErrStaleResolution)
		}
		return model.Book{}, fmt.Errorf("%w: %v", model.ErrUpstream, err)
	}
	return b, nil
}

func (s *Service) insertBook(ctx context.Context, in model.Submission) (model.ResolveOutcome, error) {
	pub, err := s.Repo.EnsurePublisher(ctx, in.PublisherName)
	if err != nil {
		return model.ResolveOutcome{}, err
	}
	now := time.Now().UTC()
	b := model.Book{
		ID:             uuid.NewString(),
		Title:          in.Title,
		Author:         in.Author,
		Year:           in.Year,
		ISBN:           in.ISBN,
		OtherCode:      in.OtherCode,
		Edition:        in.Edition,
		BindingType:    in.BindingType,
		Classification: in.Classification,
		Remarks:        in.Remarks,
		PublisherID:    pub.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	created, err := s.Repo.CreateBook(ctx, b)
	if err != nil {
		return model.ResolveOutcome{}, err
	}
	price, err := s.Repo.CreatePricing(ctx, pricingFrom(in, created.ID))
	if err != nil {
		return model.ResolveOutcome{}, err
	}
	return model.ResolveOutcome{BookID: created.ID, PricingID: price.ID, Mutated: true}, nil
}

func pricingFrom(in model.Submission, bookID string) model.Pricing {
	return model.Pricing{
		ID:              uuid.NewString(),
		BookID:          bookID,
		Source:          strings.TrimSpace(in.PricingSource),
		Rate:            in.Rate,
		DiscountPercent: in.DiscountPercent,
		Currency:        in.Currency,
		LastUpdated:     time.Now().UTC(),
	}
}

// UpdateBook is the direct edit path (PUT /api/books/:id): replace the
// book's metadata and upsert the submitted pricing row by source.
func (s *Service) UpdateBook(ctx context.Context, id string, in model.Submission) (model.Book, error) {
	in, err := ValidateSubmission(in)
	if err != nil {
		return model.Book{}, err
	}
	b, err := s.Repo.GetBookByID(ctx, id)
	if err != nil {
		return model.Book{}, err
	}
	b.Title = in.Title
	b.Author = in.Author
	b.Year = in.Year
	b.Edition = in.Edition
	b.BindingType = in.BindingType
	b.Classification = in.Classification
	b.Remarks = in.Remarks
	b.UpdatedAt = time.Now().UTC()
	updated, err := s.Repo.UpdateBook(ctx, b)
	if err != nil {
		return model.Book{}, err
	}

	rows, err := s.Repo.PricingForBook(ctx, id)
	if err != nil {
		return model.Book{}, err
	}
	for _, row := range rows {
		if fold(row.Source) == fold(in.PricingSource) {
			row.Rate = in.Rate
			row.DiscountPercent = in.DiscountPercent
			row.Currency = in.Currency
			row.LastUpdated = time.Now().UTC()
			if _, err := s.Repo.UpdatePricing(ctx, row); err != nil {
				return model.Book{}, err
			}
			return updated, nil
		}
	}
	if _, err := s.Repo.CreatePricing(ctx, pricingFrom(in, id)); err != nil {
		return model.Book{}, err
	}
	return updated, nil
}

// BookPricing returns a book with all its pricing rows plus aggregates.
func (s *Service) BookPricing(ctx context.Context, bookID string) (model.Book, []model.Pricing, model.PricingStats, error) {
	b, err := s.Repo.GetBookByID(ctx, bookID)
	if err != nil {
		return model.Book{}, nil, model.PricingStats{}, err
	}
	rows, err := s.Repo.PricingForBook(ctx, bookID)
	if err != nil {
		return model.Book{}, nil, model.PricingStats{}, err
	}
	return b, rows, ComputePricingStats(rows), nil
}

// ComputePricingStats aggregates count, average/min/max rate and average
// discount over a book's pricing rows.
func ComputePricingStats(rows []model.Pricing) model.PricingStats {
	if len(rows) == 0 {
		return model.PricingStats{}
	}
	stats := model.PricingStats{
		Count:   len(rows),
		MinRate: rows[0].Rate,
		MaxRate: rows[0].Rate,
	}
	var rateSum, discSum float64
	for _, r := range rows {
		rateSum += r.Rate
		discSum += r.DiscountPercent
		if r.Rate < stats.MinRate {
			stats.MinRate = r.Rate
		}
		if r.Rate > stats.MaxRate {
			stats.MaxRate = r.Rate
		}
	}
	stats.AverageRate = rateSum / float64(len(rows))
	stats.AverageDiscount = discSum / float64(len(rows))
	return stats
}

func (s *Service) ListBooks(ctx context.Context, q model.ListQuery) (model.Page[model.Book], error) {
	return s.Repo.ListBooks(ctx, q)
}

func (s *Service) GetBook(ctx context.Context, id string) (model.Book, error) {
	return s.Repo.GetBookByID(ctx, id)
}

const suggestionLimit = 10

func (s *Service) BookSuggestions(ctx context.Context, q string) ([]model.Book, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, nil
	}
	return s.Repo.BookSuggestions(ctx, q, suggestionLimit)
}

func (s *Service) PublisherSuggestions(ctx context.Context, q string) ([]model.Publisher, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, nil
	}
	return s.Repo.PublisherSuggestions(ctx, q, suggestionLimit)
}
