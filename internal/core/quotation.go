package core

import (
	"book-inventory/internal/core/model"
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaxRate is the fixed tax applied after the general discount.
const TaxRate = 0.05

// QuotationRepository is the store boundary for quotations.
type QuotationRepository interface {
	CreateQuotation(ctx context.Context, q model.Quotation) (model.Quotation, error)
	UpdateQuotation(ctx context.Context, q model.Quotation) (model.Quotation, error)
	GetQuotation(ctx context.Context, id string) (model.Quotation, error)
	ListQuotations(ctx context.Context) ([]model.Quotation, error)
}

// LineInput is one selected book with its per-item knobs, before coercion.
type LineInput struct {
	BookID          string
	Title           string
	CatalogPrice    float64
	CustomPrice     *float64 // overrides CatalogPrice when set
	Quantity        int
	DiscountPercent float64
}

// QuotationSummary holds every derived total for one computation pass.
type QuotationSummary struct {
	Items                 []model.QuotationItem
	Subtotal              float64
	DiscountAmount        float64 // general discount only
	SubtotalAfterDiscount float64
	Tax                   float64
	GrandTotal            float64
	// TotalDiscount = item discounts against gross price + DiscountAmount.
	// Reporting-only; never an input to GrandTotal.
	TotalDiscount float64
}

// coerceQuantity and coerceDiscount mirror the form input handling:
// quantity snaps to a positive integer, discount to >= 0 (not capped
// upward here; range capping happens at submission validation).
func coerceQuantity(q int) int {
	if q < 1 {
		return 1
	}
	return q
}

func coerceDiscount(d float64) float64 {
	if d < 0 {
		return 0
	}
	return d
}

// ComputeSummary is the pure pricing function. Per item the effective
// price is the (possibly overridden) unit price net of the item discount;
// the general discount applies on the aggregate, then the fixed tax.
func ComputeSummary(lines []LineInput, generalDiscountPercent float64) QuotationSummary {
	generalDiscountPercent = coerceDiscount(generalDiscountPercent)

	items := make([]model.QuotationItem, 0, len(lines))
	var subtotal, itemDiscountTotal float64
	for _, ln := range lines {
		qty := coerceQuantity(ln.Quantity)
		disc := coerceDiscount(ln.DiscountPercent)
		unit := ln.CatalogPrice
		if ln.CustomPrice != nil {
			unit = *ln.CustomPrice
		}
		effective := unit * (1 - disc/100)
		lineTotal := effective * float64(qty)

		subtotal += lineTotal
		itemDiscountTotal += unit * float64(qty) * disc / 100

		items = append(items, model.QuotationItem{
			BookID:          ln.BookID,
			Title:           ln.Title,
			Quantity:        qty,
			UnitPrice:       unit,
			DiscountPercent: disc,
			TotalPrice:      lineTotal,
		})
	}

	discountAmount := subtotal * generalDiscountPercent / 100
	afterDiscount := subtotal - discountAmount
	tax := afterDiscount * TaxRate

	return QuotationSummary{
		Items:                 items,
		Subtotal:              subtotal,
		DiscountAmount:        discountAmount,
		SubtotalAfterDiscount: afterDiscount,
		Tax:                   tax,
		GrandTotal:            afterDiscount + tax,
		TotalDiscount:         itemDiscountTotal + discountAmount,
	}
}

// Round2 rounds a monetary amount to 2 decimals for persistence.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// QuotationService drives the create/edit flows. Every save recomputes all
// derived totals from the current item state; there is no incremental path.
type QuotationService struct {
	Repo    QuotationRepository
	Catalog CatalogRepository
}

func NewQuotationService(repo QuotationRepository, catalog CatalogRepository) *QuotationService {
	return &QuotationService{Repo: repo, Catalog: catalog}
}

// QuotationInput is a create or edit payload before totals are derived.
type QuotationInput struct {
	Customer               string
	Lines                  []LineInput
	GeneralDiscountPercent float64
	Status                 model.QuotationStatus
	ValidUntil             time.Time
	Currency               string
}

func validateQuotationInput(in QuotationInput) error {
	if strings.TrimSpace(in.Customer) == "" {
		return fmt.Errorf("%w: customer is required", model.ErrValidation)
	}
	if len(in.Lines) == 0 {
		return fmt.Errorf("%w: a quotation needs at least one item", model.ErrValidation)
	}
	if in.Status != "" && !model.ValidQuotationStatus(in.Status) {
		return fmt.Errorf("%w: unknown quotation status %q", model.ErrValidation, in.Status)
	}
	for _, ln := range in.Lines {
		if ln.BookID == "" {
			return fmt.Errorf("%w: item without book reference", model.ErrValidation)
		}
		if ln.CustomPrice != nil && *ln.CustomPrice < 0 {
			return fmt.Errorf("%w: unit price must be >= 0", model.ErrValidation)
		}
		if ln.DiscountPercent > 100 {
			return fmt.Errorf("%w: item discount percent must be <= 100", model.ErrValidation)
		}
	}
	return nil
}

func applySummary(q *model.Quotation, sum QuotationSummary) {
	q.Items = sum.Items
	for i := range q.Items {
		q.Items[i].TotalPrice = Round2(q.Items[i].TotalPrice)
	}
	q.SubTotal = Round2(sum.Subtotal)
	q.TotalDiscount = Round2(sum.TotalDiscount)
	q.GrandTotal = Round2(sum.GrandTotal)
}

// Create builds a quotation from a previewed selection. Status defaults to
// Draft on first save.
func (s *QuotationService) Create(ctx context.Context, in QuotationInput) (model.Quotation, error) {
	if err := validateQuotationInput(in); err != nil {
		return model.Quotation{}, err
	}
	status := in.Status
	if status == "" {
		status = model.QuotationDraft
	}
	now := time.Now().UTC()
	q := model.Quotation{
		ID:                     uuid.NewString(),
		Customer:               in.Customer,
		GeneralDiscountPercent: coerceDiscount(in.GeneralDiscountPercent),
		Currency:               in.Currency,
		Status:                 status,
		ValidUntil:             in.ValidUntil,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	applySummary(&q, ComputeSummary(in.Lines, in.GeneralDiscountPercent))
	return s.Repo.CreateQuotation(ctx, q)
}

// Update replaces the quotation's items and re-derives every total.
func (s *QuotationService) Update(ctx context.Context, id string, in QuotationInput) (model.Quotation, error) {
	if err := validateQuotationInput(in); err != nil {
		return model.Quotation{}, err
	}
	q, err := s.Repo.GetQuotation(ctx, id)
	if err != nil {
		return model.Quotation{}, err
	}
	q.Customer = in.Customer
	q.GeneralDiscountPercent = coerceDiscount(in.GeneralDiscountPercent)
	q.Currency = in.Currency
	if in.Status != "" {
		// any label may follow any other; no transition order is enforced
		q.Status = in.Status
	}
	if !in.ValidUntil.IsZero() {
		q.ValidUntil = in.ValidUntil
	}
	q.UpdatedAt = time.Now().UTC()
	applySummary(&q, ComputeSummary(in.Lines, in.GeneralDiscountPercent))
	return s.Repo.UpdateQuotation(ctx, q)
}

func (s *QuotationService) Get(ctx context.Context, id string) (model.Quotation, error) {
	return s.Repo.GetQuotation(ctx, id)
}

func (s *QuotationService) List(ctx context.Context) ([]model.Quotation, error) {
	return s.Repo.ListQuotations(ctx)
}

// Preview resolves the selected book ids into rows for the quotation
// builder, each with the lowest price payable across its pricing sources.
func (s *QuotationService) Preview(ctx context.Context, bookIDs []string) ([]model.PreviewRow, error) {
	rows := make([]model.PreviewRow, 0, len(bookIDs))
	for _, id := range bookIDs {
		b, err := s.Catalog.GetBookByID(ctx, id)
		if err != nil {
			return nil, err
		}
		pub, err := s.Catalog.GetPublisher(ctx, b.PublisherID)
		if err != nil {
			return nil, err
		}
		pricing, err := s.Catalog.PricingForBook(ctx, id)
		if err != nil {
			return nil, err
		}

		row := model.PreviewRow{
			BookID:        b.ID,
			Title:         b.Title,
			PublisherName: pub.Name,
		}
		if b.ISBN != nil {
			row.ISBN = *b.ISBN
		}
		for i, p := range pricing {
			net := p.Rate * (1 - p.DiscountPercent/100)
			if i == 0 || net < row.LowestPrice {
				row.LowestPrice = net
				row.Currency = p.Currency
			}
		}
		row.LowestPrice = Round2(row.LowestPrice)
		rows = append(rows, row)
	}
	return rows, nil
}
