package model

import (
	"errors"
	"time"
)

// All core models live here together for simplicity.

// BookStatus is the terminal outcome of one classification call.
type BookStatus string

const (
	StatusNew            BookStatus = "NEW"
	StatusDuplicate      BookStatus = "DUPLICATE"
	StatusConflict       BookStatus = "CONFLICT"
	StatusAuthorConflict BookStatus = "AUTHOR_CONFLICT"
)

// PricingStatus is the secondary decision attached to a DUPLICATE outcome.
type PricingStatus string

const (
	PricingAddPrice    PricingStatus = "ADD_PRICE"
	PricingUpdatePrice PricingStatus = "UPDATE_PRICE"
	PricingNoChange    PricingStatus = "NO_CHANGE"
)

// ResolutionAction is the user-chosen mutation applied after classification.
type ResolutionAction string

const (
	ActionInsert      ResolutionAction = "INSERT"
	ActionKeepNew     ResolutionAction = "KEEP_NEW"
	ActionKeepOld     ResolutionAction = "KEEP_OLD"
	ActionKeepBoth    ResolutionAction = "KEEP_BOTH"
	ActionAddPrice    ResolutionAction = "ADD_PRICE"
	ActionUpdatePrice ResolutionAction = "UPDATE_PRICE"
	ActionIgnore      ResolutionAction = "IGNORE"
)

// QuotationStatus labels a quotation. No transition order is enforced; the
// edit flow may set any label.
type QuotationStatus string

const (
	QuotationDraft    QuotationStatus = "Draft"
	QuotationSent     QuotationStatus = "Sent"
	QuotationAccepted QuotationStatus = "Accepted"
	QuotationRejected QuotationStatus = "Rejected"
)

var (
	ErrValidation      = errors.New("validation")
	ErrConflict        = errors.New("conflict")
	ErrNotFound        = errors.New("not_found")
	ErrUpstream        = errors.New("upstream")
	ErrStaleResolution = errors.New("stale_resolution")
)

// Book carries exactly one identifier: ISBN when it validates, otherwise a
// free-form OtherCode. Both set at once is a validation error upstream.
type Book struct {
	ID             string
	Title          string
	Author         string
	Year           *int
	ISBN           *string // normalized form
	OtherCode      *string
	Edition        *string
	BindingType    string
	Classification string
	Remarks        *string
	PublisherID    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Identifier returns the normalized lookup key for the book.
func (b Book) Identifier() string {
	if b.ISBN != nil && *b.ISBN != "" {
		return *b.ISBN
	}
	if b.OtherCode != nil {
		return *b.OtherCode
	}
	return ""
}

// Pricing is one source's price for a book. A book holds at most one row
// per distinct source.
type Pricing struct {
	ID              string
	BookID          string
	Source          string
	Rate            float64
	DiscountPercent float64
	Currency        string
	LastUpdated     time.Time
}

type Publisher struct {
	ID   string
	Name string
}

// FieldDiff is one field-level difference between a submission and the
// matched catalog state.
type FieldDiff struct {
	Field string
	Old   string
	New   string
}

// ReconciliationResult is transient: produced by one classification call,
// consumed by at most one resolution, then discarded.
type ReconciliationResult struct {
	BookStatus     BookStatus
	PricingStatus  *PricingStatus
	Message        string
	ConflictFields map[string]FieldDiff // populated for CONFLICT / AUTHOR_CONFLICT
	Differences    []FieldDiff          // populated for UPDATE_PRICE
	BookID         *string
	PricingID      *string
}

// Submission is the candidate book + pricing as entered, before any
// catalog contact.
type Submission struct {
	Title          string
	Author         string
	Year           *int
	ISBN           *string // raw, normalized during validation
	OtherCode      *string
	Edition        *string
	BindingType    string
	Classification string
	Remarks        *string
	PublisherName  string

	PricingSource   string
	Rate            float64
	DiscountPercent float64
	Currency        string
}

// ResolveRequest carries the user-chosen action plus the classification
// context it was derived from, so stale decisions can be rejected.
type ResolveRequest struct {
	Submission Submission
	Status     BookStatus
	Pricing    *PricingStatus
	Action     ResolutionAction
	BookID     *string
	PricingID  *string
}

// ResolveOutcome reports what a resolution actually touched.
type ResolveOutcome struct {
	BookID    string
	PricingID string
	Mutated   bool
}

// PricingStats are the aggregates reported alongside a book's pricing rows.
type PricingStats struct {
	Count           int
	AverageRate     float64
	MinRate         float64
	MaxRate         float64
	AverageDiscount float64
}

// QuotationItem is one line of a quotation. UnitPrice may be a user
// override and need not equal the catalog price.
type QuotationItem struct {
	BookID          string
	Title           string
	Quantity        int
	UnitPrice       float64
	DiscountPercent float64
	TotalPrice      float64
}

// Quotation holds derived totals recomputed from Items on every save.
//
// TotalDiscount sums each item's discount against its gross price plus the
// general discount amount; SubTotal is already net of item discounts, so
// TotalDiscount is reporting-only and GrandTotal is never reconstructed
// from it.
type Quotation struct {
	ID                     string
	Customer               string
	Items                  []QuotationItem
	GeneralDiscountPercent float64
	SubTotal               float64
	TotalDiscount          float64
	GrandTotal             float64
	Currency               string
	Status                 QuotationStatus
	ValidUntil             time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// PreviewRow is one selectable book as shown in the quotation builder.
type PreviewRow struct {
	BookID        string
	Title         string
	ISBN          string
	PublisherName string
	LowestPrice   float64
	Currency      string
}

// Page is a generic paginated result.
type Page[T any] struct {
	Data     []T
	Page     int
	PageSize int
	Total    int
}

// ListQuery filters the catalog listing.
type ListQuery struct {
	Q        *string // contains, case-insensitive, over title
	Author   *string // contains, case-insensitive
	Year     *int
	Page     int
	PageSize int
}

// ValidBookStatus reports whether s is one of the four modeled outcomes.
func ValidBookStatus(s BookStatus) bool {
	switch s {
	case StatusNew, StatusDuplicate, StatusConflict, StatusAuthorConflict:
		return true
	}
	return false
}

// ValidQuotationStatus reports whether s is one of the four labels.
func ValidQuotationStatus(s QuotationStatus) bool {
	switch s {
	case QuotationDraft, QuotationSent, QuotationAccepted, QuotationRejected:
		return true
	}
	return false
}
