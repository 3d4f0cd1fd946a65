// Package api holds the wire types shared by the HTTP handlers and the
// consuming client.
package api

import (
	openapi_types "github.com/oapi-codegen/runtime/types"
)

type BookData struct {
	Title          string  `json:"title"`
	Author         string  `json:"author"`
	Year           *int    `json:"year,omitempty"`
	ISBN           *string `json:"isbn,omitempty"`
	OtherCode      *string `json:"other_code,omitempty"`
	Edition        *string `json:"edition,omitempty"`
	BindingType    string  `json:"binding_type"`
	Classification string  `json:"classification"`
	Remarks        *string `json:"remarks,omitempty"`
}

type PricingData struct {
	Source          string  `json:"source"`
	Rate            float64 `json:"rate"`
	DiscountPercent float64 `json:"discount_percent"`
	Currency        string  `json:"currency"`
}

type PublisherData struct {
	Name string `json:"name"`
}

// CheckDuplicateRequest is the body of POST /api/books/check-duplicate.
type CheckDuplicateRequest struct {
	BookData      BookData      `json:"bookData"`
	PricingData   PricingData   `json:"pricingData"`
	PublisherData PublisherData `json:"publisherData"`
}

type FieldDiff struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// ReconciliationResult is returned with 200 for NEW/DUPLICATE and 409 for
// the conflict classifications; the 409 carries the same shape.
type ReconciliationResult struct {
	BookStatus     string               `json:"bookStatus"`
	PricingStatus  *string              `json:"pricingStatus,omitempty"`
	Message        string               `json:"message"`
	ConflictFields map[string]FieldDiff `json:"conflictFields,omitempty"`
	Differences    []FieldDiff          `json:"differences,omitempty"`
	BookID         *string              `json:"bookId,omitempty"`
	PricingID      *string              `json:"pricingId,omitempty"`
}

// ResolveRequest is the body of POST /api/books: the submission plus the
// classification context it was derived from.
type ResolveRequest struct {
	BookData      BookData      `json:"bookData"`
	PricingData   PricingData   `json:"pricingData"`
	PublisherData PublisherData `json:"publisherData"`
	Status        string        `json:"status"`
	PricingAction string        `json:"pricingAction"`
	BookID        *string       `json:"bookId,omitempty"`
	PricingID     *string       `json:"pricingId,omitempty"`
}

type ResolveResponse struct {
	BookID    string `json:"bookId,omitempty"`
	PricingID string `json:"pricingId,omitempty"`
	Mutated   bool   `json:"mutated"`
}

// UpdateBookRequest is the body of PUT /api/books/:id (direct edit).
type UpdateBookRequest struct {
	BookData    BookData    `json:"bookData"`
	PricingData PricingData `json:"pricingData"`
}

type Book struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Author         string  `json:"author"`
	Year           *int    `json:"year,omitempty"`
	ISBN           *string `json:"isbn,omitempty"`
	OtherCode      *string `json:"other_code,omitempty"`
	Edition        *string `json:"edition,omitempty"`
	BindingType    string  `json:"binding_type"`
	Classification string  `json:"classification"`
	Remarks        *string `json:"remarks,omitempty"`
	PublisherID    string  `json:"publisher_id"`
}

type Pricing struct {
	ID              string  `json:"id"`
	BookID          string  `json:"book_id"`
	Source          string  `json:"source"`
	Rate            float64 `json:"rate"`
	DiscountPercent float64 `json:"discount_percent"`
	Currency        string  `json:"currency"`
	LastUpdated     string  `json:"last_updated"`
}

type PricingStats struct {
	Count           int     `json:"count"`
	AverageRate     float64 `json:"average_rate"`
	MinRate         float64 `json:"min_rate"`
	MaxRate         float64 `json:"max_rate"`
	AverageDiscount float64 `json:"average_discount"`
}

// BookPricingResponse is the body of GET /api/books/:id/pricing.
type BookPricingResponse struct {
	Book    Book         `json:"book"`
	Pricing []Pricing    `json:"pricing"`
	Stats   PricingStats `json:"stats"`
}

type PaginatedBooks struct {
	Data     []Book `json:"data"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	Total    int    `json:"total"`
}

type BookSuggestion struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	ISBN  *string `json:"isbn,omitempty"`
}

type PublisherSuggestion struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PreviewRow is one row of GET /api/quotations/preview.
type PreviewRow struct {
	BookID        string  `json:"bookId"`
	Title         string  `json:"title"`
	ISBN          string  `json:"isbn"`
	PublisherName string  `json:"publisher_name"`
	LowestPrice   float64 `json:"lowestPrice"`
	Currency      string  `json:"currency"`
}

type QuotationItem struct {
	Book       string   `json:"book"`
	Title      string   `json:"title,omitempty"`
	Quantity   int      `json:"quantity"`
	UnitPrice  *float64 `json:"unitPrice,omitempty"`
	Discount   float64  `json:"discount"`
	TotalPrice float64  `json:"totalPrice,omitempty"`
}

// QuotationRequest is the body of POST/PUT /api/quotations.
type QuotationRequest struct {
	Customer        string             `json:"customer"`
	Items           []QuotationItem    `json:"items"`
	GeneralDiscount float64            `json:"generalDiscount"`
	Status          string             `json:"status,omitempty"`
	ValidUntil      openapi_types.Date `json:"validUntil"`
	Currency        string             `json:"currency,omitempty"`
}

type Quotation struct {
	ID              string             `json:"id"`
	Customer        string             `json:"customer"`
	Items           []QuotationItem    `json:"items"`
	GeneralDiscount float64            `json:"generalDiscount"`
	SubTotal        float64            `json:"subTotal"`
	TotalDiscount   float64            `json:"totalDiscount"`
	GrandTotal      float64            `json:"grandTotal"`
	Currency        string             `json:"currency,omitempty"`
	Status          string             `json:"status"`
	ValidUntil      openapi_types.Date `json:"validUntil"`
}
