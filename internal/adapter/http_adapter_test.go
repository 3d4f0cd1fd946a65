//go:build unit

package adapter

import (
	"book-inventory/api"
	"book-inventory/internal/core"
	"book-inventory/internal/core/model"
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// test wiring: handler + real in-memory services (no network)
func newServer(t *testing.T) http.Handler {
	t.Helper()
	catalog := NewCatalogRepo()
	svc := core.NewService(catalog)
	qsvc := core.NewQuotationService(NewQuotationRepo(), catalog)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHTTPHandler(svc, qsvc, logger).Routes()
}

func apiSubmission() api.CheckDuplicateRequest {
	isbn := "9780743273565"
	return api.CheckDuplicateRequest{
		BookData: api.BookData{
			Title:          "The Go Programming Language",
			Author:         "Alan Donovan",
			ISBN:           &isbn,
			BindingType:    "Hardcover",
			Classification: "Programming",
		},
		PricingData:   api.PricingData{Source: "ingram", Rate: 45.50, Currency: "USD"},
		PublisherData: api.PublisherData{Name: "Addison-Wesley"},
	}
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

// insertBook drives the full resolution flow and returns the created id.
func insertBook(t *testing.T, h http.Handler) string {
	t.Helper()
	check := apiSubmission()
	rec := doJSON(t, h, http.MethodPost, "/api/books", api.ResolveRequest{
		BookData:      check.BookData,
		PricingData:   check.PricingData,
		PublisherData: check.PublisherData,
		Status:        string(model.StatusNew),
		PricingAction: string(model.ActionInsert),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	out := decode[api.ResolveResponse](t, rec)
	require.NotEmpty(t, out.BookID)
	return out.BookID
}

func TestCheckDuplicate_New(t *testing.T) {
	h := newServer(t)
	rec := doJSON(t, h, http.MethodPost, "/api/books/check-duplicate", apiSubmission())
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[api.ReconciliationResult](t, rec)
	assert.Equal(t, string(model.StatusNew), res.BookStatus)
	assert.Nil(t, res.PricingStatus)
}

func TestCheckDuplicate_DuplicateAfterInsert(t *testing.T) {
	h := newServer(t)
	id := insertBook(t, h)

	rec := doJSON(t, h, http.MethodPost, "/api/books/check-duplicate", apiSubmission())
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[api.ReconciliationResult](t, rec)
	assert.Equal(t, string(model.StatusDuplicate), res.BookStatus)
	require.NotNil(t, res.PricingStatus)
	assert.Equal(t, string(model.PricingNoChange), *res.PricingStatus)
	require.NotNil(t, res.BookID)
	assert.Equal(t, id, *res.BookID)
}

func TestCheckDuplicate_ConflictIs409WithResultBody(t *testing.T) {
	h := newServer(t)
	insertBook(t, h)

	conflicting := apiSubmission()
	conflicting.BookData.Title = "The Go Programming Language, 2nd"
	rec := doJSON(t, h, http.MethodPost, "/api/books/check-duplicate", conflicting)
	require.Equal(t, http.StatusConflict, rec.Code)
	res := decode[api.ReconciliationResult](t, rec)
	assert.Equal(t, string(model.StatusConflict), res.BookStatus)
	assert.Contains(t, res.ConflictFields, "title")
}

func TestCheckDuplicate_BadJSON(t *testing.T) {
	h := newServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/books/check-duplicate", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var e httpError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	assert.Equal(t, "BAD_JSON", e.Error.Code)
}

func TestResolve_ActionOutsideClassificationIsRejected(t *testing.T) {
	h := newServer(t)
	check := apiSubmission()
	rec := doJSON(t, h, http.MethodPost, "/api/books", api.ResolveRequest{
		BookData:      check.BookData,
		PricingData:   check.PricingData,
		PublisherData: check.PublisherData,
		Status:        string(model.StatusNew),
		PricingAction: string(model.ActionKeepOld),
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var e httpError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	assert.Equal(t, "VALIDATION", e.Error.Code)
}

func TestResolve_AddPriceTwiceConflicts(t *testing.T) {
	h := newServer(t)
	id := insertBook(t, h)

	second := apiSubmission()
	second.PricingData = api.PricingData{Source: "baker-taylor", Rate: 30, DiscountPercent: 10, Currency: "USD"}
	body := api.ResolveRequest{
		BookData:      second.BookData,
		PricingData:   second.PricingData,
		PublisherData: second.PublisherData,
		Status:        string(model.StatusDuplicate),
		PricingAction: string(model.ActionAddPrice),
		BookID:        &id,
	}
	rec := doJSON(t, h, http.MethodPost, "/api/books", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// replaying the same resolution must not create a third row
	rec = doJSON(t, h, http.MethodPost, "/api/books", body)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestUpdateBook(t *testing.T) {
	h := newServer(t)
	id := insertBook(t, h)

	before := decode[api.BookPricingResponse](t, doJSON(t, h, http.MethodGet, "/api/books/"+id+"/pricing", nil))
	require.NotEmpty(t, before.Book.PublisherID)

	// the edit payload carries no publisher
	check := apiSubmission()
	check.BookData.Title = "The Go Programming Language, 2nd"
	rec := doJSON(t, h, http.MethodPut, "/api/books/"+id, api.UpdateBookRequest{
		BookData:    check.BookData,
		PricingData: check.PricingData,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	b := decode[api.Book](t, rec)
	assert.Equal(t, "The Go Programming Language, 2nd", b.Title)
	assert.Equal(t, before.Book.PublisherID, b.PublisherID)

	rec = doJSON(t, h, http.MethodPut, "/api/books/missing", api.UpdateBookRequest{
		BookData:    check.BookData,
		PricingData: check.PricingData,
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListBooks(t *testing.T) {
	h := newServer(t)
	insertBook(t, h)

	rec := doJSON(t, h, http.MethodGet, "/api/books?q=go&page=1&page_size=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[api.PaginatedBooks](t, rec)
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Data, 1)

	rec = doJSON(t, h, http.MethodGet, "/api/books?author=nobody", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page = decode[api.PaginatedBooks](t, rec)
	assert.Zero(t, page.Total)
}

func TestBookPricingEndpoint(t *testing.T) {
	h := newServer(t)
	id := insertBook(t, h)

	rec := doJSON(t, h, http.MethodGet, "/api/books/"+id+"/pricing", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode[api.BookPricingResponse](t, rec)
	assert.Equal(t, id, out.Book.ID)
	require.Len(t, out.Pricing, 1)
	assert.Equal(t, "ingram", out.Pricing[0].Source)
	assert.Equal(t, 1, out.Stats.Count)
	assert.Equal(t, 45.5, out.Stats.AverageRate)

	rec = doJSON(t, h, http.MethodGet, "/api/books/missing/pricing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSuggestionEndpoints(t *testing.T) {
	h := newServer(t)
	insertBook(t, h)

	rec := doJSON(t, h, http.MethodGet, "/api/books/suggestions?q=go+programming", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	books := decode[[]api.BookSuggestion](t, rec)
	require.Len(t, books, 1)
	assert.Equal(t, "The Go Programming Language", books[0].Title)

	rec = doJSON(t, h, http.MethodGet, "/api/publisher-suggestions?q=addison", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pubs := decode[[]api.PublisherSuggestion](t, rec)
	require.Len(t, pubs, 1)
	assert.Equal(t, "Addison-Wesley", pubs[0].Name)

	// blank query short-circuits to an empty list
	rec = doJSON(t, h, http.MethodGet, "/api/books/suggestions?q=", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]api.BookSuggestion](t, rec))
}

func TestQuotationPreviewEndpoint(t *testing.T) {
	h := newServer(t)
	id := insertBook(t, h)

	rec := doJSON(t, h, http.MethodGet, "/api/quotations/preview?ids="+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rows := decode[[]api.PreviewRow](t, rec)
	require.Len(t, rows, 1)
	assert.Equal(t, "Addison-Wesley", rows[0].PublisherName)
	assert.Equal(t, 45.5, rows[0].LowestPrice)

	rec = doJSON(t, h, http.MethodGet, "/api/quotations/preview", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/quotations/preview?ids=missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQuotationLifecycle(t *testing.T) {
	h := newServer(t)
	id := insertBook(t, h)

	price := 100.0
	req := api.QuotationRequest{
		Customer:        "ACME Library",
		Items:           []api.QuotationItem{{Book: id, Quantity: 2, UnitPrice: &price, Discount: 10}},
		GeneralDiscount: 0,
		ValidUntil:      openapi_types.Date{Time: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)},
	}
	rec := doJSON(t, h, http.MethodPost, "/api/quotations", req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("Location"))
	q := decode[api.Quotation](t, rec)
	assert.Equal(t, string(model.QuotationDraft), q.Status)
	assert.Equal(t, 180.0, q.SubTotal)
	assert.Equal(t, 189.0, q.GrandTotal)
	require.Len(t, q.Items, 1)
	// title is snapshotted from the catalog, not taken from the request
	assert.Equal(t, "The Go Programming Language", q.Items[0].Title)

	rec = doJSON(t, h, http.MethodGet, "/api/quotations/"+q.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	req.Status = string(model.QuotationSent)
	req.GeneralDiscount = 10
	rec = doJSON(t, h, http.MethodPut, "/api/quotations/"+q.ID, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[api.Quotation](t, rec)
	assert.Equal(t, string(model.QuotationSent), updated.Status)
	assert.Equal(t, 170.1, updated.GrandTotal) // 180 - 10% + 5% tax

	rec = doJSON(t, h, http.MethodGet, "/api/quotations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]api.Quotation](t, rec), 1)

	rec = doJSON(t, h, http.MethodGet, "/api/quotations/missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

// unit price omitted: the line falls back to the lowest catalog price
func TestQuotation_UnitPriceFallsBackToCatalog(t *testing.T) {
	h := newServer(t)
	id := insertBook(t, h)

	rec := doJSON(t, h, http.MethodPost, "/api/quotations", api.QuotationRequest{
		Customer:   "ACME Library",
		Items:      []api.QuotationItem{{Book: id, Quantity: 1}},
		ValidUntil: openapi_types.Date{Time: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	q := decode[api.Quotation](t, rec)
	assert.Equal(t, 45.5, q.SubTotal)
	assert.Equal(t, "USD", q.Currency)
}
