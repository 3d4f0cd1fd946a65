package adapter

import (
	"book-inventory/api"
	"book-inventory/internal/core"
	"book-inventory/internal/core/model"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	openapi_types "github.com/oapi-codegen/runtime/types"
)

// HTTPHandler exposes the engine over the REST surface the views consume.
type HTTPHandler struct {
	Svc    *core.Service
	Quotes *core.QuotationService
	log    *slog.Logger
}

func NewHTTPHandler(svc *core.Service, quotes *core.QuotationService, logger *slog.Logger) *HTTPHandler {
	return &HTTPHandler{Svc: svc, Quotes: quotes, log: logger}
}

// Routes mounts every endpoint on a fresh chi router.
func (h *HTTPHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Post("/books/check-duplicate", h.CheckDuplicate)
		r.Post("/books", h.ResolveBook)
		r.Get("/books", h.ListBooks)
		r.Get("/books/suggestions", h.BookSuggestions)
		r.Put("/books/{id}", h.UpdateBook)
		r.Get("/books/{id}/pricing", h.BookPricing)
		r.Get("/publisher-suggestions", h.PublisherSuggestions)

		r.Get("/quotations", h.ListQuotations)
		r.Post("/quotations", h.CreateQuotation)
		r.Get("/quotations/preview", h.QuotationPreview)
		r.Get("/quotations/{id}", h.GetQuotation)
		r.Put("/quotations/{id}", h.UpdateQuotation)
	})
	return r
}

type httpError struct {
	Error struct {
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Details map[string]interface{} `json:"details,omitempty"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string, details map[string]interface{}) {
	e := httpError{}
	e.Error.Code = code
	e.Error.Message = msg
	e.Error.Details = details
	writeJSON(w, status, e)
}

func (h *HTTPHandler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrValidation):
		writeError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, model.ErrStaleResolution), errors.Is(err, model.ErrConflict):
		writeError(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
	default:
		h.log.Error("internal error", "err", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_JSON", "invalid request body", nil)
		return false
	}
	return true
}

// submissionFrom maps the wire payload; the publisher is set by the
// callers that carry one (the direct-edit path does not).
func submissionFrom(b api.BookData, p api.PricingData) model.Submission {
	return model.Submission{
		Title:          b.Title,
		Author:         b.Author,
		Year:           b.Year,
		ISBN:           b.ISBN,
		OtherCode:      b.OtherCode,
		Edition:        b.Edition,
		BindingType:    b.BindingType,
		Classification: b.Classification,
		Remarks:        b.Remarks,

		PricingSource:   p.Source,
		Rate:            p.Rate,
		DiscountPercent: p.DiscountPercent,
		Currency:        p.Currency,
	}
}

func toAPIResult(res model.ReconciliationResult) api.ReconciliationResult {
	out := api.ReconciliationResult{
		BookStatus: string(res.BookStatus),
		Message:    res.Message,
		BookID:     res.BookID,
		PricingID:  res.PricingID,
	}
	if res.PricingStatus != nil {
		ps := string(*res.PricingStatus)
		out.PricingStatus = &ps
	}
	if len(res.ConflictFields) > 0 {
		out.ConflictFields = make(map[string]api.FieldDiff, len(res.ConflictFields))
		for k, d := range res.ConflictFields {
			out.ConflictFields[k] = api.FieldDiff{Field: d.Field, Old: d.Old, New: d.New}
		}
	}
	for _, d := range res.Differences {
		out.Differences = append(out.Differences, api.FieldDiff{Field: d.Field, Old: d.Old, New: d.New})
	}
	return out
}

func toAPIBook(b model.Book) api.Book {
	return api.Book{
		ID:             b.ID,
		Title:          b.Title,
		Author:         b.Author,
		Year:           b.Year,
		ISBN:           b.ISBN,
		OtherCode:      b.OtherCode,
		Edition:        b.Edition,
		BindingType:    b.BindingType,
		Classification: b.Classification,
		Remarks:        b.Remarks,
		PublisherID:    b.PublisherID,
	}
}

// CheckDuplicate runs the classification call. A 409 here is a modeled
// business outcome, not a failure: the body is the normal result shape.
func (h *HTTPHandler) CheckDuplicate(w http.ResponseWriter, r *http.Request) {
	var req api.CheckDuplicateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s := submissionFrom(req.BookData, req.PricingData)
	s.PublisherName = req.PublisherData.Name
	res, err := h.Svc.Classify(r.Context(), s)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	status := http.StatusOK
	if res.BookStatus == model.StatusConflict || res.BookStatus == model.StatusAuthorConflict {
		status = http.StatusConflict
	}
	writeJSON(w, status, toAPIResult(res))
}

// pricingStatusFor derives the duplicate-path pricing context from the
// chosen action; the wire payload only carries status + pricingAction.
func pricingStatusFor(status model.BookStatus, action model.ResolutionAction) *model.PricingStatus {
	if status != model.StatusDuplicate {
		return nil
	}
	var ps model.PricingStatus
	switch action {
	case model.ActionAddPrice:
		ps = model.PricingAddPrice
	case model.ActionUpdatePrice, model.ActionIgnore:
		ps = model.PricingUpdatePrice
	default:
		return nil
	}
	return &ps
}

func (h *HTTPHandler) ResolveBook(w http.ResponseWriter, r *http.Request) {
	var req api.ResolveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	status := model.BookStatus(req.Status)
	action := model.ResolutionAction(req.PricingAction)
	s := submissionFrom(req.BookData, req.PricingData)
	s.PublisherName = req.PublisherData.Name
	out, err := h.Svc.Resolve(r.Context(), model.ResolveRequest{
		Submission: s,
		Status:     status,
		Pricing:    pricingStatusFor(status, action),
		Action:     action,
		BookID:     req.BookID,
		PricingID:  req.PricingID,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	code := http.StatusOK
	if out.Mutated && (action == model.ActionInsert || action == model.ActionKeepBoth || action == model.ActionAddPrice) {
		code = http.StatusCreated
	}
	writeJSON(w, code, api.ResolveResponse{BookID: out.BookID, PricingID: out.PricingID, Mutated: out.Mutated})
}

func (h *HTTPHandler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req api.UpdateBookRequest
	if !decodeBody(w, r, &req) {
		return
	}
	b, err := h.Svc.UpdateBook(r.Context(), id, submissionFrom(req.BookData, req.PricingData))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAPIBook(b))
}

func (h *HTTPHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	q := model.ListQuery{Page: intQuery(r, "page", 1), PageSize: intQuery(r, "page_size", 20)}
	if v := r.URL.Query().Get("q"); v != "" {
		q.Q = &v
	}
	if v := r.URL.Query().Get("author"); v != "" {
		q.Author = &v
	}
	if v := r.URL.Query().Get("year"); v != "" {
		if y, err := strconv.Atoi(v); err == nil {
			q.Year = &y
		}
	}
	page, err := h.Svc.ListBooks(r.Context(), q)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	out := api.PaginatedBooks{Page: page.Page, PageSize: page.PageSize, Total: page.Total}
	for _, b := range page.Data {
		out.Data = append(out.Data, toAPIBook(b))
	}
	writeJSON(w, http.StatusOK, out)
}

func intQuery(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func (h *HTTPHandler) BookPricing(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b, rows, stats, err := h.Svc.BookPricing(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	out := api.BookPricingResponse{
		Book: toAPIBook(b),
		Stats: api.PricingStats{
			Count:           stats.Count,
			AverageRate:     stats.AverageRate,
			MinRate:         stats.MinRate,
			MaxRate:         stats.MaxRate,
			AverageDiscount: stats.AverageDiscount,
		},
	}
	for _, p := range rows {
		out.Pricing = append(out.Pricing, api.Pricing{
			ID:              p.ID,
			BookID:          p.BookID,
			Source:          p.Source,
			Rate:            p.Rate,
			DiscountPercent: p.DiscountPercent,
			Currency:        p.Currency,
			LastUpdated:     p.LastUpdated.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) BookSuggestions(w http.ResponseWriter, r *http.Request) {
	books, err := h.Svc.BookSuggestions(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	out := make([]api.BookSuggestion, 0, len(books))
	for _, b := range books {
		out = append(out, api.BookSuggestion{ID: b.ID, Title: b.Title, ISBN: b.ISBN})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) PublisherSuggestions(w http.ResponseWriter, r *http.Request) {
	pubs, err := h.Svc.PublisherSuggestions(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	out := make([]api.PublisherSuggestion, 0, len(pubs))
	for _, p := range pubs {
		out = append(out, api.PublisherSuggestion{ID: p.ID, Name: p.Name})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) QuotationPreview(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("ids")
	if strings.TrimSpace(raw) == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION", "ids query parameter is required", nil)
		return
	}
	rows, err := h.Quotes.Preview(r.Context(), strings.Split(raw, ","))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	out := make([]api.PreviewRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, api.PreviewRow{
			BookID:        row.BookID,
			Title:         row.Title,
			ISBN:          row.ISBN,
			PublisherName: row.PublisherName,
			LowestPrice:   row.LowestPrice,
			Currency:      row.Currency,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// quotationInput resolves the wire items against the catalog: the title is
// snapshotted and a missing unitPrice falls back to the book's lowest
// catalog price.
func (h *HTTPHandler) quotationInput(r *http.Request, req api.QuotationRequest) (core.QuotationInput, error) {
	in := core.QuotationInput{
		Customer:               req.Customer,
		GeneralDiscountPercent: req.GeneralDiscount,
		Status:                 model.QuotationStatus(req.Status),
		ValidUntil:             req.ValidUntil.Time,
		Currency:               req.Currency,
	}
	for _, it := range req.Items {
		rows, err := h.Quotes.Preview(r.Context(), []string{it.Book})
		if err != nil {
			return core.QuotationInput{}, err
		}
		row := rows[0]
		if in.Currency == "" {
			in.Currency = row.Currency
		}
		in.Lines = append(in.Lines, core.LineInput{
			BookID:          it.Book,
			Title:           row.Title,
			CatalogPrice:    row.LowestPrice,
			CustomPrice:     it.UnitPrice,
			Quantity:        it.Quantity,
			DiscountPercent: it.Discount,
		})
	}
	return in, nil
}

func toAPIQuotation(q model.Quotation) api.Quotation {
	out := api.Quotation{
		ID:              q.ID,
		Customer:        q.Customer,
		GeneralDiscount: q.GeneralDiscountPercent,
		SubTotal:        q.SubTotal,
		TotalDiscount:   q.TotalDiscount,
		GrandTotal:      q.GrandTotal,
		Currency:        q.Currency,
		Status:          string(q.Status),
		ValidUntil:      openapi_types.Date{Time: q.ValidUntil},
	}
	for _, it := range q.Items {
		unit := it.UnitPrice
		out.Items = append(out.Items, api.QuotationItem{
			Book:       it.BookID,
			Title:      it.Title,
			Quantity:   it.Quantity,
			UnitPrice:  &unit,
			Discount:   it.DiscountPercent,
			TotalPrice: it.TotalPrice,
		})
	}
	return out
}

func (h *HTTPHandler) CreateQuotation(w http.ResponseWriter, r *http.Request) {
	var req api.QuotationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	in, err := h.quotationInput(r, req)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	q, err := h.Quotes.Create(r.Context(), in)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.Header().Set("Location", "/api/quotations/"+q.ID)
	writeJSON(w, http.StatusCreated, toAPIQuotation(q))
}

func (h *HTTPHandler) UpdateQuotation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req api.QuotationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	in, err := h.quotationInput(r, req)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	q, err := h.Quotes.Update(r.Context(), id, in)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAPIQuotation(q))
}

func (h *HTTPHandler) GetQuotation(w http.ResponseWriter, r *http.Request) {
	q, err := h.Quotes.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAPIQuotation(q))
}

func (h *HTTPHandler) ListQuotations(w http.ResponseWriter, r *http.Request) {
	qs, err := h.Quotes.List(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	out := make([]api.Quotation, 0, len(qs))
	for _, q := range qs {
		out = append(out, toAPIQuotation(q))
	}
	writeJSON(w, http.StatusOK, out)
}
