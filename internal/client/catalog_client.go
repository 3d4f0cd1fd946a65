// Package client is the view-facing engine over the remote catalog API:
// classification, single-shot resolution, typeahead and quotation calls.
package client

import (
	"book-inventory/api"
	"book-inventory/pkg/httpclient"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

var (
	// ErrRequestInFlight is returned when a resolution for the same target
	// is still outstanding; the second attempt never reaches the wire.
	ErrRequestInFlight = errors.New("resolution already in flight for this book")
	errNotFound        = errors.New("not found")
)

// APIError is the uniform wrapper for any non-2xx transport outcome that
// is not a modeled business result.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

// Session is the explicitly passed credential; no ambient auth state.
type Session struct {
	Token string
}

type Client struct {
	BaseURL string
	Client  *http.Client
	Session Session
	Retry   int

	mu       sync.Mutex
	inFlight map[string]bool // resolution target id -> outstanding
}

func New(baseURL string, retry int, httpClient *http.Client, session Session) *Client {
	if retry < 0 {
		retry = 0
	}
	if httpClient == nil {
		httpClient = httpclient.New()
	}
	return &Client{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Client:   httpClient,
		Session:  session,
		Retry:    retry,
		inFlight: make(map[string]bool),
	}
}

// CheckDuplicate submits a candidate for classification. An HTTP 409 is
// the CONFLICT/AUTHOR_CONFLICT outcome and flows into the normal result
// path rather than an error.
func (c *Client) CheckDuplicate(ctx context.Context, req api.CheckDuplicateRequest) (api.ReconciliationResult, error) {
	var out api.ReconciliationResult
	err := c.doJSON(ctx, http.MethodPost, "/api/books/check-duplicate", req, &out, http.StatusOK, http.StatusConflict)
	return out, err
}

// resolveTarget keys the in-flight guard: the matched book when one
// exists, otherwise the submitted identifier.
func resolveTarget(req api.ResolveRequest) string {
	if req.BookID != nil && *req.BookID != "" {
		return *req.BookID
	}
	if req.BookData.ISBN != nil && *req.BookData.ISBN != "" {
		return *req.BookData.ISBN
	}
	if req.BookData.OtherCode != nil {
		return *req.BookData.OtherCode
	}
	return req.BookData.Title
}

// Resolve issues the single mutating call for a classification. At most
// one resolution per target may be outstanding; re-triggering while one is
// in flight fails immediately with ErrRequestInFlight.
func (c *Client) Resolve(ctx context.Context, req api.ResolveRequest) (api.ResolveResponse, error) {
	target := resolveTarget(req)

	c.mu.Lock()
	if c.inFlight[target] {
		c.mu.Unlock()
		return api.ResolveResponse{}, ErrRequestInFlight
	}
	c.inFlight[target] = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.inFlight, target)
		c.mu.Unlock()
	}()

	var out api.ResolveResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/books", req, &out, http.StatusOK, http.StatusCreated)
	return out, err
}

func (c *Client) UpdateBook(ctx context.Context, id string, req api.UpdateBookRequest) (api.Book, error) {
	var out api.Book
	err := c.doJSON(ctx, http.MethodPut, "/api/books/"+url.PathEscape(id), req, &out, http.StatusOK)
	return out, err
}

func (c *Client) BookPricing(ctx context.Context, id string) (api.BookPricingResponse, error) {
	var out api.BookPricingResponse
	err := c.doJSON(ctx, http.MethodGet, "/api/books/"+url.PathEscape(id)+"/pricing", nil, &out, http.StatusOK)
	return out, err
}

func (c *Client) BookSuggestions(ctx context.Context, q string) ([]api.BookSuggestion, error) {
	var out []api.BookSuggestion
	err := c.doJSON(ctx, http.MethodGet, "/api/books/suggestions?q="+url.QueryEscape(q), nil, &out, http.StatusOK)
	return out, err
}

func (c *Client) PublisherSuggestions(ctx context.Context, q string) ([]api.PublisherSuggestion, error) {
	var out []api.PublisherSuggestion
	err := c.doJSON(ctx, http.MethodGet, "/api/publisher-suggestions?q="+url.QueryEscape(q), nil, &out, http.StatusOK)
	return out, err
}

func (c *Client) QuotationPreview(ctx context.Context, bookIDs []string) ([]api.PreviewRow, error) {
	var out []api.PreviewRow
	err := c.doJSON(ctx, http.MethodGet, "/api/quotations/preview?ids="+url.QueryEscape(strings.Join(bookIDs, ",")), nil, &out, http.StatusOK)
	return out, err
}

func (c *Client) CreateQuotation(ctx context.Context, req api.QuotationRequest) (api.Quotation, error) {
	var out api.Quotation
	err := c.doJSON(ctx, http.MethodPost, "/api/quotations", req, &out, http.StatusCreated)
	return out, err
}

func (c *Client) UpdateQuotation(ctx context.Context, id string, req api.QuotationRequest) (api.Quotation, error) {
	var out api.Quotation
	err := c.doJSON(ctx, http.MethodPut, "/api/quotations/"+url.PathEscape(id), req, &out, http.StatusOK)
	return out, err
}

func (c *Client) GetQuotation(ctx context.Context, id string) (api.Quotation, error) {
	var out api.Quotation
	err := c.doJSON(ctx, http.MethodGet, "/api/quotations/"+url.PathEscape(id), nil, &out, http.StatusOK)
	return out, err
}

// doJSON performs one logical call with retries on transport-level
// failures. 404 is final; other 4xx are never retried either, since the
// request will not get better on its own.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any, acceptStatus ...int) error {
	var lastErr error
	attempts := c.Retry + 1
	for i := 0; i < attempts; i++ {
		err := c.doOnce(ctx, method, path, body, out, acceptStatus)
		if err == nil {
			return nil
		}
		if errors.Is(err, errNotFound) {
			return err
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
			return err
		}
		lastErr = err
		// simple backoff
		if i < attempts-1 {
			select {
			case <-time.After(time.Duration(150*(i+1)) * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}

func (c *Client) doOnce(ctx context.Context, method, path string, body, out any, acceptStatus []int) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Session.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Session.Token)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	for _, s := range acceptStatus {
		if resp.StatusCode == s {
			if out == nil {
				return nil
			}
			return json.NewDecoder(resp.Body).Decode(out)
		}
	}
	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	return &APIError{Status: resp.StatusCode, Message: readErrorMessage(resp.Body)}
}

func readErrorMessage(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, 4096))
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return string(raw)
}
