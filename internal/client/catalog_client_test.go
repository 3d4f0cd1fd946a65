//go:build unit

package client

import (
	"book-inventory/api"
	"book-inventory/pkg/util"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkReq() api.CheckDuplicateRequest {
	return api.CheckDuplicateRequest{
		BookData: api.BookData{
			Title:          "The Go Programming Language",
			Author:         "Alan Donovan",
			ISBN:           util.GetPtr("9780743273565"),
			BindingType:    "Hardcover",
			Classification: "Programming",
		},
		PricingData:   api.PricingData{Source: "ingram", Rate: 45.50, Currency: "USD"},
		PublisherData: api.PublisherData{Name: "Addison-Wesley"},
	}
}

func TestCheckDuplicate_ConflictStatusIsAResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/books/check-duplicate", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(api.ReconciliationResult{
			BookStatus: "CONFLICT",
			Message:    "metadata mismatch",
		})
	}))
	defer srv.Close()

	c := New(srv.URL, 0, srv.Client(), Session{Token: "tok"})
	res, err := c.CheckDuplicate(context.Background(), checkReq())
	require.NoError(t, err)
	assert.Equal(t, "CONFLICT", res.BookStatus)
}

func TestResolve_SecondAttemptWhileInFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var first sync.Once
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		first.Do(func() { close(started) })
		<-release
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(api.ResolveResponse{BookID: "b1", Mutated: true})
	}))
	defer srv.Close()

	c := New(srv.URL, 0, srv.Client(), Session{})
	req := api.ResolveRequest{Status: "NEW", PricingAction: "INSERT"}
	req.BookData = checkReq().BookData

	done := make(chan error, 1)
	go func() {
		_, err := c.Resolve(context.Background(), req)
		done <- err
	}()
	<-started

	// same target while the first call is still on the wire
	_, err := c.Resolve(context.Background(), req)
	assert.ErrorIs(t, err, ErrRequestInFlight)

	close(release)
	require.NoError(t, <-done)

	// guard is released once the first call completes
	_, err = c.Resolve(context.Background(), req)
	require.NoError(t, err)
}

func TestResolve_DistinctTargetsDoNotBlockEachOther(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(api.ResolveResponse{Mutated: true})
	}))
	defer srv.Close()

	c := New(srv.URL, 0, srv.Client(), Session{})
	a := api.ResolveRequest{BookID: util.GetPtr("b1"), Status: "DUPLICATE", PricingAction: "IGNORE"}
	b := api.ResolveRequest{BookID: util.GetPtr("b2"), Status: "DUPLICATE", PricingAction: "IGNORE"}
	_, err := c.Resolve(context.Background(), a)
	require.NoError(t, err)
	_, err = c.Resolve(context.Background(), b)
	require.NoError(t, err)
}

func TestDoJSON_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode([]api.BookSuggestion{{ID: "b1", Title: "Go in Action"}})
	}))
	defer srv.Close()

	c := New(srv.URL, 2, srv.Client(), Session{})
	out, err := c.BookSuggestions(context.Background(), "go")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDoJSON_ClientErrorsAreFinal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"VALIDATION","message":"title is required"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, 3, srv.Client(), Session{})
	_, err := c.CheckDuplicate(context.Background(), api.CheckDuplicateRequest{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "title is required", apiErr.Message)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDoJSON_NotFoundIsFinal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, 3, srv.Client(), Session{})
	_, err := c.BookPricing(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDoJSON_ContextCancelStopsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New(srv.URL, 5, srv.Client(), Session{})
	_, err := c.BookSuggestions(ctx, "go")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolveTarget(t *testing.T) {
	assert.Equal(t, "b1", resolveTarget(api.ResolveRequest{BookID: util.GetPtr("b1")}))
	req := api.ResolveRequest{}
	req.BookData.ISBN = util.GetPtr("9780743273565")
	assert.Equal(t, "9780743273565", resolveTarget(req))
	req = api.ResolveRequest{}
	req.BookData.OtherCode = util.GetPtr("LIB-001")
	assert.Equal(t, "LIB-001", resolveTarget(req))
	req = api.ResolveRequest{}
	req.BookData.Title = "Untracked"
	assert.Equal(t, "Untracked", resolveTarget(req))
}
