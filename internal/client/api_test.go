package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/gallery/internal/query"
)

func TestClientSearchDecodesEnvelope(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/search" {
			http.NotFound(w, r)
			return
		}
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":[{"id":"1","title":"Mountain Sunset","url":"https://x/1.jpg","thumbnailUrl":"https://x/1_t.jpg","type":"image","tags":["nature"],"metadata":{"width":800},"isActive":true,"createdAt":"2024-05-01T12:00:00Z","updatedAt":"2024-05-01T12:00:00Z"}],"pagination":{"page":1,"limit":1,"total":3,"totalPages":3}}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", WithHTTPClient(srv.Client()))
	res, err := c.Search(context.Background(), query.Build(query.Params{Text: "sunset", Tags: []string{"sky", "nature"}, Limit: 1}))
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Items) != 1 || res.Items[0].Title != "Mountain Sunset" || res.Items[0].Metadata.Width != 800 {
		t.Fatalf("items = %+v", res.Items)
	}
	expect := query.Pagination{Page: 1, Limit: 1, Total: 3, TotalPages: 3}
	if res.Pagination != expect {
		t.Fatalf("pagination = %+v", res.Pagination)
	}
	if gotQuery != "limit=1&page=1&query=sunset&sortOrder=desc&tags=nature&tags=sky&type=all" {
		t.Fatalf("query string = %s", gotQuery)
	}
}

func TestClientSearchServerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"code":"retrieval_failure","message":"search is temporarily unavailable"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, WithHTTPClient(srv.Client()))
	_, err := c.Search(context.Background(), query.Build(query.Params{}))
	if !errors.Is(err, ErrSearchFailed) {
		t.Fatalf("expected ErrSearchFailed, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 500 || apiErr.Code != "retrieval_failure" {
		t.Fatalf("api error = %+v", apiErr)
	}
	if ErrorMessage(err) != "search is temporarily unavailable" {
		t.Fatalf("message = %q", ErrorMessage(err))
	}
}

func TestClientSearchNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url).Search(context.Background(), query.Build(query.Params{}))
	if !errors.Is(err, ErrSearchFailed) {
		t.Fatalf("expected ErrSearchFailed, got %v", err)
	}
	if ErrorMessage(err) != "search failed" {
		t.Fatalf("message = %q", ErrorMessage(err))
	}
}

func TestClientSearchCancelled(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(srv.URL, WithHTTPClient(srv.Client())).Search(ctx, query.Build(query.Params{}))
	if !errors.Is(err, context.Canceled) || errors.Is(err, ErrSearchFailed) {
		t.Fatalf("expected bare context.Canceled, got %v", err)
	}
}

func TestClientCreateMediaSendsAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"success":false,"code":"unauthorized","message":"missing api key"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true,"data":{"id":"abc","title":"t","type":"image","tags":[],"isActive":true}}`))
	}))
	defer srv.Close()

	in := CreateRequest{Title: "t", URL: "https://x/a.jpg", ThumbnailURL: "https://x/a.jpg", Type: "image"}
	if _, err := New(srv.URL, WithHTTPClient(srv.Client())).CreateMedia(context.Background(), in); err == nil {
		t.Fatalf("expected unauthorized error")
	}
	m, err := New(srv.URL, WithHTTPClient(srv.Client()), WithAPIKey("secret")).CreateMedia(context.Background(), in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if m.ID != "abc" {
		t.Fatalf("id = %q", m.ID)
	}
}
