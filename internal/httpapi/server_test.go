package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/example/gallery/internal/config"
	"github.com/example/gallery/internal/metrics"
	"github.com/example/gallery/internal/query"
	"github.com/example/gallery/internal/search"
	"github.com/example/gallery/internal/store"
	"github.com/example/gallery/internal/store/memory"
)

const (
	idSunset = "00000000-0000-4000-8000-000000000001"
	idCity   = "00000000-0000-4000-8000-000000000002"
	idBeach  = "00000000-0000-4000-8000-000000000003"
	idClip   = "00000000-0000-4000-8000-000000000004"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type response struct {
	Success    bool              `json:"success"`
	Data       json.RawMessage   `json:"data"`
	Pagination *query.Pagination `json:"pagination"`
	Code       string            `json:"code"`
	Message    string            `json:"message"`
}

type fixture struct {
	repo    *memory.Store
	handler http.Handler
}

func seed(repo *memory.Store) {
	put := func(id, title string, typ store.MediaType, tags []string, active bool, age time.Duration) {
		repo.Put(store.Media{
			ID: id, Title: title, Type: typ, Tags: tags, IsActive: active,
			URL: "https://cdn.example.com/" + id, ThumbnailURL: "https://cdn.example.com/t/" + id,
			CreatedAt: base.Add(-age), UpdatedAt: base.Add(-age),
		})
	}
	put(idSunset, "Mountain Sunset", store.MediaImage, []string{"nature", "sunset"}, true, 3*time.Hour)
	put(idCity, "City Night", store.MediaImage, []string{"city"}, false, 2*time.Hour)
	put(idBeach, "Beach Sunset", store.MediaImage, []string{"beach", "sunset"}, true, time.Hour)
	put(idClip, "Waves", store.MediaVideo, []string{"beach"}, true, 0)
}

func newFixture(t *testing.T, mode config.AuthMode, keys ...APIKey) *fixture {
	t.Helper()
	repo := memory.New()
	seed(repo)
	cfg := &config.Config{
		AuthMode:       mode,
		DefaultLimit:   20,
		MaxLimit:       100,
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
		SwaggerUIPath:  "/swagger",
		OpenAPIPath:    "/openapi.yaml",
	}
	var keyStore *APIKeyStore
	if len(keys) > 0 {
		var err error
		if keyStore, err = NewAPIKeyStore(keys...); err != nil {
			t.Fatalf("keys: %v", err)
		}
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := search.NewService(repo, logger, query.DefaultLimits)
	reg := prometheus.NewRegistry()
	metrics.Register(reg)
	return &fixture{repo: repo, handler: NewRouter(cfg, repo, svc, keyStore, reg, logger)}
}

func (f *fixture) do(t *testing.T, method, target, key, body string) (*httptest.ResponseRecorder, response) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	if key != "" {
		req.Header.Set(apiKeyHeader, key)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	var resp response
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode %s: %v", rec.Body.String(), err)
		}
	}
	return rec, resp
}

func decodeItems(t *testing.T, raw json.RawMessage) []store.Media {
	t.Helper()
	var items []store.Media
	if err := json.Unmarshal(raw, &items); err != nil {
		t.Fatalf("decode items: %v", err)
	}
	return items
}

func TestSearchEndpointRanksByRelevance(t *testing.T) {
	f := newFixture(t, config.AuthNone)
	rec, resp := f.do(t, http.MethodGet, "/api/search?query=beach+sunset&tags=sunset&tags=city", "", "")
	if rec.Code != http.StatusOK || !resp.Success {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	items := decodeItems(t, resp.Data)
	if len(items) != 2 || items[0].ID != idBeach || items[1].ID != idSunset {
		t.Fatalf("items = %+v", items)
	}
	expect := query.Pagination{Page: 1, Limit: 20, Total: 2, TotalPages: 1}
	if resp.Pagination == nil || *resp.Pagination != expect {
		t.Fatalf("pagination = %+v", resp.Pagination)
	}
}

func TestSearchEndpointCoercesInvalidParams(t *testing.T) {
	f := newFixture(t, config.AuthNone)
	rec, resp := f.do(t, http.MethodGet, "/api/search?page=abc&limit=-4&type=gif&sortBy=nope", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if resp.Pagination.Page != 1 || resp.Pagination.Limit != 20 || resp.Pagination.Total != 3 {
		t.Fatalf("pagination = %+v", resp.Pagination)
	}
	items := decodeItems(t, resp.Data)
	if items[0].ID != idClip {
		t.Fatalf("expected newest first, got %s", items[0].ID)
	}
}

func TestSearchEndpointHugePageIsEmpty(t *testing.T) {
	f := newFixture(t, config.AuthNone)
	rec, resp := f.do(t, http.MethodGet, "/api/search?page=9223372036854775807&limit=20", "", "")
	if rec.Code != http.StatusOK || !resp.Success {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if string(resp.Data) != "[]" {
		t.Fatalf("data = %s", resp.Data)
	}
	if resp.Pagination.Total != 3 || resp.Pagination.Page < 1 {
		t.Fatalf("pagination = %+v", resp.Pagination)
	}
}

func TestSearchEndpointEmptyResultIsArray(t *testing.T) {
	f := newFixture(t, config.AuthNone)
	_, resp := f.do(t, http.MethodGet, "/api/search?query=nothing-matches", "", "")
	if string(resp.Data) != "[]" {
		t.Fatalf("data = %s", resp.Data)
	}
	if resp.Pagination.TotalPages != 0 {
		t.Fatalf("pagination = %+v", resp.Pagination)
	}
}

func TestSearchEndpointStatusRequiresPermission(t *testing.T) {
	f := newFixture(t, config.AuthAPIKey,
		APIKey{ID: "mod", Key: "mod-key", Permissions: []string{PermCanViewInactive}})

	_, anon := f.do(t, http.MethodGet, "/api/search?status=inactive", "", "")
	if items := decodeItems(t, anon.Data); len(items) != 3 {
		t.Fatalf("anonymous caller should only see active media, got %d", len(items))
	}
	_, mod := f.do(t, http.MethodGet, "/api/search?status=inactive", "mod-key", "")
	if items := decodeItems(t, mod.Data); len(items) != 1 || items[0].ID != idCity {
		t.Fatalf("inactive items = %+v", items)
	}
}

type brokenRepo struct{ *memory.Store }

func (brokenRepo) Count(context.Context, store.Filter) (int, error) {
	return 0, errors.New("connection reset")
}

func TestSearchEndpointRetrievalFailure(t *testing.T) {
	repo := brokenRepo{memory.New()}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{AuthMode: config.AuthNone, DefaultLimit: 20, MaxLimit: 100, RateLimitRPS: 100, RateLimitBurst: 100, SwaggerUIPath: "/swagger", OpenAPIPath: "/openapi.yaml"}
	f := &fixture{handler: NewRouter(cfg, repo, search.NewService(repo, logger, query.DefaultLimits), nil, nil, logger)}

	rec, resp := f.do(t, http.MethodGet, "/api/search?query=x", "", "")
	if rec.Code != http.StatusInternalServerError || resp.Success || resp.Code != "retrieval_failure" {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "connection reset") {
		t.Fatalf("internal error leaked to client")
	}
}

func TestSearchEndpointRateLimited(t *testing.T) {
	repo := memory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{AuthMode: config.AuthNone, DefaultLimit: 20, MaxLimit: 100, RateLimitRPS: 0.001, RateLimitBurst: 2, SwaggerUIPath: "/swagger", OpenAPIPath: "/openapi.yaml"}
	f := &fixture{handler: NewRouter(cfg, repo, search.NewService(repo, logger, query.DefaultLimits), nil, nil, logger)}

	for i := 0; i < 2; i++ {
		if rec, _ := f.do(t, http.MethodGet, "/api/search", "", ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, rec.Code)
		}
	}
	rec, resp := f.do(t, http.MethodGet, "/api/search", "", "")
	if rec.Code != http.StatusTooManyRequests || resp.Code != "rate_limited" {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
}

func TestMediaLifecycle(t *testing.T) {
	f := newFixture(t, config.AuthAPIKey,
		APIKey{ID: "editor", Key: "ed", Permissions: []string{PermCanCreate, PermCanUpdate, PermCanDelete, PermCanRestore}})

	body := `{"title":" Forest Walk ","url":"https://cdn.example.com/f.jpg","thumbnailUrl":"https://cdn.example.com/f_t.jpg","type":"image","tags":["Forest"," nature "],"metadata":{"width":1920,"height":1080}}`
	if rec, _ := f.do(t, http.MethodPost, "/api/media", "", body); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous create: status = %d", rec.Code)
	}
	rec, resp := f.do(t, http.MethodPost, "/api/media", "ed", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d body = %s", rec.Code, rec.Body.String())
	}
	var created store.Media
	if err := json.Unmarshal(resp.Data, &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Title != "Forest Walk" || !created.IsActive || len(created.Tags) != 2 || created.Tags[0] != "forest" {
		t.Fatalf("created = %+v", created)
	}

	rec, resp = f.do(t, http.MethodPatch, "/api/media/"+created.ID, "ed", `{"title":"Forest Path"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status = %d body = %s", rec.Code, rec.Body.String())
	}
	var updated store.Media
	_ = json.Unmarshal(resp.Data, &updated)
	if updated.Title != "Forest Path" || updated.Tags[1] != "nature" {
		t.Fatalf("updated = %+v", updated)
	}

	if rec, _ := f.do(t, http.MethodDelete, "/api/media/"+created.ID, "ed", ""); rec.Code != http.StatusOK {
		t.Fatalf("delete: status = %d", rec.Code)
	}
	if rec, _ := f.do(t, http.MethodGet, "/api/media/"+created.ID, "", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("deleted media should be hidden, status = %d", rec.Code)
	}
	if rec, _ := f.do(t, http.MethodDelete, "/api/media/"+created.ID, "ed", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("second delete: status = %d", rec.Code)
	}
	if rec, _ := f.do(t, http.MethodPost, "/api/media/"+created.ID+"/restore", "ed", ""); rec.Code != http.StatusOK {
		t.Fatalf("restore: status = %d", rec.Code)
	}
	if rec, _ := f.do(t, http.MethodGet, "/api/media/"+created.ID, "", ""); rec.Code != http.StatusOK {
		t.Fatalf("restored media should be visible, status = %d", rec.Code)
	}
}

func TestCreateMediaValidation(t *testing.T) {
	f := newFixture(t, config.AuthNone)
	cases := map[string]string{
		"missing title":     `{"url":"https://x/a.jpg","thumbnailUrl":"https://x/a.jpg","type":"image"}`,
		"bad url":           `{"title":"a","url":"ftp://x/a.jpg","thumbnailUrl":"https://x/a.jpg","type":"image"}`,
		"bad type":          `{"title":"a","url":"https://x/a.jpg","thumbnailUrl":"https://x/a.jpg","type":"gif"}`,
		"image duration":    `{"title":"a","url":"https://x/a.jpg","thumbnailUrl":"https://x/a.jpg","type":"image","metadata":{"duration":3}}`,
		"long description":  `{"title":"a","url":"https://x/a.jpg","thumbnailUrl":"https://x/a.jpg","type":"image","description":"` + strings.Repeat("d", 1001) + `"}`,
		"unknown field":     `{"title":"a","url":"https://x/a.jpg","thumbnailUrl":"https://x/a.jpg","type":"image","rating":5}`,
		"not json":          `title=a`,
		"negative metadata": `{"title":"a","url":"https://x/a.jpg","thumbnailUrl":"https://x/a.jpg","type":"image","metadata":{"width":-1}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec, resp := f.do(t, http.MethodPost, "/api/media", "", body)
			if rec.Code != http.StatusBadRequest || resp.Success {
				t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestUpdateMediaRejectsEmptyPatch(t *testing.T) {
	f := newFixture(t, config.AuthNone)
	if rec, _ := f.do(t, http.MethodPatch, "/api/media/"+idSunset, "", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec, _ := f.do(t, http.MethodPatch, "/api/media/not-a-uuid", "", `{"title":"x"}`); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGetMediaIncludeInactive(t *testing.T) {
	f := newFixture(t, config.AuthAPIKey,
		APIKey{ID: "mod", Key: "mod-key", Permissions: []string{PermCanViewInactive}})
	if rec, _ := f.do(t, http.MethodGet, "/api/media/"+idCity+"?includeInactive=true", "", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("anonymous: status = %d", rec.Code)
	}
	if rec, _ := f.do(t, http.MethodGet, "/api/media/"+idCity+"?includeInactive=true", "mod-key", ""); rec.Code != http.StatusOK {
		t.Fatalf("moderator: status = %d", rec.Code)
	}
}

func TestListTags(t *testing.T) {
	f := newFixture(t, config.AuthNone)
	_, resp := f.do(t, http.MethodGet, "/api/tags?prefix=S", "", "")
	var tags []string
	if err := json.Unmarshal(resp.Data, &tags); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tags) != 1 || tags[0] != "sunset" {
		t.Fatalf("tags = %v", tags)
	}
}

func TestOperationalRoutes(t *testing.T) {
	f := newFixture(t, config.AuthNone)
	for _, path := range []string{"/healthz", "/readyz", "/openapi.yaml", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", path, rec.Code)
		}
	}
}
