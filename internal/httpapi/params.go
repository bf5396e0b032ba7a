package httpapi

import (
	"net/http"
	"net/url"

	"github.com/oapi-codegen/runtime"

	"github.com/example/gallery/internal/query"
)

// SearchParams mirrors the /api/search query string.
type SearchParams struct {
	Query     *string   `form:"query"`
	Type      *string   `form:"type"`
	Tags      *[]string `form:"tags"`
	SortBy    *string   `form:"sortBy"`
	SortOrder *string   `form:"sortOrder"`
	Page      *int      `form:"page"`
	Limit     *int      `form:"limit"`
	Status    *string   `form:"status"`
}

// bindSearchParams never fails: a value that does not bind is treated as
// absent and falls back to its default during query normalization.
func bindSearchParams(values url.Values) SearchParams {
	var p SearchParams
	bindOptional(values, "query", &p.Query)
	bindOptional(values, "type", &p.Type)
	bindOptional(values, "tags", &p.Tags)
	bindOptional(values, "sortBy", &p.SortBy)
	bindOptional(values, "sortOrder", &p.SortOrder)
	bindOptional(values, "page", &p.Page)
	bindOptional(values, "limit", &p.Limit)
	bindOptional(values, "status", &p.Status)
	return p
}

func bindOptional[T any](values url.Values, name string, dest **T) {
	var v *T
	if err := runtime.BindQueryParameter("form", true, false, name, values, &v); err != nil {
		return
	}
	*dest = v
}

func (p SearchParams) toQuery() query.Params {
	return query.Params{
		Text:      deref(p.Query, ""),
		Type:      deref(p.Type, ""),
		Tags:      deref(p.Tags, nil),
		SortBy:    deref(p.SortBy, ""),
		SortOrder: deref(p.SortOrder, ""),
		Page:      deref(p.Page, 0),
		Limit:     deref(p.Limit, 0),
		Status:    deref(p.Status, ""),
	}
}

type tagParams struct {
	Prefix *string
	Limit  *int
}

func bindTagParams(r *http.Request) tagParams {
	var p tagParams
	values := r.URL.Query()
	bindOptional(values, "prefix", &p.Prefix)
	bindOptional(values, "limit", &p.Limit)
	return p
}

func deref[T any](v *T, def T) T {
	if v == nil {
		return def
	}
	return *v
}
