// Package query normalizes user-facing search parameters into a SearchQuery
// shared by the HTTP client and the search service, and derives the
// deterministic cache key used by the client-side page cache.
package query

import (
	"encoding/json"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/example/gallery/internal/store"
)

type Type string

const (
	TypeAll   Type = "all"
	TypeImage Type = "image"
	TypeVideo Type = "video"
)

type SortBy string

const (
	SortByCreatedAt SortBy = "createdAt"
	SortByTitle     SortBy = "title"
)

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusAll      Status = "all"
)

// Params is the raw, user-facing input. Nothing in it is trusted.
type Params struct {
	Text      string
	Type      string
	Tags      []string
	SortBy    string
	SortOrder string
	Page      int
	Limit     int
	Status    string
}

// SearchQuery is a normalized request. SortBy is empty when the caller did
// not ask for a sort field.
type SearchQuery struct {
	Text      string
	Type      Type
	Tags      []string
	SortBy    SortBy
	SortOrder SortOrder
	Page      int
	Limit     int
	Status    Status
}

type Limits struct {
	Default int
	Max     int
}

var DefaultLimits = Limits{Default: 20, Max: 100}

func Build(p Params) SearchQuery {
	return DefaultLimits.Build(p)
}

func (l Limits) Build(p Params) SearchQuery {
	q := SearchQuery{
		Text:      strings.TrimSpace(p.Text),
		Type:      normalizeType(p.Type),
		Tags:      store.NormalizeTags(p.Tags),
		SortBy:    normalizeSortBy(p.SortBy),
		SortOrder: normalizeSortOrder(p.SortOrder),
		Page:      p.Page,
		Limit:     p.Limit,
		Status:    normalizeStatus(p.Status),
	}
	return l.Normalize(q)
}

// Normalize re-applies page and limit bounds to an already built query.
func (l Limits) Normalize(q SearchQuery) SearchQuery {
	def, max := l.Default, l.Max
	if max <= 0 {
		max = DefaultLimits.Max
	}
	if def <= 0 || def > max {
		def = min(DefaultLimits.Default, max)
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = def
	}
	if q.Limit > max {
		q.Limit = max
	}
	// (page-1)*limit must stay representable as an offset.
	if maxPage := math.MaxInt / q.Limit; q.Page > maxPage {
		q.Page = maxPage
	}
	if q.Type == "" {
		q.Type = TypeAll
	}
	if q.SortOrder == "" {
		q.SortOrder = SortDesc
	}
	if q.Status == "" {
		q.Status = StatusActive
	}
	return q
}

func (q SearchQuery) HasText() bool {
	return q.Text != ""
}

func (q SearchQuery) WithPage(page int) SearchQuery {
	if page < 1 {
		page = 1
	}
	q.Page = page
	q.Tags = append([]string(nil), q.Tags...)
	return q
}

type cacheKey struct {
	Text      string    `json:"query"`
	Type      Type      `json:"type"`
	Tags      []string  `json:"tags"`
	SortBy    SortBy    `json:"sortBy"`
	SortOrder SortOrder `json:"sortOrder"`
	Page      int       `json:"page"`
	Limit     int       `json:"limit"`
	Status    Status    `json:"status"`
}

// CacheKey serializes the query with the page pinned to 1.
func (q SearchQuery) CacheKey() string {
	tags := q.Tags
	if tags == nil {
		tags = []string{}
	}
	data, err := json.Marshal(cacheKey{
		Text:      q.Text,
		Type:      q.Type,
		Tags:      tags,
		SortBy:    q.SortBy,
		SortOrder: q.SortOrder,
		Page:      1,
		Limit:     q.Limit,
		Status:    q.Status,
	})
	if err != nil {
		// unreachable: every field is a string, int or []string
		panic(err)
	}
	return string(data)
}

// Values encodes the query as /api/search parameters.
func (q SearchQuery) Values() url.Values {
	v := url.Values{}
	if q.Text != "" {
		v.Set("query", q.Text)
	}
	if q.Type != "" {
		v.Set("type", string(q.Type))
	}
	for _, t := range q.Tags {
		v.Add("tags", t)
	}
	if q.SortBy != "" {
		v.Set("sortBy", string(q.SortBy))
	}
	if q.SortOrder != "" {
		v.Set("sortOrder", string(q.SortOrder))
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Status != "" && q.Status != StatusActive {
		v.Set("status", string(q.Status))
	}
	return v
}

// ParseInt returns 0 for anything that is not a base-10 integer so the
// caller's defaults apply.
func ParseInt(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return n
}

func normalizeType(raw string) Type {
	switch Type(strings.ToLower(strings.TrimSpace(raw))) {
	case TypeImage:
		return TypeImage
	case TypeVideo:
		return TypeVideo
	default:
		return TypeAll
	}
}

func normalizeSortBy(raw string) SortBy {
	switch SortBy(strings.TrimSpace(raw)) {
	case SortByCreatedAt:
		return SortByCreatedAt
	case SortByTitle:
		return SortByTitle
	default:
		return ""
	}
}

func normalizeSortOrder(raw string) SortOrder {
	switch SortOrder(strings.ToLower(strings.TrimSpace(raw))) {
	case SortAsc:
		return SortAsc
	default:
		return SortDesc
	}
}

func normalizeStatus(raw string) Status {
	switch Status(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusInactive:
		return StatusInactive
	case StatusAll:
		return StatusAll
	default:
		return StatusActive
	}
}
