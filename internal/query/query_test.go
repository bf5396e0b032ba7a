package query

import (
	"math"
	"reflect"
	"testing"
)

func TestBuildDefaults(t *testing.T) {
	q := Build(Params{Text: "   ", Type: "", Page: -3, Limit: 0, SortBy: "bogus", SortOrder: "sideways"})

	if q.HasText() {
		t.Fatalf("whitespace text should mean no text filter, got %q", q.Text)
	}
	if q.Type != TypeAll {
		t.Fatalf("type = %q, expected all", q.Type)
	}
	if q.Page != 1 || q.Limit != 20 {
		t.Fatalf("page/limit = %d/%d, expected 1/20", q.Page, q.Limit)
	}
	if q.SortBy != "" {
		t.Fatalf("unknown sort field should be dropped, got %q", q.SortBy)
	}
	if q.SortOrder != SortDesc {
		t.Fatalf("sort order = %q, expected desc", q.SortOrder)
	}
	if q.Status != StatusActive {
		t.Fatalf("status = %q, expected active", q.Status)
	}
	if q.Tags != nil {
		t.Fatalf("expected nil tags, got %v", q.Tags)
	}
}

func TestBuildClampsLimit(t *testing.T) {
	q := Build(Params{Limit: 5000})
	if q.Limit != 100 {
		t.Fatalf("limit = %d, expected clamp to 100", q.Limit)
	}

	l := Limits{Default: 10, Max: 25}
	if got := l.Build(Params{}).Limit; got != 10 {
		t.Fatalf("default limit = %d, expected 10", got)
	}
	if got := l.Build(Params{Limit: 30}).Limit; got != 25 {
		t.Fatalf("limit = %d, expected 25", got)
	}
}

func TestBuildClampsPageToOffsetRange(t *testing.T) {
	q := Build(Params{Page: math.MaxInt, Limit: 20})
	if q.Page < 1 || q.Page > math.MaxInt/20 {
		t.Fatalf("page = %d", q.Page)
	}
	if skip := (q.Page - 1) * q.Limit; skip < 0 {
		t.Fatalf("skip overflowed: %d", skip)
	}
	if got := Build(Params{Page: 7, Limit: 20}).Page; got != 7 {
		t.Fatalf("ordinary page changed to %d", got)
	}
}

func TestBuildNormalizesTags(t *testing.T) {
	q := Build(Params{Tags: []string{" Nature ", "city", "NATURE", "", "  "}})
	expect := []string{"city", "nature"}
	if !reflect.DeepEqual(q.Tags, expect) {
		t.Fatalf("tags = %v, expected %v", q.Tags, expect)
	}
}

func TestBuildKeepsExplicitSort(t *testing.T) {
	q := Build(Params{Text: "sunset", SortBy: "title", SortOrder: "ASC", Type: "Video"})
	if q.SortBy != SortByTitle || q.SortOrder != SortAsc {
		t.Fatalf("sort = %s %s", q.SortBy, q.SortOrder)
	}
	if q.Type != TypeVideo {
		t.Fatalf("type = %q", q.Type)
	}
}

func TestCacheKeyIgnoresPageAndTagOrder(t *testing.T) {
	a := Build(Params{Text: "sunset", Tags: []string{"b", "a"}, Page: 1})
	b := Build(Params{Text: " sunset ", Tags: []string{"A", "b", "a"}, Page: 4})

	if a.CacheKey() != b.CacheKey() {
		t.Fatalf("keys differ:\n%s\n%s", a.CacheKey(), b.CacheKey())
	}

	expect := `{"query":"sunset","type":"all","tags":["a","b"],"sortBy":"","sortOrder":"desc","page":1,"limit":20,"status":"active"}`
	if got := b.CacheKey(); got != expect {
		t.Fatalf("key = %s\nexpected %s", got, expect)
	}
}

func TestCacheKeyDistinguishesFilters(t *testing.T) {
	base := Build(Params{Text: "sunset"})
	variants := []SearchQuery{
		Build(Params{Text: "sunrise"}),
		Build(Params{Text: "sunset", Type: "image"}),
		Build(Params{Text: "sunset", Tags: []string{"x"}}),
		Build(Params{Text: "sunset", SortBy: "title"}),
		Build(Params{Text: "sunset", SortOrder: "asc"}),
		Build(Params{Text: "sunset", Limit: 5}),
	}
	for i, v := range variants {
		if v.CacheKey() == base.CacheKey() {
			t.Fatalf("variant %d shares key with base: %s", i, v.CacheKey())
		}
	}
}

func TestBuildIsIdempotent(t *testing.T) {
	p := Params{Text: "x", Tags: []string{"B", "a"}, SortBy: "createdAt", Page: 2, Limit: 7}
	first := Build(p)
	second := Build(Params{
		Text:      first.Text,
		Type:      string(first.Type),
		Tags:      first.Tags,
		SortBy:    string(first.SortBy),
		SortOrder: string(first.SortOrder),
		Page:      first.Page,
		Limit:     first.Limit,
	})
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("rebuild changed query: %+v vs %+v", first, second)
	}
}

func TestValuesRoundTripsThroughBuild(t *testing.T) {
	q := Build(Params{Text: "sunset", Type: "image", Tags: []string{"nature", "sky"}, SortBy: "title", Page: 3, Limit: 10})
	v := q.Values()

	if got := v["tags"]; !reflect.DeepEqual(got, []string{"nature", "sky"}) {
		t.Fatalf("tags = %v", got)
	}
	if v.Get("page") != "3" || v.Get("limit") != "10" {
		t.Fatalf("page/limit = %s/%s", v.Get("page"), v.Get("limit"))
	}
	if v.Has("status") {
		t.Fatalf("active status should not be encoded")
	}
}

func TestParseInt(t *testing.T) {
	cases := map[string]int{"3": 3, " 12 ": 12, "abc": 0, "": 0, "1.5": 0}
	for in, expect := range cases {
		if got := ParseInt(in); got != expect {
			t.Fatalf("ParseInt(%q) = %d, expected %d", in, got, expect)
		}
	}
}

func TestPagination(t *testing.T) {
	p := NewPagination(1, 1, 3)
	if p.TotalPages != 3 || !p.HasMore() {
		t.Fatalf("pagination = %+v", p)
	}
	if p.Skip() != 0 {
		t.Fatalf("skip = %d", p.Skip())
	}

	last := NewPagination(3, 1, 3)
	if last.HasMore() {
		t.Fatalf("last page should not have more")
	}
	if last.Skip() != 2 {
		t.Fatalf("skip = %d", last.Skip())
	}

	empty := NewPagination(1, 20, 0)
	if empty.TotalPages != 0 || empty.HasMore() {
		t.Fatalf("empty pagination = %+v", empty)
	}

	if got := NewPagination(1, 20, 41).TotalPages; got != 3 {
		t.Fatalf("total pages = %d, expected 3", got)
	}
}
