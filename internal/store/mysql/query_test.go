package mysql

import (
	"reflect"
	"strings"
	"testing"

	"github.com/example/gallery/internal/store"
)

func TestBuildWhereDefaultsToActive(t *testing.T) {
	where, args := buildWhere(store.Filter{})
	if where != "m.is_active = 1" {
		t.Fatalf("where = %q", where)
	}
	if len(args) != 0 {
		t.Fatalf("args = %v", args)
	}

	where, _ = buildWhere(store.Filter{Visibility: store.VisibleAll})
	if where != "1=1" {
		t.Fatalf("where for all = %q", where)
	}
}

func TestBuildWhereCombinesFilters(t *testing.T) {
	where, args := buildWhere(store.Filter{
		Text: "sunset",
		Type: store.MediaImage,
		Tags: []string{"Nature", "city"},
	})
	for _, part := range []string{"m.is_active = 1", "m.type = ?", "t.name IN (?,?)", "MATCH(m.title, m.description, m.tag_text)"} {
		if !strings.Contains(where, part) {
			t.Fatalf("where %q missing %q", where, part)
		}
	}
	expect := []any{"image", "city", "nature", "sunset"}
	if !reflect.DeepEqual(args, expect) {
		t.Fatalf("args = %v, expected %v", args, expect)
	}
}

func TestBuildFindRelevance(t *testing.T) {
	query, args := buildFind(store.Filter{Text: "sunset"}, store.FindOptions{Sort: store.SortRelevance, Desc: true, Skip: 20, Limit: 10})
	if !strings.Contains(query, "AS relevance") {
		t.Fatalf("relevance column missing: %s", query)
	}
	if !strings.HasSuffix(query, "ORDER BY relevance DESC, m.id ASC LIMIT ? OFFSET ?") {
		t.Fatalf("unexpected order/limit: %s", query)
	}
	expect := []any{"sunset", "sunset", 10, 20}
	if !reflect.DeepEqual(args, expect) {
		t.Fatalf("args = %v, expected %v", args, expect)
	}
}

func TestBuildFindClampsNegativeOffset(t *testing.T) {
	_, args := buildFind(store.Filter{}, store.FindOptions{Skip: -40, Limit: 20})
	if got := args[len(args)-1]; got != 0 {
		t.Fatalf("offset = %v, expected 0", got)
	}
}

func TestOrderClause(t *testing.T) {
	cases := []struct {
		opts    store.FindOptions
		hasText bool
		expect  string
	}{
		{store.FindOptions{Sort: store.SortTitle}, false, "m.title ASC, m.id ASC"},
		{store.FindOptions{Sort: store.SortCreatedAt, Desc: true}, true, "m.created_at DESC, m.id ASC"},
		{store.FindOptions{Sort: store.SortRelevance, Desc: true}, false, "m.created_at DESC, m.id ASC"},
		{store.FindOptions{Sort: "bogus"}, false, "m.created_at ASC, m.id ASC"},
	}
	for _, tc := range cases {
		if got := orderClause(tc.opts, tc.hasText); got != tc.expect {
			t.Fatalf("orderClause(%+v, %v) = %q, expected %q", tc.opts, tc.hasText, got, tc.expect)
		}
	}
}

func TestEscapeLike(t *testing.T) {
	if got := escapeLike(`50%_off\`); got != `50\%\_off\\` {
		t.Fatalf("escapeLike = %q", got)
	}
}
