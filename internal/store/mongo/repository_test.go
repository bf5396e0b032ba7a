package mongo

import (
	"reflect"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/example/gallery/internal/store"
)

func TestBuildFilterDefaults(t *testing.T) {
	got := buildFilter(store.Filter{})
	expect := bson.M{"isActive": true}
	if !reflect.DeepEqual(got, expect) {
		t.Fatalf("filter = %v, expected %v", got, expect)
	}

	if _, ok := buildFilter(store.Filter{Visibility: store.VisibleAll})["isActive"]; ok {
		t.Fatalf("visibility all must not filter on isActive")
	}
	if v := buildFilter(store.Filter{Visibility: store.VisibleInactive})["isActive"]; v != false {
		t.Fatalf("inactive filter = %v", v)
	}
}

func TestBuildFilterCombined(t *testing.T) {
	got := buildFilter(store.Filter{
		Text: "  sunset ",
		Type: store.MediaVideo,
		Tags: []string{"Nature", "city"},
	})
	if got["type"] != "video" {
		t.Fatalf("type = %v", got["type"])
	}
	tags, ok := got["tags"].(bson.M)
	if !ok || !reflect.DeepEqual(tags["$in"], []string{"city", "nature"}) {
		t.Fatalf("tags = %v", got["tags"])
	}
	text, ok := got["$text"].(bson.M)
	if !ok || text["$search"] != "sunset" {
		t.Fatalf("text = %v", got["$text"])
	}
}

func TestFindOptionsRelevance(t *testing.T) {
	opts := findOptions(store.FindOptions{Sort: store.SortRelevance, Desc: true, Skip: 40, Limit: 20}, true)

	sortDoc, ok := opts.Sort.(bson.D)
	if !ok || len(sortDoc) != 2 {
		t.Fatalf("sort = %#v", opts.Sort)
	}
	if sortDoc[0].Key != "score" || sortDoc[1].Key != "_id" || sortDoc[1].Value != 1 {
		t.Fatalf("sort = %#v", sortDoc)
	}
	if opts.Projection == nil {
		t.Fatalf("expected score projection")
	}
	if *opts.Skip != 40 || *opts.Limit != 20 {
		t.Fatalf("skip/limit = %d/%d", *opts.Skip, *opts.Limit)
	}
}

func TestFindOptionsFieldSort(t *testing.T) {
	opts := findOptions(store.FindOptions{Sort: store.SortTitle}, true)
	expect := bson.D{{Key: "titleKey", Value: 1}, {Key: "_id", Value: 1}}
	if !reflect.DeepEqual(opts.Sort, expect) {
		t.Fatalf("sort = %#v", opts.Sort)
	}
	if opts.Projection != nil {
		t.Fatalf("unexpected projection for field sort")
	}

	opts = findOptions(store.FindOptions{Sort: store.SortRelevance, Desc: true}, false)
	expect = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}
	if !reflect.DeepEqual(opts.Sort, expect) {
		t.Fatalf("relevance without text should fall back to createdAt, got %#v", opts.Sort)
	}
	if opts.Skip != nil || opts.Limit != nil {
		t.Fatalf("zero skip/limit should not be set")
	}
}

func TestDocRoundtrip(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	m := store.Media{
		ID:           "0b7c3f1e-8d1a-4c55-9a38-2d0d7e7f6a10",
		Title:        "Mountain Sunset",
		URL:          "https://cdn.example.com/a.jpg",
		ThumbnailURL: "https://cdn.example.com/a_t.jpg",
		Type:         store.MediaImage,
		Tags:         []string{"nature"},
		Metadata:     store.Metadata{Width: 800, Height: 600, Format: "jpeg"},
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	got := fromDoc(toDoc(m))
	if !reflect.DeepEqual(got, m) {
		t.Fatalf("roundtrip = %+v\nexpected %+v", got, m)
	}

	empty := fromDoc(mediaDoc{ID: "x"})
	if empty.Tags == nil {
		t.Fatalf("tags should decode as empty slice")
	}
}

func TestDocTitleKeyIsLowercase(t *testing.T) {
	doc := toDoc(store.Media{ID: "x", Title: "Zebra at DAWN"})
	if doc.TitleKey != "zebra at dawn" {
		t.Fatalf("titleKey = %q", doc.TitleKey)
	}
}
