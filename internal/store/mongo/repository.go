// Package mongo is the primary Repository, backed by a MongoDB collection
// with a weighted text index for relevance search.
package mongo

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/example/gallery/internal/store"
)

const textIndexName = "media_text"

type Repository struct {
	client     *mongo.Client
	collection *mongo.Collection
	now        func() time.Time
}

type mediaDoc struct {
	ID           string         `bson:"_id"`
	Title        string         `bson:"title"`
	TitleKey     string         `bson:"titleKey"`
	Description  string         `bson:"description"`
	URL          string         `bson:"url"`
	ThumbnailURL string         `bson:"thumbnailUrl"`
	Type         string         `bson:"type"`
	Tags         []string       `bson:"tags"`
	Metadata     store.Metadata `bson:"metadata"`
	IsActive     bool           `bson:"isActive"`
	CreatedAt    time.Time      `bson:"createdAt"`
	UpdatedAt    time.Time      `bson:"updatedAt"`
	Score        float64        `bson:"score,omitempty"`
}

func NewRepository(client *mongo.Client, dbName, collectionName string) *Repository {
	return &Repository{
		client:     client,
		collection: client.Database(dbName).Collection(collectionName),
		now:        now,
	}
}

// BSON datetimes carry millisecond precision.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func Connect(ctx context.Context, uri string, extra ...*options.ClientOptions) (*mongo.Client, error) {
	opts := append([]*options.ClientOptions{options.Client().ApplyURI(uri)}, extra...)
	client, err := mongo.Connect(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (r *Repository) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "title", Value: "text"},
				{Key: "description", Value: "text"},
				{Key: "tags", Value: "text"},
			},
			Options: options.Index().
				SetName(textIndexName).
				SetWeights(bson.D{
					{Key: "title", Value: 10},
					{Key: "tags", Value: 5},
					{Key: "description", Value: 1},
				}),
		},
		{Keys: bson.D{{Key: "isActive", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "isActive", Value: 1}, {Key: "titleKey", Value: 1}}},
		{Keys: bson.D{{Key: "tags", Value: 1}}},
		{Keys: bson.D{{Key: "type", Value: 1}}},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, models)
	return err
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}

func buildFilter(f store.Filter) bson.M {
	query := bson.M{}
	switch f.Visibility {
	case store.VisibleAll:
	case store.VisibleInactive:
		query["isActive"] = false
	default:
		query["isActive"] = true
	}
	if f.Type != "" {
		query["type"] = string(f.Type)
	}
	if tags := store.NormalizeTags(f.Tags); len(tags) > 0 {
		query["tags"] = bson.M{"$in": tags}
	}
	if text := strings.TrimSpace(f.Text); text != "" {
		query["$text"] = bson.M{"$search": text}
	}
	return query
}

func findOptions(opts store.FindOptions, hasText bool) *options.FindOptions {
	out := options.Find()
	if opts.Sort == store.SortRelevance && hasText {
		score := bson.M{"$meta": "textScore"}
		out.SetProjection(bson.M{"score": score})
		out.SetSort(bson.D{{Key: "score", Value: score}, {Key: "_id", Value: 1}})
	} else {
		field, ok := mongoSortField(opts.Sort)
		if !ok {
			field = "createdAt"
		}
		direction := 1
		if opts.Desc {
			direction = -1
		}
		out.SetSort(bson.D{{Key: field, Value: direction}, {Key: "_id", Value: 1}})
	}
	if opts.Skip > 0 {
		out.SetSkip(int64(opts.Skip))
	}
	if opts.Limit > 0 {
		out.SetLimit(int64(opts.Limit))
	}
	return out
}

func (r *Repository) Find(ctx context.Context, f store.Filter, opts store.FindOptions) ([]store.Media, error) {
	cursor, err := r.collection.Find(ctx, buildFilter(f), findOptions(opts, strings.TrimSpace(f.Text) != ""))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []mediaDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return fromDocs(docs), nil
}

func (r *Repository) Count(ctx context.Context, f store.Filter) (int, error) {
	n, err := r.collection.CountDocuments(ctx, buildFilter(f))
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *Repository) Get(ctx context.Context, id string, includeInactive bool) (*store.Media, error) {
	filter := bson.M{"_id": id}
	if !includeInactive {
		filter["isActive"] = true
	}
	var doc mediaDoc
	if err := r.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	m := fromDoc(doc)
	return &m, nil
}

func (r *Repository) Create(ctx context.Context, in store.MediaCreate) (*store.Media, error) {
	m := store.NewMedia(store.NewID(), in, r.now())
	if _, err := r.collection.InsertOne(ctx, toDoc(m)); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *Repository) Update(ctx context.Context, id string, upd store.MediaUpdate) (*store.Media, error) {
	current, err := r.Get(ctx, id, false)
	if err != nil {
		return nil, err
	}
	current.Apply(upd, r.now())

	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": id, "isActive": true}, toDoc(*current))
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 0 {
		return nil, store.ErrNotFound
	}
	return current, nil
}

func (r *Repository) SetActive(ctx context.Context, id string, active bool) (*store.Media, error) {
	var doc mediaDoc
	err := r.collection.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id, "isActive": !active},
		bson.M{"$set": bson.M{"isActive": active, "updatedAt": r.now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	m := fromDoc(doc)
	return &m, nil
}

func (r *Repository) ListTags(ctx context.Context, prefix string, limit int) ([]string, error) {
	values, err := r.collection.Distinct(ctx, "tags", bson.M{"isActive": true})
	if err != nil {
		return nil, err
	}
	prefix = store.NormalizeTag(prefix)
	tags := make([]string, 0, len(values))
	for _, v := range values {
		tag, ok := v.(string)
		if !ok || !strings.HasPrefix(tag, prefix) {
			continue
		}
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	if limit > 0 && len(tags) > limit {
		tags = tags[:limit]
	}
	return tags, nil
}

func toDoc(m store.Media) mediaDoc {
	tags := m.Tags
	if tags == nil {
		tags = []string{}
	}
	return mediaDoc{
		ID:           m.ID,
		Title:        m.Title,
		TitleKey:     titleKey(m.Title),
		Description:  m.Description,
		URL:          m.URL,
		ThumbnailURL: m.ThumbnailURL,
		Type:         string(m.Type),
		Tags:         tags,
		Metadata:     m.Metadata,
		IsActive:     m.IsActive,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// titleKey is the sort key for title ordering. Titles sort case-insensitively
// in every backend.
func titleKey(title string) string {
	return strings.ToLower(title)
}

func fromDoc(doc mediaDoc) store.Media {
	tags := doc.Tags
	if tags == nil {
		tags = []string{}
	}
	return store.Media{
		ID:           doc.ID,
		Title:        doc.Title,
		Description:  doc.Description,
		URL:          doc.URL,
		ThumbnailURL: doc.ThumbnailURL,
		Type:         store.MediaType(doc.Type),
		Tags:         tags,
		Metadata:     doc.Metadata,
		IsActive:     doc.IsActive,
		CreatedAt:    doc.CreatedAt.UTC(),
		UpdatedAt:    doc.UpdatedAt.UTC(),
		Score:        doc.Score,
	}
}

func fromDocs(docs []mediaDoc) []store.Media {
	items := make([]store.Media, 0, len(docs))
	for _, doc := range docs {
		items = append(items, fromDoc(doc))
	}
	return items
}

func mongoSortField(sortBy store.SortField) (string, bool) {
	switch sortBy {
	case store.SortCreatedAt:
		return "createdAt", true
	case store.SortTitle:
		return "titleKey", true
	default:
		return "", false
	}
}
