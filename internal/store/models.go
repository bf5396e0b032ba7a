package store

import "time"

type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

func (t MediaType) Valid() bool {
	return t == MediaImage || t == MediaVideo
}

// Metadata fields are optional; zero means unknown. Duration only applies to
// videos.
type Metadata struct {
	Width    int     `json:"width,omitempty" bson:"width,omitempty" db:"width"`
	Height   int     `json:"height,omitempty" bson:"height,omitempty" db:"height"`
	Size     int64   `json:"size,omitempty" bson:"size,omitempty" db:"size"`
	Format   string  `json:"format,omitempty" bson:"format,omitempty" db:"format"`
	Duration float64 `json:"duration,omitempty" bson:"duration,omitempty" db:"duration"`
}

type Media struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	URL          string    `json:"url"`
	ThumbnailURL string    `json:"thumbnailUrl"`
	Type         MediaType `json:"type"`
	Tags         []string  `json:"tags"`
	Metadata     Metadata  `json:"metadata"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	Score        float64   `json:"-"`
}

type MediaCreate struct {
	Title        string
	Description  string
	URL          string
	ThumbnailURL string
	Type         MediaType
	Tags         []string
	Metadata     Metadata
}

type MediaUpdate struct {
	Title        *string
	Description  *string
	URL          *string
	ThumbnailURL *string
	Type         *MediaType
	Tags         *[]string
	Metadata     *Metadata
}

func (u MediaUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.URL == nil &&
		u.ThumbnailURL == nil && u.Type == nil && u.Tags == nil && u.Metadata == nil
}

// NewMedia builds the stored form of a create request. Tags are normalized
// and duration is dropped for anything that is not a video.
func NewMedia(id string, in MediaCreate, now time.Time) Media {
	m := Media{
		ID:           id,
		Title:        in.Title,
		Description:  in.Description,
		URL:          in.URL,
		ThumbnailURL: in.ThumbnailURL,
		Type:         in.Type,
		Tags:         NormalizeTags(in.Tags),
		Metadata:     in.Metadata,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if m.Tags == nil {
		m.Tags = []string{}
	}
	if m.Type != MediaVideo {
		m.Metadata.Duration = 0
	}
	return m
}

// Apply copies the set fields of upd onto m and bumps UpdatedAt.
func (m *Media) Apply(upd MediaUpdate, now time.Time) {
	if upd.Title != nil {
		m.Title = *upd.Title
	}
	if upd.Description != nil {
		m.Description = *upd.Description
	}
	if upd.URL != nil {
		m.URL = *upd.URL
	}
	if upd.ThumbnailURL != nil {
		m.ThumbnailURL = *upd.ThumbnailURL
	}
	if upd.Type != nil {
		m.Type = *upd.Type
	}
	if upd.Tags != nil {
		m.Tags = NormalizeTags(*upd.Tags)
		if m.Tags == nil {
			m.Tags = []string{}
		}
	}
	if upd.Metadata != nil {
		m.Metadata = *upd.Metadata
	}
	if m.Type != MediaVideo {
		m.Metadata.Duration = 0
	}
	m.UpdatedAt = now
}

type Visibility string

const (
	VisibleActive   Visibility = "active"
	VisibleInactive Visibility = "inactive"
	VisibleAll      Visibility = "all"
)

// Filter predicates are ANDed. Empty Text, Type or Tags disable that
// predicate; Tags match when any one of them is present on the record.
type Filter struct {
	Text       string
	Type       MediaType
	Tags       []string
	Visibility Visibility
}

type SortField string

const (
	SortRelevance SortField = "relevance"
	SortCreatedAt SortField = "createdAt"
	SortTitle     SortField = "title"
)

// FindOptions orders by Sort, then by id ascending.
type FindOptions struct {
	Sort  SortField
	Desc  bool
	Skip  int
	Limit int
}
