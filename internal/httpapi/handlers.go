package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/example/gallery/internal/query"
	"github.com/example/gallery/internal/search"
	"github.com/example/gallery/internal/store"
)

const (
	maxBodyBytes    = 1 << 20
	defaultTagLimit = 50
	maxTagLimit     = 500
)

func (s *Server) searchMedia(w http.ResponseWriter, r *http.Request) {
	q := s.limits.Build(bindSearchParams(r.URL.Query()).toQuery())
	if q.Status != query.StatusActive && !s.allowed(r, PermCanViewInactive) {
		q.Status = query.StatusActive
	}

	page, err := s.search.Search(r.Context(), q)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		s.logger.Debug("search abandoned by client", "query", q.Text)
		return
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "timeout", "search timed out")
		return
	case errors.Is(err, search.ErrRetrievalFailure):
		writeError(w, http.StatusInternalServerError, "retrieval_failure", "search is temporarily unavailable")
		return
	default:
		s.logger.Error("search failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "search failed")
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: page.Items, Pagination: &page.Pagination})
}

func (s *Server) getMedia(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var include *bool
	bindOptional(r.URL.Query(), "includeInactive", &include)
	includeInactive := deref(include, false) && s.allowed(r, PermCanViewInactive)

	if !store.ValidID(id) {
		writeError(w, http.StatusNotFound, "not_found", "media not found")
		return
	}
	m, err := s.repo.Get(r.Context(), id, includeInactive)
	if err != nil {
		s.writeStoreError(w, err, "could not load media")
		return
	}
	writeData(w, http.StatusOK, m)
}

type metadataPayload struct {
	Width    int     `json:"width" validate:"gte=0"`
	Height   int     `json:"height" validate:"gte=0"`
	Size     int64   `json:"size" validate:"gte=0"`
	Format   string  `json:"format" validate:"max=32"`
	Duration float64 `json:"duration" validate:"gte=0"`
}

func (m metadataPayload) toStore() store.Metadata {
	return store.Metadata{Width: m.Width, Height: m.Height, Size: m.Size, Format: m.Format, Duration: m.Duration}
}

type createPayload struct {
	Title        string          `json:"title" validate:"required,max=200"`
	Description  string          `json:"description" validate:"max=1000"`
	URL          string          `json:"url" validate:"required,http_url"`
	ThumbnailURL string          `json:"thumbnailUrl" validate:"required,http_url"`
	Type         string          `json:"type" validate:"required,oneof=image video"`
	Tags         []string        `json:"tags" validate:"max=50,dive,max=64"`
	Metadata     metadataPayload `json:"metadata"`
}

type updatePayload struct {
	Title        *string          `json:"title" validate:"omitnil,min=1,max=200"`
	Description  *string          `json:"description" validate:"omitnil,max=1000"`
	URL          *string          `json:"url" validate:"omitnil,http_url"`
	ThumbnailURL *string          `json:"thumbnailUrl" validate:"omitnil,http_url"`
	Type         *string          `json:"type" validate:"omitnil,oneof=image video"`
	Tags         *[]string        `json:"tags" validate:"omitnil,max=50,dive,max=64"`
	Metadata     *metadataPayload `json:"metadata"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (s *Server) createMedia(w http.ResponseWriter, r *http.Request) {
	var in createPayload
	if !s.decode(w, r, &in) {
		return
	}
	if in.Type != string(store.MediaVideo) && in.Metadata.Duration > 0 {
		writeError(w, http.StatusBadRequest, "validation_failed", "metadata.duration: only allowed for videos")
		return
	}
	m, err := s.repo.Create(r.Context(), store.MediaCreate{
		Title:        strings.TrimSpace(in.Title),
		Description:  in.Description,
		URL:          in.URL,
		ThumbnailURL: in.ThumbnailURL,
		Type:         store.MediaType(in.Type),
		Tags:         in.Tags,
		Metadata:     in.Metadata.toStore(),
	})
	if err != nil {
		s.writeStoreError(w, err, "could not create media")
		return
	}
	s.logger.Info("media created", "id", m.ID, "type", m.Type)
	writeData(w, http.StatusCreated, m)
}

func (s *Server) updateMedia(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !store.ValidID(id) {
		writeError(w, http.StatusNotFound, "not_found", "media not found")
		return
	}
	var in updatePayload
	if !s.decode(w, r, &in) {
		return
	}
	if in.Type != nil && *in.Type != string(store.MediaVideo) && in.Metadata != nil && in.Metadata.Duration > 0 {
		writeError(w, http.StatusBadRequest, "validation_failed", "metadata.duration: only allowed for videos")
		return
	}

	upd := store.MediaUpdate{
		Title:        in.Title,
		Description:  in.Description,
		URL:          in.URL,
		ThumbnailURL: in.ThumbnailURL,
		Tags:         in.Tags,
	}
	if in.Type != nil {
		t := store.MediaType(*in.Type)
		upd.Type = &t
	}
	if in.Metadata != nil {
		md := in.Metadata.toStore()
		upd.Metadata = &md
	}
	if upd.Empty() {
		writeError(w, http.StatusBadRequest, "validation_failed", "no fields to update")
		return
	}

	m, err := s.repo.Update(r.Context(), id, upd)
	if err != nil {
		s.writeStoreError(w, err, "could not update media")
		return
	}
	writeData(w, http.StatusOK, m)
}

func (s *Server) deleteMedia(w http.ResponseWriter, r *http.Request) {
	s.setActive(w, r, false)
}

func (s *Server) restoreMedia(w http.ResponseWriter, r *http.Request) {
	s.setActive(w, r, true)
}

func (s *Server) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id := chi.URLParam(r, "id")
	if !store.ValidID(id) {
		writeError(w, http.StatusNotFound, "not_found", "media not found")
		return
	}
	m, err := s.repo.SetActive(r.Context(), id, active)
	if err != nil {
		s.writeStoreError(w, err, "could not change media state")
		return
	}
	s.logger.Info("media state changed", "id", id, "active", active)
	writeData(w, http.StatusOK, m)
}

func (s *Server) listTags(w http.ResponseWriter, r *http.Request) {
	p := bindTagParams(r)
	limit := deref(p.Limit, defaultTagLimit)
	if limit <= 0 {
		limit = defaultTagLimit
	}
	limit = min(limit, maxTagLimit)

	tags, err := s.repo.ListTags(r.Context(), store.NormalizeTag(deref(p.Prefix, "")), limit)
	if err != nil {
		s.writeStoreError(w, err, "could not list tags")
		return
	}
	if tags == nil {
		tags = []string{}
	}
	writeData(w, http.StatusOK, tags)
}

// decode reads a JSON body into dst and validates it, writing a 400 on any
// failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json body")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			writeError(w, http.StatusBadRequest, "validation_failed", validationMessage(verrs))
			return false
		}
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return false
	}
	return true
}

func validationMessage(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		field := e.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		parts = append(parts, field+": "+e.Tag())
	}
	return strings.Join(parts, "; ")
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "media not found")
	case errors.Is(err, context.Canceled):
	default:
		s.logger.Error(message, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", message)
	}
}
