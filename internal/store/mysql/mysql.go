// Package mysql is a Repository over MySQL/MariaDB using InnoDB FULLTEXT
// search for relevance. The schema lives in the top-level migrations package.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	driver "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/example/gallery/internal/store"
)

const matchExpr = "MATCH(m.title, m.description, m.tag_text) AGAINST (? IN NATURAL LANGUAGE MODE)"

const mediaColumns = "m.id, m.title, m.description, m.url, m.thumbnail_url, m.type, m.width, m.height, m.size, m.format, m.duration, m.tag_text, m.is_active, m.created_at, m.updated_at"

var allowedSort = map[store.SortField]string{
	store.SortCreatedAt: "m.created_at",
	store.SortTitle:     "m.title",
}

type mediaRow struct {
	ID           string `db:"id"`
	Title        string `db:"title"`
	Description  string `db:"description"`
	URL          string `db:"url"`
	ThumbnailURL string `db:"thumbnail_url"`
	Type         string `db:"type"`
	store.Metadata
	TagText   string          `db:"tag_text"`
	IsActive  bool            `db:"is_active"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
	Relevance sql.NullFloat64 `db:"relevance"`
}

func (r mediaRow) toMedia() store.Media {
	return store.Media{
		ID:           r.ID,
		Title:        r.Title,
		Description:  r.Description,
		URL:          r.URL,
		ThumbnailURL: r.ThumbnailURL,
		Type:         store.MediaType(r.Type),
		Tags:         []string{},
		Metadata:     r.Metadata,
		IsActive:     r.IsActive,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		Score:        r.Relevance.Float64,
	}
}

type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open connects with parseTime enabled and UTC timestamps.
func Open(dsn string) (*sqlx.DB, error) {
	cfg, err := driver.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	db, err := sqlx.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func (s *Store) DB() *sqlx.DB {
	return s.db
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// buildWhere renders f as a WHERE clause over alias m.
func buildWhere(f store.Filter) (string, []any) {
	where := []string{}
	args := []any{}

	switch f.Visibility {
	case store.VisibleAll:
	case store.VisibleInactive:
		where = append(where, "m.is_active = 0")
	default:
		where = append(where, "m.is_active = 1")
	}
	if f.Type != "" {
		where = append(where, "m.type = ?")
		args = append(args, string(f.Type))
	}
	if tags := store.NormalizeTags(f.Tags); len(tags) > 0 {
		where = append(where, "EXISTS (SELECT 1 FROM media_tag mt JOIN tag t ON t.id = mt.tag_id WHERE mt.media_id = m.id AND t.name IN ("+placeholders(len(tags))+"))")
		args = append(args, toAny(tags)...)
	}
	if f.Text != "" {
		where = append(where, matchExpr)
		args = append(args, f.Text)
	}
	if len(where) == 0 {
		return "1=1", args
	}
	return strings.Join(where, " AND "), args
}

func orderClause(opts store.FindOptions, hasText bool) string {
	if opts.Sort == store.SortRelevance && hasText {
		return "relevance DESC, m.id ASC"
	}
	col, ok := allowedSort[opts.Sort]
	if !ok {
		col = allowedSort[store.SortCreatedAt]
	}
	dir := "ASC"
	if opts.Desc {
		dir = "DESC"
	}
	return col + " " + dir + ", m.id ASC"
}

func buildFind(f store.Filter, opts store.FindOptions) (string, []any) {
	whereSQL, args := buildWhere(f)
	selectCols := mediaColumns
	listArgs := []any{}
	if f.Text != "" {
		selectCols += ", " + matchExpr + " AS relevance"
		listArgs = append(listArgs, f.Text)
	}
	listArgs = append(listArgs, args...)

	query := "SELECT " + selectCols + " FROM media m WHERE " + whereSQL + " ORDER BY " + orderClause(opts, f.Text != "")
	if opts.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		listArgs = append(listArgs, opts.Limit, max(opts.Skip, 0))
	}
	return query, listArgs
}

func (s *Store) Find(ctx context.Context, f store.Filter, opts store.FindOptions) ([]store.Media, error) {
	query, args := buildFind(f, opts)
	var rows []mediaRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	items := make([]store.Media, len(rows))
	for i := range rows {
		items[i] = rows[i].toMedia()
	}
	if err := s.attachTags(ctx, nil, items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) Count(ctx context.Context, f store.Filter) (int, error) {
	whereSQL, args := buildWhere(f)
	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM media m WHERE "+whereSQL, args...); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) Get(ctx context.Context, id string, includeInactive bool) (*store.Media, error) {
	where := "m.id = ?"
	if !includeInactive {
		where += " AND m.is_active = 1"
	}
	return s.fetch(ctx, nil, where, id)
}

func (s *Store) fetch(ctx context.Context, tx *sqlx.Tx, where string, args ...any) (*store.Media, error) {
	query := "SELECT " + mediaColumns + " FROM media m WHERE " + where
	var r mediaRow
	var err error
	if tx != nil {
		err = tx.GetContext(ctx, &r, query, args...)
	} else {
		err = s.db.GetContext(ctx, &r, query, args...)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	items := []store.Media{r.toMedia()}
	if err := s.attachTags(ctx, tx, items); err != nil {
		return nil, err
	}
	return &items[0], nil
}

func (s *Store) Create(ctx context.Context, in store.MediaCreate) (*store.Media, error) {
	m := store.NewMedia(store.NewID(), in, time.Now().UTC())

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	query := `INSERT INTO media (id, title, description, url, thumbnail_url, type, width, height, size, format, duration, tag_text, is_active, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`
	if _, err := tx.ExecContext(ctx, query,
		m.ID, m.Title, m.Description, m.URL, m.ThumbnailURL, string(m.Type),
		m.Metadata.Width, m.Metadata.Height, m.Metadata.Size, m.Metadata.Format, m.Metadata.Duration,
		store.TagText(m.Tags), m.CreatedAt, m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := s.replaceTagsTx(ctx, tx, m.ID, m.Tags); err != nil {
		return nil, err
	}

	out, err := s.fetch(ctx, tx, "m.id = ?", m.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Update(ctx context.Context, id string, upd store.MediaUpdate) (*store.Media, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	current, err := s.fetch(ctx, tx, "m.id = ? AND m.is_active = 1 FOR UPDATE", id)
	if err != nil {
		return nil, err
	}
	current.Apply(upd, time.Now().UTC())

	query := `UPDATE media SET title = ?, description = ?, url = ?, thumbnail_url = ?, type = ?,
	width = ?, height = ?, size = ?, format = ?, duration = ?, tag_text = ?, updated_at = ? WHERE id = ?`
	if _, err := tx.ExecContext(ctx, query,
		current.Title, current.Description, current.URL, current.ThumbnailURL, string(current.Type),
		current.Metadata.Width, current.Metadata.Height, current.Metadata.Size, current.Metadata.Format, current.Metadata.Duration,
		store.TagText(current.Tags), current.UpdatedAt, id,
	); err != nil {
		return nil, err
	}
	if upd.Tags != nil {
		if err := s.replaceTagsTx(ctx, tx, id, current.Tags); err != nil {
			return nil, err
		}
	}

	out, err := s.fetch(ctx, tx, "m.id = ?", id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) SetActive(ctx context.Context, id string, active bool) (*store.Media, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE media SET is_active = ?, updated_at = ? WHERE id = ? AND is_active = ?",
		active, time.Now().UTC(), id, !active,
	)
	if err != nil {
		return nil, err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.fetch(ctx, nil, "m.id = ?", id)
}

func (s *Store) replaceTagsTx(ctx context.Context, tx *sqlx.Tx, mediaID string, tags []string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM media_tag WHERE media_id = ?", mediaID); err != nil {
		return err
	}
	for _, t := range tags {
		res, err := tx.ExecContext(ctx, "INSERT INTO tag (name) VALUES (?) ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id)", t)
		if err != nil {
			return err
		}
		tagID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "INSERT IGNORE INTO media_tag (media_id, tag_id) VALUES (?, ?)", mediaID, tagID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) attachTags(ctx context.Context, tx *sqlx.Tx, items []store.Media) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]string, len(items))
	index := make(map[string]*store.Media, len(items))
	for i := range items {
		ids[i] = items[i].ID
		index[items[i].ID] = &items[i]
	}

	query := "SELECT mt.media_id, t.name FROM media_tag mt JOIN tag t ON t.id = mt.tag_id WHERE mt.media_id IN (" + placeholders(len(ids)) + ") ORDER BY t.name"
	var rows *sqlx.Rows
	var err error
	if tx != nil {
		rows, err = tx.QueryxContext(ctx, query, toAny(ids)...)
	} else {
		rows, err = s.db.QueryxContext(ctx, query, toAny(ids)...)
	}
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var mediaID, name string
		if err := rows.Scan(&mediaID, &name); err != nil {
			return err
		}
		if m, ok := index[mediaID]; ok {
			m.Tags = append(m.Tags, name)
		}
	}
	return rows.Err()
}

func (s *Store) ListTags(ctx context.Context, prefix string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT DISTINCT t.name FROM tag t
	JOIN media_tag mt ON mt.tag_id = t.id
	JOIN media m ON m.id = mt.media_id
	WHERE m.is_active = 1`
	args := []any{}
	if prefix = store.NormalizeTag(prefix); prefix != "" {
		query += " AND t.name LIKE ?"
		args = append(args, escapeLike(prefix)+"%")
	}
	query += " ORDER BY t.name LIMIT ?"
	args = append(args, limit)

	var tags []string
	if err := s.db.SelectContext(ctx, &tags, query, args...); err != nil {
		return nil, err
	}
	return tags, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func toAny[T comparable](vals []T) []any {
	res := make([]any, len(vals))
	for i, v := range vals {
		res[i] = v
	}
	return res
}
