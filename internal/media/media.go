// Package media inspects local image and video files for bulk import and
// publishes them under a content-addressed directory layout.
package media

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "golang.org/x/image/webp"

	"github.com/example/gallery/internal/store"
)

const (
	VariantOriginal = "original"
	VariantThumb    = "thumb"
)

var (
	ErrTooLarge     = errors.New("file too large")
	ErrInvalidImage = errors.New("invalid image")
	ErrUnsupported  = errors.New("unsupported media file")
)

var extKinds = map[string]store.MediaType{
	".jpg":  store.MediaImage,
	".jpeg": store.MediaImage,
	".png":  store.MediaImage,
	".gif":  store.MediaImage,
	".webp": store.MediaImage,
	".mp4":  store.MediaVideo,
	".webm": store.MediaVideo,
	".mov":  store.MediaVideo,
}

// KindOf classifies a file by extension.
func KindOf(name string) (store.MediaType, bool) {
	k, ok := extKinds[strings.ToLower(filepath.Ext(name))]
	return k, ok
}

type File struct {
	Path string
	Rel  string
	Kind store.MediaType
}

// Scan walks root and returns the media files under it ordered by relative
// path. Hidden files and directories are skipped.
func Scan(root string) ([]File, error) {
	var out []File
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		kind, ok := KindOf(d.Name())
		if !ok {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		out = append(out, File{Path: path, Rel: filepath.ToSlash(rel), Kind: kind})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rel < out[j].Rel })
	return out, nil
}

type Info struct {
	SHA256 string
	Size   int64
	Mime   string
	Kind   store.MediaType
	Width  int
	Height int
	Format string
	Ext    string
}

func (i *Info) Metadata() store.Metadata {
	return store.Metadata{Width: i.Width, Height: i.Height, Size: i.Size, Format: i.Format}
}

type countWriter struct{ n int64 }

func (c *countWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}

// Probe reads r once, hashing it and sniffing its type. Images must decode
// to a positive size; videos only get size, mime and format.
func Probe(r io.Reader, name string, maxBytes int64) (*Info, error) {
	kind, ok := KindOf(name)
	if !ok {
		return nil, ErrUnsupported
	}

	lim := &io.LimitedReader{R: r, N: maxBytes + 1}
	br := bufio.NewReader(lim)
	peek, _ := br.Peek(512)
	mimeType := http.DetectContentType(peek)

	hash := sha256.New()
	counter := &countWriter{}
	tee := io.TeeReader(br, io.MultiWriter(hash, counter))

	ext := strings.ToLower(filepath.Ext(name))
	info := &Info{Mime: mimeType, Kind: kind, Ext: ext, Format: strings.TrimPrefix(ext, ".")}
	if kind == store.MediaImage {
		cfg, format, err := image.DecodeConfig(tee)
		if err != nil {
			return nil, ErrInvalidImage
		}
		if cfg.Width <= 0 || cfg.Height <= 0 {
			return nil, ErrInvalidImage
		}
		info.Width, info.Height, info.Format = cfg.Width, cfg.Height, format
	}
	if _, err := io.Copy(io.Discard, tee); err != nil {
		return nil, err
	}
	if lim.N <= 0 || counter.n > maxBytes {
		return nil, ErrTooLarge
	}
	info.Size = counter.n
	info.SHA256 = hex.EncodeToString(hash.Sum(nil))
	return info, nil
}

// ProbeFile opens path and probes it.
func ProbeFile(path string, maxBytes int64) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := Probe(f, filepath.Base(path), maxBytes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return info, nil
}

// Manager copies probed files into a sharded, content-addressed tree that a
// static file server can expose.
type Manager struct {
	root string
}

func NewManager(root string) *Manager {
	return &Manager{root: root}
}

// Publish copies src into the tree and returns the slash-separated keys of
// the original and thumbnail variants, relative to the root. The thumbnail
// is a copy of the original.
func (m *Manager) Publish(src string, info *Info) (original, thumb string, err error) {
	original = Key(info.SHA256, VariantOriginal, info.Ext)
	thumb = Key(info.SHA256, VariantThumb, info.Ext)
	for _, key := range []string{original, thumb} {
		dst := filepath.Join(m.root, filepath.FromSlash(key))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return "", "", err
		}
		if err := copyIfMissing(src, dst); err != nil {
			return "", "", err
		}
	}
	return original, thumb, nil
}

// Key shards by the first two byte pairs of the hash.
func Key(sha, variant, ext string) string {
	return variant + "/" + sha[0:2] + "/" + sha[2:4] + "/" + sha + ext
}

func (m *Manager) IsWritable() error {
	testPath := filepath.Join(m.root, ".writetest")
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(testPath, []byte("ok"), 0o644); err != nil {
		return err
	}
	return os.Remove(testPath)
}

func copyIfMissing(src, dst string) error {
	if _, err := os.Stat(dst); err == nil {
		return nil
	}
	return copyFile(src, dst)
}

func copyFile(src, dst string) error {
	r, err := os.Open(src)
	if err != nil {
		return err
	}
	defer r.Close()
	w, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
