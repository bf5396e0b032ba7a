package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"unicode"

	"github.com/urfave/cli/v3"

	"github.com/example/gallery/internal/client"
	"github.com/example/gallery/internal/media"
	"github.com/example/gallery/internal/store"
)

const (
	defaultMaxImportBytes = 200 << 20
	maxTitleRunes         = 200
)

func importCommand() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Probe a directory of images and videos and create a media record for each",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Usage: "Directory to scan", Required: true},
			&cli.StringFlag{Name: "base-url", Usage: "Public URL the files are served under", Required: true},
			&cli.StringFlag{Name: "publish-dir", Usage: "Copy files into a content-addressed tree here before registering them"},
			&cli.StringSliceFlag{Name: "tag", Usage: "Tag added to every record, repeatable"},
			&cli.Int64Flag{Name: "max-bytes", Usage: "Largest file accepted", Value: defaultMaxImportBytes},
			&cli.BoolFlag{Name: "dry-run", Usage: "Probe and print without creating records"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			imp := importer{
				api:      apiClient(cmd),
				baseURL:  strings.TrimRight(cmd.String("base-url"), "/"),
				tags:     cmd.StringSlice("tag"),
				maxBytes: cmd.Int64("max-bytes"),
				dryRun:   cmd.Bool("dry-run"),
				out:      os.Stdout,
			}
			if dir := cmd.String("publish-dir"); dir != "" {
				imp.publisher = media.NewManager(dir)
				if err := imp.publisher.IsWritable(); err != nil {
					return fmt.Errorf("publish dir: %w", err)
				}
			}
			return imp.run(ctx, cmd.String("dir"))
		},
	}
}

type mediaCreator interface {
	CreateMedia(ctx context.Context, in client.CreateRequest) (*store.Media, error)
}

type importer struct {
	api       mediaCreator
	publisher *media.Manager
	baseURL   string
	tags      []string
	maxBytes  int64
	dryRun    bool
	out       io.Writer
}

func (imp *importer) run(ctx context.Context, dir string) error {
	files, err := media.Scan(dir)
	if err != nil {
		return err
	}
	var created, skipped int
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		req, err := imp.request(f)
		if err != nil {
			if errors.Is(err, media.ErrInvalidImage) || errors.Is(err, media.ErrTooLarge) {
				skipped++
				fmt.Fprintln(imp.out, metaStyle.Render("skip "+f.Rel+": "+err.Error()))
				continue
			}
			return err
		}
		if imp.dryRun {
			fmt.Fprintf(imp.out, "%s %s %s\n", kindStyle.Render("["+req.Type+"]"), titleStyle.Render(req.Title), req.URL)
			continue
		}
		m, err := imp.api.CreateMedia(ctx, req)
		if err != nil {
			return fmt.Errorf("create %s: %w", f.Rel, err)
		}
		created++
		fmt.Fprintf(imp.out, "%s %s\n", titleStyle.Render(m.Title), metaStyle.Render(m.ID))
	}
	fmt.Fprintln(imp.out, summaryStyle.Render(fmt.Sprintf("%d files, %d created, %d skipped", len(files), created, skipped)))
	return nil
}

func (imp *importer) request(f media.File) (client.CreateRequest, error) {
	info, err := media.ProbeFile(f.Path, imp.maxBytes)
	if err != nil {
		return client.CreateRequest{}, err
	}
	url := imp.baseURL + "/" + f.Rel
	thumb := url
	if imp.publisher != nil {
		orig, th, err := imp.publisher.Publish(f.Path, info)
		if err != nil {
			return client.CreateRequest{}, err
		}
		url, thumb = imp.baseURL+"/"+orig, imp.baseURL+"/"+th
	}
	return client.CreateRequest{
		Title:        titleFromName(f.Rel),
		URL:          url,
		ThumbnailURL: thumb,
		Type:         string(info.Kind),
		Tags:         append(dirTags(f.Rel), imp.tags...),
		Metadata:     info.Metadata(),
	}, nil
}

// titleFromName turns "trips/mountain_sunset-2.jpg" into "Mountain Sunset 2".
func titleFromName(rel string) string {
	base := strings.TrimSuffix(path.Base(rel), path.Ext(rel))
	words := strings.FieldsFunc(base, func(r rune) bool { return r == '_' || r == '-' || r == ' ' || r == '.' })
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	title := strings.Join(words, " ")
	if title == "" {
		title = base
	}
	if r := []rune(title); len(r) > maxTitleRunes {
		title = string(r[:maxTitleRunes])
	}
	return title
}

// dirTags uses each parent directory name as a tag.
func dirTags(rel string) []string {
	dir := path.Dir(rel)
	if dir == "." {
		return nil
	}
	return strings.Split(dir, "/")
}
