package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"

	"github.com/example/gallery/internal/client"
	"github.com/example/gallery/internal/metrics"
	"github.com/example/gallery/internal/query"
)

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Interactive search: type a query per line, :more for the next page, :clear, :history, :quit",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "type", Usage: "all, image or video", Value: "all"},
			&cli.StringSliceFlag{Name: "tag", Usage: "Tag filter, repeatable (matches any)"},
			&cli.StringFlag{Name: "sort-by", Usage: "createdAt or title (default: relevance when searching text)"},
			&cli.StringFlag{Name: "sort-order", Usage: "asc or desc", Value: "desc"},
			&cli.IntFlag{Name: "limit", Usage: "Page size", Value: query.DefaultLimits.Default},
			&cli.DurationFlag{Name: "debounce", Usage: "Quiet period before a typed query is sent", Value: client.DefaultDebounce},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			params := query.Params{
				Type:      cmd.String("type"),
				Tags:      cmd.StringSlice("tag"),
				SortBy:    cmd.String("sort-by"),
				SortOrder: cmd.String("sort-order"),
				Limit:     cmd.Int("limit"),
			}
			return runSearch(ctx, apiClient(cmd), params, client.Options{
				Debounce: cmd.Duration("debounce"),
				Logger:   cliLogger(cmd),
			}, os.Stdin, os.Stdout)
		},
	}
}

// runSearch drives one Controller from line-oriented input until EOF or
// :quit.
func runSearch(ctx context.Context, api client.Searcher, params query.Params, opts client.Options, in io.Reader, out io.Writer) error {
	reg := prometheus.NewRegistry()
	metrics.RegisterClient(reg)

	ctrl := client.NewController(api, opts)
	defer ctrl.Close()
	ctrl.SetParams(params)
	trigger := client.ForController(ctrl)

	var outMu sync.Mutex
	unsubscribe := ctrl.Store().Subscribe(func(s client.State) {
		if s.Loading {
			return
		}
		outMu.Lock()
		defer outMu.Unlock()
		renderState(out, s)
	})
	defer unsubscribe()

	printPrompt(out, &outMu)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := scanner.Text()
		switch strings.TrimSpace(line) {
		case ":quit", ":q":
			return nil
		case ":more":
			// Scrolling the end of the list into view.
			_, _ = trigger.SetVisible(ctx, false)
			fired, err := trigger.SetVisible(ctx, true)
			if err != nil {
				return err
			}
			if !fired {
				outMu.Lock()
				fmt.Fprintln(out, metaStyle.Render("nothing more to load"))
				outMu.Unlock()
			}
		case ":clear":
			ctrl.ClearResults()
		case ":history":
			outMu.Lock()
			renderHistory(out, ctrl.History())
			outMu.Unlock()
		default:
			ctrl.SetQuery(line)
		}
		printPrompt(out, &outMu)
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	outMu.Lock()
	renderCacheStats(out, reg)
	outMu.Unlock()
	return nil
}

func printPrompt(out io.Writer, mu *sync.Mutex) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprint(out, promptStyle.Render("search>")+" ")
}

func renderCacheStats(out io.Writer, g prometheus.Gatherer) {
	families, err := g.Gather()
	if err != nil {
		return
	}
	var hits, misses float64
	for _, f := range families {
		for _, m := range f.GetMetric() {
			switch f.GetName() {
			case "gallery_client_cache_hits_total":
				hits += m.GetCounter().GetValue()
			case "gallery_client_cache_misses_total":
				misses += m.GetCounter().GetValue()
			}
		}
	}
	fmt.Fprintln(out, metaStyle.Render(fmt.Sprintf("cache: %.0f hits, %.0f misses", hits, misses)))
}
