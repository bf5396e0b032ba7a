package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/example/gallery/internal/client"
	"github.com/example/gallery/internal/store"
)

var (
	promptStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214"))

	kindStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	summaryStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("32")).
			Border(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("32")).
			Padding(0, 1)
)

func renderState(out io.Writer, s client.State) {
	fmt.Fprintln(out)
	if s.Err != nil {
		fmt.Fprintln(out, errorStyle.Render("error: "+s.Message()))
	}
	if len(s.Items) == 0 {
		fmt.Fprintln(out, metaStyle.Render("no results"))
		return
	}
	for i, m := range s.Items {
		renderMedia(out, i+1, m)
	}
	p := s.Pagination
	summary := fmt.Sprintf("%d of %d  page %d/%d", len(s.Items), p.Total, p.Page, p.TotalPages)
	if s.HasMore {
		summary += "  :more for next page"
	}
	fmt.Fprintln(out, summaryStyle.Render(summary))
}

func renderMedia(out io.Writer, n int, m store.Media) {
	line := fmt.Sprintf("%3d. %s %s", n, titleStyle.Render(m.Title), kindStyle.Render("["+string(m.Type)+"]"))
	fmt.Fprintln(out, line)
	var meta []string
	if len(m.Tags) > 0 {
		meta = append(meta, "#"+strings.Join(m.Tags, " #"))
	}
	if m.Metadata.Width > 0 && m.Metadata.Height > 0 {
		meta = append(meta, fmt.Sprintf("%dx%d", m.Metadata.Width, m.Metadata.Height))
	}
	if m.Metadata.Duration > 0 {
		meta = append(meta, fmt.Sprintf("%.1fs", m.Metadata.Duration))
	}
	meta = append(meta, m.URL)
	fmt.Fprintln(out, "     "+metaStyle.Render(strings.Join(meta, "  ")))
}

func renderHistory(out io.Writer, items []string) {
	fmt.Fprintln(out)
	if len(items) == 0 {
		fmt.Fprintln(out, metaStyle.Render("no recent searches"))
		return
	}
	for i, q := range items {
		fmt.Fprintf(out, "%2d. %s\n", i+1, q)
	}
}

func renderTags(out io.Writer, tags []string) {
	if len(tags) == 0 {
		fmt.Fprintln(out, metaStyle.Render("no tags"))
		return
	}
	for _, t := range tags {
		fmt.Fprintln(out, "#"+t)
	}
}
