package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/UncleTupelo/pulse/internal/extract"
	"github.com/UncleTupelo/pulse/internal/ingest"
	"github.com/UncleTupelo/pulse/internal/registry"
	"github.com/UncleTupelo/pulse/internal/search"
	"github.com/UncleTupelo/pulse/internal/store"
)

const snippetLength = 160

// Printer renders command results to one writer. With JSON enabled
// every render method emits a single indented JSON document instead of
// styled text.
type Printer struct {
	w      io.Writer
	styles Styles
	json   bool
}

// NewPrinter builds a printer for w, choosing styles from the writer.
func NewPrinter(w io.Writer, jsonMode bool) *Printer {
	return &Printer{w: w, styles: StylesFor(w), json: jsonMode}
}

// NewPrinterWithStyles is the test seam for forcing a style set.
func NewPrinterWithStyles(w io.Writer, styles Styles, jsonMode bool) *Printer {
	return &Printer{w: w, styles: styles, json: jsonMode}
}

func (p *Printer) printJSON(v any) {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// Successf prints a confirmation line. Write errors to a console are
// ignored throughout.
func (p *Printer) Successf(format string, args ...any) {
	_, _ = fmt.Fprintln(p.w, p.styles.Success.Render(fmt.Sprintf(format, args...)))
}

// Warningf prints a warning line.
func (p *Printer) Warningf(format string, args ...any) {
	_, _ = fmt.Fprintln(p.w, p.styles.Warning.Render(fmt.Sprintf(format, args...)))
}

// Errorf prints an error line.
func (p *Printer) Errorf(format string, args ...any) {
	_, _ = fmt.Fprintln(p.w, p.styles.Error.Render(fmt.Sprintf(format, args...)))
}

// SearchResponse renders ranked results with snippets, then facets if
// the response carries them.
func (p *Printer) SearchResponse(resp *search.Response) {
	if p.json {
		p.printJSON(resp)
		return
	}
	if resp.Degraded {
		p.Warningf("embeddings unavailable, results ranked by metadata only")
	}
	if len(resp.Results) == 0 {
		_, _ = fmt.Fprintln(p.w, p.styles.Label.Render("no results"))
		return
	}

	for i, r := range resp.Results {
		title := r.Item.Title
		if title == "" {
			title = r.Item.Path
		}
		_, _ = fmt.Fprintf(p.w, "%s %s %s\n",
			p.styles.Accent.Render(fmt.Sprintf("%2d.", i+1)),
			p.styles.Title.Render(title),
			p.styles.Relevance.Render(fmt.Sprintf("(%.3f)", r.Relevance)))
		_, _ = fmt.Fprintf(p.w, "    %s\n",
			p.styles.Label.Render(fmt.Sprintf("%s · %s · importance %d",
				r.Item.Path, r.Unit.Kind, r.Unit.Importance)))
		if len(r.Item.Tags) > 0 {
			_, _ = fmt.Fprintf(p.w, "    %s\n",
				p.styles.Tag.Render(strings.Join(r.Item.Tags, ", ")))
		}
		if snippet := snippetOf(r.Unit.Text); snippet != "" {
			_, _ = fmt.Fprintf(p.w, "    %s\n", p.styles.Dim.Render(snippet))
		}
	}
	_, _ = fmt.Fprintf(p.w, "\n%s\n",
		p.styles.Label.Render(fmt.Sprintf("%d of %d matches", len(resp.Results), resp.Total)))

	if resp.Facets != nil {
		p.facetBody(resp.Facets)
	}
}

// Facets renders a standalone facet summary.
func (p *Printer) Facets(f *search.Facets) {
	if p.json {
		p.printJSON(f)
		return
	}
	p.facetBody(f)
}

func (p *Printer) facetBody(f *search.Facets) {
	p.facetGroup("file types", f.FileTypes)
	p.facetGroup("unit kinds", f.UnitKinds)
	p.facetGroup("tags", f.Tags)

	_, _ = fmt.Fprintf(p.w, "\n%s\n", p.styles.Title.Render("age"))
	for _, row := range []struct {
		label string
		count int
	}{
		{"last 24 hours", f.Dates.LastDay},
		{"last 7 days", f.Dates.LastWeek},
		{"last 30 days", f.Dates.LastMonth},
		{"older", f.Dates.Older},
	} {
		_, _ = fmt.Fprintf(p.w, "  %-16s %s\n",
			p.styles.Label.Render(row.label),
			p.styles.Accent.Render(fmt.Sprintf("%d", row.count)))
	}
}

func (p *Printer) facetGroup(name string, counts []search.FacetCount) {
	if len(counts) == 0 {
		return
	}
	_, _ = fmt.Fprintf(p.w, "\n%s\n", p.styles.Title.Render(name))
	for _, fc := range counts {
		_, _ = fmt.Fprintf(p.w, "  %-16s %s\n",
			p.styles.Label.Render(fc.Value),
			p.styles.Accent.Render(fmt.Sprintf("%d", fc.Count)))
	}
}

// IngestReport renders a batch summary with per-file failures.
func (p *Printer) IngestReport(report *ingest.Report) {
	if p.json {
		p.printJSON(report)
		return
	}
	for _, r := range report.Results {
		switch {
		case r.Err != nil:
			p.Errorf("failed  %s: %s", r.Path, r.Message)
		case r.Skipped:
			_, _ = fmt.Fprintf(p.w, "%s %s\n",
				p.styles.Dim.Render("skipped"), p.styles.Label.Render(r.Path))
		default:
			_, _ = fmt.Fprintf(p.w, "%s %s %s\n",
				p.styles.Success.Render("indexed"),
				r.Path,
				p.styles.Label.Render(fmt.Sprintf("(%d units)", r.Units)))
		}
	}
	_, _ = fmt.Fprintf(p.w, "\n%s\n", p.styles.Title.Render(
		fmt.Sprintf("%d files: %d ok, %d failed", report.Total, report.Successful, report.Failed)))
}

// Items renders a recency listing.
func (p *Printer) Items(items []*store.SourceItem, total int) {
	if p.json {
		p.printJSON(map[string]any{"items": items, "total": total})
		return
	}
	if len(items) == 0 {
		_, _ = fmt.Fprintln(p.w, p.styles.Label.Render("no items"))
		return
	}
	for _, item := range items {
		_, _ = fmt.Fprintf(p.w, "%s  %s %s\n",
			p.styles.Label.Render(item.CreatedAt.Local().Format("2006-01-02 15:04")),
			p.styles.Title.Render(item.Path),
			p.styles.Dim.Render(fmt.Sprintf("[%s]", item.Category)))
	}
	if total > len(items) {
		_, _ = fmt.Fprintf(p.w, "\n%s\n",
			p.styles.Label.Render(fmt.Sprintf("%d of %d items", len(items), total)))
	}
}

// TagCounts renders tag usage.
func (p *Printer) TagCounts(counts []store.TagCount) {
	if p.json {
		p.printJSON(counts)
		return
	}
	for _, tc := range counts {
		_, _ = fmt.Fprintf(p.w, "  %-24s %s\n",
			p.styles.Tag.Render(tc.Tag),
			p.styles.Accent.Render(fmt.Sprintf("%d", tc.Count)))
	}
}

// SupportedTypes renders the extractor inventory.
func (p *Printer) SupportedTypes(types []extract.SupportedType) {
	if p.json {
		p.printJSON(types)
		return
	}
	for _, st := range types {
		name := st.Name
		if st.Fallback {
			name += " (fallback)"
		}
		_, _ = fmt.Fprintf(p.w, "%s\n  %s\n  %s\n",
			p.styles.Title.Render(name),
			p.styles.Label.Render(st.Description),
			p.styles.Dim.Render(strings.Join(st.Extensions, " ")))
	}
}

// Artifacts renders a registry listing.
func (p *Printer) Artifacts(artifacts []*registry.Artifact, total int) {
	if p.json {
		p.printJSON(map[string]any{"artifacts": artifacts, "total": total})
		return
	}
	if len(artifacts) == 0 {
		_, _ = fmt.Fprintln(p.w, p.styles.Label.Render("no artifacts"))
		return
	}
	for _, a := range artifacts {
		p.artifactLine(a)
	}
	if total > len(artifacts) {
		_, _ = fmt.Fprintf(p.w, "\n%s\n",
			p.styles.Label.Render(fmt.Sprintf("%d of %d artifacts", len(artifacts), total)))
	}
}

// Artifact renders one artifact in full.
func (p *Printer) Artifact(a *registry.Artifact) {
	if p.json {
		p.printJSON(a)
		return
	}
	p.artifactLine(a)
	if a.Description != "" {
		_, _ = fmt.Fprintf(p.w, "    %s\n", a.Description)
	}
	if a.UseCase != "" {
		_, _ = fmt.Fprintf(p.w, "    %s %s\n", p.styles.Label.Render("use case:"), a.UseCase)
	}
	_, _ = fmt.Fprintf(p.w, "    %s %s\n", p.styles.Label.Render("file:"),
		fmt.Sprintf("%s (%s)", a.FilePath, formatBytes(a.FileSize)))
	for name, value := range a.Metrics {
		_, _ = fmt.Fprintf(p.w, "    %s %.4f\n",
			p.styles.Label.Render(name+":"), value)
	}
}

func (p *Printer) artifactLine(a *registry.Artifact) {
	status := ""
	if !a.Active {
		status = " " + p.styles.Dim.Render("(inactive)")
	}
	_, _ = fmt.Fprintf(p.w, "%s %s%s\n",
		p.styles.Title.Render(a.Name),
		p.styles.Accent.Render("v"+a.Version),
		status)
	meta := []string{a.ModelType, a.Framework}
	meta = append(meta, a.Tags...)
	line := strings.TrimSpace(strings.Join(nonEmpty(meta), " · "))
	if line != "" {
		_, _ = fmt.Fprintf(p.w, "    %s\n", p.styles.Label.Render(line))
	}
}

// Stats renders index counters as aligned label/value rows.
func (p *Printer) Stats(stats map[string]any) {
	if p.json {
		p.printJSON(stats)
		return
	}
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_, _ = fmt.Fprintf(p.w, "  %-20s %s\n",
			p.styles.Label.Render(k),
			p.styles.Accent.Render(fmt.Sprintf("%v", stats[k])))
	}
}

// snippetOf returns the first line of text, flattened and truncated.
func snippetOf(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[:idx]
	}
	if len(text) > snippetLength {
		text = text[:snippetLength] + "…"
	}
	return text
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

func nonEmpty(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Elapsed formats a duration for summary lines, trimming sub-ms noise.
func Elapsed(d time.Duration) string {
	if d >= time.Second {
		return d.Round(10 * time.Millisecond).String()
	}
	return d.Round(time.Millisecond).String()
}
