package memory

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

// summaryLogTail is how many recent log entries the summary lists.
const summaryLogTail = 20

// WriteSummary regenerates the Markdown summary of snap at path. The file
// is derived data and is overwritten on every flush.
func WriteSummary(path string, snap *Snapshot) error {
	var b strings.Builder
	RenderSummary(&b, snap)
	return WriteFileAtomic(path, []byte(b.String()))
}

// RenderSummary writes a human-readable Markdown view of snap.
func RenderSummary(w io.Writer, snap *Snapshot) {
	_, _ = fmt.Fprintf(w, "# GZ collective memory\n\n")
	_, _ = fmt.Fprintf(w, "- Instance: `%s`\n", snap.InstanceID)
	_, _ = fmt.Fprintf(w, "- Saved: %s\n", snap.SavedAt.UTC().Format(time.RFC3339))
	_, _ = fmt.Fprintf(w, "- Total learnings: %d\n", snap.TotalLearnings)
	_, _ = fmt.Fprintf(w, "- Updates pushed: %d\n", snap.UpdatesPushed)
	_, _ = fmt.Fprintf(w, "- Pending push: %d\n", snap.Dirty)

	byKind := make(map[Kind][]Record)
	for _, r := range snap.Records {
		byKind[r.Kind] = append(byKind[r.Kind], r)
	}

	section(w, "Correction rules", table.Row{"Pattern", "Replacement", "Frequency", "Confidence", "Explanation"},
		byKind[KindCorrection], func(r Record) table.Row {
			return table.Row{code(r.Pattern), code(r.Replacement), r.Frequency, confidence(r.Confidence), r.Explanation}
		})
	section(w, "Optimization rules", table.Row{"Name", "Level", "Frequency", "Confidence", "Explanation"},
		byKind[KindOptimization], func(r Record) table.Row {
			return table.Row{r.Label(), r.Level, r.Frequency, confidence(r.Confidence), r.Explanation}
		})
	section(w, "Templates", table.Row{"Name", "Frequency", "Confidence", "Description"},
		byKind[KindTemplate], func(r Record) table.Row {
			return table.Row{r.Name, r.Frequency, confidence(r.Confidence), r.Description}
		})
	section(w, "Syntax patterns", table.Row{"Category", "Value", "Frequency", "Source"},
		byKind[KindObservation], func(r Record) table.Row {
			return table.Row{r.Category, code(r.Value), r.Frequency, r.Source}
		})

	log := snap.Log
	if len(log) > summaryLogTail {
		log = log[len(log)-summaryLogTail:]
	}
	section(w, "Recent learnings", table.Row{"Time", "Kind", "Detail"}, log, func(e LogEntry) table.Row {
		return table.Row{e.Timestamp.UTC().Format(time.RFC3339), string(e.Kind), PayloadSummary(e.Payload)}
	})
}

func section[T any](w io.Writer, title string, header table.Row, items []T, row func(T) table.Row) {
	_, _ = fmt.Fprintf(w, "\n## %s\n\n", title)
	if len(items) == 0 {
		_, _ = fmt.Fprintln(w, "_none_")
		return
	}
	t := table.NewWriter()
	t.AppendHeader(header)
	for _, item := range items {
		t.AppendRow(row(item))
	}
	_, _ = fmt.Fprintln(w, t.RenderMarkdown())
}

func code(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\n", `\n`)
	return "`" + strings.ReplaceAll(s, "`", "'") + "`"
}

func confidence(c float64) string {
	return fmt.Sprintf("%.3f", c)
}

// PayloadSummary returns the most identifying key=value pair of a log payload.
func PayloadSummary(p map[string]string) string {
	for _, key := range []string{"rule", "template", "category", "source", "name"} {
		if v, ok := p[key]; ok {
			return key + "=" + v
		}
	}
	return ""
}
