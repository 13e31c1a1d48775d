package output

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/gz/internal/learning"
	"github.com/leapstack-labs/gz/internal/memory"
)

// StatsTopN is how many rules and observations the stats view lists.
const StatsTopN = 10

// StatsSource is the part of the collective memory the stats view reads.
type StatsSource interface {
	Stats() memory.Stats
	CorrectionRules() []memory.Record
	OptimizationRules(level int) []memory.Record
	Observations() []memory.Record
	Log() []memory.LogEntry
}

// RenderStats writes the collective memory diagnostics.
func RenderStats(r *Renderer, src StatsSource) {
	st := src.Stats()

	r.Header(1, "Collective memory")
	backend := st.Backend
	if !st.Persistent {
		backend = "in-memory"
	}
	r.KeyValue("Instance", st.InstanceID)
	r.KeyValue("Backend", backend)
	if st.Path != "" {
		r.KeyValue("Path", st.Path)
	}
	r.KeyValue("Correction rules", st.Corrections)
	r.KeyValue("Optimization rules", st.Optimizations)
	r.KeyValue("Templates", st.Templates)
	r.KeyValue("Syntax patterns", st.Observations)
	r.KeyValue("Log entries", st.LogEntries)
	r.KeyValue("Total learnings", st.TotalLearnings)
	r.KeyValue("Updates pushed", st.UpdatesPushed)
	r.KeyValue("Pending push", st.Dirty)
	if !st.SavedAt.IsZero() {
		r.KeyValue("Saved", st.SavedAt.Local().Format(time.DateTime))
	}
	if st.Warning != "" {
		r.Warning(st.Warning)
	}

	r.Println("")
	r.Header(2, "Top correction rules")
	r.Table(table.Row{"Rule", "Frequency", "Confidence"}, ruleRows(top(src.CorrectionRules())))

	r.Println("")
	r.Header(2, "Optimization rules")
	opt := slices.SortedFunc(slices.Values(src.OptimizationRules(3)), func(a, b memory.Record) int {
		return cmp.Compare(b.Frequency, a.Frequency)
	})
	r.Table(table.Row{"Rule", "Frequency", "Confidence"}, ruleRows(top(opt)))

	r.Println("")
	r.Header(2, "Most common syntax patterns")
	var rows []table.Row
	for _, o := range top(src.Observations()) {
		rows = append(rows, table.Row{o.Category, o.Value, o.Frequency})
	}
	r.Table(table.Row{"Category", "Value", "Frequency"}, rows)

	r.Println("")
	renderExecutions(r, src)
}

// renderExecutions writes the recorded run outcomes and the runtime error
// classes seen most often.
func renderExecutions(r *Renderer, src StatsSource) {
	ex := learning.Executions(src.Log())
	r.Header(2, "Executions")
	if ex.Runs == 0 {
		r.Muted("No runs recorded yet.")
		return
	}
	r.KeyValue("Runs", ex.Runs)
	r.KeyValue("Succeeded", ex.Succeeded)
	r.KeyValue("Failed", ex.Failed)
	r.KeyValue("Success rate", fmt.Sprintf("%.1f%%", 100*ex.SuccessRate()))

	var rows []table.Row
	for _, o := range src.Observations() {
		if o.Category == learning.CategoryRuntimeError {
			rows = append(rows, table.Row{o.Value, o.Frequency})
		}
	}
	if len(rows) == 0 {
		return
	}
	r.Println("")
	r.Header(2, "Runtime errors")
	r.Table(table.Row{"Error", "Frequency"}, rows)
}

// RenderEvolution writes the learning history: entries per day and kind,
// then the most recent entries.
func RenderEvolution(r *Renderer, log []memory.LogEntry, recent int) {
	title := cases.Title(language.English)

	r.Header(1, "Learning history")
	if len(log) == 0 {
		r.Muted("No learnings recorded yet.")
		return
	}

	type dayKey struct {
		day  string
		kind memory.LogKind
	}
	counts := make(map[dayKey]int)
	var days []string
	for _, e := range log {
		day := e.Timestamp.Local().Format(time.DateOnly)
		if !slices.Contains(days, day) {
			days = append(days, day)
		}
		counts[dayKey{day, e.Kind}]++
	}
	kinds := []memory.LogKind{
		memory.LogCorrectionEvent, memory.LogOptimizationEvent, memory.LogSyntaxPattern,
		memory.LogCodeSample, memory.LogOptimizationRule,
	}
	header := table.Row{"Day"}
	for _, k := range kinds {
		header = append(header, title.String(strings.ReplaceAll(string(k), "_", " ")))
	}
	var rows []table.Row
	for _, day := range days {
		row := table.Row{day}
		for _, k := range kinds {
			row = append(row, counts[dayKey{day, k}])
		}
		rows = append(rows, row)
	}
	r.Table(header, rows)

	if recent > 0 && len(log) > recent {
		log = log[len(log)-recent:]
	}
	r.Println("")
	r.Header(2, fmt.Sprintf("Last %d learnings", len(log)))
	var recentRows []table.Row
	for _, e := range log {
		recentRows = append(recentRows, table.Row{e.Timestamp.Local().Format(time.DateTime), string(e.Kind), memory.PayloadSummary(e.Payload)})
	}
	r.Table(table.Row{"Time", "Kind", "Detail"}, recentRows)
}

func top(records []memory.Record) []memory.Record {
	if len(records) > StatsTopN {
		return records[:StatsTopN]
	}
	return records
}

func ruleRows(records []memory.Record) []table.Row {
	rows := make([]table.Row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, table.Row{rec.Label(), rec.Frequency, fmt.Sprintf("%.3f", rec.Confidence)})
	}
	return rows
}
