// package formatter renders sync results and fetched records for the terminal and for files (CSV, JSON, tables)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/desertthunder/hubsync/internal/models"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	labelStyle  = lipgloss.NewStyle().Faint(true).Width(14)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// MarshalJSON encodes data, indented when pretty is set.
func MarshalJSON(data any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(data, "", "  ")
	}
	return json.Marshal(data)
}

// WriteJSONFile writes data as indented JSON to path, creating parent directories.
func WriteJSONFile(path string, data any) error {
	out, err := MarshalJSON(data, true)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, append(out, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// JSONDumper writes named dumps as JSON files under Dir.
type JSONDumper struct {
	Dir string
}

func (d JSONDumper) Dump(name string, data any) error {
	return WriteJSONFile(filepath.Join(d.Dir, name), data)
}

// RenderSummary renders the outcome of a run as a bordered block.
func RenderSummary(run *models.SyncRun) string {
	var b strings.Builder

	title := "Sync Complete"
	switch {
	case run.Status == models.RunFailed:
		title = "Sync Failed"
	case run.DryRun:
		title = "Sync Plan (dry run)"
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n\n")

	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label))
		b.WriteString(value)
		b.WriteString("\n")
	}

	row("Run", fmt.Sprintf("#%d %s", run.Sequence, run.ID))
	row("Source", strconv.Itoa(run.SourceCount)+" contacts")
	row("Destination", strconv.Itoa(run.DestinationCount)+" subscribers")

	verb := ""
	if run.DryRun {
		verb = " (planned)"
	}
	row("Created", okStyle.Render(strconv.Itoa(run.Result.Created))+verb)
	row("Updated", okStyle.Render(strconv.Itoa(run.Result.Updated))+verb)
	row("Skipped", warnStyle.Render(strconv.Itoa(run.Result.Skipped)))
	row("Failed", failedCount(run.Result.Failed))
	if d := run.Duration(); d > 0 {
		row("Duration", d.Round(time.Millisecond).String())
	}
	if run.ErrorMessage != "" {
		row("Error", errStyle.Render(run.ErrorMessage))
	}

	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func failedCount(n int) string {
	if n == 0 {
		return strconv.Itoa(n)
	}
	return errStyle.Render(strconv.Itoa(n))
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

// RunsTable renders run history newest first.
func RunsTable(runs []*models.SyncRun) string {
	t := newTable("#", "ID", "Status", "Dry Run", "Started", "Created", "Updated", "Skipped", "Failed")
	for _, run := range runs {
		t.Row(
			strconv.Itoa(run.Sequence),
			run.ID,
			string(run.Status),
			strconv.FormatBool(run.DryRun),
			run.StartedAt.Local().Format(time.DateTime),
			strconv.Itoa(run.Result.Created),
			strconv.Itoa(run.Result.Updated),
			strconv.Itoa(run.Result.Skipped),
			strconv.Itoa(run.Result.Failed),
		)
	}
	return t.String()
}

// OutcomesTable renders per-record outcomes in reconciliation order.
func OutcomesTable(outcomes []models.RecordOutcome) string {
	t := newTable("Source ID", "Email", "Action", "Destination ID", "Error")
	for _, o := range outcomes {
		t.Row(o.SourceID, o.Email, string(o.Action), o.DestinationID, o.Error)
	}
	return t.String()
}

// SourcesTable renders source records with the given property columns after ID.
func SourcesTable(records []models.SourceRecord, properties []string) string {
	t := newTable(append([]string{"ID"}, properties...)...)
	for _, r := range records {
		row := []string{r.ID}
		for _, p := range properties {
			v, _ := r.Property(p)
			row = append(row, v)
		}
		t.Row(row...)
	}
	return t.String()
}

// DestinationsTable renders destination records sorted by email with the given field columns.
func DestinationsTable(records []models.DestinationRecord, fields []string) string {
	sorted := append([]models.DestinationRecord(nil), records...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Email < sorted[j].Email })

	t := newTable(append([]string{"ID", "Email", "Status"}, fields...)...)
	for _, r := range sorted {
		row := []string{r.ID, r.Email, r.Status}
		for _, f := range fields {
			v := ""
			if p := r.Fields[f]; p != nil {
				v = *p
			}
			row = append(row, v)
		}
		t.Row(row...)
	}
	return t.String()
}

// ExportOutcomesCSV converts outcomes to CSV with columns: Source ID, Email, Action, Destination ID, Error
func ExportOutcomesCSV(outcomes []models.RecordOutcome) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Source ID", "Email", "Action", "Destination ID", "Error"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, o := range outcomes {
		record := []string{o.SourceID, o.Email, string(o.Action), o.DestinationID, o.Error}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}
