package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/custodia-labs/invoicesync/internal/core/domain"
)

// maxValueWidth truncates long values in report tables.
const maxValueWidth = 40

// theme defines the colour palette for command output.
type theme struct {
	Primary lipgloss.Color
	Muted   lipgloss.Color
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Border  lipgloss.Color
}

func defaultTheme() theme {
	return theme{
		Primary: lipgloss.Color("#7C3AED"), // Purple
		Muted:   lipgloss.Color("#6C7086"), // Medium gray
		Success: lipgloss.Color("#A6E3A1"), // Green
		Warning: lipgloss.Color("#F9E2AF"), // Yellow
		Error:   lipgloss.Color("#F38BA8"), // Red
		Border:  lipgloss.Color("#45475A"), // Border gray
	}
}

// printer renders reports and schemas. Colours are dropped when w is not a terminal.
type printer struct {
	w io.Writer

	title   lipgloss.Style
	header  lipgloss.Style
	cell    lipgloss.Style
	muted   lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
	border  lipgloss.Style
}

func newPrinter(w io.Writer) *printer {
	r := lipgloss.NewRenderer(w)
	t := defaultTheme()
	cell := r.NewStyle().Padding(0, 1)

	return &printer{
		w:       w,
		title:   r.NewStyle().Bold(true).Foreground(t.Primary),
		header:  cell.Bold(true),
		cell:    cell,
		muted:   r.NewStyle().Foreground(t.Muted),
		success: cell.Foreground(t.Success),
		warning: cell.Foreground(t.Warning),
		failure: cell.Foreground(t.Error),
		border:  r.NewStyle().Foreground(t.Border),
	}
}

func (p *printer) newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(p.border).
		Headers(headers...)
}

// report prints the per-key outcomes, the description status and the subtasks.
func (p *printer) report(r *domain.ReconciliationReport) {
	fmt.Fprintln(p.w, p.title.Render(fmt.Sprintf("Task %s", r.TaskID))+p.muted.Render(listSuffix(r.ListID)))

	if len(r.Outcomes) > 0 {
		statuses := make([]domain.WriteStatus, len(r.Outcomes))
		t := p.newTable("ITEM", "KEY", "FIELD", "ACTION", "STATUS", "VALUE")
		for i := range r.Outcomes {
			o := &r.Outcomes[i]
			statuses[i] = o.Status
			t.Row(itemLabel(o.ItemIndex), o.Key, fieldLabel(o), string(o.Action), string(o.Status), truncate(o.Value, maxValueWidth))
		}
		t.StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return p.header
			}
			if col == 4 && row >= 0 && row < len(statuses) {
				return p.statusStyle(statuses[row])
			}
			return p.cell
		})
		fmt.Fprintln(p.w, t.Render())
	} else {
		fmt.Fprintln(p.w, p.muted.Render("No values to write."))
	}

	if r.Description != nil && r.Description.Status != domain.DescriptionSkipped {
		fmt.Fprintf(p.w, "Description: %s\n", r.Description.Status)
	}

	if len(r.Subtasks) > 0 {
		failed := make([]bool, len(r.Subtasks))
		t := p.newTable("ITEM", "SUBTASK", "NAME", "ACTION")
		for i := range r.Subtasks {
			s := &r.Subtasks[i]
			failed[i] = s.Action == domain.SubtaskFailed
			t.Row(itemLabel(s.ItemIndex), s.SubtaskID, truncate(s.Name, maxValueWidth), string(s.Action))
		}
		t.StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return p.header
			}
			if col == 3 && row >= 0 && row < len(failed) && failed[row] {
				return p.failure
			}
			return p.cell
		})
		fmt.Fprintln(p.w, t.Render())
	}

	p.errors(r)
	fmt.Fprintln(p.w, r.Summary())
}

// errors lists every recorded failure under the tables.
func (p *printer) errors(r *domain.ReconciliationReport) {
	for i := range r.Outcomes {
		if o := &r.Outcomes[i]; o.Error != "" {
			fmt.Fprintf(p.w, "  ! %s %s: %s\n", itemLabel(o.ItemIndex), o.Key, o.Error)
		}
	}
	if r.Description != nil && r.Description.Error != "" {
		fmt.Fprintf(p.w, "  ! description: %s\n", r.Description.Error)
	}
	for i := range r.Subtasks {
		if s := &r.Subtasks[i]; s.Error != "" {
			fmt.Fprintf(p.w, "  ! subtask %s: %s\n", itemLabel(s.ItemIndex), s.Error)
		}
	}
}

// fields prints the custom fields of a list in schema order.
func (p *printer) fields(schema *domain.SchemaIndex) {
	fmt.Fprintln(p.w, p.title.Render("Custom fields")+p.muted.Render(listSuffix(schema.ListID)))
	if schema.Len() == 0 {
		fmt.Fprintln(p.w, p.muted.Render("No custom fields."))
		return
	}

	t := p.newTable("ID", "NAME", "TYPE", "PROVIDER TYPE", "OPTIONS")
	for _, f := range schema.Fields() {
		options := ""
		if f.IsEnumerated() {
			options = strconv.Itoa(len(f.Options))
		}
		t.Row(f.ID, f.Name, string(f.Type), f.ProviderType, options)
	}
	t.StyleFunc(func(row, _ int) lipgloss.Style {
		if row == table.HeaderRow {
			return p.header
		}
		return p.cell
	})
	fmt.Fprintln(p.w, t.Render())
}

func (p *printer) statusStyle(s domain.WriteStatus) lipgloss.Style {
	switch s {
	case domain.StatusWritten:
		return p.success
	case domain.StatusDegraded, domain.StatusNoMatch:
		return p.warning
	case domain.StatusFailed:
		return p.failure
	default:
		return p.cell
	}
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func listSuffix(listID string) string {
	if listID == "" {
		return ""
	}
	return " (list " + listID + ")"
}

func itemLabel(index int) string {
	if index == domain.ItemHeader {
		return "header"
	}
	return "#" + strconv.Itoa(index+1)
}

func fieldLabel(o *domain.Outcome) string {
	switch {
	case o.FieldName != "" && o.FieldID != "":
		return o.FieldName + " (" + o.FieldID + ")"
	case o.FieldName != "":
		return o.FieldName
	default:
		return o.FieldID
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
