package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/custodia-labs/invoicesync/internal/core/domain"
	"github.com/custodia-labs/invoicesync/internal/core/ports/driven"
)

// Description regions maintained by invoicesync.
const (
	RegionLineItems = "line-items"
	RegionKeyValues = "key-values"
)

// Region is a block of Markdown bracketed by sentinel lines in a task description.
// At most one copy of each region exists in a description.
//
// The sentinels are plain text because ClickUp drops HTML comments when it
// converts Markdown. Descriptions written with the older comment form
// "<!-- invoicesync:NAME:start -->" are still recognised and rewritten.
type Region struct {
	Name string
	Body string
}

// StartMarker returns the line that opens the region.
func (r Region) StartMarker() string {
	return "invoicesync:" + r.Name + ":start"
}

// EndMarker returns the line that closes the region.
func (r Region) EndMarker() string {
	return "invoicesync:" + r.Name + ":end"
}

// Render returns the region including its markers. Blank lines keep the end
// marker from being read as a table row.
func (r Region) Render() string {
	return r.StartMarker() + "\n\n" + strings.TrimRight(r.Body, "\n") + "\n\n" + r.EndMarker()
}

// Merge places the region into description, replacing an existing copy or appending one.
// An existing copy that differs from the rendered region only in whitespace is left alone.
func (r Region) Merge(description string) (string, domain.DescriptionStatus) {
	rendered := r.Render()

	if start, next, ok := markerSpan(description, r.StartMarker(), 0); ok {
		if _, end, ok := markerSpan(description, r.EndMarker(), next); ok {
			if sameWords(description[start:end], rendered) {
				return description, domain.DescriptionUnchanged
			}
			return description[:start] + rendered + description[end:], domain.DescriptionReplaced
		}
	}

	trimmed := strings.TrimRight(description, " \n")
	if trimmed == "" {
		return rendered, domain.DescriptionAppended
	}
	return trimmed + "\n\n" + rendered, domain.DescriptionAppended
}

// markerSpan locates marker in s at or after from. A marker wrapped in an HTML
// comment is returned with the comment delimiters.
func markerSpan(s, marker string, from int) (start, end int, ok bool) {
	i := strings.Index(s[from:], marker)
	if i < 0 {
		return 0, 0, false
	}
	start, end = from+i, from+i+len(marker)
	if strings.HasSuffix(s[:start], legacyOpen) && strings.HasPrefix(s[end:], legacyClose) {
		start -= len(legacyOpen)
		end += len(legacyClose)
	}
	return start, end, true
}

const (
	legacyOpen  = "<!-- "
	legacyClose = " -->"
)

func sameWords(a, b string) bool {
	return strings.Join(strings.Fields(a), " ") == strings.Join(strings.Fields(b), " ")
}

// LineItemsRegion renders line items as a Markdown table.
func LineItemsRegion(items []domain.LineItem) Region {
	var b strings.Builder
	b.WriteString("### Line Items\n\n")
	b.WriteString("| # | Description | Qty | Unit | Unit Price | Amount |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for i, item := range items {
		cells := []string{
			strconv.Itoa(i + 1),
			cell(item.Description),
			cell(item.Quantity),
			cell(item.Unit),
			cell(item.UnitPrice),
			cell(item.Amount),
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	return Region{Name: RegionLineItems, Body: b.String()}
}

// KeyValuesRegion renders reconciled key/value pairs as a Markdown table.
func KeyValuesRegion(entries []domain.Entry) Region {
	var b strings.Builder
	b.WriteString("### Extracted Fields\n\n")
	b.WriteString("| Field | Value |\n")
	b.WriteString("|---|---|\n")
	for _, e := range entries {
		b.WriteString("| " + escapeCell(domain.Humanize(e.Key)) + " | " + cell(e.Value) + " |\n")
	}
	return Region{Name: RegionKeyValues, Body: b.String()}
}

func cell(v domain.Value) string {
	return escapeCell(v.String())
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\r\n", " ")
	return strings.ReplaceAll(s, "\n", " ")
}

// DescriptionAppender maintains invoicesync regions in task descriptions.
type DescriptionAppender struct {
	tasks driven.TaskManager
}

// NewDescriptionAppender creates a new description appender.
func NewDescriptionAppender(tasks driven.TaskManager) *DescriptionAppender {
	return &DescriptionAppender{tasks: tasks}
}

// Apply fetches the current description, merges the region into it and writes it
// back. Nothing is written when the region is already up to date.
func (a *DescriptionAppender) Apply(ctx context.Context, taskID string, region Region) (domain.DescriptionStatus, error) {
	task, err := a.tasks.GetTask(ctx, taskID)
	if err != nil {
		return domain.DescriptionFailed, fmt.Errorf("get description: %w", err)
	}

	merged, status := region.Merge(task.Description)
	if status == domain.DescriptionUnchanged {
		return status, nil
	}

	if err := a.tasks.UpdateDescription(ctx, taskID, merged); err != nil {
		return domain.DescriptionFailed, fmt.Errorf("update description: %w", err)
	}
	return status, nil
}
