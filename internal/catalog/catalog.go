// Package catalog renders the source registry as a markdown table and
// parses such tables back into registry entries. The markdown file is
// the human-editable interface for bulk source management: render it,
// edit it, sync it back.
package catalog

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/meridian-labs/safekb-cli/internal/core/domain"
)

// Table layout of the rendered catalog.
const (
	header    = "| Source | Kind | Mode | Status | Docs | Last Ingested | Link |"
	separator = "|---|---|---|---|---|---|---|"

	emptyCatalog = "_No sources registered yet._"

	dateLayout = "2006-01-02"
)

// statusEmoji maps ingestion statuses to their table markers.
var statusEmoji = map[string]string{
	domain.IngestionStatusSuccess: "✅",
	domain.IngestionStatusFailed:  "❌",
	domain.IngestionStatusPending: "⏳",
}

// linkRe extracts the target of a markdown link.
var linkRe = regexp.MustCompile(`\[(?:[^\]]*)\]\(([^)]+)\)`)

// Render produces the markdown catalog for the given sources.
func Render(title string, sourceList []domain.Source) string {
	var sb strings.Builder
	sb.WriteString("# " + title + "\n\n")

	if len(sourceList) == 0 {
		sb.WriteString(emptyCatalog + "\n")
		return sb.String()
	}

	sb.WriteString(header + "\n")
	sb.WriteString(separator + "\n")
	for _, src := range sourceList {
		sb.WriteString(renderRow(src) + "\n")
	}

	return sb.String()
}

func renderRow(src domain.Source) string {
	status, ok := statusEmoji[src.LastIngestionStatus]
	if !ok {
		status = "•"
	}

	ingested := "-"
	if !src.LastIngestedAt.IsZero() {
		ingested = src.LastIngestedAt.Format(dateLayout)
	}

	link := "-"
	if src.CanonicalURL != "" {
		link = fmt.Sprintf("[link](%s)", src.CanonicalURL)
	}

	return fmt.Sprintf("| %s | %s | %s | %s | %d | %s | %s |",
		escapeCell(src.Name), src.Kind, src.IngestionMode, status, src.DocCount, ingested, link)
}

func escapeCell(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	return strings.ReplaceAll(value, "|", `\|`)
}

// Parse extracts registry entries from a markdown catalog table.
// Rows missing a name or kind are skipped.
func Parse(markdown string) []domain.CatalogEntry {
	var entries []domain.CatalogEntry

	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "|") || isHeaderRow(line) {
			continue
		}

		cells := splitRow(line)
		if len(cells) < 3 {
			continue
		}

		entry := domain.CatalogEntry{
			Name:          cells[0],
			Kind:          cells[1],
			IngestionMode: cells[2],
		}
		if entry.Name == "" || entry.Kind == "" {
			continue
		}

		if m := linkRe.FindStringSubmatch(line); m != nil {
			entry.URL = m[1]
		}

		entries = append(entries, entry)
	}

	return entries
}

func isHeaderRow(line string) bool {
	if strings.Contains(line, "---") {
		return true
	}
	cells := splitRow(line)
	return len(cells) > 0 && strings.EqualFold(cells[0], "Source")
}

// splitRow splits a table row on unescaped pipes and unescapes the
// cells, so names containing a pipe survive a render-parse round trip.
func splitRow(line string) []string {
	var cells []string
	var cell strings.Builder
	escaped := false
	for _, r := range line {
		switch {
		case escaped:
			if r != '|' && r != '\\' {
				cell.WriteRune('\\')
			}
			cell.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '|':
			cells = append(cells, strings.TrimSpace(cell.String()))
			cell.Reset()
		default:
			cell.WriteRune(r)
		}
	}
	if escaped {
		cell.WriteByte('\\')
	}
	cells = append(cells, strings.TrimSpace(cell.String()))

	// Drop the empty cells produced by the row's outer pipes.
	if len(cells) > 0 && cells[0] == "" {
		cells = cells[1:]
	}
	if len(cells) > 0 && cells[len(cells)-1] == "" {
		cells = cells[:len(cells)-1]
	}
	return cells
}
