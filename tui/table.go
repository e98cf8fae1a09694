package tui

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
)

// DefaultPageSize is the number of rows shown per page.
const DefaultPageSize = 10

// PageInfo describes one page of a paginated listing. Page is 1-based.
type PageInfo struct {
	Page  int
	Pages int
	Size  int
	Total int
}

// Paginate returns the items on the given page. Out-of-range pages are
// clamped to the first or last page; a non-positive size uses DefaultPageSize.
func Paginate[T any](items []T, page, size int) ([]T, PageInfo) {
	if size <= 0 {
		size = DefaultPageSize
	}
	pages := max((len(items)+size-1)/size, 1)
	page = min(max(page, 1), pages)

	start := min((page-1)*size, len(items))
	end := min(start+size, len(items))

	return items[start:end], PageInfo{
		Page:  page,
		Pages: pages,
		Size:  size,
		Total: len(items),
	}
}

var (
	styleHeader  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")).Padding(0, 1)
	styleCell    = lipgloss.NewStyle().Padding(0, 1)
	styleCellAlt = styleCell.Foreground(lipgloss.Color("244"))
)

// RenderTable draws rows under headers followed by a page footer.
func RenderTable(headers []string, rows [][]string, info PageInfo) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return styleHeader
			case row%2 == 1:
				return styleCellAlt
			default:
				return styleCell
			}
		})

	var b strings.Builder
	b.WriteString(t.Render())
	b.WriteString("\n")
	fmt.Fprintf(&b, "Page %d of %d (%d total)\n", info.Page, info.Pages, info.Total)
	return b.String()
}
