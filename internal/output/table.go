package output

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Table represents a styled table.
type Table struct {
	headers []string
	rows    [][]string
}

// NewTable creates a new table with the given headers.
func NewTable(headers ...string) *Table {
	return &Table{headers: headers}
}

// Row adds a row to the table.
func (t *Table) Row(cells ...string) *Table {
	t.rows = append(t.rows, cells)
	return t
}

// String renders the table as a string.
func (t *Table) String() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorBlue)

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorDimGray)).
		Headers(t.headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return lipgloss.NewStyle().PaddingRight(1)
		})

	for _, row := range t.rows {
		tbl.Row(row...)
	}

	return tbl.String()
}

// RunRow is one line of a run listing.
type RunRow struct {
	ProjectID string
	RunID     string
	Status    string
	Artifact  string
	Age       string
	Message   string
}

// RenderRunTable renders a table of generation runs.
func RenderRunTable(runs []RunRow) string {
	t := NewTable("PROJECT", "RUN", "STATUS", "ARTIFACT", "AGE", "MESSAGE")

	for _, r := range runs {
		t.Row(r.ProjectID, r.RunID, StatusStyle(r.Status).Render(r.Status), r.Artifact, r.Age, r.Message)
	}

	return t.String()
}
