package pipeline

import (
	"github.com/taxonomix/backend/internal/models"
)

// collectNames returns every string value of cols, duplicates included.
func collectNames(t *models.Table, cols []string) []string {
	var out []string
	for _, name := range cols {
		col := t.Column(name)
		if col == nil {
			continue
		}
		for _, c := range col.Cells {
			if c.IsString() {
				out = append(out, c.Str)
			}
		}
	}
	return out
}

// rewriteColumn replaces every cell of column whose value is a key of m.
// Other columns are untouched. onCell is called once per cell.
func rewriteColumn(t *models.Table, column string, m models.NormalizationMap, onCell func()) {
	col := t.Column(column)
	if col == nil {
		return
	}
	cells := make([]models.Cell, len(col.Cells))
	for i, c := range col.Cells {
		if c.IsString() {
			if canonical, ok := m[c.Str]; ok {
				c = models.StringCell(canonical)
			}
		}
		cells[i] = c
		if onCell != nil {
			onCell()
		}
	}
	col.Cells = cells
}

// stageProgress maps done/total onto the [from, to] percent range.
func stageProgress(from, to, done, total int) int {
	if total <= 0 {
		return to
	}
	if done > total {
		done = total
	}
	return from + (to-from)*done/total
}
