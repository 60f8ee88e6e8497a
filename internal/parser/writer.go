package parser

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/taxonomix/backend/internal/models"
)

// WriteTable serializes t as delimited text: a header row followed by one
// record per row. Nulls are written as empty fields.
func WriteTable(w io.Writer, t *models.Table, delim rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = delim

	if err := cw.Write(t.Names()); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	record := make([]string, len(t.Columns))
	for i := 0; i < t.NumRows(); i++ {
		for j, col := range t.Columns {
			record[j] = col.Cells[i].Text()
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
