package taxonomy

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/taxonomix/backend/internal/models"
)

// AuthorshipSuffix is appended to a column name to form its citation column.
const AuthorshipSuffix = "_authorship"

// DefaultAuthorshipSample is how many non-null values decide between split and strip.
const DefaultAuthorshipSample = 10

// citationPattern matches "(Author, 1758)" or "Author, 1758", with an
// optional "-YY" range on the year.
var citationPattern = regexp.MustCompile(`\(([^)]+, \d{4}(?:-\d{2})?)\)|[A-Z][a-zA-Z.]+\s*,\s*\d{4}(?:-\d{2})?`)

// HasAuthorship reports whether s contains an author citation.
func HasAuthorship(s string) bool {
	return citationPattern.MatchString(s)
}

// ExtractAuthorship removes the first citation from s. The citation is
// returned without its surrounding parentheses.
func ExtractAuthorship(s string) (name, authorship string, ok bool) {
	loc := citationPattern.FindStringSubmatchIndex(s)
	if loc == nil {
		return strings.TrimSpace(s), "", false
	}
	if loc[2] >= 0 {
		authorship = s[loc[2]:loc[3]]
	} else {
		authorship = s[loc[0]:loc[1]]
	}
	name = strings.TrimSpace(s[:loc[0]] + s[loc[1]:])
	return name, strings.TrimSpace(authorship), true
}

// StripAuthorship removes every citation from s.
func StripAuthorship(s string) string {
	return strings.TrimSpace(citationPattern.ReplaceAllString(s, ""))
}

// Splitter moves author citations out of name columns.
type Splitter struct {
	sampleSize int
}

// NewSplitter returns a Splitter with the default sample size.
func NewSplitter() *Splitter {
	return &Splitter{sampleSize: DefaultAuthorshipSample}
}

// Split returns t with citations handled in column. When the first sampled
// values carry citations they are moved into a sibling "<column>_authorship"
// column placed right after it; otherwise citations are stripped in place.
// t itself is not modified. Columns other than column are shared with t.
func (s *Splitter) Split(t *models.Table, column string) *models.Table {
	if t == nil {
		return nil
	}
	idx := t.Index(column)
	if idx < 0 {
		return t
	}

	out := &models.Table{Columns: make([]*models.Column, len(t.Columns))}
	copy(out.Columns, t.Columns)

	src := t.Columns[idx]
	if !s.sampleHasAuthorship(src) {
		out.Columns[idx] = stripColumn(src)
		return out
	}

	names := &models.Column{Name: src.Name, Cells: make([]models.Cell, len(src.Cells))}
	citations := &models.Column{Name: authorshipColumnName(t, column), Cells: make([]models.Cell, len(src.Cells))}
	found := false
	for i, cell := range src.Cells {
		citations.Cells[i] = models.NullCell()
		if !cell.IsString() {
			names.Cells[i] = cell
			continue
		}
		name, author, ok := ExtractAuthorship(cell.Str)
		names.Cells[i] = models.StringCell(name)
		if ok && author != "" {
			citations.Cells[i] = models.StringCell(author)
			found = true
		}
	}

	out.Columns[idx] = names
	if found {
		out.InsertAfter(idx, citations)
	}
	return out
}

func (s *Splitter) sampleHasAuthorship(col *models.Column) bool {
	seen := 0
	for _, cell := range col.Cells {
		if seen >= s.sampleSize {
			break
		}
		if cell.IsNull() {
			continue
		}
		seen++
		if cell.IsString() && HasAuthorship(cell.Str) {
			return true
		}
	}
	return false
}

func stripColumn(src *models.Column) *models.Column {
	col := &models.Column{Name: src.Name, Cells: make([]models.Cell, len(src.Cells))}
	for i, cell := range src.Cells {
		if cell.IsString() {
			cell = models.StringCell(StripAuthorship(cell.Str))
		}
		col.Cells[i] = cell
	}
	return col
}

// authorshipColumnName picks "<column>_authorship", adding ".N" on collision.
func authorshipColumnName(t *models.Table, column string) string {
	base := column + AuthorshipSuffix
	name := base
	for n := 1; t.Index(name) >= 0; n++ {
		name = fmt.Sprintf("%s.%d", base, n)
	}
	return name
}
