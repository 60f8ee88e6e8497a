// Package taxonomy finds the columns that hold scientific names and separates
// author citations from the names themselves.
package taxonomy

import (
	"regexp"
	"strings"

	"github.com/taxonomix/backend/internal/models"
)

const (
	// DefaultSampleSize is how many non-null values are scored per column.
	DefaultSampleSize = 100
	// DefaultThreshold is the minimum matching fraction for a taxonomic column.
	DefaultThreshold = 0.05
)

// DefaultExclusions are column-name substrings that rule a column out.
var DefaultExclusions = []string{"state", "province", "media", "type", "country", "date", "time"}

var (
	genusPattern    = regexp.MustCompile(`^[A-Z][a-z]+$`)
	binomialPattern = regexp.MustCompile(`^[A-Z][a-z]+ [a-z]+(?: \([^)]+\)| [A-Z][a-z]+,? \d{4}(-\d{2})?)?$`)
)

// Scorer decides whether a single value looks like a scientific name.
type Scorer interface {
	Score(c models.Cell) bool
}

// ScorerFunc adapts a plain function to Scorer.
type ScorerFunc func(c models.Cell) bool

func (f ScorerFunc) Score(c models.Cell) bool { return f(c) }

// NameShapeScorer is the default regex heuristic.
var NameShapeScorer Scorer = ScorerFunc(IsTaxonomicValue)

// IsTaxonomicValue reports whether c is a string shaped like a genus or a
// binomial, optionally followed by an author citation.
func IsTaxonomicValue(c models.Cell) bool {
	if !c.IsString() {
		return false
	}
	v := strings.TrimSpace(c.Str)
	return genusPattern.MatchString(v) || binomialPattern.MatchString(v)
}

// ColumnScore is the classification detail for one column.
type ColumnScore struct {
	Name      string  `json:"name"`
	Score     float64 `json:"score"`
	Sampled   int     `json:"sampled"`
	Excluded  bool    `json:"excluded"`
	Taxonomic bool    `json:"taxonomic"`
}

// Classifier selects the columns of a table that hold scientific names.
type Classifier struct {
	scorer     Scorer
	exclusions []string
	sampleSize int
	threshold  float64
}

// NewClassifier returns a classifier using scorer, or the name-shape
// heuristic when scorer is nil.
func NewClassifier(scorer Scorer) *Classifier {
	if scorer == nil {
		scorer = NameShapeScorer
	}
	return &Classifier{
		scorer:     scorer,
		exclusions: DefaultExclusions,
		sampleSize: DefaultSampleSize,
		threshold:  DefaultThreshold,
	}
}

// WithSampleSize overrides the per-column sample size.
func (c *Classifier) WithSampleSize(n int) *Classifier {
	if n > 0 {
		c.sampleSize = n
	}
	return c
}

// Classify returns the taxonomic column names in table order.
func (c *Classifier) Classify(t *models.Table) []string {
	var cols []string
	for _, s := range c.Scores(t) {
		if s.Taxonomic {
			cols = append(cols, s.Name)
		}
	}
	return cols
}

// Scores returns the score of every column in table order.
func (c *Classifier) Scores(t *models.Table) []ColumnScore {
	if t == nil {
		return nil
	}
	scores := make([]ColumnScore, 0, len(t.Columns))
	for _, col := range t.Columns {
		scores = append(scores, c.scoreColumn(col))
	}
	return scores
}

func (c *Classifier) scoreColumn(col *models.Column) ColumnScore {
	s := ColumnScore{Name: col.Name}
	if c.excluded(col.Name) {
		s.Excluded = true
		return s
	}

	matched := 0
	for _, cell := range col.Cells {
		if s.Sampled >= c.sampleSize {
			break
		}
		if cell.IsNull() {
			continue
		}
		s.Sampled++
		if c.scorer.Score(cell) {
			matched++
		}
	}

	if s.Sampled > 0 {
		s.Score = float64(matched) / float64(s.Sampled)
	}
	s.Taxonomic = s.Sampled > 0 && s.Score >= c.threshold
	return s
}

func (c *Classifier) excluded(name string) bool {
	lower := strings.ToLower(name)
	for _, key := range c.exclusions {
		if strings.Contains(lower, key) {
			return true
		}
	}
	return false
}
