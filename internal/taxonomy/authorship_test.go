package taxonomy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxonomix/backend/internal/models"
)

func TestExtractAuthorship(t *testing.T) {
	tests := []struct {
		in         string
		name       string
		authorship string
		ok         bool
	}{
		{"Panthera leo (Linnaeus, 1758)", "Panthera leo", "Linnaeus, 1758", true},
		{"Canis lupus Linnaeus, 1758", "Canis lupus", "Linnaeus, 1758", true},
		{"Abies alba Mill., 1768", "Abies alba", "Mill., 1768", true},
		{"Larus argentatus Pontoppidan , 1763-64", "Larus argentatus", "Pontoppidan , 1763-64", true},
		{"  Ursus arctos  ", "Ursus arctos", "", false},
		{"Not a species 123", "Not a species 123", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			name, author, ok := ExtractAuthorship(tt.in)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.authorship, author)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestStripAuthorship(t *testing.T) {
	assert.Equal(t, "Canis lupus", StripAuthorship("Canis lupus Linnaeus, 1758"))
	assert.Equal(t, "Puma concolor", StripAuthorship("Puma concolor (Linnaeus, 1771)"))
	assert.Equal(t, "Canis lupus", StripAuthorship("Canis lupus"))
	assert.Equal(t, StripAuthorship("Canis lupus"), StripAuthorship(StripAuthorship("Canis lupus")))
}

func TestSplitter_ScientificNameScenario(t *testing.T) {
	table := &models.Table{Columns: []*models.Column{
		column("scientificName", "Genus", "Panthera leo (Linnaeus, 1758)", "Not a species 123"),
		column("countryCode", "KE", "TZ", "NA"),
	}}

	out := NewSplitter().Split(table, "scientificName")

	require.Equal(t, []string{"scientificName", "scientificName_authorship", "countryCode"}, out.Names())
	names := out.Column("scientificName").Cells
	authors := out.Column("scientificName_authorship").Cells

	assert.Equal(t, models.StringCell("Genus"), names[0])
	assert.Equal(t, models.StringCell("Panthera leo"), names[1])
	assert.Equal(t, models.StringCell("Not a species 123"), names[2])

	assert.True(t, authors[0].IsNull())
	assert.Equal(t, models.StringCell("Linnaeus, 1758"), authors[1])
	assert.True(t, authors[2].IsNull())

	// the input table is left as it was
	assert.Equal(t, "Panthera leo (Linnaeus, 1758)", table.Columns[0].Cells[1].Str)
	assert.Len(t, table.Columns, 2)
}

func TestSplitter_RoundTrip(t *testing.T) {
	values := []string{
		"Canis lupus Linnaeus, 1758",
		"Abies alba Mill., 1768",
		"Panthera leo",
		"Puma concolor (Linnaeus, 1771)",
	}
	table := &models.Table{Columns: []*models.Column{column("scientificName", values...)}}

	out := NewSplitter().Split(table, "scientificName")
	names := out.Column("scientificName").Cells
	authors := out.Column("scientificName_authorship").Cells

	for i, original := range values {
		rebuilt := names[i].Str
		if !authors[i].IsNull() {
			author := authors[i].Str
			if strings.Contains(original, "("+author+")") {
				author = "(" + author + ")"
			}
			rebuilt += " " + author
		}
		assert.Equal(t, strings.Join(strings.Fields(original), " "), strings.Join(strings.Fields(rebuilt), " "))
	}
}

func TestSplitter_StripModeWhenSampleHasNoCitation(t *testing.T) {
	var values []string
	for i := 0; i < DefaultAuthorshipSample; i++ {
		values = append(values, "Panthera leo")
	}
	values = append(values, "Ursus arctos Linnaeus, 1758")
	table := &models.Table{Columns: []*models.Column{column("scientificName", values...)}}

	out := NewSplitter().Split(table, "scientificName")

	assert.Equal(t, []string{"scientificName"}, out.Names())
	assert.Equal(t, models.StringCell("Ursus arctos"), out.Columns[0].Cells[DefaultAuthorshipSample])
}

func TestSplitter_NonStringCellsPassThrough(t *testing.T) {
	col := &models.Column{Name: "taxon", Cells: []models.Cell{
		models.StringCell("Canis lupus Linnaeus, 1758"),
		models.IntCell(42),
		models.NullCell(),
	}}
	out := NewSplitter().Split(&models.Table{Columns: []*models.Column{col}}, "taxon")

	cells := out.Column("taxon").Cells
	assert.Equal(t, models.IntCell(42), cells[1])
	assert.True(t, cells[2].IsNull())
	assert.True(t, out.Column("taxon_authorship").Cells[1].IsNull())
}

func TestSplitter_SiblingNameCollision(t *testing.T) {
	table := &models.Table{Columns: []*models.Column{
		column("species", "Canis lupus Linnaeus, 1758"),
		column("species_authorship", "kept"),
	}}

	out := NewSplitter().Split(table, "species")

	assert.Equal(t, []string{"species", "species_authorship.1", "species_authorship"}, out.Names())
	assert.Equal(t, models.StringCell("kept"), out.Column("species_authorship").Cells[0])
}

func TestSplitter_UnknownColumn(t *testing.T) {
	table := &models.Table{Columns: []*models.Column{column("genus", "Canis")}}
	assert.Same(t, table, NewSplitter().Split(table, "missing"))
}
