package parser

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/taxonomix/backend/internal/models"
)

func occurrenceTable() *models.Table {
	t := models.NewTable("gbifID", "scientificName", "speciesKey", "countryCode", "eventDate")
	t.AppendRow(models.StringCell("1001"), models.StringCell("Panthera leo (Linnaeus, 1758)"), models.IntCell(5219404), models.StringCell("KE"), models.StringCell("2021-03-04"))
	t.AppendRow(models.StringCell("1002"), models.StringCell("Canis lupus"), models.NullCell(), models.StringCell("US"), models.NullCell())
	t.AppendRow(models.StringCell("1003"), models.NullCell(), models.IntCell(2435099), models.StringCell("BR"), models.StringCell("2020-11-30"))
	return t
}

func TestReader_RoundTripPerDelimiter(t *testing.T) {
	names := map[rune]string{',': "comma", '\t': "tab", ';': "semicolon", '|': "pipe"}
	for _, d := range Candidates {
		t.Run(names[d], func(t *testing.T) {
			original := occurrenceTable()

			var buf bytes.Buffer
			require.NoError(t, WriteTable(&buf, original, d))

			parsed, err := NewReader(nil).Parse(buf.Bytes())
			require.NoError(t, err)

			assert.Equal(t, d, parsed.Delimiter)
			assert.Equal(t, original.Names(), parsed.Table.Names())
			require.Equal(t, original.NumRows(), parsed.Table.NumRows())
			for i := 0; i < original.NumRows(); i++ {
				assert.Equal(t, original.Row(i), parsed.Table.Row(i), "row %d", i)
			}
		})
	}
}

func TestReader_NullTokens(t *testing.T) {
	input := "scientificName,stateProvince,note\nNA,NA,na\nN/A,NULL,Null\nNaN,,null\n"

	table, err := NewReader(nil).Read(strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, 3, table.NumRows())

	for _, col := range table.Columns[:2] {
		for i, c := range col.Cells {
			assert.True(t, c.IsNull(), "%s row %d should be null", col.Name, i)
		}
	}

	note := table.Column("note")
	require.NotNil(t, note)
	assert.Equal(t, models.StringCell("na"), note.Cells[0])
	assert.True(t, note.Cells[1].IsNull())
	assert.True(t, note.Cells[2].IsNull())
}

func TestReader_IntegerKeyColumns(t *testing.T) {
	input := "taxonKey,speciesKey,otherKey\n212,5219404,77\n,NA,\n"

	table, err := NewReader(nil).Read(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, models.IntCell(212), table.Column("taxonKey").Cells[0])
	assert.Equal(t, models.IntCell(5219404), table.Column("speciesKey").Cells[0])
	assert.Equal(t, models.StringCell("77"), table.Column("otherKey").Cells[0])
	assert.True(t, table.Column("taxonKey").Cells[1].IsNull())
	assert.True(t, table.Column("speciesKey").Cells[1].IsNull())
}

func TestReader_StripsByteOrderMark(t *testing.T) {
	t.Run("utf-8", func(t *testing.T) {
		input := append([]byte{0xEF, 0xBB, 0xBF}, []byte("scientificName;genus\nCanis lupus;Canis\n")...)
		parsed, err := NewReader(nil).Parse(input)
		require.NoError(t, err)
		assert.Equal(t, []string{"scientificName", "genus"}, parsed.Table.Names())
		assert.Equal(t, ';', parsed.Delimiter)
	})

	t.Run("utf-16", func(t *testing.T) {
		enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
		input, err := enc.Bytes([]byte("scientificName\tgenus\nCanis lupus\tCanis\n"))
		require.NoError(t, err)

		parsed, err := NewReader(nil).Parse(input)
		require.NoError(t, err)
		assert.Equal(t, []string{"scientificName", "genus"}, parsed.Table.Names())
		assert.Equal(t, models.StringCell("Canis lupus"), parsed.Table.Columns[0].Cells[0])
	})
}

func TestReader_NonUTF8InputIsDecoded(t *testing.T) {
	text := "scientificName,recordedBy\n" +
		strings.Repeat("Abies alba,Jörg Müller Ånström\n", 40)
	latin1, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(text))
	require.NoError(t, err)
	require.False(t, utf8.Valid(latin1))

	table, err := NewReader(nil).Read(bytes.NewReader(latin1))
	require.NoError(t, err)
	require.Equal(t, 40, table.NumRows())

	for _, col := range table.Columns {
		for _, c := range col.Cells {
			assert.True(t, utf8.ValidString(c.Str))
		}
	}
	assert.Equal(t, "Abies alba", table.Column("scientificName").Cells[0].Str)
}

func TestReader_ShortRowsArePadded(t *testing.T) {
	table, err := NewReader(nil).Read(strings.NewReader("a|b|c\n1|2\n4|5|6\n"))
	require.NoError(t, err)
	require.Equal(t, 2, table.NumRows())
	assert.True(t, table.Column("c").Cells[0].IsNull())
	assert.Equal(t, models.StringCell("6"), table.Column("c").Cells[1])
}

func TestReader_DuplicateAndBlankHeaders(t *testing.T) {
	table, err := NewReader(nil).Read(strings.NewReader("genus,genus,,genus\nA,B,C,D\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"genus", "genus.1", "Unnamed: 2", "genus.2"}, table.Names())
}

func TestReader_ParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty input", input: ""},
		{name: "whitespace only", input: "\n\n  \n"},
		{name: "every delimiter overflows the header", input: "x\n1,2;3|4\t5\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := NewReader(nil).Read(strings.NewReader(tt.input))
			assert.Nil(t, table)

			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr), "expected ParseError, got %T", err)
			assert.NotEmpty(t, parseErr.Error())
		})
	}
}

func TestReader_IntegralFloatKeys(t *testing.T) {
	raw := "scientificName,speciesKey,countryCode\nPanthera leo,5219404.0,KE\nCanis lupus,5219173,US\n"

	parsed, err := NewReader(nil).Parse([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, ',', parsed.Delimiter)
	assert.Equal(t, []string{"scientificName", "speciesKey", "countryCode"}, parsed.Table.Names())

	keys := parsed.Table.Column("speciesKey").Cells
	assert.Equal(t, models.IntCell(5219404), keys[0])
	assert.Equal(t, models.IntCell(5219173), keys[1])
}

func TestReader_InvalidIntegerFailsParse(t *testing.T) {
	for _, value := range []string{"abc", "5219404.5"} {
		t.Run(value, func(t *testing.T) {
			raw := "name,speciesKey\nCanis," + value + "\n"

			_, err := NewReader(nil).Parse([]byte(raw))
			var perr *ParseError
			require.True(t, errors.As(err, &perr), "expected *ParseError, got %v", err)
			assert.Equal(t, []rune{','}, perr.Tried)
			assert.Contains(t, err.Error(), value)
		})
	}
}

func TestParseInteger(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"42", 42, true},
		{"-7", -7, true},
		{"5219404.0", 5219404, true},
		{"1.5", 0, false},
		{"abc", 0, false},
		{"1e300", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseInteger(tt.in)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectDelimiter(t *testing.T) {
	tests := []struct {
		name   string
		sample string
		want   rune
	}{
		{name: "comma", sample: "a,b,c\n1,2,3\n4,5,6", want: ','},
		{name: "tab", sample: "a\tb\tc\n1\t2\t3", want: '\t'},
		{name: "semicolon beats inconsistent comma", sample: "a;b;c\n1,5;2;3\n4;5,1,2;6", want: ';'},
		{name: "pipe", sample: "a|b\n1|2\r\n3|4", want: '|'},
		{name: "empty sample", sample: "", want: ','},
		{name: "no delimiter present", sample: "abc\ndef", want: ','},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectDelimiter(tt.sample, Candidates))
		})
	}
}

func TestCandidateOrder(t *testing.T) {
	assert.Equal(t, []rune{';', ',', '\t', '|'}, candidateOrder(';', Candidates))
	assert.Equal(t, []rune{',', '\t', ';', '|'}, candidateOrder(',', Candidates))
}
