// Package parser turns uploaded delimited text into typed tables and back.
package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/taxonomix/backend/internal/models"
)

// DefaultSampleBytes is the prefix size used for delimiter detection.
const DefaultSampleBytes = 4096

// DefaultNullTokens are the only values read as missing.
var DefaultNullTokens = []string{"NA", "N/A", "NaN", "NULL", "", "null", "Null"}

// DefaultIntColumns are parsed as nullable integers when present.
var DefaultIntColumns = []string{"speciesKey", "taxonKey"}

// ParseError reports that no candidate delimiter produced a valid table.
type ParseError struct {
	Reason string
	Tried  []rune
	Err    error
}

func (e *ParseError) Error() string {
	if len(e.Tried) == 0 {
		return e.Reason
	}
	names := make([]string, len(e.Tried))
	for i, d := range e.Tried {
		names[i] = strconv.QuoteRune(d)
	}
	msg := fmt.Sprintf("%s (tried %s)", e.Reason, strings.Join(names, ", "))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// conversionError marks a field that does not fit its column type. It fails
// the parse outright rather than disqualifying the delimiter.
type conversionError struct {
	Value string
}

func (e *conversionError) Error() string {
	return fmt.Sprintf("invalid integer %q", e.Value)
}

// Parsed is a table together with what was detected while reading it.
type Parsed struct {
	Table     *models.Table
	Delimiter rune
	Charset   string
}

// Reader detects delimiter and encoding and parses raw bytes into a Table.
type Reader struct {
	nullTokens  map[string]struct{}
	intColumns  map[string]struct{}
	sampleBytes int
	logger      *zap.Logger
}

// NewReader creates a Reader with the default null tokens and integer columns.
func NewReader(logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{
		nullTokens:  toSet(DefaultNullTokens),
		intColumns:  toSet(DefaultIntColumns),
		sampleBytes: DefaultSampleBytes,
		logger:      logger.Named("reader"),
	}
}

// WithSampleBytes overrides the detection sample size.
func (r *Reader) WithSampleBytes(n int) *Reader {
	if n > 0 {
		r.sampleBytes = n
	}
	return r
}

// Read parses the whole stream into a Table.
func (r *Reader) Read(in io.Reader) (*models.Table, error) {
	raw, err := io.ReadAll(in)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	parsed, err := r.Parse(raw)
	if err != nil {
		return nil, err
	}
	return parsed.Table, nil
}

// Parse parses raw bytes, trying the best-scoring delimiter first and then
// the fixed candidate set. The first clean parse wins.
func (r *Reader) Parse(raw []byte) (*Parsed, error) {
	text, charset := DecodeText(raw)
	if strings.TrimSpace(text) == "" {
		return nil, &ParseError{Reason: "no columns to parse from file"}
	}

	best := DetectDelimiter(sampleText(text, r.sampleBytes), Candidates)
	order := candidateOrder(best, Candidates)

	var lastErr error
	for _, d := range order {
		table, err := r.parseWith(text, d)
		var convErr *conversionError
		if errors.As(err, &convErr) {
			return nil, &ParseError{
				Reason: "invalid value in integer column",
				Tried:  []rune{d},
				Err:    err,
			}
		}
		if err != nil {
			r.logger.Debug("delimiter rejected",
				zap.String("delimiter", strconv.QuoteRune(d)),
				zap.Error(err))
			lastErr = err
			continue
		}
		r.logger.Info("parsed table",
			zap.String("delimiter", strconv.QuoteRune(d)),
			zap.String("charset", charset),
			zap.Int("columns", len(table.Columns)),
			zap.Int("rows", table.NumRows()))
		return &Parsed{Table: table, Delimiter: d, Charset: charset}, nil
	}

	return nil, &ParseError{
		Reason: "failed to parse file with any known delimiter",
		Tried:  order,
		Err:    lastErr,
	}
}

// parseWith performs a structured parse with a single delimiter.
func (r *Reader) parseWith(text string, delim rune) (*models.Table, error) {
	cr := csv.NewReader(strings.NewReader(text))
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("missing header row")
		}
		return nil, err
	}

	names := mangleHeader(header)
	table := models.NewTable(names...)
	pool := newStringPool(MaxPooledStrings)
	intCol := make([]bool, len(names))
	for i, n := range names {
		_, intCol[i] = r.intColumns[n]
	}

	line := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if len(record) > len(names) {
			return nil, fmt.Errorf("expected %d fields in line %d, saw %d", len(names), line, len(record))
		}

		row := make([]models.Cell, len(names))
		for i := range names {
			if i >= len(record) {
				row[i] = models.NullCell()
				continue
			}
			cell, err := r.cell(record[i], intCol[i], pool)
			if err != nil {
				return nil, fmt.Errorf("line %d column %q: %w", line, names[i], err)
			}
			row[i] = cell
		}
		table.AppendRow(row...)
	}

	return table, nil
}

// cell converts one raw field, honoring the configured null tokens.
func (r *Reader) cell(v string, integer bool, pool *stringPool) (models.Cell, error) {
	if _, isNull := r.nullTokens[v]; isNull {
		return models.NullCell(), nil
	}
	if !integer {
		return models.StringCell(pool.intern(v)), nil
	}
	n, err := parseInteger(strings.TrimSpace(v))
	if err != nil {
		return models.Cell{}, &conversionError{Value: v}
	}
	return models.IntCell(n), nil
}

// parseInteger accepts plain integers and integral floats such as
// "5219404.0", which float-typed exports write for integer keys.
func parseInteger(v string) (int64, error) {
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 || math.IsNaN(f) {
		return 0, fmt.Errorf("not an integer: %s", v)
	}
	return int64(f), nil
}

// mangleHeader makes header names unique and non-empty: a repeated name
// becomes name.1, name.2, ... and a blank one "Unnamed: <i>".
func mangleHeader(header []string) []string {
	names := make([]string, len(header))
	used := make(map[string]bool, len(header))
	suffix := make(map[string]int, len(header))
	for i, h := range header {
		base := h
		if strings.TrimSpace(base) == "" {
			base = fmt.Sprintf("Unnamed: %d", i)
		}
		name := base
		for used[name] {
			suffix[base]++
			name = fmt.Sprintf("%s.%d", base, suffix[base])
		}
		used[name] = true
		names[i] = name
	}
	return names
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
