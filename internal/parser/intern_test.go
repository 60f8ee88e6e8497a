package parser

import (
	"strings"
	"testing"
	"unsafe"
)

func TestStringPool(t *testing.T) {
	p := newStringPool(2)

	a := p.intern(strings.Clone("Canis"))
	b := p.intern(strings.Clone("Canis"))
	if unsafe.StringData(a) != unsafe.StringData(b) {
		t.Error("Expected repeated values to share storage")
	}

	p.intern("Panthera")
	if p.Len() != 2 {
		t.Errorf("Expected pool size 2, got %d", p.Len())
	}

	// full pool passes new values through untouched
	if got := p.intern("Ursus"); got != "Ursus" {
		t.Errorf("Expected passthrough, got %q", got)
	}
	if p.Len() != 2 {
		t.Errorf("Expected pool to stay at limit, got %d", p.Len())
	}
}

func TestReaderInternsRepeatedCells(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("genus,countryCode\n")
	for i := 0; i < 50; i++ {
		sb.WriteString("Canis,KE\n")
	}

	table, err := NewReader(nil).Read(strings.NewReader(sb.String()))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	cells := table.Column("countryCode").Cells
	first := unsafe.StringData(cells[0].Str)
	for i, c := range cells {
		if unsafe.StringData(c.Str) != first {
			t.Fatalf("Expected row %d to share the pooled value", i)
		}
	}
}
