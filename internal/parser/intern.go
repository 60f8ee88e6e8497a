package parser

import "strings"

// MaxPooledStrings bounds the per-parse intern pool. Values seen after the
// pool is full are kept as they are.
const MaxPooledStrings = 100000

// stringPool deduplicates repeated cell values within one parse, so a
// column like countryCode holds a handful of strings instead of one per row.
// It is owned by a single parse and not safe for concurrent use.
type stringPool struct {
	pool  map[string]string
	limit int
}

func newStringPool(limit int) *stringPool {
	return &stringPool{pool: make(map[string]string, 1024), limit: limit}
}

// intern returns the pooled copy of s, adding s if there is room.
func (p *stringPool) intern(s string) string {
	if pooled, ok := p.pool[s]; ok {
		return pooled
	}
	if len(p.pool) >= p.limit {
		return s
	}
	// detach from the record buffer the reader sliced s out of
	s = strings.Clone(s)
	p.pool[s] = s
	return s
}

// Len returns the number of distinct pooled values.
func (p *stringPool) Len() int {
	return len(p.pool)
}
