package models

import "time"

// MatchType is the confidence bucket returned by the name authority.
type MatchType string

const (
	MatchExact      MatchType = "EXACT"
	MatchFuzzy      MatchType = "FUZZY"
	MatchHigherRank MatchType = "HIGHERRANK"
	MatchNone       MatchType = "NONE"
)

// NameMatch is the authority's answer for one input name.
type NameMatch struct {
	Input          string    `json:"input" msgpack:"input"`
	ScientificName string    `json:"scientificName,omitempty" msgpack:"scientific_name"`
	CanonicalName  string    `json:"canonicalName,omitempty" msgpack:"canonical_name"`
	Authorship     string    `json:"authorship,omitempty" msgpack:"authorship"`
	Rank           string    `json:"rank,omitempty" msgpack:"rank"`
	Status         string    `json:"status,omitempty" msgpack:"status"`
	MatchType      MatchType `json:"matchType" msgpack:"match_type"`
	Confidence     int       `json:"confidence,omitempty" msgpack:"confidence"`
	UsageKey       int64     `json:"usageKey,omitempty" msgpack:"usage_key"`
	CachedAt       time.Time `json:"cachedAt,omitempty" msgpack:"cached_at"`
}

// Accepted reports whether the match is strong enough to cache and apply.
func (m NameMatch) Accepted() bool {
	return (m.MatchType == MatchExact || m.MatchType == MatchFuzzy) && m.ScientificName != ""
}

// NormalizationMap maps input names to their canonical scientific names.
// Only names whose canonical form differs from the input are present.
type NormalizationMap map[string]string
