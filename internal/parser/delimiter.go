package parser

import "strings"

// Candidates is the fixed delimiter set, in fallback order.
var Candidates = []rune{',', '\t', ';', '|'}

// varianceEpsilon keeps the score finite for perfectly consistent delimiters.
const varianceEpsilon = 1e-6

// DetectDelimiter returns the candidate that occurs the most consistently
// per line in sample. Ties keep the earlier candidate; an empty sample yields a comma.
func DetectDelimiter(sample string, candidates []rune) rune {
	if len(candidates) == 0 {
		candidates = Candidates
	}

	lines := splitLines(sample)
	if len(lines) == 0 {
		return ','
	}

	best := candidates[0]
	bestScore := -1.0
	for _, d := range candidates {
		score := delimiterScore(lines, d)
		if score > bestScore {
			best, bestScore = d, score
		}
	}
	return best
}

// delimiterScore is mean(count)/(variance(count)+eps) over lines.
func delimiterScore(lines []string, d rune) float64 {
	counts := make([]float64, len(lines))
	var sum float64
	for i, line := range lines {
		counts[i] = float64(strings.Count(line, string(d)))
		sum += counts[i]
	}
	mean := sum / float64(len(counts))

	var sq float64
	for _, c := range counts {
		sq += (c - mean) * (c - mean)
	}
	variance := sq / float64(len(counts))

	return mean / (variance + varianceEpsilon)
}

// candidateOrder returns best followed by the fixed set, without duplicates.
func candidateOrder(best rune, candidates []rune) []rune {
	order := []rune{best}
	for _, d := range candidates {
		if d != best {
			order = append(order, d)
		}
	}
	return order
}

// splitLines splits on any line ending and drops empty lines.
func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
