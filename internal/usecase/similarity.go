package usecase

import (
	"net/url"
	"strings"
)

// anchorHostBonus is added when the candidate shares a host with any anchor.
const anchorHostBonus = 0.1

// tokenizeImageURL splits a URL path into lexical tokens on slash, dot,
// underscore, and hyphen, plus extracted 6+ digit runs as additional
// pseudo-tokens (so SKU digits embedded in longer segments still match).
func tokenizeImageURL(rawURL string) map[string]bool {
	path := lowerPath(rawURL)
	tokens := make(map[string]bool)
	for _, tok := range splitPathTokens(path) {
		if tok != "" {
			tokens[tok] = true
		}
	}
	for _, run := range digitRunRegex.FindAllString(path, -1) {
		tokens[run] = true
	}
	return tokens
}

// jaccard computes intersection-over-union of two token sets.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for tok := range a {
		if b[tok] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// AnchorSimilarity is the lexical variant of anchor comparison: the maximum
// token-Jaccard similarity between the candidate URL and any anchor URL, plus
// a small bonus when hosts match, clamped to [0,1]. Needs no network fetch.
// Returns 0 when there are no anchors.
func AnchorSimilarity(candidateURL string, anchors []string) float64 {
	if len(anchors) == 0 {
		return 0
	}

	candTokens := tokenizeImageURL(candidateURL)
	candHost := urlHost(candidateURL)

	best := 0.0
	hostMatch := false
	for _, anchor := range anchors {
		if sim := jaccard(candTokens, tokenizeImageURL(anchor)); sim > best {
			best = sim
		}
		if candHost != "" && candHost == urlHost(anchor) {
			hostMatch = true
		}
	}

	if hostMatch {
		best += anchorHostBonus
	}
	if best > 1 {
		best = 1
	}
	return best
}

// urlHost returns the lowercased host of a URL, or "" when unparseable.
func urlHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}
