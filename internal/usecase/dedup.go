package usecase

import (
	"net/url"
	"strings"

	"github.com/stylelens/backend/internal/domain"
)

// volatileParams are resizing/quality/format query parameters that CDNs vary
// per requested rendition. Two URLs that differ only in these serve the same
// underlying image.
var volatileParams = map[string]bool{
	"w": true, "h": true, "width": true, "height": true,
	"imwidth": true, "imheight": true, "imdensity": true,
	"q": true, "quality": true, "dpr": true, "scale": true,
	"fit": true, "crop": true, "fm": true, "format": true, "auto": true,
	"sz": true, "size": true, "resize": true,
}

// NormalizeImageURL strips volatile resizing parameters and the fragment so
// visually identical renditions collapse to one key. All other query
// parameters and the path are preserved verbatim. Unparseable URLs are
// returned unchanged.
func NormalizeImageURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	u.Fragment = ""

	if u.RawQuery != "" {
		kept := make([]string, 0, 4)
		for _, pair := range strings.Split(u.RawQuery, "&") {
			if pair == "" {
				continue
			}
			key := pair
			if idx := strings.Index(pair, "="); idx >= 0 {
				key = pair[:idx]
			}
			if !volatileParams[strings.ToLower(key)] {
				kept = append(kept, pair)
			}
		}
		u.RawQuery = strings.Join(kept, "&")
	}

	return u.String()
}

// DedupCandidates collapses URL variants to one canonical entry per normalized
// key, keeping the variant with the strictly greater score. Ties keep
// whichever candidate was inserted first; output order follows first
// occurrence of each key. Total over any input, including empty.
func DedupCandidates(candidates []domain.ScoredCandidate) []domain.ScoredCandidate {
	if len(candidates) == 0 {
		return nil
	}

	byKey := make(map[string]int, len(candidates))
	result := make([]domain.ScoredCandidate, 0, len(candidates))

	for _, c := range candidates {
		key := NormalizeImageURL(c.URL)
		if idx, seen := byKey[key]; seen {
			if c.Score > result[idx].Score {
				result[idx] = c
			}
			continue
		}
		byKey[key] = len(result)
		result = append(result, c)
	}

	return result
}

// DedupURLs collapses a plain URL list by normalized key, preserving first-seen
// order.
func DedupURLs(urls []string) []string {
	if len(urls) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(urls))
	result := make([]string, 0, len(urls))
	for _, u := range urls {
		key := NormalizeImageURL(u)
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, u)
	}
	return result
}
