package domain

// Origin identifies where in the page markup an image candidate was found.
// Provenance affects how much the scoring heuristics trust the candidate.
type Origin string

const (
	OriginStructuredData Origin = "structured-data"
	OriginImgElement     Origin = "img-element"
	OriginSourceElement  Origin = "source-element"
	OriginBackgroundStyle Origin = "background-style"
	OriginPreloadLink    Origin = "preload-link"
	OriginAnchorLink     Origin = "anchor-link"
	OriginMetaTag        Origin = "meta-tag"
)

// ImageCandidate is one discovered image reference. URL is always absolute;
// relative or malformed URLs are dropped during extraction.
type ImageCandidate struct {
	URL         string `json:"url"`
	Origin      Origin `json:"origin"`
	Alt         string `json:"alt,omitempty"`
	ClassTokens string `json:"classTokens,omitempty"`
	PixelArea   int    `json:"pixelArea,omitempty"` // width*height in source pixels, 0 when unmeasurable
}

// ScoredCandidate is an ImageCandidate plus derived ranking fields.
type ScoredCandidate struct {
	ImageCandidate
	Score            float64 `json:"score"`
	ProductKey       string  `json:"productKey,omitempty"` // empty = no reliable key
	AnchorSimilarity float64 `json:"anchorSimilarity"`     // [0,1], 0 with no anchors
	Features         *ImageFeatures `json:"features,omitempty"`
}

// ImageFeatures holds perceptual features computed from actual pixel data.
// Present only when the image bytes were fetched and decoded.
type ImageFeatures struct {
	DHash      uint64  `json:"dhash"`
	MeanR      float64 `json:"meanR"`
	MeanG      float64 `json:"meanG"`
	MeanB      float64 `json:"meanB"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
}

// AnchorComparison is the result of comparing one candidate against a set of
// anchor images.
type AnchorComparison struct {
	URL             string  `json:"url"`
	Distance        int     `json:"distance"`        // min Hamming distance to any anchor, 0-64
	ColorSimilarity float64 `json:"colorSimilarity"` // [0,1]
	Composite       float64 `json:"composite"`       // [0,1] combined score
	HasFeatures     bool    `json:"hasFeatures"`     // false when the fetch/decode failed
	Packshot        bool    `json:"packshot"`        // URL matches the packshot suffix pattern
	Editorial       bool    `json:"editorial"`       // URL matches an editorial pattern
}

// MaxAnchors caps how many trusted anchor images are considered per request.
const MaxAnchors = 3

// BucketPartition is the pipeline output: three disjoint URL sets whose union
// covers the deduplicated candidate set exactly once.
type BucketPartition struct {
	Confident     []string `json:"confident"`
	SemiConfident []string `json:"semiConfident"`
	NotConfident  []string `json:"notConfident"`
}

// Size returns the total number of URLs across all three buckets.
func (p *BucketPartition) Size() int {
	return len(p.Confident) + len(p.SemiConfident) + len(p.NotConfident)
}

// Contains reports whether the URL is present in any bucket.
func (p *BucketPartition) Contains(url string) bool {
	for _, b := range [][]string{p.Confident, p.SemiConfident, p.NotConfident} {
		for _, u := range b {
			if u == url {
				return true
			}
		}
	}
	return false
}

// AnalyzeRequest is the input to the full analysis pipeline. Either Candidates
// or HTML+BaseURL must be supplied.
type AnalyzeRequest struct {
	HTML             string           `json:"html,omitempty"`
	BaseURL          string           `json:"baseUrl,omitempty"`
	Candidates       []ImageCandidate `json:"candidates,omitempty"`
	Anchors          []string         `json:"anchors,omitempty"`
	PageContext      string           `json:"pageContext,omitempty"`
	MaxImages        int              `json:"maxImages,omitempty"`
	EnableRefinement bool             `json:"enableRefinement,omitempty"`
}

// RankRequest is the input to the primary-cluster ranking operation.
type RankRequest struct {
	HTML       string           `json:"html,omitempty"`
	BaseURL    string           `json:"baseUrl,omitempty"`
	Candidates []ImageCandidate `json:"candidates,omitempty"`
	Anchors    []string         `json:"anchors,omitempty"`
	MaxImages  int              `json:"maxImages,omitempty"`
}

// RefinePayload is the manifest handed to the external refinement collaborator.
// Field names must round-trip losslessly as UTF-8 strings and IEEE-754 doubles.
type RefinePayload struct {
	Anchors     []string          `json:"anchors"`
	Candidates  []RefineCandidate `json:"candidates"`
	Provisional BucketPartition   `json:"provisional"`
	Ambiguous   []string          `json:"ambiguous"`
	PageContext string            `json:"pageContext,omitempty"`
}

// RefineCandidate is one manifest entry: the URL plus the numeric features the
// pipeline computed for it.
type RefineCandidate struct {
	URL             string  `json:"url"`
	Score           float64 `json:"score"`
	AnchorSimilarity float64 `json:"anchorSimilarity"`
	Distance        int     `json:"distance"`
	ColorSimilarity float64 `json:"colorSimilarity"`
	Composite       float64 `json:"composite"`
}
