package types

// MatchMethod identifies which signal produced a match decision.
type MatchMethod string

const (
	MethodNone    MatchMethod = "none"
	MethodHash    MatchMethod = "hash"
	MethodFeature MatchMethod = "feature"
)

// MatchResult holds the outcome of a best-match search over the catalog.
// Score is a 0..1 similarity for hash matches and a raw good-match count
// for feature matches; the two are never compared against each other.
type MatchResult struct {
	EntryID  int64       `json:"entry_id"`
	ImageRef string      `json:"image_ref"`
	Method   MatchMethod `json:"method"`
	Score    float64     `json:"score"`
}

// NoMatch returns the result used when nothing in the catalog qualified.
func NoMatch() MatchResult {
	return MatchResult{Method: MethodNone}
}

// CatalogEntry is one catalogued image as seen by the matcher: a stable
// image reference plus the optionally persisted fingerprint (hex, empty
// when not yet computed).
type CatalogEntry struct {
	ID          int64  `json:"id"`
	ImageRef    string `json:"image_ref"`
	Fingerprint string `json:"fingerprint"`
}

// Catalog enumerates existing entries and accepts fingerprint backfill.
// Entries must not return entries with the given id; excludeID 0 means
// no exclusion.
type Catalog interface {
	Entries(excludeID int64) ([]CatalogEntry, error)
	SaveFingerprint(id int64, fingerprint string) error
}

// ImageSource loads the stored bytes behind an image reference.
// A nil return means the image is absent or unreadable.
type ImageSource interface {
	FetchImageBytes(ref string) []byte
}

// Config carries the runtime matching knobs.
type Config struct {
	// HashThreshold is the minimum 0..1 perceptual hash similarity for a
	// hash-based match.
	HashThreshold float64
	// FeatureRatio is the Lowe ratio test parameter for descriptor matching.
	FeatureRatio float64
	// MinFeatureMatches is the minimum good-match count for a feature-based
	// match. This is an absolute count, not a ratio.
	MinFeatureMatches int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		HashThreshold:     0.95,
		FeatureRatio:      0.75,
		MinFeatureMatches: 15,
	}
}
