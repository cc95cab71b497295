// Package matcher decides whether a candidate image is visually the same
// as one already in the catalog. Perceptual hashing is the cheap first
// check per entry; ORB feature matching is the expensive fallback for
// photos that share a subject but diverge too much for the hash.
package matcher

import (
	"fmt"

	"imagededup/features"
	"imagededup/fingerprint"
	"imagededup/logging"
	"imagededup/normalizer"
	"imagededup/types"
)

// Matcher scans a catalog for the best visual match of a candidate image.
// It owns the descriptor cache; multiple Matcher instances do not share
// cached state.
type Matcher struct {
	cfg     types.Config
	catalog types.Catalog
	source  types.ImageSource
	cache   *features.Cache
}

// New creates a Matcher over the given catalog and image source.
func New(cfg types.Config, catalog types.Catalog, source types.ImageSource) *Matcher {
	return &Matcher{
		cfg:     cfg,
		catalog: catalog,
		source:  source,
		cache:   features.NewCache(source),
	}
}

// Candidate prepares a fingerprint and feature set from raw image bytes.
// Unreadable bytes yield nil for both: an absent candidate can never
// exceed a threshold, so matching degrades to "no match" without error.
func (m *Matcher) Candidate(data []byte) (*fingerprint.Fingerprint, *features.FeatureSet) {
	img, err := normalizer.Normalize(data)
	if err != nil {
		logging.DebugLog("candidate image unreadable: %v", err)
		return nil, nil
	}

	fp, err := fingerprint.Compute(img)
	if err != nil {
		logging.LogWarning("candidate fingerprint failed: %v", err)
		fp = nil
	}

	return fp, features.Extract(img)
}

// MatchImage is the one-call form: prepare the candidate from bytes and
// find its best match.
func (m *Matcher) MatchImage(data []byte, excludeID int64) (types.MatchResult, error) {
	fp, fs := m.Candidate(data)
	return m.FindBestMatch(fp, fs, excludeID)
}

// FindBestMatch scans every catalog entry (excluding excludeID; 0 means
// none) and returns the best qualifying match. Per entry the hash check
// runs first and short-circuits the feature comparison when it qualifies.
// Hash-qualified and feature-qualified candidates are ranked in separate
// spaces: any hash match outranks every feature match, since a 0..1
// similarity and a raw match count are not comparable magnitudes.
// Failures scoped to a single entry skip that entry; only a failing
// catalog enumeration surfaces as an error.
func (m *Matcher) FindBestMatch(candFP *fingerprint.Fingerprint, candFS *features.FeatureSet, excludeID int64) (types.MatchResult, error) {
	entries, err := m.catalog.Entries(excludeID)
	if err != nil {
		return types.NoMatch(), fmt.Errorf("cannot enumerate catalog: %w", err)
	}

	var bestHash, bestFeature types.MatchResult
	bestHashScore := 0.0
	bestFeatureCount := 0

	for i := range entries {
		entry := &entries[i]
		if entry.ImageRef == "" {
			continue
		}

		entryFP := m.entryFingerprint(entry)
		hashScore := fingerprint.Similarity(candFP, entryFP)
		if hashScore >= m.cfg.HashThreshold && hashScore > bestHashScore {
			bestHashScore = hashScore
			bestHash = types.MatchResult{
				EntryID:  entry.ID,
				ImageRef: entry.ImageRef,
				Method:   types.MethodHash,
				Score:    hashScore,
			}
			continue
		}

		entryFS := m.cache.GetOrCompute(entry.ImageRef)
		if entryFS == nil {
			continue
		}

		count := features.Similarity(candFS, entryFS, m.cfg.FeatureRatio)
		if count >= m.cfg.MinFeatureMatches && count > bestFeatureCount {
			bestFeatureCount = count
			bestFeature = types.MatchResult{
				EntryID:  entry.ID,
				ImageRef: entry.ImageRef,
				Method:   types.MethodFeature,
				Score:    float64(count),
			}
		}
	}

	result := types.NoMatch()
	if bestHash.Method == types.MethodHash {
		result = bestHash
	} else if bestFeature.Method == types.MethodFeature {
		result = bestFeature
	}

	logging.LogMatchDecision(string(result.Method), result.Score, result.ImageRef)
	return result, nil
}

// Invalidate drops cached descriptors for an image reference. Call it
// whenever the stored image behind the reference is deleted or replaced.
func (m *Matcher) Invalidate(ref string) {
	m.cache.Invalidate(ref)
}

// entryFingerprint returns the entry's persisted fingerprint, or computes
// it from the stored image and asks the catalog to persist it so future
// scans skip the recomputation. Returns nil when neither is possible.
func (m *Matcher) entryFingerprint(entry *types.CatalogEntry) *fingerprint.Fingerprint {
	if entry.Fingerprint != "" {
		fp, err := fingerprint.Parse(entry.Fingerprint)
		if err != nil {
			logging.LogWarning("bad stored fingerprint for entry %d: %v", entry.ID, err)
			return nil
		}
		return fp
	}

	data := m.source.FetchImageBytes(entry.ImageRef)
	if len(data) == 0 {
		return nil
	}

	img, err := normalizer.Normalize(data)
	if err != nil {
		logging.DebugLog("cannot normalize catalog image %s: %v", entry.ImageRef, err)
		return nil
	}

	fp, err := fingerprint.Compute(img)
	if err != nil {
		logging.LogWarning("fingerprint failed for %s: %v", entry.ImageRef, err)
		return nil
	}

	if err := m.catalog.SaveFingerprint(entry.ID, fp.String()); err != nil {
		logging.LogWarning("cannot persist fingerprint for entry %d: %v", entry.ID, err)
	} else {
		entry.Fingerprint = fp.String()
		logging.DebugLog("backfilled fingerprint for entry %d", entry.ID)
	}

	return fp
}
