// Package features extracts ORB keypoint descriptors and scores how many
// of them match between two images. It is the fallback signal for photos
// of the same subject that diverge too much for perceptual hashing:
// different crops, angles, or tone curves.
package features

import (
	"image"

	"gocv.io/x/gocv"

	"imagededup/logging"
)

const (
	// MaxKeypoints caps how many keypoints ORB detects per image.
	MaxKeypoints = 500

	// DescriptorSize is the width of one binary descriptor in bytes.
	DescriptorSize = 32

	// minDimension rejects images too small for meaningful keypoints.
	minDimension = 32
)

// FeatureSet is a variable-size collection of fixed-width binary
// descriptors, one per detected keypoint. The bytes are Go-owned copies,
// safe to cache without tracking OpenCV Mat lifetimes.
type FeatureSet struct {
	descriptors []byte
	count       int
}

// Count returns the number of descriptors in the set.
func (fs *FeatureSet) Count() int {
	if fs == nil {
		return 0
	}
	return fs.count
}

// Extract detects up to MaxKeypoints ORB keypoints on the grayscale
// normalized image and returns their descriptors. Returns nil for images
// below the minimum usable size or when no keypoints are found.
func Extract(img *image.Gray) *FeatureSet {
	if img == nil {
		return nil
	}
	b := img.Bounds()
	if b.Dx() < minDimension || b.Dy() < minDimension {
		return nil
	}

	mat, err := gocv.ImageGrayToMatGray(img)
	if err != nil {
		logging.LogWarning("failed to convert image for feature extraction: %v", err)
		return nil
	}
	defer mat.Close()

	orb := gocv.NewORBWithParams(MaxKeypoints, 1.2, 8, 31, 0, 2, gocv.ORBScoreTypeHarris, 31, 20)
	defer orb.Close()

	mask := gocv.NewMat()
	defer mask.Close()

	_, desc := orb.DetectAndCompute(mat, mask)
	defer desc.Close()

	if desc.Empty() || desc.Rows() == 0 {
		return nil
	}
	if desc.Cols() != DescriptorSize {
		logging.LogWarning("unexpected descriptor width %d", desc.Cols())
		return nil
	}

	raw, err := desc.DataPtrUint8()
	if err != nil {
		logging.LogWarning("failed to read descriptor data: %v", err)
		return nil
	}

	// Copy out of OpenCV-owned memory before the Mat is closed.
	buf := make([]byte, desc.Rows()*DescriptorSize)
	copy(buf, raw)

	return &FeatureSet{descriptors: buf, count: desc.Rows()}
}

// toMat rebuilds an OpenCV matrix view of the descriptors.
func (fs *FeatureSet) toMat() (gocv.Mat, error) {
	return gocv.NewMatFromBytes(fs.count, DescriptorSize, gocv.MatTypeCV8U, fs.descriptors)
}

// Similarity counts the "good" descriptor matches from candidate to
// reference using Lowe's ratio test: for each candidate descriptor, its
// two nearest reference descriptors by Hamming distance are found, and
// the match only counts when the nearest is clearly closer than the
// second nearest. The result is a raw count, not a normalized score.
// Absent sets score 0 rather than erroring.
func Similarity(candidate, reference *FeatureSet, ratio float64) int {
	if candidate == nil || reference == nil || candidate.count == 0 || reference.count == 0 {
		return 0
	}

	query, err := candidate.toMat()
	if err != nil {
		logging.LogWarning("failed to build candidate descriptor matrix: %v", err)
		return 0
	}
	defer query.Close()

	train, err := reference.toMat()
	if err != nil {
		logging.LogWarning("failed to build reference descriptor matrix: %v", err)
		return 0
	}
	defer train.Close()

	matcher := gocv.NewBFMatcherWithParams(gocv.NormHamming, false)
	defer matcher.Close()

	good := 0
	for _, pair := range matcher.KnnMatch(query, train, 2) {
		if len(pair) < 2 {
			continue
		}
		if pair[0].Distance < ratio*pair[1].Distance {
			good++
		}
	}
	return good
}
