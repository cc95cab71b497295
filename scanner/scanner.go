// Package scanner bulk-ingests a folder of product images into the
// catalog, fingerprinting each file through the full normalization
// pipeline so later match scans need no backfill.
package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"imagededup/catalog"
	"imagededup/fingerprint"
	"imagededup/logging"
	"imagededup/normalizer"
)

// ScanOptions defines the options for an ingestion run
type ScanOptions struct {
	FolderPath   string
	ForceRewrite bool
	DebugMode    bool
	MaxWorkers   int
}

// ScanStats summarizes an ingestion run
type ScanStats struct {
	Indexed int
	Skipped int
	Failed  int
}

// result reports the outcome of processing one file
type result struct {
	ref string
	err error
	// skipped means the entry already existed and was left alone
	skipped bool
}

// IsImageFile checks if a file extension belongs to a supported image format
func IsImageFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp", ".tif", ".tiff":
		return true
	default:
		return false
	}
}

// ScanFolder walks the folder, fingerprints every supported image, and adds
// it to the catalog keyed by its path relative to the folder root.
// Per-file failures are logged and counted, never fatal; only a broken
// walk or catalog aborts the run.
func ScanFolder(cat *catalog.Catalog, opts ScanOptions) (ScanStats, error) {
	if opts.MaxWorkers < 1 {
		opts.MaxWorkers = 1
	}

	total := countImageFiles(opts.FolderPath)
	if opts.DebugMode {
		logging.DebugLog("starting catalog ingestion of %s (%d files, %d workers)",
			opts.FolderPath, total, opts.MaxWorkers)
	}

	bar := progressbar.Default(int64(total), "indexing")

	var wg sync.WaitGroup
	resultsChan := make(chan result, 100)
	semaphore := make(chan struct{}, opts.MaxWorkers)

	stats := ScanStats{}
	statsDone := make(chan struct{})
	go func() {
		defer close(statsDone)
		for r := range resultsChan {
			bar.Add(1)
			switch {
			case r.err != nil:
				stats.Failed++
				logging.LogImageIndexed(r.ref, false, r.err.Error())
			case r.skipped:
				stats.Skipped++
			default:
				stats.Indexed++
				logging.LogImageIndexed(r.ref, true, "")
			}
		}
	}()

	startTime := time.Now()
	walkErr := filepath.Walk(opts.FolderPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if opts.DebugMode {
				logging.LogError("error accessing path %s: %v", path, err)
			}
			return nil
		}
		if info.IsDir() || !IsImageFile(path) {
			return nil
		}

		wg.Add(1)
		semaphore <- struct{}{}
		go func(p string) {
			defer wg.Done()
			defer func() { <-semaphore }()
			resultsChan <- processFile(cat, opts, p)
		}(path)
		return nil
	})

	wg.Wait()
	close(resultsChan)
	<-statsDone
	bar.Finish()

	if opts.DebugMode {
		logging.DebugLog("ingestion finished in %v: %d indexed, %d skipped, %d failed",
			time.Since(startTime), stats.Indexed, stats.Skipped, stats.Failed)
	}

	if walkErr != nil {
		return stats, fmt.Errorf("error walking folder %s: %v", opts.FolderPath, walkErr)
	}
	return stats, nil
}

// processFile fingerprints one image and records it in the catalog.
func processFile(cat *catalog.Catalog, opts ScanOptions, path string) result {
	ref, err := filepath.Rel(opts.FolderPath, path)
	if err != nil {
		ref = path
	}

	id, exists, err := cat.FindByRef(ref)
	if err != nil {
		return result{ref: ref, err: err}
	}
	if exists && !opts.ForceRewrite {
		return result{ref: ref, skipped: true}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return result{ref: ref, err: fmt.Errorf("cannot read file: %v", err)}
	}

	img, err := normalizer.Normalize(data)
	if err != nil {
		return result{ref: ref, err: fmt.Errorf("cannot decode image: %v", err)}
	}

	fp, err := fingerprint.Compute(img)
	if err != nil {
		return result{ref: ref, err: fmt.Errorf("cannot fingerprint image: %v", err)}
	}

	if exists {
		if err := cat.SaveFingerprint(id, fp.String()); err != nil {
			return result{ref: ref, err: err}
		}
		return result{ref: ref}
	}

	if _, err := cat.Add(ref, fp.String()); err != nil {
		return result{ref: ref, err: err}
	}
	return result{ref: ref}
}

// countImageFiles pre-counts supported files for progress tracking.
func countImageFiles(folderPath string) int {
	total := 0
	filepath.Walk(folderPath, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() && IsImageFile(path) {
			total++
		}
		return nil
	})
	return total
}
