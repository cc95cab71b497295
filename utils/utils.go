package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ParseArguments converts command-line arguments into a map of flags and values
func ParseArguments() map[string]string {
	args := make(map[string]string)

	// First, identify the command
	command := ""
	commandIndex := -1
	for i := 1; i < len(os.Args); i++ {
		if os.Args[i] == "index" || os.Args[i] == "match" || os.Args[i] == "invalidate" {
			command = os.Args[i]
			commandIndex = i
			break
		}
	}

	if command != "" {
		args["command"] = command
	}

	// Process all arguments, skipping the command
	for i := 1; i < len(os.Args); i++ {
		if i == commandIndex {
			continue
		}

		arg := os.Args[i]

		// Handle flags with equals sign (--key=value)
		if strings.HasPrefix(arg, "--") && strings.Contains(arg, "=") {
			parts := strings.SplitN(arg, "=", 2)
			flagName := strings.TrimPrefix(parts[0], "--")
			args[flagName] = parts[1]
			continue
		}

		// Handle flags without equals sign (--key value)
		if strings.HasPrefix(arg, "--") {
			flagName := strings.TrimPrefix(arg, "--")

			// Check if this is a boolean flag (no value)
			if i+1 >= len(os.Args) || strings.HasPrefix(os.Args[i+1], "--") {
				args[flagName] = "true"
			} else {
				// The next argument is the value
				args[flagName] = os.Args[i+1]
				i++ // Skip the value in the next iteration
			}
		}
	}

	return args
}

// GetDefaultDatabasePath returns the default path for the catalog database
func GetDefaultDatabasePath() string {
	exePath, err := os.Executable()
	if err != nil {
		// Fallback to current directory if executable path can't be determined
		return "catalog.db"
	}
	return filepath.Join(filepath.Dir(exePath), "catalog.db")
}

// PrintUsage outputs the command-line usage instructions
func PrintUsage() {
	fmt.Printf("Usage:\n")
	fmt.Printf("  %s index --folder=PATH [--database=PATH] [--force] [--debug] [--logfile=PATH]\n", os.Args[0])
	fmt.Printf("  %s match --image=PATH --images-root=PATH [--database=PATH] [--threshold=VALUE] [--ratio=VALUE] [--min-matches=N] [--exclude=ID] [--debug] [--logfile=PATH]\n", os.Args[0])
	fmt.Printf("  %s invalidate --id=ID [--database=PATH]\n", os.Args[0])
	fmt.Printf("\nParameters:\n")
	fmt.Printf("  --folder      : Path to folder of catalog images to ingest\n")
	fmt.Printf("  --image       : Path to candidate image to match\n")
	fmt.Printf("  --images-root : Root directory catalog image references resolve against\n")
	fmt.Printf("  --database    : Path to catalog database (default: %s)\n", GetDefaultDatabasePath())
	fmt.Printf("  --force       : Recompute fingerprints for entries that already exist\n")
	fmt.Printf("  --threshold   : Hash similarity threshold (0.0-1.0, default: 0.95)\n")
	fmt.Printf("  --ratio       : Feature ratio test parameter (0.0-1.0, default: 0.75)\n")
	fmt.Printf("  --min-matches : Minimum good feature matches (default: 15)\n")
	fmt.Printf("  --exclude     : Catalog entry id to exclude from matching\n")
	fmt.Printf("  --id          : Catalog entry id to remove and invalidate\n")
	fmt.Printf("  --debug       : Enable debug mode (logs detailed information)\n")
	fmt.Printf("  --logfile     : Specify custom log file path (default: imagededup.log)\n")
	fmt.Printf("\nExamples:\n")
	fmt.Printf("  %s index --folder=/data/product-images --debug\n", os.Args[0])
	fmt.Printf("  %s match --image=/tmp/upload.jpg --images-root=/data/product-images --threshold=0.95\n", os.Args[0])
}

// ParseThreshold parses and validates a 0..1 threshold value
func ParseThreshold(thresholdStr string, fallback float64) (float64, error) {
	parsed, err := strconv.ParseFloat(thresholdStr, 64)
	if err != nil || parsed < 0 || parsed > 1 {
		return fallback, fmt.Errorf("invalid threshold value '%s', using default (%.2f)", thresholdStr, fallback)
	}
	return parsed, nil
}

// ParseCount parses and validates a positive integer flag
func ParseCount(countStr string, fallback int) (int, error) {
	parsed, err := strconv.Atoi(countStr)
	if err != nil || parsed < 1 {
		return fallback, fmt.Errorf("invalid count value '%s', using default (%d)", countStr, fallback)
	}
	return parsed, nil
}

// ParseID parses a catalog entry id
func ParseID(idStr string) (int64, error) {
	parsed, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || parsed < 1 {
		return 0, fmt.Errorf("invalid entry id '%s'", idStr)
	}
	return parsed, nil
}
