package main

import (
	"fmt"
	"log"
	"os"
	"runtime"
	"time"

	"imagededup/catalog"
	"imagededup/logging"
	"imagededup/matcher"
	"imagededup/scanner"
	"imagededup/signalhandler"
	"imagededup/store"
	"imagededup/types"
	"imagededup/utils"
)

func main() {
	// Set up proper signal handling
	signalhandler.SetupHandler()
	runtime.GOMAXPROCS(signalhandler.GetOptimalProcs())

	// Parse command line arguments into a map
	args := utils.ParseArguments()
	command, hasCommand := args["command"]

	// Set default database path
	dbPath := utils.GetDefaultDatabasePath()
	if customDB, ok := args["database"]; ok && customDB != "" {
		dbPath = customDB
	} else if customDB, ok := args["db"]; ok && customDB != "" {
		// Allow --db as an alias for --database
		dbPath = customDB
	}

	// Setup debug logging if enabled
	debugMode := false
	if _, ok := args["debug"]; ok {
		debugMode = true
		logPath := "imagededup.log"
		if customLogPath, ok := args["logfile"]; ok && customLogPath != "" {
			logPath = customLogPath
		}
		if err := logging.SetupLogger(logPath); err != nil {
			fmt.Printf("Warning: Failed to setup logging: %v\n", err)
		} else {
			fmt.Printf("Debug mode enabled. Logging to: %s\n", logPath)
		}
		defer logging.CloseLogger()
	}

	// Check if required arguments are missing
	showUsage := !hasCommand
	if hasCommand && command == "index" && args["folder"] == "" {
		showUsage = true
	}
	if hasCommand && command == "match" && args["image"] == "" {
		showUsage = true
	}
	if hasCommand && command == "invalidate" && args["id"] == "" {
		showUsage = true
	}

	if showUsage {
		utils.PrintUsage()
		os.Exit(1)
	}

	switch command {
	case "index":
		handleIndexCommand(args, dbPath, debugMode)
	case "match":
		handleMatchCommand(args, dbPath, debugMode)
	case "invalidate":
		handleInvalidateCommand(args, dbPath)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		utils.PrintUsage()
		os.Exit(1)
	}
}

func handleIndexCommand(args map[string]string, dbPath string, debugMode bool) {
	folderPath := args["folder"]

	// Verify folder path exists and is accessible
	folderInfo, err := os.Stat(folderPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Fatalf("Folder path does not exist: %s", folderPath)
		}
		log.Fatalf("Cannot access folder path: %s (%v)", folderPath, err)
	}
	if !folderInfo.IsDir() {
		log.Fatalf("Path is not a directory: %s", folderPath)
	}

	forceRewrite := false
	if _, ok := args["force"]; ok {
		forceRewrite = true
	}

	startTime := time.Now()

	cat, err := catalog.Open(dbPath)
	if err != nil {
		log.Fatalf("Error opening catalog database: %v", err)
	}
	defer cat.Close()

	stats, err := scanner.ScanFolder(cat, scanner.ScanOptions{
		FolderPath:   folderPath,
		ForceRewrite: forceRewrite,
		DebugMode:    debugMode,
		MaxWorkers:   signalhandler.GetOptimalProcs(),
	})
	if err != nil {
		log.Fatalf("Error ingesting folder: %v", err)
	}

	fmt.Printf("\nIngestion completed in %v\n", time.Since(startTime))
	fmt.Printf("- Indexed: %d\n", stats.Indexed)
	fmt.Printf("- Skipped (already catalogued): %d\n", stats.Skipped)
	fmt.Printf("- Failed: %d\n", stats.Failed)
	fmt.Printf("Database: %s\n", dbPath)
}

func handleMatchCommand(args map[string]string, dbPath string, debugMode bool) {
	imagePath := args["image"]
	imagesRoot := args["images-root"]
	if imagesRoot == "" {
		fmt.Println("Error: Missing images root (use --images-root=PATH)")
		os.Exit(1)
	}

	cfg := buildConfig(args)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		log.Fatalf("Catalog database does not exist: %s. Run the index command first.", dbPath)
	}

	var excludeID int64
	if idStr, ok := args["exclude"]; ok && idStr != "" {
		parsed, err := utils.ParseID(idStr)
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
		excludeID = parsed
	}

	data, err := os.ReadFile(imagePath)
	if err != nil {
		log.Fatalf("Cannot read candidate image %s: %v", imagePath, err)
	}

	cat, err := catalog.Open(dbPath)
	if err != nil {
		log.Fatalf("Error opening catalog database: %v", err)
	}
	defer cat.Close()

	startTime := time.Now()
	m := matcher.New(cfg, cat, store.NewFileStore(imagesRoot))

	result, err := m.MatchImage(data, excludeID)
	if err != nil {
		log.Fatalf("Error matching image: %v", err)
	}

	if debugMode {
		logging.DebugLog("match completed in %v", time.Since(startTime))
	}

	if result.Method == types.MethodNone {
		fmt.Println("No match found.")
		os.Exit(1)
	}

	fmt.Printf("Match found:\n")
	fmt.Printf("  Entry ID:  %d\n", result.EntryID)
	fmt.Printf("  Image:     %s\n", result.ImageRef)
	fmt.Printf("  Method:    %s\n", result.Method)
	if result.Method == types.MethodHash {
		fmt.Printf("  Score:     %.4f\n", result.Score)
	} else {
		fmt.Printf("  Score:     %.0f good matches\n", result.Score)
	}
	fmt.Printf("Search time: %v\n", time.Since(startTime))
}

func handleInvalidateCommand(args map[string]string, dbPath string) {
	id, err := utils.ParseID(args["id"])
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	cat, err := catalog.Open(dbPath)
	if err != nil {
		log.Fatalf("Error opening catalog database: %v", err)
	}
	defer cat.Close()

	ref, err := cat.Remove(id)
	if err != nil {
		log.Fatalf("Error removing entry: %v", err)
	}

	// The descriptor cache is process-local, so removing the row is all a
	// CLI invocation needs; long-running hosts call Matcher.Invalidate.
	fmt.Printf("Removed entry %d (image %s)\n", id, ref)
}

// buildConfig assembles the matching configuration from defaults and flags.
func buildConfig(args map[string]string) types.Config {
	cfg := types.DefaultConfig()

	if v, ok := args["threshold"]; ok {
		parsed, err := utils.ParseThreshold(v, cfg.HashThreshold)
		if err != nil {
			fmt.Printf("Warning: %v\n", err)
		}
		cfg.HashThreshold = parsed
	}
	if v, ok := args["ratio"]; ok {
		parsed, err := utils.ParseThreshold(v, cfg.FeatureRatio)
		if err != nil {
			fmt.Printf("Warning: %v\n", err)
		}
		cfg.FeatureRatio = parsed
	}
	if v, ok := args["min-matches"]; ok {
		parsed, err := utils.ParseCount(v, cfg.MinFeatureMatches)
		if err != nil {
			fmt.Printf("Warning: %v\n", err)
		}
		cfg.MinFeatureMatches = parsed
	}

	return cfg
}
