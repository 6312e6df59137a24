package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"asset-custody-api/internal/config"
	"asset-custody-api/internal/lifecycle"
	"asset-custody-api/internal/logger"
	"asset-custody-api/internal/models"
	"asset-custody-api/internal/store/postgres"
	"asset-custody-api/pkg/importer"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: import_excel --file=path.xlsx --admin=principal-id [--mapping=configs/mapping/assets.yaml] [--dry-run]")
		os.Exit(1)
	}

	var filePath, adminID, mappingPath string
	dryRun := false

	for _, arg := range os.Args[1:] {
		if strings.HasPrefix(arg, "--file=") {
			filePath = strings.TrimPrefix(arg, "--file=")
		} else if strings.HasPrefix(arg, "--admin=") {
			adminID = strings.TrimPrefix(arg, "--admin=")
		} else if strings.HasPrefix(arg, "--mapping=") {
			mappingPath = strings.TrimPrefix(arg, "--mapping=")
		} else if arg == "--dry-run" {
			dryRun = true
		}
	}

	if filePath == "" || adminID == "" {
		fmt.Println("Error: file and admin are required")
		fmt.Println("Usage: import_excel --file=path.xlsx --admin=principal-id [--mapping=...] [--dry-run]")
		os.Exit(1)
	}

	if err := config.LoadEnvFile(); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}
	cfg := config.Load()
	if mappingPath == "" {
		mappingPath = cfg.ImportMapping
	}
	if cfg.DatabaseDSN == "" {
		log.Fatal("DB_DSN environment variable is required")
	}

	zlog, err := logger.New(cfg.LogLevel, true)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync() //nolint:errcheck

	ctx := context.Background()

	// Connect to database
	st, err := postgres.Open(ctx, postgres.Options{DSN: cfg.DatabaseDSN, MaxConns: cfg.DBMaxConns})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer st.Close()

	caller, err := st.LookupPrincipal(ctx, adminID)
	if err != nil {
		log.Fatalf("Unknown principal %s: %v", adminID, err)
	}
	if !caller.IsAdmin() {
		log.Fatalf("Principal %s is not an %s", adminID, models.RoleAdmin)
	}
	engine := lifecycle.New(st, st, lifecycle.Options{Timeout: cfg.StoreTimeout, Logger: zlog})

	// Open Excel file
	file, err := os.Open(filePath)
	if err != nil {
		log.Fatalf("Failed to open Excel file: %v", err)
	}
	defer file.Close()

	fmt.Printf("Importing from %s as %s (dry_run=%v)\n", filePath, adminID, dryRun)
	fmt.Println("=" + strings.Repeat("=", 60))

	// Import using the library
	summary, err := importer.ImportExcel(ctx, engine, file, importer.ImportOptions{
		Caller:      *caller,
		MappingPath: mappingPath,
		DryRun:      dryRun,
		MaxErrors:   50,
	})

	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}

	// Print summary
	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("IMPORT SUMMARY")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("Total inserted: %d\n", summary.Inserted)
	fmt.Printf("Total skipped: %d\n", summary.Skipped)
	fmt.Printf("Total errors: %d\n", summary.Errors)
	fmt.Printf("Dry run: %v\n", summary.DryRun)

	if len(summary.Sheets) > 0 {
		fmt.Println("\nSheet Details:")
		for _, sheet := range summary.Sheets {
			fmt.Printf("  %s: inserted=%d, skipped=%d, errors=%d\n",
				sheet.Name, sheet.Inserted, sheet.Skipped, sheet.Errors)

			if len(sheet.Samples) > 0 {
				fmt.Printf("    Error samples:\n")
				for _, sample := range sheet.Samples {
					fmt.Printf("      Row %d [%s]: %s\n", sample.Row, sample.Code, sample.Message)
				}
			}
		}
	}
}
