package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/ecoledger/carbonsync-backend/internal/infrastructure/config"
	"github.com/ecoledger/carbonsync-backend/internal/infrastructure/storage"
	_ "github.com/mattn/go-sqlite3"
)

func main() {
	var (
		dbPath     string
		configFile string
		limit      int
	)
	flag.StringVar(&dbPath, "db", "", "Path to database file (uses config if not specified)")
	flag.StringVar(&configFile, "config", "", "Configuration file path")
	flag.IntVar(&limit, "limit", 10, "Number of recent runs to show")
	flag.Parse()

	if dbPath == "" {
		if configFile != "" {
			cfg, err := config.Load(configFile)
			if err != nil {
				log.Printf("Warning: failed to load config: %v", err)
			} else {
				dbPath = cfg.Storage.DatabasePath
			}
		}
		if dbPath == "" {
			dbPath = config.LoadFromEnv().Storage.DatabasePath
		}
	}

	store, err := storage.NewStorage(dbPath)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	fmt.Println("RUN REPORT")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Database: %s\n\n", dbPath)

	summaries, err := store.ListRunSummaries(limit)
	if err != nil {
		log.Fatal(err)
	}
	if len(summaries) == 0 {
		fmt.Println("No runs recorded yet.")
		return
	}

	fmt.Printf("%-20s %-18s %6s %6s %6s %6s %6s %6s\n",
		"STARTED", "SOURCE", "CARDS", "TXNS", "NEW", "UPD", "MATCH", "NONE")
	fmt.Println(strings.Repeat("-", 70))
	for _, s := range summaries {
		fmt.Printf("%-20s %-18s %6d %6d %6d %6d %6d %6d\n",
			s.StartedAt.Format("2006-01-02 15:04:05"),
			truncate(s.Source, 18),
			s.TotalCards,
			s.TotalTransactions,
			s.NewTransactions,
			s.UpdatedTransactions,
			s.ExistingCompanyMatches+s.NewMatchedToCompany,
			s.UnmatchedToCompany,
		)
	}

	printTopUnmatched(dbPath)
}

// printTopUnmatched lists the names that keep failing to resolve, the first
// candidates for a manual-match seed entry.
func printTopUnmatched(dbPath string) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	rows, err := db.Query(`
		SELECT original, count
		FROM unmatched_company_names
		ORDER BY count DESC
		LIMIT 15
	`)
	if err != nil {
		log.Fatal(err)
	}
	defer rows.Close()

	fmt.Println("\nTOP UNMATCHED NAMES")
	fmt.Println(strings.Repeat("-", 70))
	for rows.Next() {
		var original string
		var count int
		if err := rows.Scan(&original, &count); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("%6d  %s\n", count, original)
	}
	if err := rows.Err(); err != nil {
		log.Fatal(err)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
