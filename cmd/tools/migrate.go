package main

import (
	"flag"
	"log"

	"github.com/baxromumarov/econ-indicators/internal/store"
)

func main() {
	driver := flag.String("driver", "", "Database driver: sqlite or postgres (inferred from -db when empty)")
	dbURL := flag.String("db", "indicators.db", "Database URL or SQLite path")
	schema := flag.String("schema", "", "Path to schema file (embedded schema when empty)")
	flag.Parse()

	db, err := store.NewStore(*driver, *dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer db.Close()

	if err := db.RunMigrations(*schema); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Printf("Migrations executed successfully (%s)", db.Driver())
}
