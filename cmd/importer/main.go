package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"foodorder/internal/config"
	"foodorder/internal/db"
	"foodorder/internal/importer"
)

func main() {
	var filePath string
	flag.StringVar(&filePath, "file", "", "Path to a JSON file of restaurants with menus")
	flag.Parse()

	if filePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.FromEnv()
	ctx := context.Background()

	pool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		log.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	f, err := os.Open(filePath)
	if err != nil {
		log.Fatalf("open file: %v", err)
	}
	defer f.Close()

	imp := importer.NewJSONImporter(f, importer.NewPostgresStore(pool))

	start := time.Now()
	restaurants, items, err := imp.Run(ctx)
	if err != nil {
		log.Fatalf("import failed: %v", err)
	}

	fmt.Printf("Imported %d restaurants and %d menu items in %s\n", restaurants, items, time.Since(start).Truncate(time.Millisecond))
}
