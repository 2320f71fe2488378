package main

import (
	"context"
	"log"

	"github.com/ThiagoRGoveia/market-data-loader/internal/config"
	"github.com/ThiagoRGoveia/market-data-loader/internal/database"
)

func main() {
	log.Println("Starting database setup...")
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	configs, err := config.LoadDataConfigs(cfg.DataConfigPath)
	if err != nil {
		log.Fatalf("Error loading data configs: %v", err)
	}

	store, err := database.Open(ctx, cfg.DBDriver, cfg.ConnString(), database.PoolOptions{
		MaxConns:       cfg.DBMaxConns,
		IdleTimeout:    cfg.DBIdleTimeout,
		ConnectTimeout: cfg.DBConnectTimeout,
	})
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	writer := database.NewWriter(store, cfg.DBBatchSize)
	defer writer.Close()

	for _, dc := range configs {
		log.Printf("Creating %s table for %s...", dc.TableName, dc.Type)
		if err := writer.CreateTable(ctx, dc.TableName, dc.OutputColumns()); err != nil {
			log.Fatalf("Error creating %s table: %v", dc.TableName, err)
		}
		log.Printf("%s table created successfully.", dc.TableName)
	}

	log.Println("Database setup finished successfully.")
}
