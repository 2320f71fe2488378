package database

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ThiagoRGoveia/market-data-loader/internal/models"
)

const (
	DefaultBatchSize   = 1000
	healthCheckTimeout = 5 * time.Second
)

// Writer inserts records in fixed-size batches, one transaction per batch. A
// failed batch is rolled back and counted as failed as a whole; the remaining
// batches still run.
type Writer struct {
	store     Store
	batchSize int
}

func NewWriter(store Store, batchSize int) *Writer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Writer{store: store, batchSize: batchSize}
}

func (w *Writer) BatchSize() int {
	return w.batchSize
}

// InsertData writes records into table and reports batch-granular counts. The
// error return is reserved for unusable input; batch failures only show up in
// the stats.
func (w *Writer) InsertData(ctx context.Context, table string, records []models.Record) (*models.InsertStats, error) {
	if strings.TrimSpace(table) == "" {
		return nil, fmt.Errorf("%w: table name is required", models.ErrConfiguration)
	}

	stats := &models.InsertStats{
		TotalRecords: len(records),
		StartTime:    time.Now(),
	}

	for start, batch := 0, 1; start < len(records); start, batch = start+w.batchSize, batch+1 {
		end := min(start+w.batchSize, len(records))
		w.insertBatch(ctx, table, batch, records[start:end], stats)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	return stats, nil
}

func (w *Writer) insertBatch(ctx context.Context, table string, batch int, records []models.Record, stats *models.InsertStats) {
	var columns []string
	rows := make([][]any, 0, len(records))

	for _, record := range records {
		if len(record) == 0 {
			stats.FailedRecords++
			continue
		}
		if columns == nil {
			columns = sortedColumns(record)
		}

		row := make([]any, len(columns))
		for i, column := range columns {
			row[i] = record[column]
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return
	}

	stats.Batches++
	if err := w.store.InsertBatch(ctx, table, columns, rows); err != nil {
		stats.FailedBatches++
		stats.FailedRecords += len(rows)
		log.Printf("ERROR: %v", fmt.Errorf("%w: batch %d into %s, %d records rolled back: %v",
			models.ErrBatchWrite, batch, table, len(rows), err))
		return
	}

	stats.SuccessfulRecords += len(rows)
}

// HealthCheck reports whether the store answers a trivial query. It never
// panics.
func (w *Writer) HealthCheck(ctx context.Context) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: Database health check panicked: %v", r)
			ok = false
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	if err := w.store.Ping(ctx); err != nil {
		log.Printf("ERROR: Database health check failed: %v", err)
		return false
	}
	return true
}

// CreateTable runs the DDL built from the given output columns.
func (w *Writer) CreateTable(ctx context.Context, table string, columns []models.ColumnTarget) error {
	query, err := CreateTableStatement(w.store.Dialect(), table, columns)
	if err != nil {
		return err
	}
	if err := w.store.Exec(ctx, query); err != nil {
		return fmt.Errorf("error creating table %s: %w", table, err)
	}
	return nil
}

func (w *Writer) Close() {
	w.store.Close()
}
