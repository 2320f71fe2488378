package ingestion

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ThiagoRGoveia/market-data-loader/internal/metrics"
	"github.com/ThiagoRGoveia/market-data-loader/internal/models"
)

// Inserter writes a period's records. *database.Writer implements it.
type Inserter interface {
	InsertData(ctx context.Context, table string, records []models.Record) (*models.InsertStats, error)
}

type IngestionService struct {
	fileProcessor      Processor
	pipeline           Transformer
	writer             Inserter
	metrics            *metrics.Recorder
	maxParallelConfigs int

	mu      sync.RWMutex
	results []models.PeriodResult
}

func NewIngestionService(processor Processor, pipeline Transformer, writer Inserter, m *metrics.Recorder, maxParallelConfigs int) *IngestionService {
	return &IngestionService{
		fileProcessor:      processor,
		pipeline:           pipeline,
		writer:             writer,
		metrics:            m,
		maxParallelConfigs: maxParallelConfigs,
	}
}

// Execute runs every (year, month) of every config. Configs run concurrently;
// the periods of one config run in order. A failing period is logged and
// reported as skipped, it never stops the others.
func (h *IngestionService) Execute(ctx context.Context, configs []models.DataConfig) ([]models.PeriodResult, error) {
	perConfig := make([][]models.PeriodResult, len(configs))

	g, gctx := errgroup.WithContext(ctx)
	if h.maxParallelConfigs > 0 {
		g.SetLimit(h.maxParallelConfigs)
	}

	for i := range configs {
		i := i
		cfg := &configs[i]
		g.Go(func() error {
			for _, year := range cfg.Years {
				for _, month := range cfg.Months {
					result := h.processPeriod(gctx, cfg, year, month)
					perConfig[i] = append(perConfig[i], result)
					h.record(result)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var results []models.PeriodResult
	for _, r := range perConfig {
		results = append(results, r...)
	}

	log.Println("Extraction process finished.")
	return results, nil
}

// Results returns the period results recorded so far in completion order.
func (h *IngestionService) Results() []models.PeriodResult {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]models.PeriodResult, len(h.results))
	copy(out, h.results)
	return out
}

func (h *IngestionService) record(result models.PeriodResult) {
	h.mu.Lock()
	h.results = append(h.results, result)
	h.mu.Unlock()

	h.metrics.ObservePeriod(result.Status)
}

func (h *IngestionService) processPeriod(ctx context.Context, cfg *models.DataConfig, year, month models.PeriodPart) models.PeriodResult {
	result := models.PeriodResult{
		RunID:      uuid.NewString(),
		ConfigType: cfg.Type,
		Year:       year,
		Month:      month,
	}

	skip := func(err error) models.PeriodResult {
		log.Printf("ERROR: [%s] Skipping %s %s: %v", result.RunID, cfg.Type, result.Period(), err)
		result.Status = models.PeriodStatusSkipped
		result.Error = err.Error()
		return result
	}

	log.Printf("[%s] Processing %s for month %s and year %s", result.RunID, cfg.Type, month, year)

	data, err := h.fileProcessor.ScanPeriod(cfg, year, month)
	if err != nil {
		return skip(err)
	}

	if _, err := AlignFolders(data); err != nil {
		return skip(err)
	}

	if err := ValidateData(data); err != nil {
		return skip(err)
	}

	batches, err := h.pipeline.Transform(data)
	if err != nil {
		return skip(fmt.Errorf("transform failed: %w", err))
	}

	stats, err := h.writer.InsertData(ctx, cfg.TableName, Flatten(batches))
	if err != nil {
		return skip(fmt.Errorf("insert failed: %w", err))
	}

	log.Printf("[%s] Insertion completed for month %s and year %s in %dms: %d successful, %d failed",
		result.RunID, month, year, stats.DurationMs(), stats.SuccessfulRecords, stats.FailedRecords)

	h.metrics.ObserveInsert(stats)
	result.Status = models.PeriodStatusDone
	result.Stats = stats
	return result
}
