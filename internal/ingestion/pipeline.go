package ingestion

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/ThiagoRGoveia/market-data-loader/internal/filter"
	"github.com/ThiagoRGoveia/market-data-loader/internal/metrics"
	"github.com/ThiagoRGoveia/market-data-loader/internal/models"
	"github.com/ThiagoRGoveia/market-data-loader/internal/parser"
	"github.com/ThiagoRGoveia/market-data-loader/internal/scheduler"
	"github.com/ThiagoRGoveia/market-data-loader/pkg/checksum"
)

// Transformer turns an aligned period into merged records, one inner slice per
// canonical date.
type Transformer interface {
	Transform(data []*models.FileProcessingData) ([][]models.Record, error)
}

// Pipeline runs one task per canonical date on the scheduler.
type Pipeline struct {
	scheduler *scheduler.Scheduler
	metrics   *metrics.Recorder
}

func NewPipeline(s *scheduler.Scheduler, m *metrics.Recorder) *Pipeline {
	return &Pipeline{scheduler: s, metrics: m}
}

// BuildTasks creates one task per date index, all sharing the period's folders.
func BuildTasks(data []*models.FileProcessingData, dateCount int) []models.Task {
	tasks := make([]models.Task, dateCount)
	for i := range tasks {
		tasks[i] = models.Task{FileIndex: i, Data: data}
	}
	return tasks
}

// Transform expects data to be aligned already so every folder has the same
// number of files.
func (p *Pipeline) Transform(data []*models.FileProcessingData) ([][]models.Record, error) {
	ref, err := FindReference(data)
	if err != nil {
		return nil, err
	}

	tasks := BuildTasks(data, len(ref.FileNames))
	return scheduler.SubmitAll(p.scheduler, tasks, p.processDailyFiles)
}

// Flatten concatenates the per-date records into a single sequence.
func Flatten(batches [][]models.Record) []models.Record {
	n := 0
	for _, batch := range batches {
		n += len(batch)
	}

	out := make([]models.Record, 0, n)
	for _, batch := range batches {
		out = append(out, batch...)
	}
	return out
}

// recordSet keeps merged records by unique key in first-seen order.
type recordSet struct {
	byKey map[string]models.Record
	order []string
}

func newRecordSet() *recordSet {
	return &recordSet{byKey: make(map[string]models.Record)}
}

func (s *recordSet) merge(key string, values models.Record) {
	record, ok := s.byKey[key]
	if !ok {
		record = make(models.Record, len(values))
		s.byKey[key] = record
		s.order = append(s.order, key)
	}
	for field, value := range values {
		record[field] = value
	}
}

func (s *recordSet) records() []models.Record {
	out := make([]models.Record, len(s.order))
	for i, key := range s.order {
		out[i] = s.byKey[key]
	}
	return out
}

// processDailyFiles merges the file at task.FileIndex of every folder, in
// folder order, into one record per unique key.
func (p *Pipeline) processDailyFiles(task models.Task) ([]models.Record, error) {
	merged := newRecordSet()

	for _, folder := range task.Data {
		if task.FileIndex >= len(folder.FileNames) {
			return nil, fmt.Errorf("%w: folder %s has no file at index %d",
				models.ErrAlignment, folder.FolderName, task.FileIndex)
		}
		p.processCSVFile(folder, folder.FileNames[task.FileIndex], merged)
	}

	return merged.records(), nil
}

// processCSVFile streams one file into merged. It never fails: open and stream
// errors are logged and end the file's contribution.
func (p *Pipeline) processCSVFile(folder *models.FileProcessingData, fileName string, merged *recordSet) models.FileStats {
	path := filepath.Join(folder.FolderPath, fileName)
	stats := models.FileStats{Folder: folder.FolderName, Path: path}

	file, err := os.Open(path)
	if err != nil {
		appErr := &models.AppError{Folder: folder.FolderName, Path: path, Message: "could not open file", Err: err}
		log.Printf("ERROR: %v", appErr)
		stats.StreamError = err.Error()
		p.metrics.ObserveFile(stats)
		return stats
	}
	defer file.Close()

	hashed := checksum.NewReader(file)
	var firstRowErr error

	summary, err := parser.ReadRows(hashed, parser.Delimiter(folder.Delimiter), func(row map[string]string) {
		stats.RowsRead++

		if !filter.Evaluate(row, folder.Filter) {
			stats.RowsSkipped++
			return
		}

		key, values, err := transformRow(&folder.FolderSpec, row)
		if err != nil {
			stats.RowsInvalid++
			if firstRowErr == nil {
				firstRowErr = err
			}
			return
		}
		merged.merge(key, values)
	})
	stats.RowsInvalid += summary.Malformed

	if err != nil {
		appErr := &models.AppError{Folder: folder.FolderName, Path: path, Message: "stream error, file contributed nothing further", Err: err}
		log.Printf("ERROR: %v", appErr)
		stats.StreamError = err.Error()
	} else {
		stats.Checksum = hashed.Sum()
	}

	if firstRowErr != nil {
		log.Printf("WARN: %d rows of %s could not be parsed, first error: %v", stats.RowsInvalid, path, firstRowErr)
	}
	log.Printf("%s: Total %d were processed, out of which %d have been skipped and %d failed to parse (checksum %s)",
		path, stats.RowsRead, stats.RowsSkipped, stats.RowsInvalid, stats.Checksum)

	p.metrics.ObserveFile(stats)
	return stats
}

// transformRow coerces every configured column of row. Nothing is returned
// unless all of them coerce, so a failing row never partially updates a record.
func transformRow(folder *models.FolderSpec, row map[string]string) (string, models.Record, error) {
	rawKey, ok := row[folder.UniqueColumn]
	if !ok {
		return "", nil, fmt.Errorf("%w: unique column %s is missing", models.ErrRowParse, folder.UniqueColumn)
	}
	key := strings.TrimSpace(rawKey)
	if key == "" {
		return "", nil, fmt.Errorf("%w: unique column %s is empty", models.ErrRowParse, folder.UniqueColumn)
	}

	values := make(models.Record, len(folder.Columns))
	for _, column := range folder.Columns {
		raw, ok := row[column]
		if !ok {
			return "", nil, fmt.Errorf("%w: column %s is missing", models.ErrRowParse, column)
		}

		target := folder.ColumnLabelAndTypeMapping[column]
		value, err := parser.ConvertValue(target.Type, strings.TrimSpace(raw))
		if err != nil {
			return "", nil, fmt.Errorf("column %s: %w", column, err)
		}
		values[target.Label] = value
	}

	return key, values, nil
}
