package ingestion

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ThiagoRGoveia/market-data-loader/internal/models"
)

// ErrPeriodNotFound is returned when a (year, month) has no folder under the
// base path.
var ErrPeriodNotFound = errors.New("period folder not found")

// Processor resolves the folders of one period into FileProcessingData.
type Processor interface {
	ScanPeriod(cfg *models.DataConfig, year, month models.PeriodPart) ([]*models.FileProcessingData, error)
}

// FileProcessor discovers the daily files of a period on the local file system.
type FileProcessor struct{}

func NewFileProcessor() *FileProcessor {
	return &FileProcessor{}
}

// PeriodPath returns basePath/<year>_<month>.
func PeriodPath(basePath string, year, month models.PeriodPart) string {
	return filepath.Join(basePath, fmt.Sprintf("%s_%s", year, month))
}

// ScanPeriod lists every configured folder of the period, in configuration
// order. A folder missing on disk is logged and left out; a missing period
// folder is an ErrPeriodNotFound.
func (fp *FileProcessor) ScanPeriod(cfg *models.DataConfig, year, month models.PeriodPart) ([]*models.FileProcessingData, error) {
	periodPath := PeriodPath(cfg.BasePath, year, month)

	info, err := os.Stat(periodPath)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrPeriodNotFound, periodPath)
	}

	data := make([]*models.FileProcessingData, 0, len(cfg.Folders))
	for _, folder := range cfg.Folders {
		folderPath := filepath.Join(periodPath, folder.FolderName)

		fileNames, err := listFiles(folderPath)
		if err != nil {
			log.Printf("WARN: Folder %s not found for %s_%s, skipping it: %v", folder.FolderName, year, month, err)
			continue
		}

		data = append(data, &models.FileProcessingData{
			FolderSpec: folder,
			FolderPath: folderPath,
			FileNames:  fileNames,
		})
	}

	log.Printf("Found %d folders to process in %s", len(data), periodPath)
	return data, nil
}

// listFiles returns the regular, non-hidden file names of dir, sorted
// lexicographically.
func listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	return names, nil
}
