package ingestion

import (
	"fmt"
	"log"
	"time"

	"github.com/ThiagoRGoveia/market-data-loader/internal/models"
	"github.com/ThiagoRGoveia/market-data-loader/internal/parser"
)

// FindReference returns the single folder marked isMain.
func FindReference(data []*models.FileProcessingData) (*models.FileProcessingData, error) {
	var ref *models.FileProcessingData
	for _, folder := range data {
		if !folder.IsMain {
			continue
		}
		if ref != nil {
			return nil, fmt.Errorf("%w: folders %s and %s are both marked as main",
				models.ErrConfiguration, ref.FolderName, folder.FolderName)
		}
		ref = folder
	}

	if ref == nil {
		return nil, fmt.Errorf("%w: no main folder found", models.ErrConfiguration)
	}
	return ref, nil
}

func fileDate(folder *models.FileProcessingData, fileName string) (time.Time, bool) {
	return parser.ExtractDateFromFileName(fileName, folder.DateIndexInFileName, folder.DateFormatInFileName, folder.FileNameSeparator)
}

// CanonicalDates derives the date sequence from the reference folder's sorted
// file names. Every reference file must carry a date.
func CanonicalDates(ref *models.FileProcessingData) ([]time.Time, error) {
	dates := make([]time.Time, len(ref.FileNames))
	for i, name := range ref.FileNames {
		date, ok := fileDate(ref, name)
		if !ok {
			return nil, fmt.Errorf("%w: could not extract a date from main folder file %s",
				models.ErrConfiguration, name)
		}
		dates[i] = date
	}
	return dates, nil
}

// AlignFolders prunes every secondary folder to the reference folder's dates and
// returns the canonical sequence. The walk is a single pass with no
// backtracking: a secondary file is kept only when its date equals the date at
// the cursor, so out-of-order secondary files are rejected.
func AlignFolders(data []*models.FileProcessingData) ([]time.Time, error) {
	ref, err := FindReference(data)
	if err != nil {
		return nil, err
	}

	canonical, err := CanonicalDates(ref)
	if err != nil {
		return nil, err
	}

	for _, folder := range data {
		if folder == ref {
			continue
		}
		if err := alignFolder(folder, canonical); err != nil {
			return nil, err
		}
	}

	return canonical, nil
}

func alignFolder(folder *models.FileProcessingData, canonical []time.Time) error {
	retained := make([]string, 0, len(canonical))
	cursor := 0

	for _, name := range folder.FileNames {
		date, ok := fileDate(folder, name)
		if ok && cursor < len(canonical) && date.Equal(canonical[cursor]) {
			retained = append(retained, name)
			cursor++
			continue
		}
		log.Printf("WARN: Dropping file %s from folder %s: no matching main folder date", name, folder.FolderName)
	}

	if len(retained) != len(canonical) {
		return fmt.Errorf("%w: folder %s kept %d files, expected %d",
			models.ErrAlignment, folder.FolderName, len(retained), len(canonical))
	}

	folder.FileNames = retained
	return nil
}

// ValidateData checks that every folder has columns configured and that all
// folders hold the same number of files.
func ValidateData(data []*models.FileProcessingData) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: no folders to process", models.ErrConfiguration)
	}

	expected := len(data[0].FileNames)
	for _, folder := range data {
		if len(folder.Columns) == 0 {
			return fmt.Errorf("%w: folder %s has no columns", models.ErrConfiguration, folder.FolderName)
		}
		if len(folder.FileNames) != expected {
			return fmt.Errorf("%w: folder %s has %d files, folder %s has %d",
				models.ErrAlignment, folder.FolderName, len(folder.FileNames), data[0].FolderName, expected)
		}
	}

	return nil
}
