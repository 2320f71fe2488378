package ingestion

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThiagoRGoveia/market-data-loader/internal/metrics"
	"github.com/ThiagoRGoveia/market-data-loader/internal/models"
	"github.com/ThiagoRGoveia/market-data-loader/internal/scheduler"
)

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	s := scheduler.New(2)
	t.Cleanup(s.Close)
	return NewPipeline(s, metrics.New())
}

// twoFolderPeriod writes a period with a prices (main) and a volumes folder,
// both covering 2024-01-02 and 2024-01-03.
func twoFolderPeriod(t *testing.T) []*models.FileProcessingData {
	t.Helper()
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "prices", "prices_20240102.csv"),
		"\ufeffticker,close,trade_date\nPETR4, 30.5 ,2024-01-02\nVALE3,61.2,2024-01-02\nBAD1,abc,2024-01-02\n")
	writeFile(t, filepath.Join(dir, "prices", "prices_20240103.csv"),
		"ticker,close,trade_date\nPETR4,31,2024-01-03\n")
	writeFile(t, filepath.Join(dir, "volumes", "vol;20240102.csv"),
		"ticker;volume\nPETR4;1500\nVALE3;0\nITUB4;12.9\n")
	writeFile(t, filepath.Join(dir, "volumes", "vol;20240103.csv"),
		"ticker;volume\nPETR4;900\n")

	prices := &models.FileProcessingData{
		FolderSpec: models.FolderSpec{
			FolderName:           "prices",
			IsMain:               true,
			DateIndexInFileName:  1,
			DateFormatInFileName: models.DateFormatYYYYMMDD,
			FileNameSeparator:    "_",
			Columns:              []string{"ticker", "close", "trade_date"},
			ColumnLabelAndTypeMapping: map[string]models.ColumnTarget{
				"ticker":     {Label: "symbol", Type: models.ColumnTypeText},
				"close":      {Label: "close_price", Type: models.ColumnTypeFloat},
				"trade_date": {Label: "trade_date", Type: models.ColumnTypeDate},
			},
			UniqueColumn: "ticker",
		},
		FolderPath: filepath.Join(dir, "prices"),
		FileNames:  []string{"prices_20240102.csv", "prices_20240103.csv"},
	}
	volumes := &models.FileProcessingData{
		FolderSpec: models.FolderSpec{
			FolderName:           "volumes",
			DateIndexInFileName:  1,
			DateFormatInFileName: models.DateFormatYYYYMMDD,
			FileNameSeparator:    ";",
			Delimiter:            ";",
			Columns:              []string{"ticker", "volume"},
			ColumnLabelAndTypeMapping: map[string]models.ColumnTarget{
				"ticker": {Label: "symbol", Type: models.ColumnTypeText},
				"volume": {Label: "volume", Type: models.ColumnTypeInt},
			},
			Filter:       []models.Condition{{Field: "volume", Operation: ">", Value: "0"}},
			UniqueColumn: "ticker",
		},
		FolderPath: filepath.Join(dir, "volumes"),
		FileNames:  []string{"vol;20240102.csv", "vol;20240103.csv"},
	}

	return []*models.FileProcessingData{prices, volumes}
}

func TestPipeline_Transform(t *testing.T) {
	data := twoFolderPeriod(t)

	batches, err := newTestPipeline(t).Transform(data)

	require.NoError(t, err)
	require.Len(t, batches, 2)

	assert.Equal(t, []models.Record{
		{"symbol": "PETR4", "close_price": 30.5, "trade_date": date("2024-01-02"), "volume": int64(1500)},
		{"symbol": "VALE3", "close_price": 61.2, "trade_date": date("2024-01-02")},
		{"symbol": "ITUB4", "volume": int64(12)},
	}, batches[0])

	assert.Equal(t, []models.Record{
		{"symbol": "PETR4", "close_price": float64(31), "trade_date": date("2024-01-03"), "volume": int64(900)},
	}, batches[1])

	assert.Len(t, Flatten(batches), 4)
}

func TestPipeline_ProcessCSVFile_Stats(t *testing.T) {
	data := twoFolderPeriod(t)
	p := newTestPipeline(t)

	prices := p.processCSVFile(data[0], data[0].FileNames[0], newRecordSet())
	assert.Equal(t, 3, prices.RowsRead)
	assert.Equal(t, 0, prices.RowsSkipped)
	assert.Equal(t, 1, prices.RowsInvalid)
	assert.Len(t, prices.Checksum, 16)
	assert.Empty(t, prices.StreamError)

	volumes := p.processCSVFile(data[1], data[1].FileNames[0], newRecordSet())
	assert.Equal(t, 3, volumes.RowsRead)
	assert.Equal(t, 1, volumes.RowsSkipped)
}

func TestPipeline_MissingFileContributesNothing(t *testing.T) {
	data := twoFolderPeriod(t)
	data[1].FileNames[1] = "vol;20240103-missing.csv"

	batches, err := newTestPipeline(t).Transform(data)

	require.NoError(t, err)
	assert.Equal(t, []models.Record{
		{"symbol": "PETR4", "close_price": float64(31), "trade_date": date("2024-01-03")},
	}, batches[1])
}

func TestPipeline_InvalidRowDoesNotTouchRecord(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "p", "p_20240102.csv"), "ticker,close,volume\nPETR4,30,10\nPETR4,31,none\n")

	folder := &models.FileProcessingData{
		FolderSpec: models.FolderSpec{
			FolderName: "p",
			IsMain:     true,
			Columns:    []string{"ticker", "close", "volume"},
			ColumnLabelAndTypeMapping: map[string]models.ColumnTarget{
				"ticker": {Label: "symbol", Type: models.ColumnTypeText},
				"close":  {Label: "close", Type: models.ColumnTypeFloat},
				"volume": {Label: "volume", Type: models.ColumnTypeInt},
			},
			UniqueColumn: "ticker",
		},
		FolderPath: filepath.Join(dir, "p"),
		FileNames:  []string{"p_20240102.csv"},
	}

	merged := newRecordSet()
	stats := newTestPipeline(t).processCSVFile(folder, folder.FileNames[0], merged)

	assert.Equal(t, 1, stats.RowsInvalid)
	assert.Equal(t, []models.Record{{"symbol": "PETR4", "close": float64(30), "volume": int64(10)}}, merged.records())
}

func TestPipeline_Transform_RequiresReference(t *testing.T) {
	data := twoFolderPeriod(t)
	data[0].IsMain = false

	_, err := newTestPipeline(t).Transform(data)

	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestPipeline_ProcessDailyFiles_IndexOutOfRange(t *testing.T) {
	data := twoFolderPeriod(t)
	data[1].FileNames = data[1].FileNames[:1]

	_, err := newTestPipeline(t).processDailyFiles(models.Task{FileIndex: 1, Data: data})

	assert.ErrorIs(t, err, models.ErrAlignment)
}

func TestBuildTasks(t *testing.T) {
	data := twoFolderPeriod(t)

	tasks := BuildTasks(data, 2)

	require.Len(t, tasks, 2)
	for i, task := range tasks {
		assert.Equal(t, i, task.FileIndex)
		assert.Len(t, task.Data, 2)
	}
}

func TestFlatten(t *testing.T) {
	assert.Empty(t, Flatten(nil))
	assert.Equal(t, []models.Record{{"a": 1}, {"b": 2}, {"c": 3}},
		Flatten([][]models.Record{{{"a": 1}}, {}, {{"b": 2}, {"c": 3}}}))
}
