package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

type ColumnType string

const (
	ColumnTypeInt   ColumnType = "INT"
	ColumnTypeFloat ColumnType = "FLOAT"
	ColumnTypeDate  ColumnType = "DATE"
	ColumnTypeText  ColumnType = "TEXT"
)

// Supported layouts for the date token embedded in file names.
const (
	DateFormatYYYYMMDD = "YYYYMMDD"
	DateFormatDDMMYYYY = "DDMMYYYY"
	DateFormatMMDDYYYY = "MMDDYYYY"
)

// PeriodPart is a year or month as written in the data configuration. It accepts
// both JSON strings ("01") and numbers (1) and keeps the textual form, because the
// monthly folder name is built from it verbatim.
type PeriodPart string

func (p *PeriodPart) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = PeriodPart(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("period part must be a string or a number, got %s", string(b))
	}
	*p = PeriodPart(n.String())
	return nil
}

// ColumnTarget is the output field name and semantic type for one source column.
// On the wire it is a two element array: ["close_price", "FLOAT"].
type ColumnTarget struct {
	Label string
	Type  ColumnType
}

func (c *ColumnTarget) UnmarshalJSON(b []byte) error {
	var pair []string
	if err := json.Unmarshal(b, &pair); err != nil {
		return fmt.Errorf("column mapping must be a [label, type] array: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("column mapping must have exactly 2 elements, got %d", len(pair))
	}
	c.Label = pair[0]
	c.Type = ColumnType(pair[1])
	return nil
}

func (c ColumnTarget) MarshalJSON() ([]byte, error) {
	return json.Marshal([]string{c.Label, string(c.Type)})
}

// Condition is a single row filter clause. Value is whatever the JSON held: a
// string, a number, or an array for IN and BETWEEN.
type Condition struct {
	Field     string `json:"field" validate:"required"`
	Operation string `json:"operation" validate:"required"`
	Value     any    `json:"value"`
}

// FolderSpec describes one topical folder of a monthly data set. It is never
// mutated after loading.
type FolderSpec struct {
	FolderName                string                  `json:"folderName" validate:"required"`
	IsMain                    bool                    `json:"isMain"`
	DateIndexInFileName       int                     `json:"dateIndexInFileName" validate:"min=0"`
	DateFormatInFileName      string                  `json:"dateFormatInFileName" validate:"oneof=YYYYMMDD DDMMYYYY MMDDYYYY"`
	FileNameSeparator         string                  `json:"fileNameSeparator" validate:"required"`
	Columns                   []string                `json:"columns" validate:"required,min=1,dive,required"`
	ColumnLabelAndTypeMapping map[string]ColumnTarget `json:"columnLabelAndTypeMapping" validate:"required"`
	Filter                    []Condition             `json:"filter,omitempty" validate:"omitempty,dive"`
	UniqueColumn              string                  `json:"uniqueColumn" validate:"required"`
	Delimiter                 string                  `json:"delimiter,omitempty" validate:"omitempty,len=1"`
}

// DataConfig is one entry of the data configuration file.
type DataConfig struct {
	Type      string       `json:"type"`
	Active    bool         `json:"active"`
	BasePath  string       `json:"basePath" validate:"required"`
	Years     []PeriodPart `json:"years" validate:"required,min=1,dive,required"`
	Months    []PeriodPart `json:"months" validate:"required,min=1,dive,required"`
	TableName string       `json:"tableName" validate:"required"`
	Folders   []FolderSpec `json:"folders" validate:"required,min=1,dive"`
}

// OutputColumns lists every output field the config produces, in folder and
// column order, with the first declared type winning on duplicates.
func (c *DataConfig) OutputColumns() []ColumnTarget {
	seen := make(map[string]bool)
	var out []ColumnTarget
	for _, folder := range c.Folders {
		for _, column := range folder.Columns {
			target, ok := folder.ColumnLabelAndTypeMapping[column]
			if !ok || seen[target.Label] {
				continue
			}
			seen[target.Label] = true
			out = append(out, target)
		}
	}
	return out
}

// FileProcessingData is a FolderSpec resolved against one (year, month) folder.
// FileNames is sorted lexicographically and, after alignment, has one entry per
// canonical date.
type FileProcessingData struct {
	FolderSpec
	FolderPath string
	FileNames  []string
}

// Task is the unit of work for one canonical date of a period.
type Task struct {
	FileIndex int
	Data      []*FileProcessingData
}

// Record is a merged row for one unique key on one date. Values are int64,
// float64, time.Time, string or nil.
type Record map[string]any

// InsertStats summarizes one InsertData call. Failures are counted per batch once
// the batch reaches the database.
type InsertStats struct {
	TotalRecords      int           `json:"total_records"`
	SuccessfulRecords int           `json:"successful_records"`
	FailedRecords     int           `json:"failed_records"`
	Batches           int           `json:"batches"`
	FailedBatches     int           `json:"failed_batches"`
	StartTime         time.Time     `json:"start_time"`
	EndTime           time.Time     `json:"end_time"`
	Duration          time.Duration `json:"duration"`
}

func (s *InsertStats) DurationMs() int64 {
	return s.Duration.Milliseconds()
}

// FileStats describes how a single CSV file contributed to a task.
type FileStats struct {
	Folder      string `json:"folder"`
	Path        string `json:"path"`
	Checksum    string `json:"checksum,omitempty"`
	RowsRead    int    `json:"rows_read"`
	RowsSkipped int    `json:"rows_skipped"`
	RowsInvalid int    `json:"rows_invalid"`
	StreamError string `json:"stream_error,omitempty"`
}

type PeriodStatus string

const (
	PeriodStatusDone    PeriodStatus = "done"
	PeriodStatusSkipped PeriodStatus = "skipped"
)

// PeriodResult is what the service reports for each (config, year, month).
type PeriodResult struct {
	RunID      string       `json:"run_id"`
	ConfigType string       `json:"config_type"`
	Year       PeriodPart   `json:"year"`
	Month      PeriodPart   `json:"month"`
	Status     PeriodStatus `json:"status"`
	Stats      *InsertStats `json:"stats,omitempty"`
	Error      string       `json:"error,omitempty"`
}

func (r PeriodResult) Period() string {
	return fmt.Sprintf("%s_%s", r.Year, r.Month)
}

// FormatNumber renders a JSON scalar the way it would appear in a CSV cell.
func FormatNumber(v any) (string, bool) {
	switch n := v.(type) {
	case string:
		return n, true
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64), true
	case json.Number:
		return n.String(), true
	case int:
		return strconv.Itoa(n), true
	case int64:
		return strconv.FormatInt(n, 10), true
	case bool:
		return strconv.FormatBool(n), true
	default:
		return "", false
	}
}
