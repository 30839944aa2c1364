package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"

	"crash-dashboard/internal/models"
)

// columnTypes pins the dashboard columns; other columns keep detected types.
// Count columns load as floats so pandas-style "2.0" cells parse; blank or
// non-numeric cells become NaN and the aggregations truncate to int.
func columnTypes() map[string]series.Type {
	types := make(map[string]series.Type)
	for _, col := range models.CategoricalColumns {
		types[col] = series.String
	}
	for _, col := range models.TimeColumns {
		types[col] = series.Float
	}
	for _, col := range models.InjuryColumns {
		types[col] = series.Float
	}
	types[models.ColCrashRecordID] = series.String
	return types
}

// LoadFile reads a .csv or .xlsx dataset. Every failure is a *models.LoadError.
func LoadFile(path string) (*Table, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &models.LoadError{Source: path, Reason: "file not found", Err: err}
		}
		return nil, &models.LoadError{Source: path, Reason: "cannot stat file", Err: err}
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv", ".txt":
		return loadCSV(path)
	case ".xlsx":
		return loadXLSX(path)
	default:
		return nil, &models.LoadError{Source: path, Reason: fmt.Sprintf("unsupported file type %q", ext)}
	}
}

func loadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &models.LoadError{Source: path, Reason: "cannot open file", Err: err}
	}
	defer f.Close()

	frame := dataframe.ReadCSV(f, dataframe.WithTypes(columnTypes()))
	return finish(frame, path)
}

// loadXLSX reads the first sheet of a workbook.
func loadXLSX(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &models.LoadError{Source: path, Reason: "cannot open workbook", Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &models.LoadError{Source: path, Reason: "workbook has no sheets"}
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &models.LoadError{Source: path, Reason: fmt.Sprintf("cannot read sheet %q", sheets[0]), Err: err}
	}
	return FromRecords(rows, path)
}

// FromRecords builds a Table from a header row followed by data rows. Rows
// shorter than the header are padded with blanks (excelize trims trailing
// empty cells); longer rows are malformed.
func FromRecords(records [][]string, source string) (*Table, error) {
	if len(records) == 0 {
		return nil, &models.LoadError{Source: source, Reason: "dataset is empty"}
	}
	width := len(records[0])
	padded := make([][]string, len(records))
	for i, row := range records {
		switch {
		case len(row) > width:
			return nil, &models.LoadError{
				Source: source,
				Reason: fmt.Sprintf("row %d has %d fields, header has %d", i+1, len(row), width),
			}
		case len(row) < width:
			full := make([]string, width)
			copy(full, row)
			padded[i] = full
		default:
			padded[i] = row
		}
	}

	frame := dataframe.LoadRecords(padded, dataframe.WithTypes(columnTypes()))
	return finish(frame, source)
}

// FromCrashRecords builds a Table from persisted rows.
func FromCrashRecords(records []*models.CrashRecord, source string) (*Table, error) {
	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, models.RecordHeader())
	for _, r := range records {
		rows = append(rows, r.Values())
	}
	return FromRecords(rows, source)
}

func finish(frame dataframe.DataFrame, source string) (*Table, error) {
	if frame.Err != nil {
		return nil, &models.LoadError{Source: source, Reason: "malformed dataset", Err: frame.Err}
	}
	if frame.Nrow() == 0 {
		return nil, &models.LoadError{Source: source, Reason: "dataset has no rows"}
	}

	t := newTable(frame, source)
	var missing []string
	for _, col := range models.RequiredColumns() {
		if !t.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &models.LoadError{
			Source: source,
			Reason: "missing required columns: " + strings.Join(missing, ", "),
		}
	}
	return t, nil
}
