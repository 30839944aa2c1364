package dataset_test

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"crash-dashboard/internal/dataset"
	"crash-dashboard/internal/models"
	"crash-dashboard/internal/testkit"
)

func TestLoadFile_CSV(t *testing.T) {
	path := testkit.WriteCSV(t, t.TempDir(), "crashes.csv", testkit.Mixed())

	table, err := dataset.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, len(testkit.Mixed()), table.Len())
	assert.Equal(t, path, table.Source())
	assert.Equal(t, testkit.Header(), table.Columns())
	assert.False(t, table.LoadedAt().IsZero())
}

func TestLoadFile_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crashes.xlsx")
	f := excelize.NewFile()
	for i, row := range testkit.Records(testkit.Mixed()) {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &values))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	table, err := dataset.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, len(testkit.Mixed()), table.Len())

	fatal, err := table.Numbers(models.ColInjuriesFatal)
	require.NoError(t, err)
	assert.Equal(t, 1.0, fatal[3])
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	missingCol := filepath.Join(dir, "missing_col.csv")
	header := testkit.Header()
	require.NoError(t, os.WriteFile(missingCol,
		[]byte(strings.Join(header[:len(header)-1], ",")+"\n"+strings.Repeat("x,", len(header)-2)+"x\n"), 0o600))

	headerOnly := filepath.Join(dir, "header_only.csv")
	require.NoError(t, os.WriteFile(headerOnly, []byte(strings.Join(header, ",")+"\n"), 0o600))

	unsupported := filepath.Join(dir, "crashes.json")
	require.NoError(t, os.WriteFile(unsupported, []byte("[]"), 0o600))

	tests := []struct {
		name   string
		path   string
		reason string
	}{
		{"missing file", filepath.Join(dir, "nope.csv"), "file not found"},
		{"missing column", missingCol, models.ColInjuriesNoIndication},
		{"header only", headerOnly, headerOnly},
		{"unsupported type", unsupported, "unsupported file type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dataset.LoadFile(tt.path)
			var loadErr *models.LoadError
			require.True(t, errors.As(err, &loadErr), "got %v", err)
			assert.Contains(t, loadErr.Error(), tt.reason)
			assert.False(t, loadErr.IsTransient())
		})
	}
}

func TestFromRecords_RaggedRows(t *testing.T) {
	records := testkit.Records(testkit.Repeat(testkit.Base(), 2))

	short := append([][]string(nil), records...)
	short[1] = short[1][:len(short[1])-2]
	table, err := dataset.FromRecords(short, "short")
	require.NoError(t, err)
	noInd, err := table.Numbers(models.ColInjuriesNoIndication)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(noInd[0]))

	long := append([][]string(nil), records...)
	long[2] = append(append([]string(nil), long[2]...), "extra")
	_, err = dataset.FromRecords(long, "long")
	var loadErr *models.LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Contains(t, loadErr.Reason, "row 3")
}

func TestTable_WhereAndHead(t *testing.T) {
	table := testkit.Table(t, testkit.Mixed())

	rain, err := table.Where(dataset.NotEqual(models.ColWeather, models.WeatherClear),
		dataset.OneOf(models.ColWeather, models.WeatherRain, models.WeatherSnow))
	require.NoError(t, err)
	assert.Equal(t, 3, rain.Len())
	assert.Equal(t, len(testkit.Mixed()), table.Len())

	none, err := rain.Where(dataset.OneOf(models.ColWeather, "FOG"))
	require.NoError(t, err)
	assert.Equal(t, 0, none.Len())
	none, err = none.Where(dataset.NotEqual(models.ColLighting, "DAYLIGHT"))
	require.NoError(t, err)
	assert.Equal(t, 0, none.Len())

	_, err = table.Where(dataset.NotEqual("NOT_A_COLUMN", "x"))
	assert.Error(t, err)

	head := table.Head(2)
	require.Len(t, head, 2)
	assert.Equal(t, "crash-0", head[0][0])
	assert.Len(t, table.Head(100), len(testkit.Mixed()))
	assert.Empty(t, table.Head(0))
}

func TestTable_RowsAndStrings(t *testing.T) {
	table := testkit.Table(t, testkit.Mixed())

	rows := table.Rows()
	require.Len(t, rows, len(testkit.Mixed()))
	assert.Equal(t, "crash-5", rows[5]["CRASH_RECORD_ID"])
	assert.Equal(t, "PHYSICAL CONDITION OF DRIVER", rows[5][models.ColPrimaryCause])
	assert.Equal(t, "12", rows[5][models.ColCrashMonth])

	_, err := table.Strings("NOT_A_COLUMN")
	assert.Error(t, err)
}

func TestTable_FloatCellsAndBlanks(t *testing.T) {
	records := testkit.Records(testkit.Repeat(testkit.Base(), 2))
	col := func(name string) int {
		for i, h := range records[0] {
			if h == name {
				return i
			}
		}
		t.Fatalf("no column %s", name)
		return -1
	}
	records[1][col(models.ColInjuriesFatal)] = "2.0"
	records[1][col(models.ColInjuriesIncapacitating)] = "1.5"
	records[2][col(models.ColInjuriesFatal)] = ""
	records[2][col(models.ColCrashMonth)] = ""

	table, err := dataset.FromRecords(records, "floats")
	require.NoError(t, err)

	fatal, err := table.Numbers(models.ColInjuriesFatal)
	require.NoError(t, err)
	assert.Equal(t, 2.0, fatal[0])
	assert.True(t, math.IsNaN(fatal[1]))

	head := table.Head(2)
	require.Len(t, head, 2)
	assert.Equal(t, "2", head[0][col(models.ColInjuriesFatal)])
	assert.Equal(t, "1.5", head[0][col(models.ColInjuriesIncapacitating)])
	assert.Equal(t, "1", head[0][col(models.ColCrashMonth)])
	assert.Equal(t, "", head[1][col(models.ColInjuriesFatal)])
	assert.Equal(t, "", head[1][col(models.ColCrashMonth)])
	assert.Equal(t, "0", head[1][col(models.ColInjuriesNoIndication)])

	rows := table.Rows()
	assert.Equal(t, "2", rows[0][models.ColInjuriesFatal])
	assert.Equal(t, "", rows[1][models.ColInjuriesFatal])

	record := models.CrashRecordFromRow(rows[0])
	require.NotNil(t, record.InjuriesFatal)
	assert.Equal(t, 2, *record.InjuriesFatal)
	require.NotNil(t, record.InjuriesIncapacitating)
	assert.Equal(t, 1, *record.InjuriesIncapacitating)
	assert.Nil(t, models.CrashRecordFromRow(rows[1]).InjuriesFatal)

	months, err := table.Strings(models.ColCrashMonth)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", ""}, months)
}

func TestFromCrashRecords(t *testing.T) {
	fatal := 3
	records := []*models.CrashRecord{
		models.CrashRecordFromRow(testkit.Table(t, testkit.Mixed()).Rows()[5]),
		{CrashRecordID: "blank", PrimaryCause: "X", InjuriesFatal: &fatal},
	}

	table, err := dataset.FromCrashRecords(records, "postgres")
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())

	values, err := table.Numbers(models.ColInjuriesFatal)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3}, values)

	month, err := table.Numbers(models.ColCrashMonth)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(month[1]))
}
