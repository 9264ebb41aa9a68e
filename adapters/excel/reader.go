package excel

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"trialsim/domain/trial"
	"trialsim/internal"
	apperrors "trialsim/internal/errors"
)

// Column names recognised by ReadArmOutcomes, compared case-insensitively.
var (
	armColumns      = []string{"arm", "group", "treatment_arm"}
	responseColumns = []string{"response", "responded", "outcome", "success"}
)

// DataReader handles reading Excel and CSV files
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	logger   *internal.Logger
}

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader(filePath string) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &DataReader{filePath: filePath, fileType: fileType, logger: internal.NewComponentLogger("DataReader")}
}

// ReadData reads the first sheet (or the CSV file) into rows keyed by header.
func (r *DataReader) ReadData() (*SheetData, error) {
	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath))
	}

	start := time.Now()
	var rows [][]string
	var err error
	switch r.fileType {
	case "csv":
		rows, err = r.readCSVRows()
	default:
		rows, err = r.readExcelRows()
	}
	if err != nil {
		return nil, err
	}
	r.logger.Debug("%s file read in %.2fms (%d rows)", strings.ToUpper(r.fileType), float64(time.Since(start).Nanoseconds())/1e6, len(rows))

	if len(rows) < 2 {
		return nil, apperrors.InvalidInput(fmt.Sprintf("%s file must have a header row and at least one data row", strings.ToUpper(r.fileType)))
	}
	return processRows(rows), nil
}

func (r *DataReader) readExcelRows() ([][]string, error) {
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, apperrors.Wrap(err, "open Excel file")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperrors.InvalidInput("Excel file has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, apperrors.Wrapf(err, "read sheet %s", sheets[0])
	}
	return rows, nil
}

func (r *DataReader) readCSVRows() ([][]string, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, apperrors.Wrap(err, "open CSV file")
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, apperrors.Wrap(err, "read CSV file")
	}
	return rows, nil
}

// processRows converts raw string rows into SheetData
func processRows(rows [][]string) *SheetData {
	headers := make([]string, len(rows[0]))
	for i, header := range rows[0] {
		headers[i] = strings.TrimSpace(header)
	}

	data := make([]RawRowData, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rowData := make(RawRowData, len(headers))
		empty := true
		for j, cell := range row {
			if j < len(headers) {
				rowData[headers[j]] = strings.TrimSpace(cell)
				if rowData[headers[j]] != "" {
					empty = false
				}
			}
		}
		if !empty {
			data = append(data, rowData)
		}
	}
	return &SheetData{Headers: headers, Rows: data}
}

// ArmOutcomes are the per-participant responses of a two-arm trial.
type ArmOutcomes struct {
	Control   trial.BinaryOutcomes
	Treatment trial.BinaryOutcomes
}

// ReadArmOutcomes counts responses per arm from a participant-level file.
// Each row names its arm ("control"/"treatment", or "c"/"t") and a binary
// response (1/0, yes/no, true/false).
func (r *DataReader) ReadArmOutcomes() (*ArmOutcomes, error) {
	data, err := r.ReadData()
	if err != nil {
		return nil, err
	}
	armCol, err := findColumn(data.Headers, armColumns)
	if err != nil {
		return nil, err
	}
	respCol, err := findColumn(data.Headers, responseColumns)
	if err != nil {
		return nil, err
	}

	var out ArmOutcomes
	for i, row := range data.Rows {
		line := i + 2
		responded, err := parseResponse(row[respCol])
		if err != nil {
			return nil, apperrors.InvalidInput(fmt.Sprintf("row %d: %v", line, err))
		}
		var target *trial.BinaryOutcomes
		switch strings.ToLower(row[armCol]) {
		case "control", "c", "placebo":
			target = &out.Control
		case "treatment", "t", "active":
			target = &out.Treatment
		default:
			return nil, apperrors.InvalidInput(fmt.Sprintf("row %d: unknown arm %q", line, row[armCol]))
		}
		if responded {
			target.Successes++
		} else {
			target.Failures++
		}
	}

	r.logger.Info("read %d participants (control %d/%d, treatment %d/%d)", len(data.Rows),
		out.Control.Successes, out.Control.N(), out.Treatment.Successes, out.Treatment.N())
	return &out, nil
}

func findColumn(headers []string, candidates []string) (string, error) {
	for _, c := range candidates {
		for _, h := range headers {
			if strings.EqualFold(h, c) {
				return h, nil
			}
		}
	}
	return "", apperrors.InvalidInput(fmt.Sprintf("no column named one of %s", strings.Join(candidates, ", ")))
}

func parseResponse(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "1", "yes", "y", "true", "responder":
		return true, nil
	case "0", "no", "n", "false", "non-responder":
		return false, nil
	default:
		return false, fmt.Errorf("response %q is not binary", v)
	}
}
