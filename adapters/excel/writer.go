package excel

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"trialsim/domain/trial"
	"trialsim/internal"
	apperrors "trialsim/internal/errors"
)

// Writer collects sheets and writes them as one workbook.
type Writer struct {
	sheets []Sheet
	logger *internal.Logger
}

// NewWriter creates an empty workbook writer
func NewWriter() *Writer {
	return &Writer{logger: internal.NewComponentLogger("ExcelWriter")}
}

// AddSheet appends a sheet. Sheets are written in the order added.
func (w *Writer) AddSheet(s Sheet) *Writer {
	w.sheets = append(w.sheets, s)
	return w
}

// Save writes the workbook to path.
func (w *Writer) Save(path string) error {
	f, err := w.build()
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return apperrors.Wrapf(err, "save workbook %s", path)
	}
	w.logger.Info("wrote %d sheet(s) to %s", len(w.sheets), path)
	return nil
}

// WriteTo streams the workbook to out.
func (w *Writer) WriteTo(out io.Writer) (int64, error) {
	f, err := w.build()
	if err != nil {
		return 0, err
	}
	defer f.Close()
	n, err := f.WriteTo(out)
	if err != nil {
		return n, apperrors.Wrap(err, "write workbook")
	}
	return n, nil
}

func (w *Writer) build() (*excelize.File, error) {
	if len(w.sheets) == 0 {
		return nil, apperrors.InvalidInput("workbook has no sheets")
	}
	f := excelize.NewFile()
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, apperrors.Wrap(err, "create header style")
	}

	for i, s := range w.sheets {
		if i == 0 {
			err = f.SetSheetName("Sheet1", s.Name)
		} else {
			_, err = f.NewSheet(s.Name)
		}
		if err != nil {
			f.Close()
			return nil, apperrors.Wrapf(err, "create sheet %q", s.Name)
		}
		if err := writeSheet(f, s, header); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

func writeSheet(f *excelize.File, s Sheet, headerStyle int) error {
	headers := make([]interface{}, len(s.Headers))
	for i, h := range s.Headers {
		headers[i] = h
	}
	if err := f.SetSheetRow(s.Name, "A1", &headers); err != nil {
		return apperrors.Wrapf(err, "write %s header", s.Name)
	}
	if err := f.SetRowStyle(s.Name, 1, 1, headerStyle); err != nil {
		return apperrors.Wrapf(err, "style %s header", s.Name)
	}
	for i, row := range s.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return apperrors.Wrap(err, "cell name")
		}
		if err := f.SetSheetRow(s.Name, cell, &row); err != nil {
			return apperrors.Wrapf(err, "write %s row %d", s.Name, i+2)
		}
	}
	return nil
}

// InterimSheet tabulates interim looks.
func InterimSheet(looks []trial.InterimAnalysis) Sheet {
	s := Sheet{
		Name: "Interim analyses",
		Headers: []string{"Analysis", "Information fraction", "Enrolled", "Control events", "Treatment events",
			"Z statistic", "Efficacy bound", "Futility bound", "Conditional power", "Alpha spent", "Recommendation"},
	}
	for _, l := range looks {
		s.Rows = append(s.Rows, []interface{}{
			l.Analysis, l.InformationFraction, l.Enrolled, l.ControlEvents, l.TreatmentEvents,
			l.ZStatistic, l.EfficacyBound, l.FutilityBound, l.ConditionalPower, l.AlphaSpent, string(l.Recommendation),
		})
	}
	return s
}

// TrajectorySheet tabulates an adaptive allocation trajectory.
func TrajectorySheet(points []trial.AllocationPoint) Sheet {
	s := Sheet{
		Name:    "Allocation trajectory",
		Headers: []string{"Patient", "Allocation probability", "Control n", "Treatment n", "Control responses", "Treatment responses"},
	}
	for _, p := range points {
		s.Rows = append(s.Rows, []interface{}{
			p.Patient, p.AllocationProb, p.ControlN, p.TreatmentN, p.ControlResponses, p.TreatmentResponses,
		})
	}
	return s
}

// KeyValueSheet writes label/value pairs, one per row.
func KeyValueSheet(name string, pairs [][2]interface{}) Sheet {
	s := Sheet{Name: name, Headers: []string{"Quantity", "Value"}}
	for _, p := range pairs {
		s.Rows = append(s.Rows, []interface{}{fmt.Sprint(p[0]), p[1]})
	}
	return s
}
