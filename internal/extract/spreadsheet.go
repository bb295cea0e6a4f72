package extract

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	pulseerrors "github.com/UncleTupelo/pulse/internal/errors"
)

// SpreadsheetExtractor chunks workbooks and delimited files sheet by
// sheet: one overview unit per sheet with column names and numeric column
// statistics, then row batches of at most MaxRowsPerChunk data rows.
// Formulas and cell comments are attached to the batch covering their row.
type SpreadsheetExtractor struct{}

// NewSpreadsheetExtractor returns the tabular data extractor.
func NewSpreadsheetExtractor() *SpreadsheetExtractor { return &SpreadsheetExtractor{} }

func (s *SpreadsheetExtractor) Name() string     { return "spreadsheet" }
func (s *SpreadsheetExtractor) Category() string { return CategorySpreadsheet }

func (s *SpreadsheetExtractor) Description() string {
	return "workbooks and CSV chunked into per-sheet overviews and row batches"
}

func (s *SpreadsheetExtractor) Extensions() []string {
	return []string{".xlsx", ".xlsm", ".csv", ".tsv"}
}

func (s *SpreadsheetExtractor) Extract(ctx context.Context, in *Input, cfg Config) ([]*Unit, error) {
	switch strings.ToLower(filepath.Ext(in.Path)) {
	case ".csv":
		return s.extractDelimited(ctx, in, cfg, ',')
	case ".tsv":
		return s.extractDelimited(ctx, in, cfg, '\t')
	default:
		return s.extractWorkbook(ctx, in, cfg)
	}
}

// cellNote is a formula or comment pinned to a 1-based row.
type cellNote struct {
	row  int
	text string
}

func (s *SpreadsheetExtractor) extractWorkbook(ctx context.Context, in *Input, cfg Config) ([]*Unit, error) {
	f, err := excelize.OpenReader(bytes.NewReader(in.Data))
	if err != nil {
		return nil, pulseerrors.Extraction(in.Path, err)
	}
	defer f.Close()

	var units []*Unit
	for _, sheet := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, pulseerrors.Extraction(in.Path, err)
		}

		formulas := collectFormulas(f, sheet, rows)
		comments := collectComments(f, sheet)

		sheetUnits := buildSheetUnits(sheet, rows, formulas, comments, cfg)
		units = append(units, sheetUnits...)
	}
	return units, nil
}

func (s *SpreadsheetExtractor) extractDelimited(ctx context.Context, in *Input, cfg Config, sep rune) ([]*Unit, error) {
	r := csv.NewReader(bytes.NewReader(in.Data))
	r.Comma = sep
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, pulseerrors.Extraction(in.Path, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sheet := strings.TrimSuffix(filepath.Base(in.Path), filepath.Ext(in.Path))

	// Delimited files carry no formula layer; cells that look like
	// formulas are surfaced the same way workbook formulas are.
	var formulas []cellNote
	for ri, row := range rows {
		for ci, cell := range row {
			if strings.HasPrefix(cell, "=") {
				ref, _ := excelize.CoordinatesToCellName(ci+1, ri+1)
				formulas = append(formulas, cellNote{row: ri + 1, text: fmt.Sprintf("%s: %s", ref, cell)})
			}
		}
	}

	return buildSheetUnits(sheet, rows, formulas, nil, cfg), nil
}

// buildSheetUnits produces the overview unit plus row batches for one
// sheet. The first row is treated as the header and repeated in every
// batch so each unit reads standalone.
func buildSheetUnits(sheet string, rows [][]string, formulas, comments []cellNote, cfg Config) []*Unit {
	if len(rows) == 0 {
		return nil
	}
	header := rows[0]
	data := rows[1:]

	batch := cfg.MaxRowsPerChunk
	if batch <= 0 {
		batch = DefaultConfig().MaxRowsPerChunk
	}

	units := []*Unit{overviewUnit(sheet, header, data, formulas, comments)}

	for lo := 0; lo < len(data); lo += batch {
		hi := lo + batch
		if hi > len(data) {
			hi = len(data)
		}
		// Data row i lives on spreadsheet row i+2 (1-based, after header).
		rowStart, rowEnd := lo+2, hi+1
		u := &Unit{
			Kind: KindRowBatch,
			Text: renderRows(sheet, header, data[lo:hi], rowStart),
			Attrs: attrs(
				AttrSheetName, sheet,
				AttrRowStart, strconv.Itoa(rowStart),
				AttrRowEnd, strconv.Itoa(rowEnd),
				AttrColumns, strings.Join(header, ", "),
			),
		}
		if s := numericSummary(header, data[lo:hi]); s != "" {
			u.Attrs[AttrNumericSummary] = s
		}
		if s := notesInRange(formulas, rowStart, rowEnd); s != "" {
			u.Attrs[AttrFormulas] = s
		}
		if s := notesInRange(comments, rowStart, rowEnd); s != "" {
			u.Attrs[AttrCellComments] = s
		}
		units = append(units, u)
	}
	return units
}

func overviewUnit(sheet string, header []string, data [][]string, formulas, comments []cellNote) *Unit {
	var b strings.Builder
	fmt.Fprintf(&b, "Sheet: %s\n", sheet)
	fmt.Fprintf(&b, "Columns (%d): %s\n", len(header), strings.Join(header, ", "))
	fmt.Fprintf(&b, "Data rows: %d\n", len(data))
	if s := numericSummary(header, data); s != "" {
		fmt.Fprintf(&b, "Numeric columns: %s\n", s)
	}
	if len(formulas) > 0 {
		fmt.Fprintf(&b, "Formulas: %d\n", len(formulas))
	}
	if len(comments) > 0 {
		fmt.Fprintf(&b, "Cell comments: %d\n", len(comments))
	}

	u := &Unit{
		Kind: KindOverview,
		Text: b.String(),
		Attrs: attrs(
			AttrSheetName, sheet,
			AttrColumns, strings.Join(header, ", "),
		),
	}
	if s := numericSummary(header, data); s != "" {
		u.Attrs[AttrNumericSummary] = s
	}
	return u
}

// renderRows produces a readable text block with one "col=value" list per
// row, prefixed by the 1-based spreadsheet row number.
func renderRows(sheet string, header []string, data [][]string, rowStart int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sheet %s rows %d-%d\n", sheet, rowStart, rowStart+len(data)-1)
	for i, row := range data {
		fmt.Fprintf(&b, "Row %d:", rowStart+i)
		for ci, cell := range row {
			if cell == "" {
				continue
			}
			name := fmt.Sprintf("col%d", ci+1)
			if ci < len(header) && header[ci] != "" {
				name = header[ci]
			}
			fmt.Fprintf(&b, " %s=%s", name, cell)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// numericSummary computes min/max/mean per column whose non-empty cells
// all parse as numbers. Columns are reported in header order.
func numericSummary(header []string, data [][]string) string {
	type agg struct {
		min, max, sum float64
		count         int
		numeric       bool
	}
	cols := make([]agg, len(header))
	for i := range cols {
		cols[i].numeric = true
	}

	for _, row := range data {
		for ci := 0; ci < len(header) && ci < len(row); ci++ {
			cell := strings.TrimSpace(row[ci])
			if cell == "" || !cols[ci].numeric {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				cols[ci].numeric = false
				continue
			}
			a := &cols[ci]
			if a.count == 0 || v < a.min {
				a.min = v
			}
			if a.count == 0 || v > a.max {
				a.max = v
			}
			a.sum += v
			a.count++
		}
	}

	var parts []string
	for ci, a := range cols {
		if !a.numeric || a.count == 0 {
			continue
		}
		name := header[ci]
		if name == "" {
			name = fmt.Sprintf("col%d", ci+1)
		}
		parts = append(parts, fmt.Sprintf("%s min=%s max=%s mean=%s count=%d",
			name, trimFloat(a.min), trimFloat(a.max), trimFloat(a.sum/float64(a.count)), a.count))
	}
	return strings.Join(parts, "; ")
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// collectFormulas scans every populated cell for a formula.
func collectFormulas(f *excelize.File, sheet string, rows [][]string) []cellNote {
	var notes []cellNote
	for ri, row := range rows {
		for ci := range row {
			ref, err := excelize.CoordinatesToCellName(ci+1, ri+1)
			if err != nil {
				continue
			}
			formula, err := f.GetCellFormula(sheet, ref)
			if err != nil || formula == "" {
				continue
			}
			notes = append(notes, cellNote{row: ri + 1, text: fmt.Sprintf("%s: =%s", ref, formula)})
		}
	}
	return notes
}

func collectComments(f *excelize.File, sheet string) []cellNote {
	comments, err := f.GetComments(sheet)
	if err != nil {
		return nil
	}
	var notes []cellNote
	for _, c := range comments {
		_, row, err := excelize.CellNameToCoordinates(c.Cell)
		if err != nil {
			continue
		}
		text := c.Text
		if text == "" {
			var b strings.Builder
			for _, p := range c.Paragraph {
				b.WriteString(p.Text)
			}
			text = b.String()
		}
		notes = append(notes, cellNote{row: row, text: fmt.Sprintf("%s (%s): %s", c.Cell, c.Author, text)})
	}
	sort.Slice(notes, func(i, j int) bool { return notes[i].row < notes[j].row })
	return notes
}

// notesInRange joins notes whose row falls within [start, end] inclusive.
func notesInRange(notes []cellNote, start, end int) string {
	var parts []string
	for _, n := range notes {
		if n.row >= start && n.row <= end {
			parts = append(parts, n.text)
		}
	}
	return strings.Join(parts, "; ")
}
