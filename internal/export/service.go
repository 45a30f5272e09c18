package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/ledgerlens/statement-extractor/constants"
	"github.com/ledgerlens/statement-extractor/internal/common"
	"github.com/ledgerlens/statement-extractor/internal/entity"
)

const metaPrefix = "# "

// Service serializes template records into downloadable tabular formats.
// Year columns stay positional in both formats; the concrete year behind
// each column is declared in the metadata block, never in the column name.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// CSV renders the record as comma-separated rows: a "# " metadata block
// (run id, schema version, the Year N mapping), then a header row, then one
// data row per template row.
func (s *Service) CSV(record *entity.TemplateRecord) ([]byte, error) {
	if record == nil {
		return nil, common.NewAppError(common.CodeInvalidArgument, "nil template record", nil)
	}
	start := time.Now()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	meta := [][]string{
		{metaPrefix + "Run ID", record.RunID.String()},
		{metaPrefix + "Generated At", record.GeneratedAt.Format(time.RFC3339)},
		{metaPrefix + "Schema Version", record.SchemaVersion},
	}
	for i, year := range record.Years {
		meta = append(meta, []string{fmt.Sprintf("%sYear %d", metaPrefix, i+1), strconv.Itoa(year)})
	}
	if err := w.WriteAll(meta); err != nil {
		return nil, fmt.Errorf("csv write: %w", err)
	}

	if err := w.Write(csvHeader(len(record.Years))); err != nil {
		return nil, fmt.Errorf("csv write: %w", err)
	}
	for _, row := range record.Rows {
		if err := w.Write(csvRow(row)); err != nil {
			return nil, fmt.Errorf("csv write: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("csv write: %w", err)
	}

	s.logger.Info("export.csv.ok",
		"rows", len(record.Rows),
		"bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func csvHeader(years int) []string {
	header := []string{"Category", "Subcategory", "Field", "Statement", "Confidence", "Score"}
	for i := 1; i <= years; i++ {
		header = append(header, fmt.Sprintf("Year %d", i))
	}
	return header
}

func csvRow(row entity.TemplateRow) []string {
	out := []string{
		row.Category,
		row.Subcategory,
		row.Field,
		row.Statement.Display(),
		string(row.ConfidenceLabel),
		"",
	}
	if row.Matched {
		out[5] = strconv.FormatFloat(row.Confidence, 'f', -1, 64)
	}
	for _, v := range row.Values {
		if v == nil {
			out = append(out, "")
			continue
		}
		out = append(out, strconv.FormatFloat(*v, 'f', -1, 64))
	}
	return out
}

// ParseCSV reads a CSV export back into a template record. Round-tripping
// preserves the year mapping and every row's identity and values.
func ParseCSV(data []byte) (*entity.TemplateRecord, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, common.NewAppError(common.CodeInvalidArgument, "malformed csv", err)
	}

	record := &entity.TemplateRecord{}
	i := 0
	for ; i < len(rows); i++ {
		row := rows[i]
		if len(row) == 0 || !strings.HasPrefix(row[0], metaPrefix) {
			break
		}
		key := strings.TrimPrefix(row[0], metaPrefix)
		value := ""
		if len(row) > 1 {
			value = row[1]
		}
		switch {
		case key == "Run ID":
			if id, perr := uuid.Parse(value); perr == nil {
				record.RunID = id
			}
		case key == "Generated At":
			if ts, perr := time.Parse(time.RFC3339, value); perr == nil {
				record.GeneratedAt = ts
			}
		case key == "Schema Version":
			record.SchemaVersion = value
		case strings.HasPrefix(key, "Year "):
			year, perr := strconv.Atoi(value)
			if perr != nil {
				return nil, common.NewAppError(common.CodeInvalidArgument,
					fmt.Sprintf("bad year mapping %q", row[0]+","+value), perr)
			}
			record.Years = append(record.Years, year)
		}
	}

	if i >= len(rows) {
		return nil, common.NewAppError(common.CodeInvalidArgument, "csv has no header row", nil)
	}
	header := rows[i]
	if len(header) < 6 {
		return nil, common.NewAppError(common.CodeInvalidArgument, "csv header is too short", nil)
	}
	yearCols := len(header) - 6
	if yearCols != len(record.Years) {
		return nil, common.NewAppError(common.CodeInvalidArgument,
			fmt.Sprintf("%d year columns but %d year mapping lines", yearCols, len(record.Years)), nil)
	}

	for i++; i < len(rows); i++ {
		row := rows[i]
		if len(row) != 6+yearCols {
			return nil, common.NewAppError(common.CodeInvalidArgument,
				fmt.Sprintf("row %d has %d fields, want %d", i+1, len(row), 6+yearCols), nil)
		}
		st, _ := constants.CanonicalizeStatementType(row[3])
		tr := entity.TemplateRow{
			Category:        row[0],
			Subcategory:     row[1],
			Field:           row[2],
			Statement:       st,
			ConfidenceLabel: constants.ConfidenceLabel(row[4]),
			Values:          make([]*float64, yearCols),
		}
		if row[5] != "" {
			conf, perr := strconv.ParseFloat(row[5], 64)
			if perr != nil {
				return nil, common.NewAppError(common.CodeInvalidArgument,
					fmt.Sprintf("row %d has bad confidence %q", i+1, row[5]), perr)
			}
			tr.Confidence = conf
			tr.Matched = true
		}
		for c := 0; c < yearCols; c++ {
			cell := row[6+c]
			if cell == "" {
				continue
			}
			v, perr := strconv.ParseFloat(cell, 64)
			if perr != nil {
				return nil, common.NewAppError(common.CodeInvalidArgument,
					fmt.Sprintf("row %d has bad value %q", i+1, cell), perr)
			}
			tr.Values[c] = &v
		}
		record.Rows = append(record.Rows, tr)
	}
	return record, nil
}

// XLSX returns an XLSX workbook (as bytes) for the template record.
func (s *Service) XLSX(record *entity.TemplateRecord) ([]byte, error) {
	if record == nil {
		return nil, common.NewAppError(common.CodeInvalidArgument, "nil template record", nil)
	}
	start := time.Now()

	f := excelize.NewFile()
	const sheet = "Financial Data"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	_ = f.DeleteSheet("Sheet1")

	write := func(col, row int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}

	rowIdx := 1
	writeMeta := func(key string, v any) {
		write(1, rowIdx, key)
		write(2, rowIdx, v)
		rowIdx++
	}
	writeMeta("Run ID", record.RunID.String())
	writeMeta("Generated At", record.GeneratedAt.Format(time.RFC3339))
	writeMeta("Schema Version", record.SchemaVersion)
	for i, year := range record.Years {
		writeMeta(fmt.Sprintf("Year %d", i+1), year)
	}
	rowIdx++ // blank row between metadata and the table

	for i, h := range csvHeader(len(record.Years)) {
		write(i+1, rowIdx, h)
	}
	rowIdx++

	for _, row := range record.Rows {
		write(1, rowIdx, row.Category)
		write(2, rowIdx, row.Subcategory)
		write(3, rowIdx, row.Field)
		write(4, rowIdx, row.Statement.Display())
		write(5, rowIdx, string(row.ConfidenceLabel))
		if row.Matched {
			write(6, rowIdx, row.Confidence)
		}
		for c, v := range row.Values {
			if v != nil {
				write(7+c, rowIdx, *v)
			}
		}
		rowIdx++
	}

	_ = f.SetColWidth(sheet, "A", "B", 22)
	_ = f.SetColWidth(sheet, "C", "C", 36)
	_ = f.SetColWidth(sheet, "D", "D", 20)
	_ = f.SetColWidth(sheet, "E", "F", 12)
	if len(record.Years) > 0 {
		last, _ := excelize.ColumnNumberToName(6 + len(record.Years))
		_ = f.SetColWidth(sheet, "G", last, 16)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(record.Rows),
		"bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
