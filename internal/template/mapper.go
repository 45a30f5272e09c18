package template

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerlens/statement-extractor/constants"
	"github.com/ledgerlens/statement-extractor/internal/common"
	"github.com/ledgerlens/statement-extractor/internal/consolidate"
	"github.com/ledgerlens/statement-extractor/internal/entity"
)

// RowError is a per-row mapping failure. The row is still emitted; only its
// values are affected.
type RowError struct {
	Row   int    `json:"row"`
	Field string `json:"field"`
	Err   error  `json:"error"`
}

// Mapper projects consolidated statements onto the fixed template schema.
// The output always has exactly one row per schema row, in schema order,
// however little was extracted.
type Mapper struct {
	schema *Schema
	logger *slog.Logger
}

func NewMapper(schema *Schema, logger *slog.Logger) (*Mapper, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if schema == nil {
		var err error
		schema, err = DefaultSchema()
		if err != nil {
			return nil, err
		}
	}
	return &Mapper{schema: schema, logger: logger}, nil
}

// MapToTemplate builds the terminal template record. years fixes the
// positional year columns (most-recent-first); when empty, the columns are
// derived from the union of statement years. Either way the decision is made
// once here and applied to every row.
func (m *Mapper) MapToTemplate(runID uuid.UUID, statements map[constants.StatementType]*entity.ConsolidatedStatement, years []int) (*entity.TemplateRecord, []RowError) {
	start := time.Now()

	years = yearColumns(years, statements)
	record := &entity.TemplateRecord{
		RunID:         runID,
		GeneratedAt:   time.Now().UTC(),
		SchemaVersion: m.schema.Version,
		Years:         years,
		Rows:          make([]entity.TemplateRow, 0, len(m.schema.Rows)),
	}

	var errs []RowError
	matched := 0
	for i, schemaRow := range m.schema.Rows {
		row := entity.TemplateRow{
			Category:        schemaRow.Category,
			Subcategory:     schemaRow.Subcategory,
			Field:           schemaRow.Field,
			Statement:       schemaRow.Statement,
			ConfidenceLabel: constants.ConfidenceNone,
			Values:          make([]*float64, len(years)),
		}

		item := matchItem(schemaRow, statements[schemaRow.Statement])
		if item != nil {
			matched++
			row.Matched = true
			row.MatchedItem = item.Name
			row.Confidence = item.Confidence
			row.ConfidenceLabel = constants.ConfidenceLabelFor(item.Confidence)
			row.SourcePages = item.Pages

			placed := 0
			for col, year := range years {
				if yv, ok := item.Values[year]; ok {
					v := yv.Value
					row.Values[col] = &v
					placed++
				}
			}
			if placed == 0 {
				errs = append(errs, RowError{
					Row:   i,
					Field: schemaRow.Field,
					Err: common.NewAppError(common.CodeTemplateMappingFailed,
						fmt.Sprintf("matched %q but none of its values fall in the year columns", item.Name), nil),
				})
			}
		}
		record.Rows = append(record.Rows, row)
	}

	m.logger.Info("template.map.ok",
		"schema_version", m.schema.Version,
		"rows", len(record.Rows),
		"matched", matched,
		"populated", record.PopulatedRows(),
		"year_columns", len(years),
		"row_errors", len(errs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return record, errs
}

// matchItem resolves a schema row against a consolidated statement by
// normalized identity: the field name first, then each alias in order.
func matchItem(row SchemaRow, st *entity.ConsolidatedStatement) *entity.ConsolidatedItem {
	if st == nil {
		return nil
	}
	if item, ok := st.Items[consolidate.NormalizeName(row.Field)]; ok {
		return item
	}
	for _, alias := range row.Aliases {
		if item, ok := st.Items[consolidate.NormalizeName(alias)]; ok {
			return item
		}
	}
	return nil
}

func yearColumns(years []int, statements map[constants.StatementType]*entity.ConsolidatedStatement) []int {
	if len(years) == 0 {
		set := make(map[int]struct{})
		for _, st := range statements {
			for _, y := range st.Years {
				set[y] = struct{}{}
			}
		}
		years = make([]int, 0, len(set))
		for y := range set {
			years = append(years, y)
		}
		sort.Sort(sort.Reverse(sort.IntSlice(years)))
	}
	if len(years) > constants.MaxYearColumns {
		years = years[:constants.MaxYearColumns]
	}
	return years
}
