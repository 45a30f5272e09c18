package template

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ledgerlens/statement-extractor/constants"
	"github.com/ledgerlens/statement-extractor/internal/common"
	"github.com/ledgerlens/statement-extractor/internal/consolidate"
)

//go:embed default_schema.json
var defaultSchemaJSON []byte

// SchemaRow defines one fixed output row: where it sits in the template and
// which consolidated statement it reads from. Aliases list alternative
// printed names that should match this row.
type SchemaRow struct {
	Category    string                  `json:"category"`
	Subcategory string                  `json:"subcategory,omitempty"`
	Field       string                  `json:"field"`
	Statement   constants.StatementType `json:"statement"`
	Aliases     []string                `json:"aliases,omitempty"`
}

// Schema is the versioned row layout of the final output. It is data, not
// code: swapping the file swaps the template without touching the mapper.
type Schema struct {
	Version string      `json:"version"`
	Rows    []SchemaRow `json:"rows"`
}

// LoadSchema parses and validates a template schema. Statement names are
// canonicalized, so schema files may spell them "Balance Sheet" or
// "BALANCE_SHEET" interchangeably.
func LoadSchema(data []byte) (*Schema, error) {
	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, common.NewAppError(common.CodeSchemaInvalid, "template schema is not valid JSON", err)
	}
	if strings.TrimSpace(s.Version) == "" {
		return nil, common.NewAppError(common.CodeSchemaInvalid, "template schema has no version", nil)
	}
	if len(s.Rows) == 0 {
		return nil, common.NewAppError(common.CodeSchemaInvalid, "template schema has no rows", nil)
	}

	seen := make(map[string]int, len(s.Rows))
	for i := range s.Rows {
		row := &s.Rows[i]
		if strings.TrimSpace(row.Field) == "" {
			return nil, common.NewAppError(common.CodeSchemaInvalid,
				fmt.Sprintf("row %d has no field name", i), nil)
		}
		st, ok := constants.CanonicalizeStatementType(string(row.Statement))
		if !ok {
			return nil, common.NewAppError(common.CodeSchemaInvalid,
				fmt.Sprintf("row %d (%s) references unknown statement %q", i, row.Field, row.Statement), nil)
		}
		row.Statement = st

		key := string(st) + "/" + consolidate.NormalizeName(row.Category+" "+row.Subcategory+" "+row.Field)
		if prev, dup := seen[key]; dup {
			return nil, common.NewAppError(common.CodeSchemaInvalid,
				fmt.Sprintf("rows %d and %d define the same template slot", prev, i), nil)
		}
		seen[key] = i
	}
	return &s, nil
}

// DefaultSchema returns the schema shipped with the binary.
func DefaultSchema() (*Schema, error) {
	return LoadSchema(defaultSchemaJSON)
}
