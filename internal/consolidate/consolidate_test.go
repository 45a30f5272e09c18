package consolidate

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlens/statement-extractor/constants"
	"github.com/ledgerlens/statement-extractor/internal/common"
	"github.com/ledgerlens/statement-extractor/internal/entity"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func record(page int, label constants.StatementType, items ...entity.LineItem) entity.ExtractionRecord {
	return entity.ExtractionRecord{PageIndex: page, Label: label, Items: items}
}

func item(name string, conf float64, values map[int]float64) entity.LineItem {
	return entity.LineItem{Name: name, Values: values, Confidence: conf}
}

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Cash and Cash Equivalents", "cash and cash equivalents"},
		{"  Short-Term   Investments:  ", "short term investments"},
		{"R&D Expense", "r and d expense"},
		{"TOTAL ASSETS", "total assets"},
		{"Trésorerie nette", "tresorerie nette"},
		{"Property, plant & equipment (net)", "property plant and equipment net"},
		{"", ""},
		{"---", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeName(tc.in), "input %q", tc.in)
	}
}

func TestConsolidate_GroupsByLabel(t *testing.T) {
	svc := NewService(nil, discard())
	records := []entity.ExtractionRecord{
		record(1, constants.BalanceSheet, item("Cash and cash equivalents", 0.9, map[int]float64{2024: 1200, 2023: 900})),
		record(2, constants.BalanceSheet, item("Total assets", 0.95, map[int]float64{2024: 8000, 2023: 7400})),
		record(3, constants.IncomeStatement, item("Revenue", 0.9, map[int]float64{2024: 5000})),
	}

	out, errs := svc.Consolidate(records, nil)
	require.Empty(t, errs)
	require.Len(t, out, 2)

	bs := out[constants.BalanceSheet]
	require.NotNil(t, bs)
	assert.Equal(t, []int{1, 2}, bs.Pages)
	assert.Equal(t, []int{2024, 2023}, bs.Years)
	require.Contains(t, bs.Items, "cash and cash equivalents")
	require.Contains(t, bs.Items, "total assets")
	assert.Equal(t, 8000.0, bs.Items["total assets"].Values[2024].Value)

	is := out[constants.IncomeStatement]
	require.NotNil(t, is)
	assert.Equal(t, []int{3}, is.Pages)
	assert.Equal(t, []int{2024}, is.Years)
}

func TestConsolidate_ConflictPrefersHigherConfidence(t *testing.T) {
	svc := NewService(nil, discard())
	records := []entity.ExtractionRecord{
		record(1, constants.BalanceSheet, item("Total assets", 0.9, map[int]float64{2024: 8000})),
		record(5, constants.BalanceSheet, item("Total Assets", 0.6, map[int]float64{2024: 7999})),
	}

	out, _ := svc.Consolidate(records, nil)
	it := out[constants.BalanceSheet].Items["total assets"]
	require.NotNil(t, it)

	got := it.Values[2024]
	assert.Equal(t, 8000.0, got.Value, "higher confidence must win")
	assert.Equal(t, 1, got.PageIndex)
	assert.Equal(t, []int{1, 5}, it.Pages, "losing page still counts as a contributor")
}

func TestConsolidate_EqualConfidencePrefersLaterPage(t *testing.T) {
	svc := NewService(nil, discard())
	records := []entity.ExtractionRecord{
		record(1, constants.BalanceSheet, item("Total assets", 0.8, map[int]float64{2024: 7000})),
		record(2, constants.BalanceSheet, item("Total assets", 0.8, map[int]float64{2024: 8000})),
	}

	out, _ := svc.Consolidate(records, nil)
	got := out[constants.BalanceSheet].Items["total assets"].Values[2024]
	assert.Equal(t, 8000.0, got.Value)
	assert.Equal(t, 2, got.PageIndex)
}

// earliestPage keeps whatever arrived from the lowest page index. Used to
// prove the merge loop delegates every collision to the policy.
type earliestPage struct{}

func (earliestPage) Name() string { return "earliest-page" }
func (earliestPage) Prefer(current, candidate Contribution) bool {
	return candidate.PageIndex < current.PageIndex
}

func TestConsolidate_PolicySwapChangesWinner(t *testing.T) {
	records := []entity.ExtractionRecord{
		record(1, constants.BalanceSheet, item("Total assets", 0.8, map[int]float64{2024: 7000})),
		record(2, constants.BalanceSheet, item("Total assets", 0.8, map[int]float64{2024: 8000})),
	}

	def, _ := NewService(nil, discard()).Consolidate(records, nil)
	assert.Equal(t, 8000.0, def[constants.BalanceSheet].Items["total assets"].Values[2024].Value)

	early, _ := NewService(earliestPage{}, discard()).Consolidate(records, nil)
	assert.Equal(t, 7000.0, early[constants.BalanceSheet].Items["total assets"].Values[2024].Value)
}

func TestConsolidate_IdempotentAndOrderIndependent(t *testing.T) {
	svc := NewService(nil, discard())
	records := []entity.ExtractionRecord{
		record(1, constants.BalanceSheet,
			item("Cash and cash equivalents", 0.9, map[int]float64{2024: 1200, 2023: 900}),
			item("Inventory", 0.7, map[int]float64{2024: 300})),
		record(2, constants.BalanceSheet,
			item("Cash and Cash Equivalents", 0.7, map[int]float64{2024: 1150}),
			item("Total assets", 0.95, map[int]float64{2024: 8000, 2023: 7400, 2022: 7000})),
		record(3, constants.IncomeStatement, item("Revenue", 0.9, map[int]float64{2024: 5000})),
	}
	reversed := []entity.ExtractionRecord{records[2], records[1], records[0]}

	first, _ := svc.Consolidate(records, nil)
	second, _ := svc.Consolidate(records, nil)
	shuffled, _ := svc.Consolidate(reversed, nil)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	c, err := json.Marshal(shuffled)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.Equal(t, string(a), string(c))
}

func TestConsolidate_ExpectedLabelMissing(t *testing.T) {
	svc := NewService(nil, discard())
	records := []entity.ExtractionRecord{
		record(1, constants.BalanceSheet, item("Total assets", 0.9, map[int]float64{2024: 8000})),
	}

	out, errs := svc.Consolidate(records, []constants.StatementType{constants.BalanceSheet, constants.IncomeStatement})
	require.Len(t, out, 1, "surviving label still consolidates")
	require.Len(t, errs, 1)
	assert.Equal(t, constants.IncomeStatement, errs[0].Label)
	assert.Equal(t, common.CodeConsolidationFailed, common.ErrorCode(errs[0].Err))
}

func TestConsolidate_DisplayNameFollowsPolicy(t *testing.T) {
	svc := NewService(nil, discard())
	records := []entity.ExtractionRecord{
		record(1, constants.BalanceSheet, item("total assets", 0.6, map[int]float64{2023: 7400})),
		record(2, constants.BalanceSheet, item("Total Assets", 0.9, map[int]float64{2024: 8000})),
	}

	out, _ := svc.Consolidate(records, nil)
	it := out[constants.BalanceSheet].Items["total assets"]
	require.NotNil(t, it)
	assert.Equal(t, "Total Assets", it.Name, "display form comes from the preferred contribution")
	assert.Equal(t, 0.9, it.Confidence)
	assert.Equal(t, []int{2024, 2023}, out[constants.BalanceSheet].Years, "years are unioned most-recent-first")
}
