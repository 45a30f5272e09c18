package constants

import (
	"strings"
)

// StatementType is the classification label a page carries after the
// classifier has seen it. A page has exactly one label; documents mixing
// several statement types are the normal case.
type StatementType string

const (
	BalanceSheet    StatementType = "BALANCE_SHEET"
	IncomeStatement StatementType = "INCOME_STATEMENT"
	CashFlow        StatementType = "CASH_FLOW"
	Equity          StatementType = "EQUITY"
	Unclassified    StatementType = "UNCLASSIFIED"
)

// allStatementTypes excludes Unclassified on purpose: it is the absence of a
// classification, not a statement type a template row can reference.
var allStatementTypes = []StatementType{
	BalanceSheet,
	IncomeStatement,
	CashFlow,
	Equity,
}

func StatementTypesAsStrings() []string {
	result := make([]string, len(allStatementTypes))
	for i, st := range allStatementTypes {
		result[i] = string(st)
	}
	return result
}

// Display returns the human-readable statement name used in prompts and
// exports.
func (st StatementType) Display() string {
	switch st {
	case BalanceSheet:
		return "Balance Sheet"
	case IncomeStatement:
		return "Income Statement"
	case CashFlow:
		return "Cash Flow Statement"
	case Equity:
		return "Statement of Equity"
	default:
		return "Unclassified"
	}
}

// CanonicalizeStatementType maps free-form statement names (LLM output,
// template files, CLI flags) onto the canonical labels.
func CanonicalizeStatementType(input string) (StatementType, bool) {
	if input == "" {
		return Unclassified, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))
	normalized = strings.ReplaceAll(normalized, "-", " ")
	normalized = strings.ReplaceAll(normalized, "_", " ")

	// synonyms map
	synonyms := map[string]StatementType{
		"balance sheet":                      BalanceSheet,
		"statement of financial position":    BalanceSheet,
		"statement of financial condition":   BalanceSheet,
		"income statement":                   IncomeStatement,
		"statement of operations":            IncomeStatement,
		"statement of income":                IncomeStatement,
		"profit and loss":                    IncomeStatement,
		"p&l":                                IncomeStatement,
		"cash flow":                          CashFlow,
		"cash flows":                         CashFlow,
		"statement of cash flows":            CashFlow,
		"cash flow statement":                CashFlow,
		"equity":                             Equity,
		"statement of equity":                Equity,
		"statement of stockholders equity":   Equity,
		"statement of shareholders equity":   Equity,
		"statement of changes in equity":     Equity,
		"statement of owners equity":         Equity,
		"statement of retained earnings":     Equity,
	}

	if st, ok := synonyms[normalized]; ok {
		return st, true
	}

	// check if it matches a canonical value ("balance sheet" == "BALANCE_SHEET")
	for _, st := range allStatementTypes {
		if normalized == strings.ToLower(strings.ReplaceAll(string(st), "_", " ")) {
			return st, true
		}
	}
	if normalized == strings.ToLower(strings.ReplaceAll(string(Unclassified), "_", " ")) {
		return Unclassified, true
	}

	return Unclassified, false
}

// ConfidenceLabel is the qualitative bucket surfaced next to the numeric
// confidence score on template rows.
type ConfidenceLabel string

const (
	ConfidenceHigh   ConfidenceLabel = "HIGH"
	ConfidenceMedium ConfidenceLabel = "MEDIUM"
	ConfidenceLow    ConfidenceLabel = "LOW"
	ConfidenceNone   ConfidenceLabel = "NONE" // unmatched row, no data behind it
)

// ConfidenceLabelFor buckets a numeric confidence score.
func ConfidenceLabelFor(score float64) ConfidenceLabel {
	switch {
	case score >= 0.8:
		return ConfidenceHigh
	case score >= 0.5:
		return ConfidenceMedium
	case score > 0:
		return ConfidenceLow
	default:
		return ConfidenceNone
	}
}

// MaxYearColumns bounds the positional year columns of the template output.
// Column order is most-recent-first; the concrete year behind each column is
// carried as separate metadata, never in the column name.
const MaxYearColumns = 4
