package llm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ledgerlens/statement-extractor/constants"
)

// BuildSystemPrompt composes the system message: parser role, per-label
// extraction focus, value formatting rules, and the no-data escape hatch.
func BuildSystemPrompt(req ExtractRequest) string {
	parts := []string{
		"You are a financial statement parser. Return ONLY JSON that matches the provided JSON Schema.",
		statementFocus(req.Label),
		"Report every line item you can read, using the row label exactly as printed for 'name'.",
		"Group rows under 'category' using the section headings printed on the page (e.g., 'Current Assets', 'Operating Activities').",
		"'values' maps each 4-digit year column heading to the numeric value printed in that column.",
		"Numbers in parentheses are negative. Strip currency symbols and thousands separators.",
		"Report values at the scale printed on the page; do not rescale 'in thousands' or 'in millions' figures.",
		"Set 'confidence' between 0 and 1 per line item based on how legible the printed row is.",
		`If the page contains no extractable financial table, return {"no_data": true} and nothing else.`,
		"Never output null. If a field is not present, omit it.",
	}
	if len(req.YearHints) > 0 {
		parts = append(parts, "Year columns detected in this document: "+joinYears(req.YearHints)+". Use only these years as value keys.")
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt packages the page context that accompanies the attached
// artifact.
func BuildUserPrompt(req ExtractRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Page %d of a financial statement document is attached.\n", req.PageIndex)
	if req.Label == constants.Unclassified {
		b.WriteString("The statement type of this page is unknown; identify it from the image and set 'statement_type'.\n")
		if len(req.AllowedTypes) > 0 {
			b.WriteString("Allowed statement_type values (enum): " + strings.Join(req.AllowedTypes, ", ") + ".\n")
		}
	} else {
		fmt.Fprintf(&b, "This page was classified as: %s.\n", req.Label.Display())
	}
	b.WriteString("Extract the full line-item table with per-year values as JSON.")
	return b.String()
}

// statementFocus is the per-label guidance block of the system prompt.
func statementFocus(label constants.StatementType) string {
	switch label {
	case constants.BalanceSheet:
		return "The page shows a balance sheet (statement of financial position). " +
			"Extract asset, liability, and equity rows, including subtotals and totals such as 'Total assets' and 'Total liabilities'. Set 'statement_type' to 'balance sheet'."
	case constants.IncomeStatement:
		return "The page shows an income statement (statement of operations). " +
			"Extract revenue, cost, expense, and profit rows, including 'Gross profit', 'Operating income', and 'Net income'. Set 'statement_type' to 'income statement'."
	case constants.CashFlow:
		return "The page shows a statement of cash flows. " +
			"Extract rows from the operating, investing, and financing sections, including net change and period-end cash. Set 'statement_type' to 'cash flow'."
	case constants.Equity:
		return "The page shows a statement of equity. " +
			"Extract capital, retained earnings, treasury stock, and dividend rows. Set 'statement_type' to 'equity'."
	default:
		return "Identify which financial statement the page shows (balance sheet, income statement, cash flow statement, or statement of equity) and set 'statement_type' accordingly before extracting its rows."
	}
}

func joinYears(years []int) string {
	parts := make([]string, len(years))
	for i, y := range years {
		parts[i] = strconv.Itoa(y)
	}
	return strings.Join(parts, ", ")
}
