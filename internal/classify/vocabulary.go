package classify

import (
	"github.com/ledgerlens/statement-extractor/constants"
)

// vocabulary maps each statement label to its indicator phrases. Matching is
// case-insensitive against the normalized page text; phrases are lowercase
// multi-word sequences chosen to be specific to one statement type, since
// single generic words ("cash", "income") bleed across statements.
var vocabulary = map[constants.StatementType][]string{
	constants.BalanceSheet: {
		"balance sheet",
		"statement of financial position",
		"statement of financial condition",
		"total assets",
		"total liabilities",
		"total current assets",
		"total current liabilities",
		"shareholders equity",
		"stockholders equity",
		"accounts receivable",
		"accounts payable",
		"property plant and equipment",
	},
	constants.IncomeStatement: {
		"income statement",
		"statement of operations",
		"statement of income",
		"profit and loss",
		"comprehensive income",
		"net revenue",
		"total revenue",
		"cost of goods sold",
		"cost of revenue",
		"gross profit",
		"operating expenses",
		"operating income",
		"net income",
		"earnings per share",
	},
	constants.CashFlow: {
		"statement of cash flows",
		"cash flow statement",
		"cash flows from operating activities",
		"operating activities",
		"investing activities",
		"financing activities",
		"net increase in cash",
		"net decrease in cash",
		"cash at beginning of",
		"cash at end of",
		"depreciation and amortization",
	},
	constants.Equity: {
		"statement of equity",
		"statement of stockholders equity",
		"statement of shareholders equity",
		"statement of changes in equity",
		"statement of owners equity",
		"statement of retained earnings",
		"retained earnings",
		"common stock",
		"additional paid in capital",
		"treasury stock",
		"accumulated other comprehensive",
		"dividends declared",
	},
}
