// Package output provides utilities for formatting and displaying quotes.
package output

import (
	"fmt"
	"io"

	"github.com/assetfin/quote-engine/internal/quote"
	"github.com/assetfin/quote-engine/internal/ratetable"
	"github.com/assetfin/quote-engine/pkg/constants"
	"github.com/assetfin/quote-engine/pkg/format"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// PrettyFormat writes a human-readable quote summary.
func PrettyFormat(w io.Writer, req quote.Request, q quote.Quote, fees []ratetable.Fee) {
	p := message.NewPrinter(language.English)

	fmt.Fprintf(w, "--- Quote for %s (%s) ---\n", req.AssetType, req.AssetCondition)
	_, _ = p.Fprintf(w, "Loan amount        | %s\n", format.Currency(req.LoanAmount))
	fmt.Fprintf(w, "Term               | %d months\n", req.TermMonths)
	fmt.Fprintf(w, "Balloon            | %s\n", format.Percent(req.BalloonPercent))
	fmt.Fprintf(w, "Indicative rate    | %s\n", format.Percent(q.IndicativeRatePercent))
	_, _ = p.Fprintf(w, "Monthly repayment  | %s\n", format.Currency(q.MonthlyRepayment))
	_, _ = p.Fprintf(w, "Total interest     | %s\n", format.Currency(q.TotalInterest))
	_, _ = p.Fprintf(w, "Total repayments   | %s\n", format.Currency(q.TotalRepayments))
	for _, fee := range fees {
		_, _ = p.Fprintf(w, "Fee: %-14s| %s\n", fee.Name, format.Currency(float64(fee.AmountCents)/constants.CentsPerDollar))
	}
	_, _ = p.Fprintf(w, "Fees upfront       | %s\n", format.Currency(q.TotalFeesUpfront))
	_, _ = p.Fprintf(w, "Total cost         | %s\n", format.Currency(q.TotalCost))
	_, _ = p.Fprintf(w, "Estimated saving   | %s\n", format.Currency(q.EstimatedSaving))
}

// CsvFormat writes the quote in comma-separated value format with a header
// row, suitable for spreadsheet import.
func CsvFormat(w io.Writer, req quote.Request, q quote.Quote) {
	fmt.Fprintf(w, `"assetType","assetCondition","loanAmount","termMonths","balloonPercent","ratePercent","monthlyRepayment","totalInterest","totalRepayments","feesUpfront","totalCost","estimatedSaving"`)
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, `"%s","%s","%.2f","%d","%.2f","%.2f","%.2f","%.2f","%.2f","%.2f","%.2f","%.2f"`,
		req.AssetType, req.AssetCondition, req.LoanAmount, req.TermMonths, req.BalloonPercent,
		q.IndicativeRatePercent, q.MonthlyRepayment, q.TotalInterest, q.TotalRepayments,
		q.TotalFeesUpfront, q.TotalCost, q.EstimatedSaving)
	fmt.Fprintf(w, "\n")
}
