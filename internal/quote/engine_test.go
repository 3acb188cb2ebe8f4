package quote

import (
	"errors"
	"math"
	"testing"

	"github.com/assetfin/quote-engine/internal/ratetable"
	"github.com/assetfin/quote-engine/pkg/constants"
)

func testTable(t *testing.T) *ratetable.Table {
	t.Helper()
	table, err := ratetable.New(
		[]ratetable.Entry{
			{TermMonths: 12, RatePercent: 7.49},
			{TermMonths: 24, RatePercent: 7.19},
			{TermMonths: 36, RatePercent: 6.89},
			{TermMonths: 48, RatePercent: 6.69},
			{TermMonths: 60, RatePercent: 6.49},
		},
		[]ratetable.Fee{
			{Name: "platform", Description: "Platform fee", AmountCents: 49500, AppliesWhen: ratetable.AppliesAlways},
			{Name: "establishment", Description: "Lender establishment fee", AmountCents: 39500, AppliesWhen: ratetable.AppliesAlways},
			{Name: "registration", Description: "Government registration fee", AmountCents: 600, AppliesWhen: ratetable.AppliesAlways},
			{Name: "inspection", Description: "Private sale inspection fee", AmountCents: 33000, AppliesWhen: ratetable.AppliesPrivateSaleOnly},
		},
	)
	if err != nil {
		t.Fatalf("failed to build test table: %v", err)
	}
	return table
}

func testEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(testTable(t), DefaultBounds(), constants.DefaultReferenceMarkupPercent, nil)
}

func validRequest() Request {
	return Request{
		AssetType:      AssetVehicle,
		AssetCondition: ConditionNew,
		LoanAmount:     50000,
		TermMonths:     60,
		BalloonPercent: 0,
	}
}

func TestMonthlyRepayment(t *testing.T) {
	tests := []struct {
		name          string
		principal     float64
		balloon       float64
		rate          float64
		termMonths    int
		expectedRange []float64 // [min, max]
	}{
		{
			name:          "Five year vehicle loan",
			principal:     50000,
			balloon:       0,
			rate:          6.49,
			termMonths:    60,
			expectedRange: []float64{970, 985}, // around $978
		},
		{
			name:          "Thirty percent balloon reduces repayment",
			principal:     50000,
			balloon:       15000,
			rate:          6.49,
			termMonths:    60,
			expectedRange: []float64{760, 775}, // around $766
		},
		{
			name:          "Zero rate is straight line",
			principal:     60000,
			balloon:       0,
			rate:          0,
			termMonths:    60,
			expectedRange: []float64{1000, 1000}, // exactly $1000
		},
		{
			name:          "Zero rate with balloon",
			principal:     60000,
			balloon:       12000,
			rate:          0,
			termMonths:    48,
			expectedRange: []float64{1000, 1000}, // exactly $1000
		},
		{
			name:          "Short high rate term",
			principal:     20000,
			balloon:       0,
			rate:          12.0,
			termMonths:    12,
			expectedRange: []float64{1770, 1785}, // around $1777
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := MonthlyRepayment(tt.principal, tt.balloon, tt.rate, tt.termMonths)
			if result < tt.expectedRange[0] || result > tt.expectedRange[1] {
				t.Errorf("MonthlyRepayment() = %.2f, expected range [%.2f, %.2f]",
					result, tt.expectedRange[0], tt.expectedRange[1])
			}
		})
	}
}

func TestMonthlyRepaymentBalloonLowersPayment(t *testing.T) {
	withBalloon := MonthlyRepayment(50000, 15000, 6.49, 60)
	without := MonthlyRepayment(50000, 0, 6.49, 60)
	if withBalloon >= without {
		t.Errorf("balloon repayment %.2f should be below non-balloon repayment %.2f", withBalloon, without)
	}
}

func TestComputeQuoteScenario(t *testing.T) {
	engine := testEngine(t)

	q, err := engine.ComputeQuote(validRequest())
	if err != nil {
		t.Fatalf("ComputeQuote returned error: %v", err)
	}

	if q.IndicativeRatePercent != 6.49 {
		t.Errorf("IndicativeRatePercent = %.2f, expected 6.49", q.IndicativeRatePercent)
	}
	if q.MonthlyRepayment <= 0 {
		t.Errorf("MonthlyRepayment = %.2f, expected positive", q.MonthlyRepayment)
	}
	if q.TotalInterest <= 0 {
		t.Errorf("TotalInterest = %.2f, expected positive", q.TotalInterest)
	}
	if q.EstimatedSaving < 0 {
		t.Errorf("EstimatedSaving = %.2f, expected non-negative", q.EstimatedSaving)
	}
	if q.TotalFeesFinanced != 0 {
		t.Errorf("TotalFeesFinanced = %.2f, expected 0", q.TotalFeesFinanced)
	}
	// 495.00 + 395.00 + 6.00
	if math.Abs(q.TotalFeesUpfront-896.00) > 1e-9 {
		t.Errorf("TotalFeesUpfront = %.2f, expected 896.00", q.TotalFeesUpfront)
	}
}

func TestComputeQuoteInvariants(t *testing.T) {
	engine := testEngine(t)

	requests := []Request{
		{AssetType: AssetVehicle, AssetCondition: ConditionNew, LoanAmount: 5000, TermMonths: 12, BalloonPercent: 0},
		{AssetType: AssetTruck, AssetCondition: ConditionDemo, LoanAmount: 50000, TermMonths: 60, BalloonPercent: 30},
		{AssetType: AssetEquipment, AssetCondition: ConditionUsed0to3, LoanAmount: 125000, TermMonths: 48, BalloonPercent: 50},
		{AssetType: AssetVehicle, AssetCondition: ConditionUsed4to7, LoanAmount: 500000, TermMonths: 84, BalloonPercent: 10, PrivateSale: true},
		{AssetType: AssetVehicle, AssetCondition: ConditionUsed8Up, LoanAmount: 17500, TermMonths: 30, BalloonPercent: 100},
	}

	for _, req := range requests {
		q, err := engine.ComputeQuote(req)
		if err != nil {
			t.Fatalf("ComputeQuote(%+v) returned error: %v", req, err)
		}

		if math.Abs(q.TotalCost-(q.TotalRepayments+q.TotalFeesUpfront)) > constants.CurrencyTolerance {
			t.Errorf("totalCost invariant violated: %.2f != %.2f + %.2f",
				q.TotalCost, q.TotalRepayments, q.TotalFeesUpfront)
		}
		if math.Abs(q.TotalInterest-(q.TotalRepayments-req.LoanAmount)) > constants.CurrencyTolerance {
			t.Errorf("totalInterest invariant violated: %.2f != %.2f - %.2f",
				q.TotalInterest, q.TotalRepayments, req.LoanAmount)
		}
		if q.TotalInterest < 0 {
			t.Errorf("TotalInterest = %.2f, expected non-negative", q.TotalInterest)
		}
		if q.EstimatedSaving < 0 {
			t.Errorf("EstimatedSaving = %.2f, expected non-negative", q.EstimatedSaving)
		}
	}
}

func TestComputeQuoteDeterministic(t *testing.T) {
	engine := testEngine(t)
	req := Request{AssetType: AssetTruck, AssetCondition: ConditionDemo, LoanAmount: 80000, TermMonths: 48, BalloonPercent: 25}

	first, err := engine.ComputeQuote(req)
	if err != nil {
		t.Fatalf("ComputeQuote returned error: %v", err)
	}
	second, err := engine.ComputeQuote(req)
	if err != nil {
		t.Fatalf("ComputeQuote returned error: %v", err)
	}

	if first != second {
		t.Errorf("ComputeQuote is not deterministic: %+v != %+v", first, second)
	}
}

func TestComputeQuoteBounds(t *testing.T) {
	engine := testEngine(t)

	tests := []struct {
		name      string
		mutate    func(*Request)
		wantField string
	}{
		{
			name:   "Minimum loan amount is valid",
			mutate: func(r *Request) { r.LoanAmount = 5000 },
		},
		{
			name:   "Maximum loan amount is valid",
			mutate: func(r *Request) { r.LoanAmount = 500000 },
		},
		{
			name:      "Below minimum loan amount",
			mutate:    func(r *Request) { r.LoanAmount = 4999 },
			wantField: "loanAmount",
		},
		{
			name:      "Above maximum loan amount",
			mutate:    func(r *Request) { r.LoanAmount = 500001 },
			wantField: "loanAmount",
		},
		{
			name:      "Term too short",
			mutate:    func(r *Request) { r.TermMonths = 11 },
			wantField: "termMonths",
		},
		{
			name:      "Term too long",
			mutate:    func(r *Request) { r.TermMonths = 85 },
			wantField: "termMonths",
		},
		{
			name:      "Negative balloon",
			mutate:    func(r *Request) { r.BalloonPercent = -1 },
			wantField: "balloonPercent",
		},
		{
			name:      "Balloon above one hundred",
			mutate:    func(r *Request) { r.BalloonPercent = 100.5 },
			wantField: "balloonPercent",
		},
		{
			name:      "Unknown asset type",
			mutate:    func(r *Request) { r.AssetType = "boat" },
			wantField: "assetType",
		},
		{
			name:      "Unknown asset condition",
			mutate:    func(r *Request) { r.AssetCondition = "vintage" },
			wantField: "assetCondition",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			_, err := engine.ComputeQuote(req)

			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("ComputeQuote returned unexpected error: %v", err)
				}
				return
			}

			var invalid *InvalidRequestError
			if !errors.As(err, &invalid) {
				t.Fatalf("ComputeQuote returned %v, expected InvalidRequestError", err)
			}
			if invalid.Field != tt.wantField {
				t.Errorf("InvalidRequestError.Field = %q, expected %q", invalid.Field, tt.wantField)
			}
		})
	}
}

func TestComputeQuoteEmptyTable(t *testing.T) {
	empty, err := ratetable.New(nil, nil)
	if err != nil {
		t.Fatalf("failed to build empty table: %v", err)
	}
	engine := NewEngine(empty, DefaultBounds(), constants.DefaultReferenceMarkupPercent, nil)

	_, err = engine.ComputeQuote(validRequest())
	if !errors.Is(err, ratetable.ErrEmptyRateTable) {
		t.Errorf("ComputeQuote returned %v, expected ErrEmptyRateTable", err)
	}
}

func TestComputeQuoteSavingReflectsMarkup(t *testing.T) {
	table := testTable(t)

	withMarkup := NewEngine(table, DefaultBounds(), 2.0, nil)
	noMarkup := NewEngine(table, DefaultBounds(), 0.0, nil)

	req := validRequest()

	q1, err := withMarkup.ComputeQuote(req)
	if err != nil {
		t.Fatalf("ComputeQuote returned error: %v", err)
	}
	if q1.EstimatedSaving <= 0 {
		t.Errorf("EstimatedSaving = %.2f with a 2 point markup, expected positive", q1.EstimatedSaving)
	}

	q2, err := noMarkup.ComputeQuote(req)
	if err != nil {
		t.Fatalf("ComputeQuote returned error: %v", err)
	}
	if q2.EstimatedSaving != 0 {
		t.Errorf("EstimatedSaving = %.2f with no markup, expected 0", q2.EstimatedSaving)
	}
}

func TestComputeQuoteFullBalloonZeroInterestEdge(t *testing.T) {
	// A 100% balloon defers all principal; repayments cover interest only and
	// totalRepayments still exceeds the loan amount at a positive rate.
	engine := testEngine(t)
	req := Request{AssetType: AssetVehicle, AssetCondition: ConditionNew, LoanAmount: 50000, TermMonths: 60, BalloonPercent: 100}

	q, err := engine.ComputeQuote(req)
	if err != nil {
		t.Fatalf("ComputeQuote returned error: %v", err)
	}
	if q.MonthlyRepayment <= 0 {
		t.Errorf("MonthlyRepayment = %.2f, expected positive interest-only payment", q.MonthlyRepayment)
	}
	if q.TotalRepayments <= req.LoanAmount {
		t.Errorf("TotalRepayments = %.2f, expected above loan amount %.2f", q.TotalRepayments, req.LoanAmount)
	}
}
