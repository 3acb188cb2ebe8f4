// Package quote converts a loan request into a priced quote using the
// standard amortization formula against a rate table snapshot.
package quote

import (
	"fmt"
	"math"

	"github.com/assetfin/quote-engine/internal/ratetable"
	"github.com/assetfin/quote-engine/pkg/constants"
	"github.com/assetfin/quote-engine/pkg/mathutil"
	"go.uber.org/zap"
)

// AssetType identifies the class of asset being financed.
type AssetType string

const (
	AssetVehicle   AssetType = "vehicle"
	AssetTruck     AssetType = "truck"
	AssetEquipment AssetType = "equipment"
)

// AssetCondition identifies the age bracket of the asset.
type AssetCondition string

const (
	ConditionNew      AssetCondition = "new"
	ConditionDemo     AssetCondition = "demo"
	ConditionUsed0to3 AssetCondition = "used_0_3"
	ConditionUsed4to7 AssetCondition = "used_4_7"
	ConditionUsed8Up  AssetCondition = "used_8_plus"
)

// Request is a caller-constructed loan request, consumed once per quote.
type Request struct {
	AssetType      AssetType      `json:"assetType"`
	AssetCondition AssetCondition `json:"assetCondition"`
	LoanAmount     float64        `json:"loanAmount"`
	TermMonths     int            `json:"termMonths"`
	BalloonPercent float64        `json:"balloonPercent"`
	PrivateSale    bool           `json:"privateSale"`
}

// Quote is the priced output for one request. All monetary and percentage
// values are rounded to two decimals and non-negative.
type Quote struct {
	IndicativeRatePercent float64 `json:"indicativeRatePercent"`
	MonthlyRepayment      float64 `json:"monthlyRepayment"`
	TotalInterest         float64 `json:"totalInterest"`
	TotalRepayments       float64 `json:"totalRepayments"`
	TotalFeesFinanced     float64 `json:"totalFeesFinanced"`
	TotalFeesUpfront      float64 `json:"totalFeesUpfront"`
	TotalCost             float64 `json:"totalCost"`
	EstimatedSaving       float64 `json:"estimatedSaving"`
}

// InvalidRequestError reports a request value outside the documented bounds.
// The engine never clamps; the caller must correct the field and resubmit.
type InvalidRequestError struct {
	Field  string
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid request: %s %s", e.Field, e.Reason)
}

// Bounds holds the accepted ranges for a loan request.
type Bounds struct {
	MinLoanAmount     float64
	MaxLoanAmount     float64
	MinTermMonths     int
	MaxTermMonths     int
	MaxBalloonPercent float64
}

// DefaultBounds returns the standard request bounds.
func DefaultBounds() Bounds {
	return Bounds{
		MinLoanAmount:     constants.MinLoanAmount,
		MaxLoanAmount:     constants.MaxLoanAmount,
		MinTermMonths:     constants.MinTermMonths,
		MaxTermMonths:     constants.MaxTermMonths,
		MaxBalloonPercent: constants.MaxBalloonPercent,
	}
}

// Engine prices loan requests. It holds no mutable state; concurrent calls
// are safe because each call only reads the table snapshot.
type Engine struct {
	table                  *ratetable.Table
	bounds                 Bounds
	referenceMarkupPercent float64
	logger                 *zap.Logger
}

// NewEngine creates an Engine over the given rate table snapshot.
func NewEngine(table *ratetable.Table, bounds Bounds, referenceMarkupPercent float64, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		table:                  table,
		bounds:                 bounds,
		referenceMarkupPercent: referenceMarkupPercent,
		logger:                 logger,
	}
}

// MonthlyRepayment calculates the periodic payment for an amortizing loan
// with a bullet balloon due at term end. The schedule fully amortizes the
// principal less the present value of the balloon over the term at the
// periodic rate. A zero rate degenerates to straight-line repayment.
func MonthlyRepayment(principal, balloonAmount, annualRatePercent float64, termMonths int) float64 {
	if annualRatePercent == 0 {
		return (principal - balloonAmount) / float64(termMonths)
	}

	periodicRate := annualRatePercent / (constants.PercentageMultiplier * constants.MonthsPerYear)
	power := math.Pow(1.00+periodicRate, float64(termMonths))
	discountFactor := (power - 1.00) / power
	financed := principal - balloonAmount/power
	return financed * periodicRate / discountFactor
}

// ComputeQuote validates the request and produces a Quote. Identical requests
// against the same table snapshot always produce identical quotes.
func (e *Engine) ComputeQuote(req Request) (Quote, error) {
	if err := e.validate(req); err != nil {
		return Quote{}, err
	}

	ratePercent, err := e.table.RateForTerm(req.TermMonths)
	if err != nil {
		return Quote{}, err
	}

	feeCtx := ratetable.FeeContext{PrivateSale: req.PrivateSale}
	feesUpfront := 0.0
	for _, fee := range e.table.FeeSchedule(feeCtx) {
		feesUpfront += float64(fee.AmountCents) / constants.CentsPerDollar
	}
	// All current fees are settled upfront; the financed bucket exists for
	// fee types added later.
	feesFinanced := 0.0

	totalCost := e.cost(req, ratePercent, feesUpfront)
	referenceCost := e.cost(req, ratePercent+e.referenceMarkupPercent, feesUpfront)

	quote := Quote{
		IndicativeRatePercent: mathutil.Round(ratePercent),
		MonthlyRepayment:      totalCost.monthlyRepayment,
		TotalInterest:         totalCost.totalInterest,
		TotalRepayments:       totalCost.totalRepayments,
		TotalFeesFinanced:     mathutil.Round(feesFinanced),
		TotalFeesUpfront:      mathutil.Round(feesUpfront),
		TotalCost:             totalCost.totalCost,
		EstimatedSaving:       mathutil.Round(mathutil.Max(referenceCost.totalCost-totalCost.totalCost, 0)),
	}

	e.logger.Debug("computed quote",
		zap.String("op", "quote.ComputeQuote"),
		zap.Float64("loanAmount", req.LoanAmount),
		zap.Int("termMonths", req.TermMonths),
		zap.Float64("ratePercent", ratePercent),
		zap.Float64("monthlyRepayment", quote.MonthlyRepayment),
	)

	return quote, nil
}

// costBreakdown carries the intermediate totals for one rate scenario.
type costBreakdown struct {
	monthlyRepayment float64
	totalRepayments  float64
	totalInterest    float64
	totalCost        float64
}

// cost prices the request at the given rate. Each field is rounded in
// sequence from its rounded inputs so that the published invariants
// (totalCost = totalRepayments + feesUpfront, totalInterest =
// totalRepayments - loanAmount) hold exactly on the returned values.
func (e *Engine) cost(req Request, ratePercent, feesUpfront float64) costBreakdown {
	balloonAmount := mathutil.ApplyPercentage(req.LoanAmount, req.BalloonPercent)
	monthly := mathutil.Round(MonthlyRepayment(req.LoanAmount, balloonAmount, ratePercent, req.TermMonths))
	totalRepayments := mathutil.Round(monthly*float64(req.TermMonths) + balloonAmount)
	return costBreakdown{
		monthlyRepayment: monthly,
		totalRepayments:  totalRepayments,
		totalInterest:    mathutil.Round(totalRepayments - req.LoanAmount),
		totalCost:        mathutil.Round(totalRepayments + feesUpfront),
	}
}

func (e *Engine) validate(req Request) error {
	switch req.AssetType {
	case AssetVehicle, AssetTruck, AssetEquipment:
	default:
		return &InvalidRequestError{Field: "assetType", Reason: fmt.Sprintf("unknown value %q", req.AssetType)}
	}

	switch req.AssetCondition {
	case ConditionNew, ConditionDemo, ConditionUsed0to3, ConditionUsed4to7, ConditionUsed8Up:
	default:
		return &InvalidRequestError{Field: "assetCondition", Reason: fmt.Sprintf("unknown value %q", req.AssetCondition)}
	}

	if req.LoanAmount < e.bounds.MinLoanAmount || req.LoanAmount > e.bounds.MaxLoanAmount {
		return &InvalidRequestError{
			Field:  "loanAmount",
			Reason: fmt.Sprintf("must be between %.2f and %.2f, got %.2f", e.bounds.MinLoanAmount, e.bounds.MaxLoanAmount, req.LoanAmount),
		}
	}

	if req.TermMonths < e.bounds.MinTermMonths || req.TermMonths > e.bounds.MaxTermMonths {
		return &InvalidRequestError{
			Field:  "termMonths",
			Reason: fmt.Sprintf("must be between %d and %d, got %d", e.bounds.MinTermMonths, e.bounds.MaxTermMonths, req.TermMonths),
		}
	}

	if req.BalloonPercent < 0 || req.BalloonPercent > e.bounds.MaxBalloonPercent {
		return &InvalidRequestError{
			Field:  "balloonPercent",
			Reason: fmt.Sprintf("must be between 0 and %.0f, got %.2f", e.bounds.MaxBalloonPercent, req.BalloonPercent),
		}
	}

	return nil
}
