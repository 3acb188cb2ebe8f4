// Package eligibility evaluates the pre-eligibility rule battery for an
// application before any documents are collected. Ineligibility is a normal
// result, never an error; the only error condition is a structurally missing
// application.
package eligibility

import (
	"errors"
	"fmt"
	"time"

	"github.com/assetfin/quote-engine/internal/quote"
	"github.com/assetfin/quote-engine/pkg/constants"
	"github.com/assetfin/quote-engine/pkg/datetime"
	"go.uber.org/zap"
)

// ErrNilApplication indicates the caller supplied no application at all.
var ErrNilApplication = errors.New("application is nil")

// Rule identifiers, in evaluation order. The order affects only the order of
// fail reasons, never the overall outcome.
const (
	RuleABNAge      = "abn_age"
	RuleGST         = "gst_registration"
	RuleABNStatus   = "abn_status"
	RuleLoanAmount  = "loan_amount"
	RuleTermRange   = "term_range"
	RuleBalloon     = "balloon_range"
	RuleDirectors   = "director_presence"
	RuleAssetAge    = "asset_age"
	RuleBusinessUse = "business_use"
)

// ABNStatusActive is the lookup status required when a lookup result exists.
const ABNStatusActive = "Active"

// Business holds the business identity fields of an application.
type Business struct {
	ABN              string     `json:"abn"`
	RegistrationDate time.Time  `json:"registrationDate"`
	GSTRegistered    bool       `json:"gstRegistered"`
	EntityType       string     `json:"entityType"`
	ABNLookup        *ABNLookup `json:"abnLookup,omitempty"`
}

// ABNLookup is the result of an external ABN register lookup, when one was
// performed. The gate only inspects it if present.
type ABNLookup struct {
	Status string `json:"status"`
}

// Director is one director or guarantor entry with financial-position fields.
type Director struct {
	Name          string  `json:"name"`
	NetAssets     float64 `json:"netAssets"`
	PropertyOwner bool    `json:"propertyOwner"`
}

// Asset describes the asset being financed.
type Asset struct {
	Type      quote.AssetType      `json:"type"`
	Condition quote.AssetCondition `json:"condition"`
	Year      int                  `json:"year,omitempty"`
}

// Loan holds the requested loan parameters plus intended business use.
type Loan struct {
	Amount                float64 `json:"amount"`
	TermMonths            int     `json:"termMonths"`
	BalloonPercent        float64 `json:"balloonPercent"`
	BusinessUsePercentage float64 `json:"businessUsePercentage"`
}

// Application aggregates everything the gate reads. The gate never mutates it.
type Application struct {
	Business  Business   `json:"business"`
	Directors []Director `json:"directors"`
	Asset     Asset      `json:"asset"`
	Loan      Loan       `json:"loan"`
}

// Check is the outcome of a single rule.
type Check struct {
	Passed   bool   `json:"passed"`
	Value    string `json:"value"`
	Required string `json:"required"`
	Message  string `json:"message,omitempty"`
}

// Result is the full-rule-set output of one evaluation pass.
type Result struct {
	Passed      bool             `json:"passed"`
	Checks      map[string]Check `json:"checks"`
	FailReasons []string         `json:"failReasons"`
}

// Rules holds the tunable thresholds of the battery.
type Rules struct {
	MinABNAgeMonths       int
	MinLoanAmount         float64
	MaxLoanAmount         float64
	MinTermMonths         int
	MaxTermMonths         int
	MaxBalloonPercent     float64
	MaxAssetAgeYears      int
	MinBusinessUsePercent float64
}

// DefaultRules returns the standard thresholds.
func DefaultRules() Rules {
	return Rules{
		MinABNAgeMonths:       constants.DefaultMinABNAgeMonths,
		MinLoanAmount:         constants.MinLoanAmount,
		MaxLoanAmount:         constants.MaxLoanAmount,
		MinTermMonths:         constants.MinTermMonths,
		MaxTermMonths:         constants.MaxTermMonths,
		MaxBalloonPercent:     constants.DefaultMaxEligibleBalloonPercent,
		MaxAssetAgeYears:      constants.DefaultMaxAssetAgeYears,
		MinBusinessUsePercent: constants.DefaultMinBusinessUsePercent,
	}
}

// Gate is a stateless evaluator. Each call is one complete pass.
type Gate struct {
	rules  Rules
	now    func() time.Time
	logger *zap.Logger
}

// NewGate creates a Gate with the given rules.
func NewGate(rules Rules, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{rules: rules, now: time.Now, logger: logger}
}

// NewGateWithFixedTime creates a Gate whose clock is pinned, for tests.
func NewGateWithFixedTime(rules Rules, fixed time.Time, logger *zap.Logger) *Gate {
	g := NewGate(rules, logger)
	g.now = func() time.Time { return fixed }
	return g
}

// Check evaluates the full rule battery against the application. The overall
// pass is the AND of all hard checks that were evaluated; a conditional hard
// check that did not apply is vacuously passing and excluded. Soft checks are
// recorded but never fail the application.
func (g *Gate) Check(app *Application) (Result, error) {
	if app == nil {
		return Result{}, ErrNilApplication
	}

	result := Result{
		Passed: true,
		Checks: make(map[string]Check),
	}

	now := g.now()

	// ABN age (hard). A zero registration date is a missing field, never a
	// very old ABN; it fails the rule rather than waiving it.
	if app.Business.RegistrationDate.IsZero() {
		g.recordHard(&result, RuleABNAge, Check{
			Passed:   false,
			Value:    "unknown",
			Required: fmt.Sprintf("at least %d months", g.rules.MinABNAgeMonths),
			Message:  "ABN registration date is missing",
		})
	} else {
		abnAgeMonths := datetime.MonthsBetween(app.Business.RegistrationDate, now)
		g.recordHard(&result, RuleABNAge, Check{
			Passed:   abnAgeMonths >= g.rules.MinABNAgeMonths,
			Value:    fmt.Sprintf("%d months", abnAgeMonths),
			Required: fmt.Sprintf("at least %d months", g.rules.MinABNAgeMonths),
			Message:  fmt.Sprintf("ABN must be registered for at least %d months; currently %d months", g.rules.MinABNAgeMonths, abnAgeMonths),
		})
	}

	// GST registration (hard)
	g.recordHard(&result, RuleGST, Check{
		Passed:   app.Business.GSTRegistered,
		Value:    fmt.Sprintf("%t", app.Business.GSTRegistered),
		Required: "true",
		Message:  "business must be registered for GST",
	})

	// ABN status (hard, only when a lookup result is present)
	if app.Business.ABNLookup != nil {
		g.recordHard(&result, RuleABNStatus, Check{
			Passed:   app.Business.ABNLookup.Status == ABNStatusActive,
			Value:    app.Business.ABNLookup.Status,
			Required: ABNStatusActive,
			Message:  fmt.Sprintf("ABN status is %q; must be %q", app.Business.ABNLookup.Status, ABNStatusActive),
		})
	}

	// Loan amount range (hard)
	amountCheck := Check{
		Passed:   true,
		Value:    fmt.Sprintf("%.2f", app.Loan.Amount),
		Required: fmt.Sprintf("between %.0f and %.0f", g.rules.MinLoanAmount, g.rules.MaxLoanAmount),
	}
	if app.Loan.Amount < g.rules.MinLoanAmount {
		amountCheck.Passed = false
		amountCheck.Message = fmt.Sprintf("loan amount %.2f is below the minimum of %.0f", app.Loan.Amount, g.rules.MinLoanAmount)
	} else if app.Loan.Amount > g.rules.MaxLoanAmount {
		amountCheck.Passed = false
		amountCheck.Message = fmt.Sprintf("loan amount %.2f is above the maximum of %.0f", app.Loan.Amount, g.rules.MaxLoanAmount)
	}
	g.recordHard(&result, RuleLoanAmount, amountCheck)

	// Term range (hard)
	g.recordHard(&result, RuleTermRange, Check{
		Passed:   app.Loan.TermMonths >= g.rules.MinTermMonths && app.Loan.TermMonths <= g.rules.MaxTermMonths,
		Value:    fmt.Sprintf("%d months", app.Loan.TermMonths),
		Required: fmt.Sprintf("between %d and %d months", g.rules.MinTermMonths, g.rules.MaxTermMonths),
		Message:  fmt.Sprintf("term of %d months is outside the range of %d to %d months", app.Loan.TermMonths, g.rules.MinTermMonths, g.rules.MaxTermMonths),
	})

	// Balloon range (hard)
	g.recordHard(&result, RuleBalloon, Check{
		Passed:   app.Loan.BalloonPercent >= 0 && app.Loan.BalloonPercent <= g.rules.MaxBalloonPercent,
		Value:    fmt.Sprintf("%.2f%%", app.Loan.BalloonPercent),
		Required: fmt.Sprintf("between 0%% and %.0f%%", g.rules.MaxBalloonPercent),
		Message:  fmt.Sprintf("balloon of %.2f%% is outside the range of 0%% to %.0f%%", app.Loan.BalloonPercent, g.rules.MaxBalloonPercent),
	})

	// Director presence (hard)
	g.recordHard(&result, RuleDirectors, Check{
		Passed:   len(app.Directors) > 0,
		Value:    fmt.Sprintf("%d directors", len(app.Directors)),
		Required: "at least 1 director or guarantor",
		Message:  "at least one director or guarantor is required",
	})

	// Asset age at term end (hard, only for used assets with a known year)
	if isUsedCondition(app.Asset.Condition) && app.Asset.Year > 0 {
		age := datetime.AssetAgeAtTermEnd(app.Asset.Year, now.Year(), app.Loan.TermMonths)
		g.recordHard(&result, RuleAssetAge, Check{
			Passed:   age <= g.rules.MaxAssetAgeYears,
			Value:    fmt.Sprintf("%d years at term end", age),
			Required: fmt.Sprintf("at most %d years at term end", g.rules.MaxAssetAgeYears),
			Message:  fmt.Sprintf("asset would be %d years old at term end; the maximum is %d years", age, g.rules.MaxAssetAgeYears),
		})
	}

	// Business-use percentage (soft; recorded only)
	result.Checks[RuleBusinessUse] = Check{
		Passed:   app.Loan.BusinessUsePercentage >= g.rules.MinBusinessUsePercent,
		Value:    fmt.Sprintf("%.2f%%", app.Loan.BusinessUsePercentage),
		Required: fmt.Sprintf("at least %.0f%%", g.rules.MinBusinessUsePercent),
		Message:  fmt.Sprintf("business use of %.2f%% is below %.0f%%; pricing may differ", app.Loan.BusinessUsePercentage, g.rules.MinBusinessUsePercent),
	}

	g.logger.Debug("evaluated eligibility",
		zap.String("op", "eligibility.Check"),
		zap.Bool("passed", result.Passed),
		zap.Int("failReasons", len(result.FailReasons)),
	)

	return result, nil
}

// recordHard stores a hard check and folds its outcome into the overall pass.
func (g *Gate) recordHard(result *Result, rule string, check Check) {
	result.Checks[rule] = check
	if !check.Passed {
		result.Passed = false
		result.FailReasons = append(result.FailReasons, check.Message)
	}
}

func isUsedCondition(condition quote.AssetCondition) bool {
	switch condition {
	case quote.ConditionUsed0to3, quote.ConditionUsed4to7, quote.ConditionUsed8Up:
		return true
	}
	return false
}

// QuickCheck is the lighter pre-application check run directly from
// calculator inputs: amount bounds, term bounds, and the balloon cap. It is a
// subset of the full battery and is never a substitute for Check before
// final submission.
func (g *Gate) QuickCheck(loanAmount float64, termMonths int, balloonPercent float64) (bool, []string) {
	var issues []string

	if loanAmount < g.rules.MinLoanAmount {
		issues = append(issues, fmt.Sprintf("loan amount must be at least $%.0f", g.rules.MinLoanAmount))
	}
	if loanAmount > g.rules.MaxLoanAmount {
		issues = append(issues, fmt.Sprintf("loan amount must not exceed the maximum of $%.0f", g.rules.MaxLoanAmount))
	}
	if termMonths < g.rules.MinTermMonths || termMonths > g.rules.MaxTermMonths {
		issues = append(issues, fmt.Sprintf("term must be between %d and %d months", g.rules.MinTermMonths, g.rules.MaxTermMonths))
	}
	if balloonPercent > g.rules.MaxBalloonPercent {
		issues = append(issues, fmt.Sprintf("balloon must not exceed %.0f%%", g.rules.MaxBalloonPercent))
	}

	return len(issues) == 0, issues
}
