// Package constants provides shared constants for the quote engine.
package constants

// Financial constants
const (
	// MonthsPerYear is the number of months in a year
	MonthsPerYear = 12

	// DecimalPrecision is the precision for currency rounding (2 decimal places)
	DecimalPrecision = 100

	// PercentageMultiplier is used for percentage conversions
	PercentageMultiplier = 100.0

	// CurrencyTolerance is the tolerance for currency comparisons (1 cent)
	CurrencyTolerance = 0.01

	// CentsPerDollar converts integer cent amounts to dollar values
	CentsPerDollar = 100.0
)

// Loan request bounds
const (
	// MinLoanAmount is the smallest financeable amount in dollars
	MinLoanAmount = 5000.0

	// MaxLoanAmount is the largest financeable amount in dollars
	MaxLoanAmount = 500000.0

	// MinTermMonths is the shortest loan term offered
	MinTermMonths = 12

	// MaxTermMonths is the longest loan term offered
	MaxTermMonths = 84

	// MaxBalloonPercent is the largest balloon accepted on a quote request
	MaxBalloonPercent = 100.0
)

// Eligibility defaults
const (
	// DefaultMinABNAgeMonths is the minimum ABN registration age
	DefaultMinABNAgeMonths = 24

	// DefaultMaxEligibleBalloonPercent caps the balloon for eligibility purposes
	DefaultMaxEligibleBalloonPercent = 50.0

	// DefaultMinBusinessUsePercent is the soft threshold for business use
	DefaultMinBusinessUsePercent = 50.0

	// DefaultMaxAssetAgeYears is the cap on asset age at term end
	DefaultMaxAssetAgeYears = 15
)

// Quote defaults
const (
	// DefaultReferenceMarkupPercent models the rate markup of a traditional
	// broker, used for the estimated-saving comparison.
	DefaultReferenceMarkupPercent = 2.0
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address for the API
	DefaultServerAddress = ":8080"

	// DefaultMaxBodySizeBytes is the default maximum request body size (256 KB)
	DefaultMaxBodySizeBytes int64 = 256 * 1024
)
