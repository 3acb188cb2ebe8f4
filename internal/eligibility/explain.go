package eligibility

import (
	"fmt"
	"strings"
)

// Explain renders a Result as the multi-line message shown to applicants.
// Consumers depend on the wording of the intro lines and the numbering of
// fail reasons.
func Explain(result Result) string {
	if result.Passed {
		return "Based on the details provided, your business meets our initial eligibility criteria. You can proceed with your application."
	}

	var builder strings.Builder
	builder.WriteString("Unfortunately your application does not meet our initial eligibility criteria:\n")
	for i, reason := range result.FailReasons {
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, reason))
	}
	return builder.String()
}
