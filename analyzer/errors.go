package analyzer

import "fmt"

// ValidationError reports malformed comparison input, most commonly two
// scans from different accounts. Surfaced before any differences are
// computed.
type ValidationError struct {
	Reason string
}

func (validationError *ValidationError) Error() string {
	return fmt.Sprintf("invalid differential input: %s", validationError.Reason)
}
