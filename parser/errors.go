package parser

import "fmt"

// ParseError reports a structurally unparsable top-level document: a
// CloudFormation body that is neither YAML nor JSON, a Terraform document
// whose every resource block is unscannable, or an archive that yielded no
// resources at all. Best-effort sub-failures (a single Terraform block, a
// CDK call site) are never surfaced as ParseError.
type ParseError struct {
	FileName string
	Format   string
	Err      error
}

func (parseError *ParseError) Error() string {
	if parseError.Err != nil {
		return fmt.Sprintf("parsing %s as %s: %v", parseError.FileName, parseError.Format, parseError.Err)
	}
	return fmt.Sprintf("parsing %s as %s failed", parseError.FileName, parseError.Format)
}

func (parseError *ParseError) Unwrap() error {
	return parseError.Err
}

// SafetyError reports an archive that violates the ZIP safety limits
// (entry count, entry size, total size, path traversal). The archive is
// rejected before any entry is processed.
type SafetyError struct {
	Entry  string
	Reason string
}

func (safetyError *SafetyError) Error() string {
	if safetyError.Entry != "" {
		return fmt.Sprintf("unsafe archive entry %q: %s", safetyError.Entry, safetyError.Reason)
	}
	return fmt.Sprintf("unsafe archive: %s", safetyError.Reason)
}
