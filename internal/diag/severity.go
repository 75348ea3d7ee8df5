package diag

// Severity defines the importance of a diagnostic.
type Severity uint8

const (
	// SevMessage is for informational compiler output.
	SevMessage Severity = iota
	// SevWarning is for warning diagnostics.
	SevWarning
	SevError
)

func (s Severity) String() string {
	switch s {
	case SevMessage:
		return "message"
	case SevWarning:
		return "warning"
	case SevError:
		return "error"
	}
	return "unknown"
}

// ParseSeverity maps the category word printed by the compiler.
func ParseSeverity(word string) (Severity, bool) {
	switch word {
	case "error":
		return SevError, true
	case "warning":
		return SevWarning, true
	case "message":
		return SevMessage, true
	}
	return SevError, false
}
