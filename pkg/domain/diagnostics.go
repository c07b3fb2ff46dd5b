package domain

import "fmt"

// Severity captures diagnostic outcomes.
type Severity string

// Diagnostic and rule severities.
const (
	// SeverityBlock fails validation.
	SeverityBlock Severity = "block"
	// SeverityWarn flags a value that was changed or coerced.
	SeverityWarn Severity = "warn"
	// SeverityLog is informational.
	SeverityLog Severity = "log"
)

// Diagnostic is a non-fatal message produced while adapting or mutating.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Diagnostics accumulates ordered diagnostics.
type Diagnostics struct {
	Items []Diagnostic
}

// Warnf records a warning.
func (d *Diagnostics) Warnf(format string, args ...any) Diagnostic {
	item := Diagnostic{Severity: SeverityWarn, Message: fmt.Sprintf(format, args...)}
	d.Items = append(d.Items, item)
	return item
}

// Infof records an informational message.
func (d *Diagnostics) Infof(format string, args ...any) Diagnostic {
	item := Diagnostic{Severity: SeverityLog, Message: fmt.Sprintf(format, args...)}
	d.Items = append(d.Items, item)
	return item
}

// Merge appends diagnostics from another collection.
func (d *Diagnostics) Merge(other Diagnostics) {
	if len(other.Items) == 0 {
		return
	}
	d.Items = append(d.Items, other.Items...)
}

// Warnings returns only the warning messages.
func (d Diagnostics) Warnings() []string {
	var out []string
	for _, item := range d.Items {
		if item.Severity == SeverityWarn {
			out = append(out, item.Message)
		}
	}
	return out
}
