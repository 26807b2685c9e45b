package valueobject

import "fmt"

// Disposition is the terminal outcome of processing one work item.
type Disposition string

// Disposition constants.
const (
	DispositionSuccess Disposition = "success"
	DispositionFailure Disposition = "failure"
)

// NewDisposition creates a Disposition with validation.
func NewDisposition(value string) (Disposition, error) {
	d := Disposition(value)
	if d != DispositionSuccess && d != DispositionFailure {
		return "", fmt.Errorf("invalid disposition: %s", value)
	}
	return d, nil
}

// String returns the string representation of the disposition.
func (d Disposition) String() string {
	return string(d)
}

// Succeeded reports whether the disposition counts toward success_count.
func (d Disposition) Succeeded() bool {
	return d == DispositionSuccess
}
