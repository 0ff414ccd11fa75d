package scoring

import "fmt"

// ValidationError reports a record that breaks the activity record contract.
type ValidationError struct {
	RecordID string
	Field    string
	Reason   string
}

func (e *ValidationError) Error() string {
	id := e.RecordID
	if id == "" {
		id = "<unsaved>"
	}
	return fmt.Sprintf("scoring: record %s: %s %s", id, e.Field, e.Reason)
}

func invalid(recordID, field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{RecordID: recordID, Field: field, Reason: fmt.Sprintf(format, args...)}
}
