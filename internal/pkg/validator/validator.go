package validator

import (
	"regexp"
	"strings"
	"time"
)

type ValidationError struct {
	Field   string
	Message string
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	var msgs []string
	for _, err := range v {
		msgs = append(msgs, err.Field+": "+err.Message)
	}
	return strings.Join(msgs, "; ")
}

func (v ValidationErrors) ToMap() map[string]string {
	result := make(map[string]string)
	for _, err := range v {
		result[err.Field] = err.Message
	}
	return result
}

// Add appends a field error.
func (v *ValidationErrors) Add(field, message string) {
	*v = append(*v, ValidationError{Field: field, Message: message})
}

// Err returns nil when no error was collected, so callers can `return errs.Err()`.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// IsEmpty checks if a string is empty after trimming whitespace.
func IsEmpty(s string) bool {
	return strings.TrimSpace(s) == ""
}

// UUIDv7 regex: version 7 (the 15th character must be '7'), all lowercase hex digits.
var uuidv7Regex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-7[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// UUIDv7 validation
func IsValidUUID(uuid string) bool {
	return uuidv7Regex.MatchString(strings.ToLower(uuid))
}

// Date validation
func IsValidDate(dateStr string) (time.Time, bool) {
	date, err := time.Parse("2006-01-02", dateStr)
	return date, err == nil
}

var clockRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// IsValidClock checks an HH:MM wall clock time.
func IsValidClock(s string) bool {
	return clockRegex.MatchString(s)
}

// Slice contains check
func IsInSlice(value string, slice []string) bool {
	for _, item := range slice {
		if item == value {
			return true
		}
	}
	return false
}

// IsValidDateTime checks if a string is a valid ISO8601 timestamp.
// Accepts formats like: "2024-01-15T10:30:00Z" or "2024-01-15T10:30:00+07:00"
func IsValidDateTime(dateTimeStr string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339Nano, dateTimeStr)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// MaxLength reports whether s has at most n characters.
func MaxLength(s string, n int) bool {
	return len([]rune(s)) <= n
}
