package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsEmpty(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"", true},
		{"   ", true},
		{"abc", false},
		{" abc ", false},
	}
	for _, c := range cases {
		got := IsEmpty(c.input)
		if got != c.want {
			t.Errorf("IsEmpty(%q) = %v, want %v", c.input, got, c.want)
		}
	}
}

func TestIsValidUUID(t *testing.T) {
	valid := []string{
		"0188d0f2-7b8c-7b4a-8a2b-6b8b8b8b8b8b",
		"0188D0F2-7B8C-7B4A-8A2B-6B8B8B8B8B8B",
	}
	invalid := []string{
		"123e4567-e89b-12d3-a456-426614174000", // not v7
		"0188d0f27b8c7b4a8a2b6b8b8b8b8b8b",     // missing dashes
		"g188d0f2-7b8c-7b4a-8a2b-6b8b8b8b8b8b", // invalid hex
		"",
	}
	for _, uuid := range valid {
		if !IsValidUUID(uuid) {
			t.Errorf("IsValidUUID(%q) = false, want true", uuid)
		}
	}
	for _, uuid := range invalid {
		if IsValidUUID(uuid) {
			t.Errorf("IsValidUUID(%q) = true, want false", uuid)
		}
	}
}

func TestIsValidDate(t *testing.T) {
	_, ok := IsValidDate("2024-02-29")
	assert.True(t, ok)
	_, ok = IsValidDate("2023-02-29")
	assert.False(t, ok)
	_, ok = IsValidDate("29-02-2024")
	assert.False(t, ok)
}

func TestIsValidClock(t *testing.T) {
	for _, s := range []string{"00:00", "09:05", "23:59"} {
		assert.True(t, IsValidClock(s), s)
	}
	for _, s := range []string{"24:00", "9:05", "09:60", "0905", ""} {
		assert.False(t, IsValidClock(s), s)
	}
}

func TestIsValidDateTime(t *testing.T) {
	_, ok := IsValidDateTime("2024-01-15T10:30:00Z")
	assert.True(t, ok)
	_, ok = IsValidDateTime("2024-01-15T10:30:00.123+07:00")
	assert.True(t, ok)
	_, ok = IsValidDateTime("2024-01-15 10:30:00")
	assert.False(t, ok)
}

func TestIsInSlice(t *testing.T) {
	assert.True(t, IsInSlice("b", []string{"a", "b"}))
	assert.False(t, IsInSlice("c", []string{"a", "b"}))
	assert.False(t, IsInSlice("a", nil))
}

func TestValidationErrors(t *testing.T) {
	var errs ValidationErrors
	assert.NoError(t, errs.Err())

	errs.Add("reason", "reason is required")
	errs.Add("type", "type must be IN or OUT")

	assert.Error(t, errs.Err())
	assert.Equal(t, "reason: reason is required; type: type must be IN or OUT", errs.Error())
	assert.Equal(t, map[string]string{
		"reason": "reason is required",
		"type":   "type must be IN or OUT",
	}, errs.ToMap())
}
