package values

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/davidleathers/contact-compliance-backend/internal/domain/errors"
)

// SequenceNumber represents a monotonic sequence number for audit entries
type SequenceNumber struct {
	value uint64
}

const (
	// Maximum sequence number value (2^63 - 1 for safe database storage)
	MaxSequenceNumber = uint64(9223372036854775807)
	// Minimum sequence number value
	MinSequenceNumber = uint64(1)
)

// NewSequenceNumber creates a new SequenceNumber value object with validation
func NewSequenceNumber(value uint64) (SequenceNumber, error) {
	if value == 0 {
		return SequenceNumber{}, errors.NewValidationError("ZERO_SEQUENCE",
			"sequence number cannot be zero")
	}

	if value > MaxSequenceNumber {
		return SequenceNumber{}, errors.NewValidationError("SEQUENCE_TOO_LARGE",
			fmt.Sprintf("sequence number %d exceeds maximum %d", value, MaxSequenceNumber))
	}

	return SequenceNumber{value: value}, nil
}

// MustNewSequenceNumber creates SequenceNumber and panics on error (for constants/tests)
func MustNewSequenceNumber(value uint64) SequenceNumber {
	seq, err := NewSequenceNumber(value)
	if err != nil {
		panic(err)
	}
	return seq
}

// FirstSequenceNumber returns the first sequence number (1)
func FirstSequenceNumber() SequenceNumber {
	return MustNewSequenceNumber(MinSequenceNumber)
}

// Value returns the sequence number value
func (s SequenceNumber) Value() uint64 {
	return s.value
}

// String returns the string representation of the sequence number
func (s SequenceNumber) String() string {
	return strconv.FormatUint(s.value, 10)
}

// IsZero checks if the sequence number is zero (invalid state)
func (s SequenceNumber) IsZero() bool {
	return s.value == 0
}

// Equal checks if two SequenceNumber values are equal
func (s SequenceNumber) Equal(other SequenceNumber) bool {
	return s.value == other.value
}

// LessThan checks if this sequence number is less than other
func (s SequenceNumber) LessThan(other SequenceNumber) bool {
	return s.value < other.value
}

// Next returns the next sequence number
func (s SequenceNumber) Next() (SequenceNumber, error) {
	if s.value >= MaxSequenceNumber {
		return SequenceNumber{}, errors.NewValidationError("SEQUENCE_OVERFLOW",
			"sequence number would overflow maximum value")
	}

	return SequenceNumber{value: s.value + 1}, nil
}

// InRange checks if the sequence number is within the given range (inclusive)
func (s SequenceNumber) InRange(min, max SequenceNumber) bool {
	return s.value >= min.value && s.value <= max.value
}

// MarshalJSON implements JSON marshaling
func (s SequenceNumber) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.value)
}

// UnmarshalJSON implements JSON unmarshaling
func (s *SequenceNumber) UnmarshalJSON(data []byte) error {
	var value uint64
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}

	seq, err := NewSequenceNumber(value)
	if err != nil {
		return err
	}

	*s = seq
	return nil
}

// DatabaseValue implements driver.Valuer for database storage
func (s SequenceNumber) DatabaseValue() (driver.Value, error) {
	if s.value == 0 {
		return nil, nil
	}
	return int64(s.value), nil
}

// Scan implements sql.Scanner for database retrieval
func (s *SequenceNumber) Scan(value interface{}) error {
	if value == nil {
		*s = SequenceNumber{}
		return nil
	}

	var val uint64
	switch v := value.(type) {
	case int64:
		if v < 0 {
			return fmt.Errorf("sequence number cannot be negative: %d", v)
		}
		val = uint64(v)
	case uint64:
		val = v
	case string:
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("cannot parse sequence number string %q: %w", v, err)
		}
		val = parsed
	default:
		return fmt.Errorf("cannot scan %T into SequenceNumber", value)
	}

	seq, err := NewSequenceNumber(val)
	if err != nil {
		return err
	}

	*s = seq
	return nil
}
