package values

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/davidleathers/contact-compliance-backend/internal/domain/errors"
)

// RiskScore represents a derived compliance risk score in the range 0-100
type RiskScore struct {
	value int
}

const (
	MinRiskScore = 0
	MaxRiskScore = 100

	// Level thresholds
	riskThresholdCritical = 75
	riskThresholdHigh     = 50
	riskThresholdMedium   = 25
)

// RiskLevel is the categorical summary of a risk score
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "low"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelCritical RiskLevel = "critical"
)

// String returns the string representation of the risk level
func (l RiskLevel) String() string {
	return string(l)
}

// IsValid checks the level against the closed enum
func (l RiskLevel) IsValid() bool {
	switch l {
	case RiskLevelLow, RiskLevelMedium, RiskLevelHigh, RiskLevelCritical:
		return true
	}
	return false
}

// NewRiskScore creates a RiskScore with range validation
func NewRiskScore(value int) (RiskScore, error) {
	if value < MinRiskScore || value > MaxRiskScore {
		return RiskScore{}, errors.NewValidationError("INVALID_RISK_SCORE",
			fmt.Sprintf("risk score must be between %d and %d, got %d",
				MinRiskScore, MaxRiskScore, value))
	}
	return RiskScore{value: value}, nil
}

// NewRiskScoreCapped creates a RiskScore, capping the input at the maximum.
// Used by the scorer where weighted sums may exceed 100.
func NewRiskScoreCapped(value int) RiskScore {
	if value < MinRiskScore {
		value = MinRiskScore
	}
	if value > MaxRiskScore {
		value = MaxRiskScore
	}
	return RiskScore{value: value}
}

// MustNewRiskScore creates RiskScore and panics on error (for constants/tests)
func MustNewRiskScore(value int) RiskScore {
	s, err := NewRiskScore(value)
	if err != nil {
		panic(err)
	}
	return s
}

// Value returns the numeric score
func (s RiskScore) Value() int {
	return s.value
}

// Level maps the score to its categorical level:
// >=75 critical, >=50 high, >=25 medium, else low
func (s RiskScore) Level() RiskLevel {
	switch {
	case s.value >= riskThresholdCritical:
		return RiskLevelCritical
	case s.value >= riskThresholdHigh:
		return RiskLevelHigh
	case s.value >= riskThresholdMedium:
		return RiskLevelMedium
	default:
		return RiskLevelLow
	}
}

// IsElevated reports whether the score maps to high or critical
func (s RiskScore) IsElevated() bool {
	level := s.Level()
	return level == RiskLevelHigh || level == RiskLevelCritical
}

// String returns the string representation of the score
func (s RiskScore) String() string {
	return fmt.Sprintf("%d", s.value)
}

// Equal checks if two RiskScore values are equal
func (s RiskScore) Equal(other RiskScore) bool {
	return s.value == other.value
}

// MarshalJSON implements JSON marshaling
func (s RiskScore) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.value)
}

// UnmarshalJSON implements JSON unmarshaling
func (s *RiskScore) UnmarshalJSON(data []byte) error {
	var value int
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}

	score, err := NewRiskScore(value)
	if err != nil {
		return err
	}

	*s = score
	return nil
}

// DatabaseValue implements driver.Valuer for database storage
func (s RiskScore) DatabaseValue() (driver.Value, error) {
	return int64(s.value), nil
}

// Scan implements sql.Scanner for database retrieval
func (s *RiskScore) Scan(value interface{}) error {
	if value == nil {
		*s = RiskScore{}
		return nil
	}

	switch v := value.(type) {
	case int64:
		score, err := NewRiskScore(int(v))
		if err != nil {
			return err
		}
		*s = score
	default:
		return fmt.Errorf("cannot scan %T into RiskScore", value)
	}

	return nil
}
