package values

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSequenceNumber(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		s, err := NewSequenceNumber(42)
		require.NoError(t, err)
		assert.Equal(t, uint64(42), s.Value())
	})

	t.Run("zero rejected", func(t *testing.T) {
		_, err := NewSequenceNumber(0)
		require.Error(t, err)
	})
}

func TestSequenceNumberNext(t *testing.T) {
	s := FirstSequenceNumber()
	next, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), next.Value())
	assert.True(t, s.LessThan(next))

	_, err = MustNewSequenceNumber(MaxSequenceNumber).Next()
	require.Error(t, err)
}

func TestSequenceNumberInRange(t *testing.T) {
	s := MustNewSequenceNumber(5)
	assert.True(t, s.InRange(MustNewSequenceNumber(1), MustNewSequenceNumber(10)))
	assert.False(t, s.InRange(MustNewSequenceNumber(6), MustNewSequenceNumber(10)))
}

func TestSequenceNumberScan(t *testing.T) {
	var s SequenceNumber
	require.NoError(t, s.Scan(int64(7)))
	assert.Equal(t, uint64(7), s.Value())

	require.Error(t, s.Scan(int64(-1)))
	require.Error(t, s.Scan(3.14))
}
