package f13

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrentQuarter(t *testing.T) {
	tests := []struct {
		now  time.Time
		want string
	}{
		{time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC), "12-31-2024"},
		{time.Date(2025, time.March, 31, 23, 0, 0, 0, time.UTC), "12-31-2024"},
		{time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC), "03-31-2025"},
		{time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC), "03-31-2025"},
		{time.Date(2025, time.July, 4, 0, 0, 0, 0, time.UTC), "06-30-2025"},
		{time.Date(2025, time.September, 30, 0, 0, 0, 0, time.UTC), "06-30-2025"},
		{time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC), "09-30-2025"},
		{time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC), "09-30-2025"},
	}
	for _, tt := range tests {
		t.Run(tt.now.Format("2006-01-02"), func(t *testing.T) {
			got := CurrentQuarter(tt.now)
			assert.Equal(t, tt.want, got)
			assert.True(t, ValidQuarterEnd(got))
		})
	}
}

func TestValidQuarterEnd(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"03-31-2025", true},
		{"06-30-2025", true},
		{"09-30-2024", true},
		{"12-31-2024", true},
		{"12-30-2024", false},
		{"06-31-2024", false},
		{"2024-12-31", false},
		{"12-31-24", false},
		{"12-31-2024x", false},
		{"x12-31-2024", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidQuarterEnd(tt.in))
		})
	}
}

func TestQuarterLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"03-31-2025", "Q1-2025"},
		{"06-30-2025", "Q2-2025"},
		{"09-30-2024", "Q3-2024"},
		{"12-31-2024", "Q4-2024"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := QuarterLabel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQuarterLabel_Invalid(t *testing.T) {
	for _, in := range []string{"12-30-2024", "", "Q4-2024", "2024-12-31"} {
		_, err := QuarterLabel(in)
		require.Error(t, err, in)
		assert.True(t, errors.Is(err, ErrInvalidQuarterFormat), in)
	}
}

func TestParseQuarterEnd(t *testing.T) {
	got, err := ParseQuarterEnd("12-31-2024")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC), got)

	_, err = ParseQuarterEnd("02-28-2024")
	assert.ErrorIs(t, err, ErrInvalidQuarterFormat)
}

func TestQuarterIndexURL(t *testing.T) {
	tests := []struct {
		target string
		want   string
	}{
		{"12-31-2024", "https://www.sec.gov/Archives/edgar/daily-index/2025/QTR1/"},
		{"03-31-2025", "https://www.sec.gov/Archives/edgar/daily-index/2025/QTR2/"},
		{"06-30-2025", "https://www.sec.gov/Archives/edgar/daily-index/2025/QTR3/"},
		{"09-30-2025", "https://www.sec.gov/Archives/edgar/daily-index/2025/QTR4/"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			got, err := QuarterIndexURL("https://www.sec.gov/Archives/", tt.target)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := QuarterIndexURL(DefaultArchiveRoot, "13-01-2024")
	assert.ErrorIs(t, err, ErrInvalidQuarterFormat)
}
