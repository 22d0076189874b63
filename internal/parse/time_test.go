package parse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStartTime(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*3600)

	testCases := []struct {
		name      string
		raw       string
		loc       *time.Location
		expected  time.Time
		expectErr bool
	}{
		{
			name:     "RFC3339 in UTC",
			raw:      "2025-05-10T10:00:00Z",
			loc:      jakarta,
			expected: time.Date(2025, 5, 10, 10, 0, 0, 0, time.UTC),
		},
		{
			name:     "RFC3339 with offset keeps the offset",
			raw:      "2025-05-10T17:00:00+07:00",
			loc:      time.UTC,
			expected: time.Date(2025, 5, 10, 10, 0, 0, 0, time.UTC),
		},
		{
			name:     "Fractional seconds",
			raw:      "2025-05-10T10:00:00.000Z",
			loc:      jakarta,
			expected: time.Date(2025, 5, 10, 10, 0, 0, 0, time.UTC),
		},
		{
			name:     "Local timestamp from a datetime-local input",
			raw:      "2025-05-10T17:00",
			loc:      jakarta,
			expected: time.Date(2025, 5, 10, 10, 0, 0, 0, time.UTC),
		},
		{
			name:     "Local timestamp with space and seconds",
			raw:      " 2025-05-10 17:30:00 ",
			loc:      jakarta,
			expected: time.Date(2025, 5, 10, 10, 30, 0, 0, time.UTC),
		},
		{
			name:     "Nil location means UTC",
			raw:      "2025-05-10 17:00",
			loc:      nil,
			expected: time.Date(2025, 5, 10, 17, 0, 0, 0, time.UTC),
		},
		{
			name:      "Empty",
			raw:       "   ",
			expectErr: true,
		},
		{
			name:      "Garbage",
			raw:       "tomorrow at five",
			loc:       jakarta,
			expectErr: true,
		},
		{
			name:      "Date only",
			raw:       "2025-05-10",
			loc:       jakarta,
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := StartTime(tc.raw, tc.loc)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.True(t, tc.expected.Equal(got), "want %s, got %s", tc.expected, got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}
