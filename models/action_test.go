package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestActionBucketBoundaries(t *testing.T) {
	now := time.Date(2026, 9, 1, 15, 0, 0, 0, time.UTC)

	cases := []struct {
		scheduled time.Time
		want      string
	}{
		{time.Date(2026, 8, 31, 23, 59, 59, 0, time.UTC), BucketOverdue},
		{time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), BucketToday},
		{time.Date(2026, 9, 1, 23, 59, 59, 0, time.UTC), BucketToday},
		{time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC), BucketUpcoming},
	}
	for _, tc := range cases {
		a := Action{ScheduledFor: tc.scheduled}
		assert.Equal(t, tc.want, a.Bucket(now), "scheduled %s", tc.scheduled)
	}
}
