package utils

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"carboniq/pkg/models"
)

func TestDayOf_UsesUTC(t *testing.T) {
	plus7 := time.FixedZone("UTC+7", 7*3600)
	at := time.Date(2025, time.March, 4, 3, 0, 0, 0, plus7) // 2025-03-03 20:00 UTC

	assert.Equal(t, time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC), DayOf(at))
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2025, time.February, 27, 23, 59, 0, 0, time.UTC)
	b := time.Date(2025, time.March, 1, 0, 1, 0, 0, time.UTC)

	assert.Equal(t, 2, DaysBetween(a, b))
	assert.Equal(t, -2, DaysBetween(b, a))
	assert.Equal(t, 0, DaysBetween(a, a.Add(-time.Minute)))
	assert.Equal(t, 1, DaysBetween(a, a.Add(time.Minute)))
}

func TestInWindow(t *testing.T) {
	end := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2025, time.March, 4, 0, 0, 0, 0, time.UTC), WindowStart(end, 7))
	assert.True(t, InWindow(time.Date(2025, time.March, 4, 0, 0, 0, 0, time.UTC), end, 7))
	assert.True(t, InWindow(time.Date(2025, time.March, 10, 23, 0, 0, 0, time.UTC), end, 7))
	assert.False(t, InWindow(time.Date(2025, time.March, 3, 23, 59, 0, 0, time.UTC), end, 7))
	assert.False(t, InWindow(time.Date(2025, time.March, 11, 0, 0, 0, 0, time.UTC), end, 7))
}

func TestValidateID(t *testing.T) {
	assert.NoError(t, ValidateID("user_id", "user-42"))
	assert.NoError(t, ValidateID("user_id", "jane.doe@example.org"))

	for _, bad := range []string{"", "has space", "semi;colon", string(make([]byte, 129))} {
		err := ValidateID("user_id", bad)
		assert.ErrorIs(t, err, models.ErrInvalidInput, "id %q", bad)
	}
}

func TestParseLimitAndOffset(t *testing.T) {
	assert.Equal(t, 20, ParseLimit("", 20, 100))
	assert.Equal(t, 20, ParseLimit("abc", 20, 100))
	assert.Equal(t, 20, ParseLimit("-1", 20, 100))
	assert.Equal(t, 5, ParseLimit("5", 20, 100))
	assert.Equal(t, 100, ParseLimit("500", 20, 100))

	assert.Equal(t, 0, ParseOffset(""))
	assert.Equal(t, 0, ParseOffset("-3"))
	assert.Equal(t, 30, ParseOffset("30"))
}

func TestCombineErrors(t *testing.T) {
	assert.NoError(t, CombineErrors(nil, nil))

	err := CombineErrors(nil, errors.New("pool down"), errors.New("db down"))
	assert.EqualError(t, err, "multiple errors: pool down; db down")
}

func TestIsContextError(t *testing.T) {
	assert.True(t, IsContextError(context.Canceled))
	assert.True(t, IsContextError(fmt.Errorf("query: %w", context.DeadlineExceeded)))
	assert.False(t, IsContextError(errors.New("boom")))
	assert.False(t, IsContextError(nil))
}
