package autosave

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicy_DelayDoubles(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, BaseDelay: 100 * time.Millisecond, MaxDelay: 1 * time.Second}

	assert.Equal(t, 100*time.Millisecond, p.Delay(1))
	assert.Equal(t, 200*time.Millisecond, p.Delay(2))
	assert.Equal(t, 400*time.Millisecond, p.Delay(3))
	assert.Equal(t, 800*time.Millisecond, p.Delay(4))
}

func TestRetryPolicy_DelayCapped(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 10, BaseDelay: 100 * time.Millisecond, MaxDelay: 500 * time.Millisecond}

	assert.Equal(t, 500*time.Millisecond, p.Delay(4))
	assert.Equal(t, 500*time.Millisecond, p.Delay(9))
}

func TestRetryPolicy_Exhausted(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3}

	assert.False(t, p.Exhausted(1))
	assert.False(t, p.Exhausted(2))
	assert.True(t, p.Exhausted(3))
	assert.True(t, p.Exhausted(4))
}

func TestRetryPolicy_ZeroValuesUseDefaults(t *testing.T) {
	var p RetryPolicy

	def := DefaultRetryPolicy()
	assert.Equal(t, def.BaseDelay, p.Delay(1))
	assert.True(t, p.Exhausted(def.MaxAttempts))
	assert.False(t, p.Exhausted(def.MaxAttempts-1))
}
