package format

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{in: "TestLimits/daily_api", expected: "TestLimits_daily_api"},
		{in: "e2e.TestContact[chromium]", expected: "e2e_TestContact_chromium_"},
		{in: "já", expected: "j_"},
		{in: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, Slug(tt.in))
		})
	}
}

func TestDuration(t *testing.T) {
	assert.Equal(t, "500µs", Duration(500*time.Microsecond))
	assert.Equal(t, "250ms", Duration(250*time.Millisecond))
	assert.Equal(t, "1.5s", Duration(1500*time.Millisecond))
	assert.Equal(t, "2.0m", Duration(2*time.Minute))
}

func TestBytesAndMillis(t *testing.T) {
	assert.Equal(t, "512 B", Bytes(512))
	assert.Equal(t, "1.5 KB", Bytes(1536))

	v := 123.4
	assert.Equal(t, "123", Millis(&v))
	assert.Equal(t, "-", Millis(nil))
}
