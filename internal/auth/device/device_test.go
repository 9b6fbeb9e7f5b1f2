package device

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseUserAgent(t *testing.T) {
	tests := []struct {
		name      string
		userAgent string
		contains  []string
	}{
		{
			name:      "chrome on desktop",
			userAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			contains:  []string{"Chrome", " on "},
		},
		{
			name:      "safari on iphone uses the platform",
			userAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			contains:  []string{" on ", "iPhone"},
		},
		{
			name:      "firefox on linux",
			userAgent: "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
			contains:  []string{"Firefox", " on "},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseUserAgent(tt.userAgent)
			for _, want := range tt.contains {
				assert.Contains(t, result, want)
			}
			assert.Equal(t, strings.TrimSpace(result), result)
			assert.NotContains(t, result, "  ")
		})
	}
}

func TestParseUserAgentEmpty(t *testing.T) {
	assert.Equal(t, "Unknown Device", ParseUserAgent(""))
	assert.Equal(t, Info{}, Describe(""))
}

func TestDescribeMobile(t *testing.T) {
	info := Describe("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1")
	assert.True(t, info.Mobile)
	assert.False(t, info.Bot)
}

func TestDisplayNameDefaults(t *testing.T) {
	assert.Equal(t, "Unknown Browser on Linux", Info{OS: "Linux"}.DisplayName())
	assert.Equal(t, "curl on Unknown OS", Info{Browser: "curl"}.DisplayName())
}
