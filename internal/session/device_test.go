package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"veriflow/pkg/domain"
)

const testTTL = 24 * time.Hour

func testTime(t *testing.T) time.Time {
	t.Helper()
	return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
}

const (
	uaIPhone  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	uaChrome  = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	uaCrawler = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
)

func TestProbeDevice(t *testing.T) {
	t.Run("iphone is mobile", func(t *testing.T) {
		info := ProbeDevice(uaIPhone, true, true)
		assert.Equal(t, domain.DeviceMobile, info.Kind)
		assert.True(t, info.HasPlatformAuthenticator)
		assert.True(t, info.HasCamera)
	})

	t.Run("desktop chrome is desktop", func(t *testing.T) {
		info := ProbeDevice(uaChrome, false, false)
		assert.Equal(t, domain.DeviceDesktop, info.Kind)
	})

	t.Run("bot stays unknown", func(t *testing.T) {
		info := ProbeDevice(uaCrawler, false, false)
		assert.Equal(t, domain.DeviceUnknown, info.Kind)
	})

	t.Run("empty UA stays unknown", func(t *testing.T) {
		info := ProbeDevice("", false, true)
		assert.Equal(t, domain.DeviceUnknown, info.Kind)
		assert.True(t, info.HasCamera)
	})
}
