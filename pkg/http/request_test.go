package http_test

import (
	"net/http/httptest"
	"testing"

	pkghttp "github.com/eventdeck/gatehouse/pkg/http"
	"github.com/stretchr/testify/assert"
)

// The throttle and the audit trail both key on client IP, so a spoofed
// X-Forwarded-For must never be believed unless it came through a proxy
// we operate.

func TestExtractClientIP_DirectConnection_IgnoresHeaders(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "203.0.113.10:54321"

	req.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")
	req.Header.Set("X-Real-IP", "192.168.1.1")

	config := &pkghttp.IPConfig{
		TrustedProxies: []string{"10.0.0.0/8", "127.0.0.1/32"},
	}

	ip := pkghttp.ExtractClientIP(req, config)
	assert.Equal(t, "203.0.113.10", ip, "headers from an untrusted peer must be ignored")
}

func TestExtractClientIP_TrustedProxy_UsesXForwardedFor(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.5:54321"

	req.Header.Set("X-Forwarded-For", "203.0.113.42, 10.0.0.5")

	config := &pkghttp.IPConfig{
		TrustedProxies: []string{"10.0.0.0/8"},
	}

	ip := pkghttp.ExtractClientIP(req, config)
	assert.Equal(t, "203.0.113.42", ip)
}

func TestExtractClientIP_NoConfig_DefaultsSecurely(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "203.0.113.10:54321"

	req.Header.Set("X-Forwarded-For", "1.2.3.4")
	req.Header.Set("X-Real-IP", "192.168.1.1")

	ip := pkghttp.ExtractClientIP(req, nil)
	assert.Equal(t, "203.0.113.10", ip)
}

func TestExtractClientIP_MultipleIPs_UsesFirst(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.5:54321"

	req.Header.Set("X-Forwarded-For", "203.0.113.42, 203.0.113.43, 10.0.0.5")

	config := &pkghttp.IPConfig{
		TrustedProxies: []string{"10.0.0.0/8"},
	}

	ip := pkghttp.ExtractClientIP(req, config)
	assert.Equal(t, "203.0.113.42", ip)
}

func TestExtractClientIP_LockoutBypass_Prevention(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "203.0.113.10:54321"

	// A client claiming to be localhost must not get a fresh throttle bucket.
	req.Header.Set("X-Forwarded-For", "127.0.0.1, 203.0.113.10")

	config := &pkghttp.IPConfig{
		TrustedProxies: []string{"10.0.0.0/8"},
	}

	ip := pkghttp.ExtractClientIP(req, config)
	assert.Equal(t, "203.0.113.10", ip)
}

func TestExtractClientIP_StripsPort(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "[::1]:54321"

	ip := pkghttp.ExtractClientIP(req, nil)
	assert.Equal(t, "::1", ip)
}
