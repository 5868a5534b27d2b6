package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateOutboundURL(t *testing.T) {
	web := OutboundOptions{AllowHTTP: true}
	for _, tc := range []struct {
		url  string
		opts OutboundOptions
		ok   bool
	}{
		{"https://example.com/a", OutboundOptions{}, true},
		{"http://example.com/a", OutboundOptions{}, false},
		{"http://example.com/a", web, true},
		{"ftp://example.com/a", web, false},
		{"file:///etc/passwd", web, false},
		{"https:///nohost", web, false},
		{"http://localhost:8080", web, false},
		{"http://printer.local", web, false},
		{"http://127.0.0.1:9000", web, false},
		{"http://10.1.2.3", web, false},
		{"http://169.254.169.254/latest/meta-data", web, false},
		{"http://[::1]/", web, false},
		{"http://[::ffff:192.168.0.1]/", web, false},
		{"https://[fe80::1%25eth0]/", web, false},
		{"http://0.0.0.0/", web, false},
		{"http://93.184.216.34/", web, true},
		{"http://127.0.0.1:9000", OutboundOptions{AllowHTTP: true, AllowLocalNetworks: true}, true},
		{"https://[fe80::1%25eth0]/", OutboundOptions{AllowLocalNetworks: true}, true},
	} {
		err := ValidateOutboundURL(tc.url, tc.opts)
		if tc.ok {
			assert.NoError(t, err, tc.url)
		} else {
			assert.Error(t, err, tc.url)
		}
	}
}
