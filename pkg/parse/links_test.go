package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/msg-photos/pkg/utils"
)

func TestNormalizeLink(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"https://example.com/a.jpg", "https://example.com/a.jpg"},
		{"  https://example.com/a.jpg\n", "https://example.com/a.jpg"},
		{"HTTPS://CDN.Example.com:443/p/a.jpg?sig=AbC&x=1", "https://cdn.example.com/p/a.jpg?sig=AbC&x=1"},
		{"http://example.com:80/a.jpg#frag", "http://example.com/a.jpg"},
		{"http://127.0.0.1:8080/a.jpg", "http://127.0.0.1:8080/a.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := NormalizeLink(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeLink_Invalid(t *testing.T) {
	for _, raw := range []string{"", "   ", "ftp://example.com/a.jpg", "photos/a.jpg", "https://", "http://[::1"} {
		_, err := NormalizeLink(raw)
		assert.ErrorIs(t, err, utils.ErrParsing, "raw %q", raw)
	}
}
