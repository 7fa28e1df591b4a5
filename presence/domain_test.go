package presence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveDomain(t *testing.T) {
	testCases := []struct {
		name     string
		url      string
		expected string
	}{
		{name: "plain host", url: "https://example.com/a/b", expected: "example.com"},
		{name: "subdomain stripped", url: "https://news.example.com/story?id=1", expected: "example.com"},
		{name: "multi-label suffix", url: "https://shop.example.co.uk/", expected: "example.co.uk"},
		{name: "unknown tld kept as-is", url: "https://a.example/x", expected: "a.example"},
		{name: "port ignored", url: "http://example.com:8080/", expected: "example.com"},
		{name: "hidden sentinel", url: "", expected: ""},
		{name: "no host", url: "not a url", expected: ""},
		{name: "scheme only", url: "https://", expected: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, DeriveDomain(tc.url))
		})
	}
}
