package presence

import (
	"net/url"

	"golang.org/x/net/publicsuffix"
)

// DeriveDomain extracts the registrable domain (eTLD+1) from a page URL, e.g.
// "https://news.example.co.uk/a/b" -> "example.co.uk". It returns "" for the
// hidden sentinel or anything unparseable; a missing domain is cosmetic, never
// an error.
func DeriveDomain(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Hostname() == "" {
		return ""
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(parsed.Hostname())
	if err != nil {
		return ""
	}
	return domain
}
