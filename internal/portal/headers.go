// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package portal

import (
	"net/http"
	"net/url"
	"strings"
)

// AcceptPDF prefers PDF bodies over HTML landing pages.
const AcceptPDF = "application/pdf,application/octet-stream;q=0.9,*/*;q=0.8"

// site is a publisher whose PDF routes check the Referer.
type site struct {
	match    string // case-insensitive substring of the host
	homepage string
}

var knownSites = []site{
	{match: "ieee.org", homepage: "https://ieeexplore.ieee.org/"},
	{match: "sciencedirect.com", homepage: "https://www.sciencedirect.com/"},
	{match: "springer.com", homepage: "https://link.springer.com/"},
	{match: "wiley.com", homepage: "https://onlinelibrary.wiley.com/"},
	{match: "tandfonline.com", homepage: "https://www.tandfonline.com/"},
	{match: "scielo", homepage: "https://www.scielo.br/"},
}

// HeadersFor returns the request headers for rawURL. Referer is always the
// URL's origin; known publishers get their homepage as Referer and an
// Accept header that asks for PDF first.
func HeadersFor(rawURL string) http.Header {
	h := make(http.Header)
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return h
	}
	h.Set("Referer", Origin(u))

	host := strings.ToLower(u.Hostname())
	for _, s := range knownSites {
		if strings.Contains(host, s.match) {
			h.Set("Referer", s.homepage)
			h.Set("Accept", AcceptPDF)
			break
		}
	}
	return h
}

// Origin returns "scheme://host/" for u.
func Origin(u *url.URL) string {
	return u.Scheme + "://" + u.Host + "/"
}
