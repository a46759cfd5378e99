// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package portal holds the per-site knowledge used before a request is
// sent: URL rewrites for portals whose PDF links need a different endpoint,
// and request headers that keep anti-bot filters quiet.
package portal

import (
	"net/url"
	"regexp"
	"strings"
)

const ieeeHost = "ieeexplore.ieee.org"

// ieeeStampBase is the canonical IEEE Xplore retrieval endpoint.
const ieeeStampBase = "https://ieeexplore.ieee.org/stampPDF/getPDF.jsp?tp=&arnumber="

var (
	// articleBeforePDF matches the article number in ".../08123456.pdf".
	articleBeforePDF = regexp.MustCompile(`(?i)(?:^|\D)(\d{7,9})\.pdf`)

	// articleAnywhere is the looser fallback for ".../document/8123456/".
	// Longer digit runs are not article numbers.
	articleAnywhere = regexp.MustCompile(`(?:^|\D)(\d{7,9})(?:\D|$)`)
)

// Normalize rewrites URLs of known portals into their direct-fetch form.
// IEEE Xplore links are mapped to the stamp endpoint keyed by the article
// number with leading zeros removed. Every other URL, and any IEEE URL
// without a usable article number, is returned unchanged.
func Normalize(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || !hostMatches(u.Hostname(), ieeeHost) {
		return rawURL
	}

	var id string
	if m := articleBeforePDF.FindStringSubmatch(rawURL); m != nil {
		id = m[1]
	} else if m := articleAnywhere.FindStringSubmatch(rawURL); m != nil {
		id = m[1]
	}
	id = strings.TrimLeft(id, "0")
	if id == "" {
		return rawURL
	}
	return ieeeStampBase + id
}

// hostMatches reports whether host is domain or a subdomain of it.
func hostMatches(host, domain string) bool {
	host = strings.ToLower(host)
	return host == domain || strings.HasSuffix(host, "."+domain)
}
