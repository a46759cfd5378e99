// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package portal

import (
	"regexp"
	"strings"
)

// Resolver endpoints.
const (
	arxivPDFBase = "https://arxiv.org/pdf/"
	doiBase      = "https://doi.org/"
)

// arxivPattern matches arXiv IDs: "2301.07041", "arXiv:2301.07041", "2301.07041v2".
var arxivPattern = regexp.MustCompile(`^(?i:arxiv:)?(\d{4}\.\d{4,5}(?:v\d+)?)$`)

// doiPattern matches DOIs, with an optional "doi:" prefix: "10.1145/1234567.1234568".
var doiPattern = regexp.MustCompile(`^(?i:doi:\s*)?(10\.\d{4,9}/\S+)$`)

// Resolve turns a bare identifier from an input list into a URL. arXiv IDs
// map to the arxiv.org PDF endpoint and DOIs to the doi.org resolver, whose
// redirects the HTTP client follows. Anything else is returned trimmed but
// otherwise unchanged.
func Resolve(entry string) string {
	entry = strings.TrimSpace(entry)
	if m := arxivPattern.FindStringSubmatch(entry); m != nil {
		return arxivPDFBase + m[1]
	}
	if m := doiPattern.FindStringSubmatch(entry); m != nil {
		return doiBase + m[1]
	}
	return entry
}
