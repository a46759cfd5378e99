// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"mime"
	"net/url"
	"regexp"
	"strings"

	"github.com/pdiddy/pdf-harvest/internal/fsutil"
)

// looseFilename recovers the filename from Content-Disposition values that
// mime.ParseMediaType rejects, such as unquoted names with spaces.
var looseFilename = regexp.MustCompile(`(?i)filename\*?=(?:UTF-8'[^']*')?"?([^";]+)"?`)

// FileName picks the name a response is saved under: the
// Content-Disposition filename, else the final URL's basename, else
// fsutil.DefaultFileName. The result always ends in ".pdf".
func FileName(contentDisposition string, finalURL *url.URL) string {
	if name := dispositionName(contentDisposition); name != "" {
		return name
	}
	if name := fsutil.NameFromURLPath(finalURL); name != "" {
		return name
	}
	return fsutil.DefaultFileName
}

func dispositionName(cd string) string {
	if strings.TrimSpace(cd) == "" {
		return ""
	}

	var raw string
	if _, params, err := mime.ParseMediaType(cd); err == nil {
		raw = params["filename"]
	}
	if raw == "" {
		if m := looseFilename.FindStringSubmatch(cd); m != nil {
			raw = m[1]
		}
	}
	if decoded, err := url.PathUnescape(raw); err == nil {
		raw = decoded
	}

	name := fsutil.CleanName(raw)
	if name == "" {
		return ""
	}
	return fsutil.EnsurePDFSuffix(name)
}
