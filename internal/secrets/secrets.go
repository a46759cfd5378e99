// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads portal credentials from a directory of plain-text
// files. Each file is one secret: the filename is the key and the trimmed
// contents are the value.
//
// Files named cookie-<host> hold a Cookie header value sent on requests to
// that host and its subdomains, e.g. cookie-ieeexplore.ieee.org holding an
// institutional session cookie.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// CookiePrefix marks a per-host cookie file.
const CookiePrefix = "cookie-"

// Secrets is the set of values read from a secrets directory.
type Secrets struct {
	values map[string]string
}

// Load reads all files in dir. A missing directory is not an error and
// yields an empty set. Unreadable files are logged and skipped.
func Load(dir string) (*Secrets, error) {
	s := &Secrets{values: make(map[string]string)}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logrus.WithError(err).WithField("secret", name).Warn("could not read secret")
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			s.values[name] = value
		}
	}
	return s, nil
}

// Get returns the value of key, or "" when it is not set.
func (s *Secrets) Get(key string) string {
	return s.values[key]
}

// Keys returns the loaded key names, sorted.
func (s *Secrets) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Cookies returns the per-host Cookie header values, keyed by lower-case
// host. Line breaks in a cookie file are joined with "; " so a cookie
// exported one pair per line still forms a valid header.
func (s *Secrets) Cookies() map[string]string {
	cookies := make(map[string]string)
	for key, value := range s.values {
		host, ok := strings.CutPrefix(key, CookiePrefix)
		if !ok || host == "" {
			continue
		}
		var pairs []string
		for _, line := range strings.Split(value, "\n") {
			if line = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(line), ";")); line != "" {
				pairs = append(pairs, line)
			}
		}
		cookies[strings.ToLower(host)] = strings.Join(pairs, "; ")
	}
	return cookies
}
