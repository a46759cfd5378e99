// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pdf-harvest/internal/portal"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize URL...",
	Short: "Show the request a URL turns into",
	Long: `Normalize prints, for each URL, the rewritten request URL (e.g. an IEEE
Xplore document page becomes its stampPDF endpoint) and the portal headers the
direct fetch sends. Nothing is downloaded.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		for _, raw := range args {
			printNormalized(os.Stdout, raw)
		}
	},
}

func init() {
	rootCmd.AddCommand(normalizeCmd)
}

func printNormalized(w io.Writer, raw string) {
	target := portal.Normalize(raw)
	fmt.Fprintf(w, "%s\n", raw)
	if target != raw {
		fmt.Fprintf(w, "  -> %s\n", target)
	}

	h := portal.HeadersFor(target)
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %s\n", k, h.Get(k))
	}
}
