package tui

import (
	"os"
	"strings"

	"github.com/gdamore/tcell/v2"

	"github.com/salahayoub/hotviz/pkg/topology"
)

// DetectColorSupport reports whether colors should be used. NO_COLOR and
// TERM=dumb disable them.
func DetectColorSupport() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return os.Getenv("TERM") != "dumb"
}

// DetectUnicodeSupport reports whether the locale is UTF-8. The first of
// LC_ALL, LC_CTYPE and LANG that is set decides; an unset locale is assumed
// to be UTF-8.
func DetectUnicodeSupport() bool {
	for _, name := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		if v := os.Getenv(name); v != "" {
			v = strings.ToUpper(v)
			return strings.Contains(v, "UTF-8") || strings.Contains(v, "UTF8")
		}
	}
	return true
}

// MonochromeStyles returns styles without colors. Roles and marker
// correctness are told apart by attributes instead.
func MonochromeStyles() Styles {
	base := tcell.StyleDefault
	return Styles{
		Normal:      base,
		Bold:        base.Bold(true),
		Muted:       base.Dim(true),
		Success:     base.Bold(true),
		Warning:     base.Bold(true),
		Error:       base.Reverse(true),
		Header:      base.Bold(true),
		Border:      base.Dim(true),
		BorderFocus: base.Bold(true),
		Highlight:   base.Underline(true),
		Edge:        base.Dim(true),
		MarkerOK:    base.Bold(true),
		MarkerBad:   base.Reverse(true),
		roles: map[topology.Color]tcell.Style{
			topology.ColorGold:  base.Bold(true),
			topology.ColorBlue:  base.Bold(true),
			topology.ColorGreen: base,
			topology.ColorRed:   base.Reverse(true),
		},
	}
}
