// Package enrichment derives click metadata from raw request headers.
package enrichment

import (
	ua "github.com/mileusna/useragent"
)

// Browser is the coarse browser family stored with each click.
type Browser string

const (
	BrowserChrome  Browser = "Chrome"
	BrowserFirefox Browser = "Firefox"
	BrowserSafari  Browser = "Safari"
	BrowserEdge    Browser = "Edge"
	BrowserOther   Browser = "Other"
	BrowserUnknown Browser = "Unknown"
)

// ClassifyBrowser maps a User-Agent header to a Browser. An empty header is Unknown;
// anything parsed but outside the four tracked families is Other.
func ClassifyBrowser(userAgent string) Browser {
	if userAgent == "" {
		return BrowserUnknown
	}

	switch ua.Parse(userAgent).Name {
	case ua.Chrome:
		return BrowserChrome
	case ua.Firefox:
		return BrowserFirefox
	case ua.Safari:
		return BrowserSafari
	case ua.Edge:
		return BrowserEdge
	default:
		return BrowserOther
	}
}
