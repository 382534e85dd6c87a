package catalog

import "strings"

// NormalizeAssetURL adjusts known CDN URLs for better format negotiation.
// imgix hosts get an auto=format parameter when one is absent; everything
// else passes through unchanged.
func NormalizeAssetURL(url string) string {
	url = strings.TrimSpace(url)
	if url == "" {
		return ""
	}
	if strings.Contains(url, "imgix.net") && !strings.Contains(url, "auto=format") {
		separator := "?"
		if strings.Contains(url, "?") {
			separator = "&"
		}
		return url + separator + "auto=format"
	}
	return url
}
