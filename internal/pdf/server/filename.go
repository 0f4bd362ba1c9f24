package server

import (
	"net/url"
	"path"
	"strings"
)

// pdfFileName derives a download file name from the article URL: the last
// path segment, lowercased, with a .pdf extension, URL-encoded so it is safe
// inside a Content-Disposition header.
func pdfFileName(articleURL string) string {
	name := "article"

	if u, err := url.Parse(strings.ToLower(articleURL)); err == nil && u.IsAbs() && u.Host != "" {
		base := path.Base(u.Path)
		if base != "" && base != "." && base != "/" {
			name = base
		}
	}

	return url.QueryEscape(name + ".pdf")
}
