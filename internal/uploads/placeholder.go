package uploads

import (
	"fmt"
	"html"
	"path/filepath"
	"strings"
)

const placeholderTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<svg width="512" height="512" viewBox="0 0 512 512" xmlns="http://www.w3.org/2000/svg">
  <defs>
    <linearGradient id="g" x1="0" y1="0" x2="1" y2="1">
      <stop offset="0%%" stop-color="#111827"/>
      <stop offset="100%%" stop-color="#1f2937"/>
    </linearGradient>
  </defs>
  <rect width="512" height="512" fill="url(#g)"/>
  <text x="50%%" y="50%%" dominant-baseline="middle" text-anchor="middle" font-family="sans-serif" font-size="28" fill="#e5e7eb">%s</text>
</svg>`

// PlaceholderContentType is the media type of PlaceholderSVG output.
const PlaceholderContentType = "image/svg+xml"

// PlaceholderSVG renders a square card labelled with the file name minus its extension.
func PlaceholderSVG(name string) []byte {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	label := strings.TrimSuffix(base, filepath.Ext(base))
	if label == "" || label == "." || label == "/" {
		label = "image"
	}
	return []byte(fmt.Sprintf(placeholderTemplate, html.EscapeString(label)))
}
