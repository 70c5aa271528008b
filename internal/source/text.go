package source

import (
	"strings"

	"golang.org/x/net/html"
)

// cleanText flattens an upstream description to plain text. Some
// descriptions carry inline markup and entities such as <br/> or &amp;.
func cleanText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return cleanLabel(s)
	}
	var sb strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return cleanLabel(sb.String())
		case html.TextToken:
			sb.Write(z.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			// Block-level tags separate words.
			sb.WriteByte(' ')
		}
	}
}
