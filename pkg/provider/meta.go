package provider

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Detail keys filled from page markup.
const (
	DetailTitle       = "title"
	DetailDescription = "description"
)

// ExtractMeta pulls og:title and og:description out of an HTML document,
// falling back to <title> and the description meta tag. It returns nil when
// nothing useful is present or the body is not HTML.
func ExtractMeta(body []byte) map[string]string {
	if len(body) == 0 {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	details := make(map[string]string)
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		key, _ := s.Attr("property")
		if key == "" {
			key, _ = s.Attr("name")
		}
		content := strings.TrimSpace(s.AttrOr("content", ""))
		if content == "" {
			return
		}
		switch strings.ToLower(key) {
		case "og:title":
			details[DetailTitle] = content
		case "og:description":
			details[DetailDescription] = content
		case "description":
			if _, ok := details[DetailDescription]; !ok {
				details[DetailDescription] = content
			}
		}
	})

	if _, ok := details[DetailTitle]; !ok {
		if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
			details[DetailTitle] = title
		}
	}

	if len(details) == 0 {
		return nil
	}
	return details
}
