package resolver

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Sources holds every raw signal collected from one page. Attribute maps use
// lowercased keys; when an attribute repeats, the last occurrence wins.
type Sources struct {
	Meta    []map[string]string
	Links   []map[string]string
	JSONLD  []string
	Frames  []string
	Title   string
	Heading string
}

// ParseSources scans html once and collects meta and link attributes, JSON-LD
// script bodies, iframe sources, the title, and the first non-empty h1.
func ParseSources(html string) Sources {
	var src Sources
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return src
	}

	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		src.Meta = append(src.Meta, attrMap(s))
	})
	doc.Find("link").Each(func(_ int, s *goquery.Selection) {
		src.Links = append(src.Links, attrMap(s))
	})
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		scriptType, _ := s.Attr("type")
		if !strings.EqualFold(strings.TrimSpace(scriptType), "application/ld+json") {
			return
		}
		if text := strings.TrimSpace(s.Text()); text != "" {
			src.JSONLD = append(src.JSONLD, text)
		}
	})
	doc.Find("iframe").Each(func(_ int, s *goquery.Selection) {
		attrs := attrMap(s)
		frame := attrs["src"]
		if frame == "" {
			frame = attrs["data-src"]
		}
		if frame = strings.TrimSpace(frame); frame != "" {
			src.Frames = append(src.Frames, frame)
		}
	})

	src.Title = strings.TrimSpace(doc.Find("title").First().Text())
	doc.Find("h1").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src.Heading = strings.TrimSpace(s.Text())
		return src.Heading == ""
	})
	return src
}

func attrMap(s *goquery.Selection) map[string]string {
	attrs := make(map[string]string)
	if len(s.Nodes) == 0 {
		return attrs
	}
	for _, attr := range s.Nodes[0].Attr {
		attrs[strings.ToLower(attr.Key)] = attr.Val
	}
	return attrs
}

// metaLookup returns the content (or value) of the first meta tag whose attr
// equals value case-insensitively.
func (s Sources) metaLookup(attr, value string) string {
	for _, attrs := range s.Meta {
		if !strings.EqualFold(attrs[attr], value) {
			continue
		}
		content := strings.TrimSpace(attrs["content"])
		if content == "" {
			content = strings.TrimSpace(attrs["value"])
		}
		if content != "" {
			return content
		}
	}
	return ""
}

// linkLookup returns the href of the first link carrying any of rels.
func (s Sources) linkLookup(rels ...string) string {
	for _, attrs := range s.Links {
		if !hasRel(attrs["rel"], rels) {
			continue
		}
		if href := strings.TrimSpace(attrs["href"]); href != "" {
			return href
		}
	}
	return ""
}

func hasRel(rel string, want []string) bool {
	for _, token := range strings.Fields(rel) {
		for _, w := range want {
			if strings.EqualFold(token, w) {
				return true
			}
		}
	}
	return false
}
