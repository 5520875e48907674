package resolver

import (
	"net/url"
	"strings"
)

// input bundles what every extractor reads. Nothing here is mutated once
// built.
type input struct {
	sources    Sources
	game       *node
	canonical  string
	embedHost  string
	suffixes   []string
	precedence ImagePrecedence
}

// extractor yields one candidate value, or "" when its source is silent.
type extractor func(*input) string

// firstNonEmpty evaluates chain in order and stops at the first hit.
func firstNonEmpty(in *input, chain ...extractor) string {
	for _, ex := range chain {
		if v := strings.TrimSpace(ex(in)); v != "" {
			return v
		}
	}
	return ""
}

func gameString(key string) extractor {
	return func(in *input) string {
		s, _ := in.game.get(key).str()
		return s
	}
}

func metaContent(attr, value string) extractor {
	return func(in *input) string {
		return in.sources.metaLookup(attr, value)
	}
}

func cleanedTitle(in *input) string {
	return cleanName(in.sources.Title, in.suffixes)
}

func cleanedHeading(in *input) string {
	return cleanName(in.sources.Heading, in.suffixes)
}

// cleanName strips known site suffixes, matched case-insensitively, in the
// order given.
func cleanName(raw string, suffixes []string) string {
	value := strings.TrimSpace(raw)
	for _, suffix := range suffixes {
		if suffix == "" || len(value) < len(suffix) {
			continue
		}
		if strings.EqualFold(value[len(value)-len(suffix):], suffix) {
			value = value[:len(value)-len(suffix)]
		}
	}
	return strings.TrimSpace(value)
}

func resolveName(in *input) string {
	return firstNonEmpty(in, gameString("name"), cleanedTitle, cleanedHeading)
}

func resolveDescription(in *input) string {
	return firstNonEmpty(in,
		gameString("description"),
		gameString("abstract"),
		metaContent("name", "description"),
	)
}

func gameImage(in *input) string {
	image := in.game.get("image")
	if image == nil {
		return ""
	}
	if s, ok := image.str(); ok {
		return s
	}
	if image.kind == kindObject {
		s, _ := image.get("url").str()
		return s
	}
	if image.kind != kindArray {
		return ""
	}
	for _, item := range image.items {
		if s, ok := item.str(); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	for _, item := range image.items {
		if s, ok := item.get("url").str(); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func linkImage(in *input) string {
	return in.sources.linkLookup("image_src", "image")
}

func resolveCoverImage(in *input) string {
	chain := []extractor{gameImage, metaContent("property", "og:image"), metaContent("itemprop", "image"), linkImage}
	if in.precedence == ImageOpenGraphFirst {
		chain = []extractor{metaContent("property", "og:image"), gameImage, metaContent("itemprop", "image"), linkImage}
	}
	raw := firstNonEmpty(in, chain...)
	if raw == "" {
		return ""
	}
	return absolute(in.canonical, raw)
}

func resolvePlayURL(in *input) string {
	if len(in.sources.Frames) == 0 {
		return ""
	}
	embedHost := strings.ToLower(in.embedHost)
	for _, frame := range in.sources.Frames {
		abs := absolute(in.canonical, frame)
		if embedHost == "" {
			break
		}
		if u, err := url.Parse(abs); err == nil && strings.Contains(strings.ToLower(u.Host), embedHost) {
			return abs
		}
	}
	return absolute(in.canonical, in.sources.Frames[0])
}

func organization(key string) extractor {
	return func(in *input) string {
		value := in.game.get(key)
		if value == nil {
			return ""
		}
		if s, ok := value.str(); ok {
			return s
		}
		s, _ := value.get("name").str()
		return s
	}
}

func resolvePublisher(in *input) string {
	return firstNonEmpty(in, organization("publisher"), organization("provider"))
}

func resolveTags(in *input) []string {
	var raw []string
	for _, key := range []string{"keywords", "genre", "applicationCategory"} {
		raw = appendKeywords(raw, in.game.get(key))
	}
	if meta := in.sources.metaLookup("name", "keywords"); meta != "" {
		raw = append(raw, splitKeywords(meta)...)
	}
	return dedupeTags(raw)
}

// appendKeywords flattens string or nested-array keyword values.
func appendKeywords(dst []string, n *node) []string {
	if n == nil {
		return dst
	}
	if s, ok := n.str(); ok {
		return append(dst, splitKeywords(s)...)
	}
	if n.kind == kindArray {
		for _, item := range n.items {
			dst = appendKeywords(dst, item)
		}
	}
	return dst
}

func splitKeywords(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' })
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// dedupeTags drops case-insensitive repeats, keeping the first spelling and
// encounter order. An empty result is nil.
func dedupeTags(tags []string) []string {
	var unique []string
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, tag)
	}
	return unique
}

func resolveCanonical(sources Sources, pageURL string) string {
	href := sources.linkLookup("canonical")
	if href == "" {
		return pageURL
	}
	return absolute(pageURL, href)
}

func absolute(base, ref string) string {
	ref = strings.TrimSpace(ref)
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}
