package asset

import (
	"mime"
	"net/url"
	"path"
	"regexp"
	"strings"
)

const (
	maxNameRunes    = 120
	fallbackName    = "image"
	fallbackExt     = ".jpg"
	trimNameCutset  = "._"
	illegalNameChar = `[\\/:*?"<>|]+`
)

var (
	illegalNameRE = regexp.MustCompile(illegalNameChar)
	whitespaceRE  = regexp.MustCompile(`\s+`)
)

// preferredExt pins the extension for common image types; the platform mime
// table lists several candidates for some of them.
var preferredExt = map[string]string{
	"image/jpeg":               ".jpg",
	"image/pjpeg":              ".jpg",
	"image/png":                ".png",
	"image/gif":                ".gif",
	"image/webp":               ".webp",
	"image/svg+xml":            ".svg",
	"image/avif":               ".avif",
	"image/bmp":                ".bmp",
	"image/x-icon":             ".ico",
	"image/vnd.microsoft.icon": ".ico",
}

// Extension picks the file extension for an image: the URL path suffix when
// present, otherwise one derived from contentType, otherwise ".jpg".
func Extension(rawURL, contentType string) string {
	if ext := urlExtension(rawURL); ext != "" {
		return normalizeExtension(ext)
	}
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	if mediaType == "" {
		return fallbackExt
	}
	if ext, ok := preferredExt[mediaType]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		return normalizeExtension(exts[0])
	}
	return fallbackExt
}

func urlExtension(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	base := path.Base(p)
	if strings.HasPrefix(base, ".") && strings.Count(base, ".") == 1 {
		return ""
	}
	ext := path.Ext(base)
	if ext == "." {
		return ""
	}
	return ext
}

func normalizeExtension(ext string) string {
	ext = strings.ToLower(ext)
	switch ext {
	case ".jpeg", ".jpe":
		return ".jpg"
	case ".svgz":
		return ".svg"
	default:
		return ext
	}
}

// SanitizeFilename turns a display name into a safe file stem.
func SanitizeFilename(hint string) string {
	cleaned := illegalNameRE.ReplaceAllString(hint, "")
	cleaned = whitespaceRE.ReplaceAllString(cleaned, "_")
	cleaned = strings.Trim(cleaned, trimNameCutset)
	if runes := []rune(cleaned); len(runes) > maxNameRunes {
		cleaned = string(runes[:maxNameRunes])
	}
	if cleaned == "" {
		return fallbackName
	}
	return cleaned
}
