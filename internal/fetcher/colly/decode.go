package collyfetcher

import (
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// decodeText returns body as valid UTF-8. Declared non-UTF-8 charsets are
// transcoded by colly before the body reaches us; any byte sequence that is
// still invalid becomes U+FFFD.
func decodeText(body []byte) string {
	out, _, err := transform.Bytes(unicode.UTF8.NewDecoder(), body)
	if err != nil {
		return string(body)
	}
	return string(out)
}
