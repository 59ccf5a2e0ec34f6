package directive

import (
	"strings"
	"sync"
	"unicode"

	pstrings "penwatch/internal/platform/strings"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxTextBytes caps the payload of a single outbound line
const MaxTextBytes = 1024

var chainPool = sync.Pool{
	New: func() any {
		return transform.Chain(
			norm.NFKC,
			runes.Remove(runes.In(unicode.Cf)), // zero-width and bidi marks
			runes.Map(func(r rune) rune { // line breaks would split the frame
				if unicode.IsControl(r) {
					return ' '
				}
				return r
			}),
		)
	},
}

// Sanitize makes s safe to embed in a single control line: invalid UTF-8 is
// dropped, text is NFKC normalized, controls become spaces, runs of
// whitespace collapse, and the result is capped at MaxTextBytes.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToValidUTF8(s, "")

	tr := chainPool.Get().(transform.Transformer)
	out, _, err := transform.String(tr, s)
	tr.Reset()
	chainPool.Put(tr)
	if err != nil {
		out = s
	}

	out = strings.Join(strings.Fields(out), " ")
	return pstrings.Clip(out, MaxTextBytes)
}
