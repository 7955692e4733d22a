// Package charset decodes raw upstream response bytes to UTF-8 text.
//
// Detection order: charset parameter of the Content-Type header, then an
// HTML <meta charset> prescan of the leading bytes, then the configured
// per-source default. A mojibake detector runs on the decoded text; a
// flagged decode is retried exactly once with GB18030 and that result is
// accepted unconditionally. The Chinese-language community sources this
// service scrapes routinely declare the wrong encoding or none at all.
package charset

import (
	"strings"
	"unicode/utf8"

	htmlcharset "golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// prescanWindow bounds how many leading bytes the meta sniff examines.
const prescanWindow = 16 * 1024

// sampleRunes bounds how much decoded text the mojibake detector examines.
const sampleRunes = 2048

// Result is a completed decode.
type Result struct {
	Text      string
	Encoding  string // canonical name of the decoder actually used
	Corrected bool   // true if the mojibake retry replaced the first decode
}

// Decode converts body to UTF-8 text. contentType is the raw Content-Type
// header (may be empty). fallback names the source-specific default
// encoding for when nothing is declared; empty means UTF-8.
func Decode(body []byte, contentType, fallback string) Result {
	enc, name := detect(body, contentType, fallback)

	text := decodeWith(enc, body)
	if !looksCorrupted(text) {
		return Result{Text: text, Encoding: name}
	}
	if name == "gb18030" {
		// Already on the alternate decoder; nothing further to try.
		return Result{Text: text, Encoding: name}
	}

	// Single retry with GB18030, accepted unconditionally.
	retry := decodeWith(simplifiedchinese.GB18030, body)
	return Result{Text: retry, Encoding: "gb18030", Corrected: true}
}

// detect resolves the encoding to use, in the priority order documented on
// Decode. Returns the decoder and its canonical name.
func detect(body []byte, contentType, fallback string) (encoding.Encoding, string) {
	window := body
	if len(window) > prescanWindow {
		window = window[:prescanWindow]
	}

	enc, name, _ := htmlcharset.DetermineEncoding(window, contentType)

	// DetermineEncoding falls back to windows-1252 when nothing was
	// declared or sniffed; substitute the source default there.
	if name == "windows-1252" && !declaresCharset(contentType, window) {
		if fallback != "" {
			return lookup(fallback)
		}
		return unicode.UTF8, "utf-8"
	}
	return canonicalize(enc, name)
}

// lookup resolves a configured encoding label, normalizing aliases.
func lookup(label string) (encoding.Encoding, string) {
	switch normalizeLabel(label) {
	case "utf-8":
		return unicode.UTF8, "utf-8"
	case "gb18030":
		return simplifiedchinese.GB18030, "gb18030"
	}
	if enc, name := htmlcharset.Lookup(label); enc != nil {
		return canonicalize(enc, name)
	}
	return unicode.UTF8, "utf-8"
}

// canonicalize maps the GB-family aliases onto the one GB18030 decoder,
// which is a superset of GBK and GB2312.
func canonicalize(enc encoding.Encoding, name string) (encoding.Encoding, string) {
	switch normalizeLabel(name) {
	case "gb18030":
		return simplifiedchinese.GB18030, "gb18030"
	case "utf-8":
		return unicode.UTF8, "utf-8"
	}
	return enc, name
}

func normalizeLabel(label string) string {
	l := strings.ToLower(strings.TrimSpace(label))
	switch l {
	case "utf8", "utf-8":
		return "utf-8"
	case "gb2312", "gbk", "gb-2312", "gb18030", "gb-18030":
		return "gb18030"
	}
	return l
}

// declaresCharset reports whether either the header or a meta tag in the
// prescan window explicitly named a charset. windows-1252 can be a genuine
// declaration; only an undeclared windows-1252 default is overridden.
func declaresCharset(contentType string, window []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "charset=") {
		return true
	}
	// The prescan treats bytes as Latin-1, so a plain ASCII substring
	// search cannot be corrupted by multibyte sequences.
	lower := strings.ToLower(string(window))
	return strings.Contains(lower, "<meta charset") ||
		(strings.Contains(lower, "http-equiv") && strings.Contains(lower, "charset="))
}

func decodeWith(enc encoding.Encoding, body []byte) string {
	if enc == unicode.UTF8 {
		return string(body)
	}
	decoded, _, err := transform.Bytes(enc.NewDecoder(), body)
	if err != nil {
		// Partial output is still useful; the mojibake detector decides
		// whether to retry.
		return string(decoded)
	}
	return string(decoded)
}

// Known corruption signatures: the GBK rendering of a UTF-8 replacement
// run, and UTF-8 text mis-read as a single-byte encoding.
var corruptionMarkers = []string{
	"�",
	"锟斤拷",
	"Ã©", "Ã¢", "Ã¤", "Ã¼",
	"â€™", "â€œ", "â€",
	"æ", "ç",
}

// looksCorrupted flags decoded text that is likely mojibake: replacement
// characters, known corruption byte renderings, or a high ratio of odd
// non-CJK letters where CJK text was expected.
func looksCorrupted(text string) bool {
	sample := text
	if len(sample) > sampleRunes*4 {
		sample = sample[:sampleRunes*4]
		// Avoid judging a rune the cut split in half.
		for i := 0; i < 3 && len(sample) > 0 && !utf8.RuneStart(sample[len(sample)-1]); i++ {
			sample = sample[:len(sample)-1]
		}
		if len(sample) > 0 && sample[len(sample)-1] >= 0xC0 {
			sample = sample[:len(sample)-1]
		}
	}

	if !utf8.ValidString(sample) {
		return true
	}
	for _, marker := range corruptionMarkers {
		if strings.Contains(sample, marker) {
			return true
		}
	}

	var nonASCII, cjk, weird int
	for _, r := range sample {
		if r < 0x80 {
			continue
		}
		nonASCII++
		if isCJK(r) {
			cjk++
		} else if r >= 0x80 && r <= 0x24F {
			// Latin supplement/extended: the usual residue of decoding
			// multibyte text with a single-byte codec.
			weird++
		}
	}
	if nonASCII < 16 {
		return false
	}
	return float64(weird)/float64(nonASCII) > 0.5 && float64(cjk)/float64(nonASCII) < 0.1
}

func isCJK(r rune) bool {
	switch {
	case r >= 0x4E00 && r <= 0x9FFF: // unified ideographs
		return true
	case r >= 0x3400 && r <= 0x4DBF: // extension A
		return true
	case r >= 0x3000 && r <= 0x303F: // CJK punctuation
		return true
	case r >= 0xFF00 && r <= 0xFFEF: // fullwidth forms
		return true
	}
	return false
}
