package proxy

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// bodySnippetLimit bounds how much body content crosses the trust boundary.
// The snippet only feeds lightweight SPA-shell heuristics downstream.
const bodySnippetLimit = 1024

// jsonLDType is the one script type preserved during head extraction. These
// blocks carry structured data consumed downstream, not executable code.
const jsonLDType = "application/ld+json"

var scriptTypeAttr = regexp.MustCompile(`(?i)\btype\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s>]+))`)

// ExtractHead returns the first <head>...</head> region with every
// executable <script> element removed. Tag matching is case-insensitive.
// Input without a <head> tag is treated as a head-only fragment and
// sanitized whole. Malformed markup yields a best-effort partial result,
// never an error.
func ExtractHead(html string) string {
	lower := asciiLower(html)

	start, end := 0, len(html)
	if open := findTag(lower, "<head", 0); open >= 0 {
		gt := strings.IndexByte(html[open:], '>')
		if gt < 0 {
			return ""
		}
		start = open + gt + 1
		if close := strings.Index(lower[start:], "</head"); close >= 0 {
			end = start + close
		}
	}
	return stripScripts(html[start:end], lower[start:end])
}

// ExtractBodySnippet returns the first ~1KB of content following the head
// region (or the <body> tag when present). Head-only fragments yield an
// empty snippet.
func ExtractBodySnippet(html string) string {
	lower := asciiLower(html)

	rest := ""
	if open := findTag(lower, "<body", 0); open >= 0 {
		if gt := strings.IndexByte(html[open:], '>'); gt >= 0 {
			rest = html[open+gt+1:]
		}
	} else if close := strings.Index(lower, "</head"); close >= 0 {
		if gt := strings.IndexByte(html[close:], '>'); gt >= 0 {
			rest = html[close+gt+1:]
		}
	}
	return truncateUTF8(strings.TrimSpace(rest), bodySnippetLimit)
}

// stripScripts removes every <script> element whose type attribute is not
// exactly application/ld+json. Preserved blocks are copied verbatim, byte
// for byte. lower must be the ASCII-lowered form of s.
func stripScripts(s, lower string) string {
	var b strings.Builder
	b.Grow(len(s))

	i := 0
	for {
		j := strings.Index(lower[i:], "<script")
		if j < 0 {
			b.WriteString(s[i:])
			break
		}
		j += i
		if after := j + len("<script"); after < len(s) && !isTagBoundary(lower[after]) {
			// Not a script tag (e.g. a hypothetical <scripting> element).
			b.WriteString(s[i : after+1])
			i = after + 1
			continue
		}

		openEnd := strings.IndexByte(s[j:], '>')
		if openEnd < 0 {
			// Truncated open tag: drop the remainder rather than pass
			// through half an executable element.
			b.WriteString(s[i:j])
			break
		}
		openEnd = j + openEnd + 1

		elemEnd := len(s)
		if close := strings.Index(lower[openEnd:], "</script"); close >= 0 {
			ce := openEnd + close
			if gt := strings.IndexByte(s[ce:], '>'); gt >= 0 {
				elemEnd = ce + gt + 1
			}
		}

		b.WriteString(s[i:j])
		if scriptType(s[j:openEnd]) == jsonLDType {
			b.WriteString(s[j:elemEnd])
		}
		i = elemEnd
	}
	return b.String()
}

// scriptType extracts the type attribute value from a script open tag.
func scriptType(openTag string) string {
	m := scriptTypeAttr.FindStringSubmatch(openTag)
	if m == nil {
		return ""
	}
	for _, group := range m[1:] {
		if group != "" {
			return strings.TrimSpace(group)
		}
	}
	return ""
}

// findTag locates an open tag by name, requiring a boundary character after
// it so "<head" never matches "<header".
func findTag(lower, tag string, from int) int {
	for {
		i := strings.Index(lower[from:], tag)
		if i < 0 {
			return -1
		}
		i += from
		after := i + len(tag)
		if after >= len(lower) || isTagBoundary(lower[after]) {
			return i
		}
		from = after
	}
}

func isTagBoundary(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '/', '>':
		return true
	}
	return false
}

// asciiLower lowercases ASCII letters only, preserving byte offsets into the
// original string (full Unicode lowering can change byte lengths).
func asciiLower(s string) string {
	hasUpper := false
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			hasUpper = true
			break
		}
	}
	if !hasUpper {
		return s
	}
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
