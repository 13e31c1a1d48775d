package rewrite

import (
	"strconv"
	"strings"
)

// Placeholder delimiters. They are private-use runes, so they never occur
// in real source and no rule pattern matches them as word characters.
const (
	maskOpen  = '\uE000'
	maskClose = '\uE001'
)

// masked is source text whose string literal contents and comment text
// were replaced by numbered placeholders.
type masked struct {
	text    string
	strings []string
}

// mask replaces the contents of every string literal and the text of every
// // comment in src with a placeholder. The quotes and the comment marker
// stay, so rules still see a string literal or a comment. Unterminated
// strings run to the end of their line.
func mask(src string) masked {
	var b strings.Builder
	var lits []string
	for i := 0; i < len(src); {
		c := src[i]
		if c == '/' && i+1 < len(src) && src[i+1] == '/' {
			end := strings.IndexByte(src[i:], '\n')
			if end < 0 {
				end = len(src) - i
			}
			b.WriteString("//")
			writePlaceholder(&b, len(lits))
			lits = append(lits, src[i+2:i+end])
			i += end
			continue
		}
		if c != '"' {
			b.WriteByte(c)
			i++
			continue
		}

		j := i + 1
		for j < len(src) && src[j] != '"' && src[j] != '\n' {
			if src[j] == '\\' && j+1 < len(src) && src[j+1] != '\n' {
				j++
			}
			j++
		}
		b.WriteByte('"')
		writePlaceholder(&b, len(lits))
		lits = append(lits, src[i+1:j])
		if j < len(src) && src[j] == '"' {
			b.WriteByte('"')
			j++
		}
		i = j
	}
	return masked{text: b.String(), strings: lits}
}

func writePlaceholder(b *strings.Builder, n int) {
	b.WriteRune(maskOpen)
	b.WriteString(strconv.Itoa(n))
	b.WriteRune(maskClose)
}

// restore puts the masked string contents and comments back into text.
func (m masked) restore(text string) string {
	if len(m.strings) == 0 {
		return text
	}
	var b strings.Builder
	for {
		start := strings.IndexRune(text, maskOpen)
		if start < 0 {
			b.WriteString(text)
			return b.String()
		}
		end := strings.IndexRune(text[start:], maskClose)
		if end < 0 {
			b.WriteString(text)
			return b.String()
		}
		end += start
		n, err := strconv.Atoi(text[start+len(string(maskOpen)) : end])
		b.WriteString(text[:start])
		if err != nil || n < 0 || n >= len(m.strings) {
			b.WriteString(text[start : end+len(string(maskClose))])
		} else {
			b.WriteString(m.strings[n])
		}
		text = text[end+len(string(maskClose)):]
	}
}
