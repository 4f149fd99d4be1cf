package itcl

import (
	"fmt"
	"strings"
)

// SplitList splits a host list string into elements. Elements are separated by
// whitespace and may be grouped with balanced braces or double quotes. Outside
// braces a backslash escapes the next character.
func SplitList(s string) ([]string, error) {
	var out []string
	i := 0
	for {
		for i < len(s) && isListSpace(s[i]) {
			i++
		}
		if i >= len(s) {
			return out, nil
		}
		switch s[i] {
		case '{':
			depth := 1
			start := i + 1
			j := start
			for ; j < len(s) && depth > 0; j++ {
				switch s[j] {
				case '\\':
					j++
				case '{':
					depth++
				case '}':
					depth--
				}
			}
			if depth != 0 {
				return nil, fmt.Errorf("unmatched open brace in list %q", s)
			}
			if j < len(s) && !isListSpace(s[j]) {
				return nil, fmt.Errorf("list element in braces followed by %q instead of space", s[j:j+1])
			}
			out = append(out, s[start:j-1])
			i = j
		case '"':
			var b strings.Builder
			j := i + 1
			for j < len(s) && s[j] != '"' {
				if s[j] == '\\' && j+1 < len(s) {
					j++
					b.WriteByte(unescapeListChar(s[j]))
				} else {
					b.WriteByte(s[j])
				}
				j++
			}
			if j >= len(s) {
				return nil, fmt.Errorf("unmatched open quote in list %q", s)
			}
			out = append(out, b.String())
			i = j + 1
		default:
			var b strings.Builder
			for i < len(s) && !isListSpace(s[i]) {
				if s[i] == '\\' && i+1 < len(s) {
					i++
					b.WriteByte(unescapeListChar(s[i]))
				} else {
					b.WriteByte(s[i])
				}
				i++
			}
			out = append(out, b.String())
		}
	}
}

// JoinList is the inverse of SplitList. Elements that need quoting are
// braced when their braces balance, and backslash-escaped otherwise.
func JoinList(elems []string) string {
	parts := make([]string, len(elems))
	for i, e := range elems {
		switch {
		case e == "":
			parts[i] = "{}"
		case !strings.ContainsAny(e, " \t\n\r{}\"\\"):
			parts[i] = e
		case braceable(e):
			parts[i] = "{" + e + "}"
		default:
			parts[i] = escapeListElement(e)
		}
	}
	return strings.Join(parts, " ")
}

// braceable reports whether e reads back unchanged from inside braces.
func braceable(e string) bool {
	depth := 0
	for i := 0; i < len(e); i++ {
		switch e[i] {
		case '\\':
			if i == len(e)-1 {
				return false
			}
			i++
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}

func escapeListElement(e string) string {
	var b strings.Builder
	for i := 0; i < len(e); i++ {
		switch c := e[i]; c {
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		case ' ', '{', '}', '"', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func unescapeListChar(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	}
	return c
}

func isListSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
