package marker

import (
	"errors"
	"fmt"
	"strings"
)

var errUnterminated = errors.New("marker: unterminated list literal")

// encodeList renders paths as a bracketed list of single-quoted strings,
// e.g. ['a/b.jpeg', 'c/d.jpeg'].
func encodeList(items []string) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('\'')
		for _, r := range item {
			switch r {
			case '\\':
				b.WriteString(`\\`)
			case '\'':
				b.WriteString(`\'`)
			case '\n':
				b.WriteString(`\n`)
			case '\r':
				b.WriteString(`\r`)
			case '\t':
				b.WriteString(`\t`)
			default:
				b.WriteRune(r)
			}
		}
		b.WriteByte('\'')
	}
	b.WriteByte(']')
	return b.String()
}

// parseList reads a list literal of quoted strings from the start of s
// (leading whitespace allowed) and ignores anything after the closing bracket.
func parseList(s string) ([]string, error) {
	p := listParser{src: []rune(s)}
	p.skipSpace()
	if !p.consume('[') {
		return nil, errors.New("marker: list literal must start with '['")
	}

	items := []string{}
	for {
		p.skipSpace()
		if p.eof() {
			return nil, errUnterminated
		}
		if p.consume(']') {
			return items, nil
		}
		item, err := p.quoted()
		if err != nil {
			return nil, err
		}
		items = append(items, item)

		p.skipSpace()
		if p.consume(',') {
			continue
		}
		if p.consume(']') {
			return items, nil
		}
		if p.eof() {
			return nil, errUnterminated
		}
		return nil, fmt.Errorf("marker: unexpected %q in list literal", p.src[p.pos])
	}
}

type listParser struct {
	src []rune
	pos int
}

func (p *listParser) eof() bool { return p.pos >= len(p.src) }

func (p *listParser) skipSpace() {
	for !p.eof() {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *listParser) consume(r rune) bool {
	if !p.eof() && p.src[p.pos] == r {
		p.pos++
		return true
	}
	return false
}

func (p *listParser) quoted() (string, error) {
	if p.eof() {
		return "", errUnterminated
	}
	quote := p.src[p.pos]
	if quote != '\'' && quote != '"' {
		return "", fmt.Errorf("marker: expected quoted string, got %q", quote)
	}
	p.pos++

	var b strings.Builder
	for !p.eof() {
		r := p.src[p.pos]
		p.pos++
		switch {
		case r == quote:
			return b.String(), nil
		case r == '\\':
			if p.eof() {
				return "", errUnterminated
			}
			esc := p.src[p.pos]
			p.pos++
			switch esc {
			case '\\', '\'', '"':
				b.WriteRune(esc)
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteRune('\\')
				b.WriteRune(esc)
			}
		default:
			b.WriteRune(r)
		}
	}
	return "", errUnterminated
}
