package label

import (
	"math"
	"math/big"
	"strconv"
	"strings"
	"unicode"

	"github.com/zheng/pyflow/internal/syntax"
)

// Repr renders a literal the way Python's repr() prints its value, so
// 0x10 shows as 16 and "it's" as "it's" in double quotes. Literals that
// cannot be evaluated statically (f-strings) keep their source text.
func Repr(c *syntax.Constant) string {
	switch c.Value {
	case syntax.ConstNone:
		return "None"
	case syntax.ConstBool:
		return c.Raw
	case syntax.ConstEllipsis:
		return "Ellipsis"
	case syntax.ConstInt:
		n, ok := new(big.Int).SetString(strings.ReplaceAll(c.Raw, "_", ""), 0)
		if !ok {
			return c.Raw
		}
		return n.String()
	case syntax.ConstFloat:
		f, err := strconv.ParseFloat(strings.ReplaceAll(c.Raw, "_", ""), 64)
		if err != nil {
			return c.Raw
		}
		return pyFloat(f)
	case syntax.ConstComplex:
		raw := strings.TrimRight(strings.ReplaceAll(c.Raw, "_", ""), "jJ")
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return c.Raw
		}
		return strings.TrimSuffix(pyFloat(f), ".0") + "j"
	case syntax.ConstString, syntax.ConstBytes:
		value, ok := decodeLiteral(c.Raw)
		if !ok {
			return c.Raw
		}
		return quote(value, c.Value == syntax.ConstBytes)
	}
	return c.Raw
}

// pyFloat formats f like Python's float repr: shortest round-trip digits,
// always with a fractional part or exponent.
func pyFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// decodeLiteral evaluates a string or bytes literal, including implicitly
// concatenated pieces. It reports false for f-strings and malformed input.
func decodeLiteral(raw string) ([]rune, bool) {
	var out []rune
	i := 0
	for i < len(raw) {
		switch raw[i] {
		case ' ', '\t', '\n', '\r', '\\', '(', ')':
			i++
			continue
		}
		start := i
		for i < len(raw) && (raw[i] >= 'a' && raw[i] <= 'z' || raw[i] >= 'A' && raw[i] <= 'Z') {
			i++
		}
		prefix := strings.ToLower(raw[start:i])
		if strings.Contains(prefix, "f") || i >= len(raw) {
			return nil, false
		}
		q := raw[i]
		if q != '\'' && q != '"' {
			return nil, false
		}
		delim := string(q)
		if strings.HasPrefix(raw[i:], strings.Repeat(delim, 3)) {
			delim = strings.Repeat(delim, 3)
		}
		i += len(delim)
		bodyStart := i
		for {
			if i >= len(raw) {
				return nil, false
			}
			if raw[i] == '\\' {
				i += 2
				continue
			}
			if strings.HasPrefix(raw[i:], delim) {
				break
			}
			i++
		}
		body := raw[bodyStart:i]
		i += len(delim)
		if strings.Contains(prefix, "r") {
			out = append(out, []rune(body)...)
			continue
		}
		out = append(out, unescape(body, strings.Contains(prefix, "b"))...)
	}
	return out, true
}

var simpleEscapes = map[byte]rune{
	'\\': '\\', '\'': '\'', '"': '"',
	'a': '\a', 'b': '\b', 'f': '\f', 'n': '\n', 'r': '\r', 't': '\t', 'v': '\v',
}

func unescape(body string, bytes bool) []rune {
	var out []rune
	for i := 0; i < len(body); {
		if body[i] != '\\' || i+1 >= len(body) {
			r, size := rune(body[i]), 1
			if !bytes {
				r, size = decodeRune(body[i:])
			}
			out = append(out, r)
			i += size
			continue
		}
		c := body[i+1]
		if r, ok := simpleEscapes[c]; ok {
			out = append(out, r)
			i += 2
			continue
		}
		switch {
		case c == '\n':
			i += 2
		case c >= '0' && c <= '7':
			j := i + 1
			for j < len(body) && j < i+4 && body[j] >= '0' && body[j] <= '7' {
				j++
			}
			v, _ := strconv.ParseUint(body[i+1:j], 8, 32)
			out = append(out, rune(v))
			i = j
		case c == 'x' || (!bytes && (c == 'u' || c == 'U')):
			width := map[byte]int{'x': 2, 'u': 4, 'U': 8}[c]
			if i+2+width > len(body) {
				out = append(out, '\\')
				i++
				continue
			}
			v, err := strconv.ParseUint(body[i+2:i+2+width], 16, 32)
			if err != nil {
				out = append(out, '\\')
				i++
				continue
			}
			out = append(out, rune(v))
			i += 2 + width
		default:
			out = append(out, '\\')
			i++
		}
	}
	return out
}

func decodeRune(s string) (rune, int) {
	for _, r := range s {
		return r, len(string(r))
	}
	return 0, 1
}

// quote renders decoded text with Python's quoting rules: single quotes
// unless the text contains a single quote and no double quote.
func quote(value []rune, bytes bool) string {
	q := '\''
	if containsRune(value, '\'') && !containsRune(value, '"') {
		q = '"'
	}
	var b strings.Builder
	if bytes {
		b.WriteByte('b')
	}
	b.WriteRune(q)
	for _, r := range value {
		switch {
		case r == q || r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r < 0x20 || r == 0x7f || (bytes && r > 0x7f):
			b.WriteString(`\x` + hex(r, 2))
		case !bytes && !unicode.IsPrint(r):
			switch {
			case r < 0x100:
				b.WriteString(`\x` + hex(r, 2))
			case r < 0x10000:
				b.WriteString(`\u` + hex(r, 4))
			default:
				b.WriteString(`\U` + hex(r, 8))
			}
		default:
			b.WriteRune(r)
		}
	}
	b.WriteRune(q)
	return b.String()
}

func containsRune(rs []rune, want rune) bool {
	for _, r := range rs {
		if r == want {
			return true
		}
	}
	return false
}

func hex(r rune, width int) string {
	s := strconv.FormatInt(int64(r), 16)
	return strings.Repeat("0", width-len(s)) + s
}
