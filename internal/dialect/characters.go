package dialect

import (
	"strconv"
	"strings"
)

// Characters describes the lexical conventions of a backend: identifier
// delimiters, statement separator and parameter placeholders.
type Characters struct {
	LeftDelimiter      string
	RightDelimiter     string
	StatementSeparator string

	// ParameterPrefix is the placeholder ("?") or the prefix of a numbered
	// placeholder ("$", "@p").
	ParameterPrefix string

	// Numbered placeholders carry their position: FirstParameter is the
	// number of the first argument.
	Numbered       bool
	FirstParameter int
}

// ParameterName returns the placeholder for the zero-based argument position.
func (c Characters) ParameterName(position int) string {
	if !c.Numbered {
		return c.ParameterPrefix
	}
	return c.ParameterPrefix + strconv.Itoa(c.FirstParameter+position)
}

// Escape delimits an identifier. Dotted names are escaped part by part and
// already-delimited parts are left alone.
func (c Characters) Escape(identifier string) string {
	parts := strings.Split(identifier, ".")
	for i, p := range parts {
		if p == "*" || (strings.HasPrefix(p, c.LeftDelimiter) && strings.HasSuffix(p, c.RightDelimiter)) {
			continue
		}
		parts[i] = c.LeftDelimiter + p + c.RightDelimiter
	}
	return strings.Join(parts, ".")
}

// renumber shifts every numbered placeholder in text by offset. Text inside
// string literals, quoted identifiers and comments is copied untouched.
func (c Characters) renumber(text string, offset int) string {
	if !c.Numbered || offset == 0 {
		return text
	}
	out, _ := c.scanPlaceholders(text, func(n int) string {
		return c.ParameterPrefix + strconv.Itoa(n+offset)
	})
	return out
}

// placeholderCount returns how many placeholders text contains.
func (c Characters) placeholderCount(text string) int {
	_, n := c.scanPlaceholders(text, nil)
	return n
}

// scanPlaceholders walks text and calls replace for each placeholder outside
// quotes and comments. For unnumbered placeholders replace receives -1. A nil replace
// leaves text unchanged and only counts.
func (c Characters) scanPlaceholders(text string, replace func(n int) string) (string, int) {
	var sb strings.Builder
	sb.Grow(len(text))
	count := 0
	prefix := c.ParameterPrefix

	for i := 0; i < len(text); i++ {
		ch := text[i]
		if closer, ok := c.quoteCloser(ch); ok {
			end := skipQuoted(text, i, closer)
			sb.WriteString(text[i : end+1])
			i = end
			continue
		}
		if end, ok := skipComment(text, i); ok {
			sb.WriteString(text[i : end+1])
			i = end
			continue
		}

		if prefix == "" || !strings.HasPrefix(text[i:], prefix) {
			sb.WriteByte(ch)
			continue
		}

		if !c.Numbered {
			count++
			if replace != nil {
				sb.WriteString(replace(-1))
			} else {
				sb.WriteString(prefix)
			}
			i += len(prefix) - 1
			continue
		}

		start := i + len(prefix)
		end := start
		for end < len(text) && text[end] >= '0' && text[end] <= '9' {
			end++
		}
		if end == start || (i > 0 && isIdentChar(text[i-1])) {
			sb.WriteByte(ch)
			continue
		}

		count++
		n, _ := strconv.Atoi(text[start:end])
		if replace != nil {
			sb.WriteString(replace(n))
		} else {
			sb.WriteString(text[i:end])
		}
		i = end - 1
	}

	return sb.String(), count
}

// quoteCloser reports whether ch opens a literal or quoted identifier and
// returns the closing character. Brackets only quote when the backend uses
// them as identifier delimiters.
func (c Characters) quoteCloser(ch byte) (byte, bool) {
	switch ch {
	case '\'', '"', '`':
		return ch, true
	case '[':
		if c.LeftDelimiter == "[" {
			return ']', true
		}
	}
	return 0, false
}

// skipQuoted returns the index of the quote closing the one at text[start].
// Doubled quotes inside the literal are treated as escapes.
func skipQuoted(text string, start int, closer byte) int {
	for j := start + 1; j < len(text); j++ {
		if text[j] != closer {
			continue
		}
		if closer != ']' && j+1 < len(text) && text[j+1] == closer {
			j++
			continue
		}
		return j
	}
	return len(text) - 1
}

// skipComment reports whether a "--" or "/* */" comment starts at
// text[start] and returns the index of its last byte. A line comment ends
// before its newline; an unterminated comment runs to the end of text.
func skipComment(text string, start int) (int, bool) {
	switch {
	case strings.HasPrefix(text[start:], "--"):
		if nl := strings.IndexByte(text[start:], '\n'); nl >= 0 {
			return start + nl - 1, true
		}
		return len(text) - 1, true
	case strings.HasPrefix(text[start:], "/*"):
		if end := strings.Index(text[start+2:], "*/"); end >= 0 {
			return start + 2 + end + 1, true
		}
		return len(text) - 1, true
	}
	return 0, false
}

func isIdentChar(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')
}
