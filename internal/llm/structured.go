package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Validator checks a decoded payload. Returns nil if valid.
type Validator[T any] func(T) error

// DecodeStructured pulls the first JSON object out of model output and
// decodes it into T. Markdown fences, surrounding prose and line or block
// comments are tolerated. Every failure wraps ErrResponseDecode.
func DecodeStructured[T any](content string, validate Validator[T]) (T, error) {
	var zero T

	block := firstObject(content)
	if block == "" {
		return zero, fmt.Errorf("%w: no JSON object in response", ErrResponseDecode)
	}
	block = stripComments(block)

	var out T
	dec := json.NewDecoder(strings.NewReader(block))
	if err := dec.Decode(&out); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrResponseDecode, err)
	}

	if validate != nil {
		if err := validate(out); err != nil {
			return zero, fmt.Errorf("%w: validation failed: %v", ErrResponseDecode, err)
		}
	}
	return out, nil
}

// firstObject returns the first balanced {...} span, ignoring braces inside
// string literals. Code fence markers fall outside the span on their own.
func firstObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	var st stringState
	for i := start; i < len(s); i++ {
		if st.step(s[i]) {
			continue
		}
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// stripComments drops // and /* */ comments outside string literals.
func stripComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	var st stringState
	for i := 0; i < len(s); i++ {
		c := s[i]
		if st.step(c) {
			b.WriteByte(c)
			continue
		}
		if c == '/' && i+1 < len(s) {
			switch s[i+1] {
			case '/':
				for i < len(s) && s[i] != '\n' {
					i++
				}
				if i < len(s) {
					b.WriteByte('\n')
				}
				continue
			case '*':
				end := strings.Index(s[i+2:], "*/")
				if end < 0 {
					return b.String()
				}
				i += end + 3
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// stringState tracks whether a byte scan is inside a JSON string literal.
type stringState struct {
	inString bool
	escaped  bool
}

// step consumes c and reports whether it belongs to a string literal,
// including the quotes themselves.
func (st *stringState) step(c byte) bool {
	switch {
	case st.escaped:
		st.escaped = false
		return true
	case st.inString && c == '\\':
		st.escaped = true
		return true
	case c == '"':
		st.inString = !st.inString
		return true
	default:
		return st.inString
	}
}
