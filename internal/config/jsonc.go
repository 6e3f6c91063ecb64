package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type scanMode int

const (
	scanCode scanMode = iota
	scanString
	scanLineComment
	scanBlockComment
)

// normalizeJSONC blanks comments and drops trailing commas so encoding/json can
// decode the result. Byte offsets are preserved for comment removal so decode
// errors still point at the right line.
func normalizeJSONC(content string) (string, error) {
	var out strings.Builder
	out.Grow(len(content))

	mode := scanCode
	escaped := false
	for i := 0; i < len(content); i++ {
		ch := content[i]
		switch mode {
		case scanString:
			out.WriteByte(ch)
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				mode = scanCode
			}
		case scanLineComment:
			if ch == '\n' || ch == '\r' {
				mode = scanCode
				out.WriteByte(ch)
				continue
			}
			out.WriteByte(' ')
		case scanBlockComment:
			if ch == '*' && i+1 < len(content) && content[i+1] == '/' {
				mode = scanCode
				out.WriteString("  ")
				i++
				continue
			}
			if ch == '\n' || ch == '\r' || ch == '\t' {
				out.WriteByte(ch)
				continue
			}
			out.WriteByte(' ')
		default:
			if ch == '"' {
				mode = scanString
				out.WriteByte(ch)
				continue
			}
			if ch == '/' && i+1 < len(content) && (content[i+1] == '/' || content[i+1] == '*') {
				mode = scanLineComment
				if content[i+1] == '*' {
					mode = scanBlockComment
				}
				out.WriteString("  ")
				i++
				continue
			}
			out.WriteByte(ch)
		}
	}

	if mode == scanBlockComment {
		return "", fmt.Errorf("unterminated block comment in JSONC")
	}
	return dropTrailingCommas(out.String()), nil
}

func dropTrailingCommas(content string) string {
	var out strings.Builder
	out.Grow(len(content))

	inString, escaped := false, false
	for i := 0; i < len(content); i++ {
		ch := content[i]
		if inString {
			out.WriteByte(ch)
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		if ch == '"' {
			inString = true
		}
		if ch == ',' {
			rest := strings.TrimLeft(content[i+1:], " \t\r\n")
			if strings.HasPrefix(rest, "}") || strings.HasPrefix(rest, "]") {
				continue
			}
		}
		out.WriteByte(ch)
	}
	return out.String()
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra struct{}
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("multiple JSON values are not allowed")
	}
	return err
}

func wrapJSONDecodeError(content string, err error) error {
	var offset int64 = -1

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	}
	if offset < 0 {
		return err
	}

	line, col := offsetToLineCol(content, offset)
	return fmt.Errorf("line %d column %d: %w", line, col, err)
}

func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}
	limit := int(offset)
	if limit > len(content) {
		limit = len(content)
	}

	prefix := content[:limit-1]
	line := strings.Count(prefix, "\n") + 1
	col := len(prefix) - strings.LastIndex(prefix, "\n")
	return line, col
}
