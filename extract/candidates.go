package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"regexp"
	"strings"
)

var (
	// fencePattern matches markdown code fences with an optional language tag.
	fencePattern = regexp.MustCompile("(?s)```[A-Za-z]*[ \\t]*\\r?\\n?(.*?)```")
	// trailingCommaPattern matches trailing commas before ] or }.
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// maxScanStarts caps how many opening delimiters the balanced scan tries.
const maxScanStarts = 256

// candidates returns the texts to try, in priority order: the whole output,
// the first open through the last close delimiter, fenced blocks, then every
// balanced top-level span.
func candidates(raw string, open, close byte) []string {
	trimmed := strings.TrimSpace(raw)
	out := []string{trimmed}

	start := strings.IndexByte(trimmed, open)
	end := strings.LastIndexByte(trimmed, close)
	if start >= 0 && end > start {
		out = append(out, trimmed[start:end+1])
	}

	for _, m := range fencePattern.FindAllStringSubmatch(raw, -1) {
		out = append(out, strings.TrimSpace(m[1]))
	}

	return append(out, balancedSpans(trimmed, open, close)...)
}

// balancedSpans returns top-level spans whose delimiters balance, skipping
// delimiters inside JSON strings. A span that never closes is abandoned and
// the scan resumes at the next opening delimiter.
func balancedSpans(s string, open, close byte) []string {
	var spans []string
	starts := 0
	for i := 0; i < len(s) && starts < maxScanStarts; i++ {
		if s[i] != open {
			continue
		}
		starts++
		end := matchDelimiter(s, i, open, close)
		if end < 0 {
			continue
		}
		spans = append(spans, s[i:end+1])
		i = end
	}
	return spans
}

func matchDelimiter(s string, start int, open, close byte) int {
	depth := 0
	inString := false
	escaped := false
	for j := start; j < len(s); j++ {
		ch := s[j]
		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch ch {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

// firstValue decodes candidates in order, each as-is and then cleaned,
// returning the first value accept approves.
func firstValue(cands []string, accept func(any) bool) (any, bool) {
	seen := make(map[string]bool, len(cands)*2)
	for _, c := range cands {
		for _, text := range []string{c, cleanJSON(c)} {
			if text == "" || seen[text] {
				continue
			}
			seen[text] = true
			v, err := decode(text)
			if err == nil && accept(v) {
				return v, true
			}
		}
	}
	return nil, false
}

// decode parses exactly one JSON value, keeping numbers as json.Number.
func decode(text string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after JSON value")
	}
	return v, nil
}

// cleanJSON removes // comments outside strings and trailing commas.
func cleanJSON(raw string) string {
	if !strings.Contains(raw, "//") && !trailingCommaPattern.MatchString(raw) {
		return raw
	}
	lines := strings.Split(raw, "\n")
	var buf bytes.Buffer
	for i, line := range lines {
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(stripLineComment(line))
	}
	return trailingCommaPattern.ReplaceAllString(buf.String(), "$1")
}

// stripLineComment removes a // comment from a JSON line, respecting string
// values such as URLs.
func stripLineComment(line string) string {
	if !strings.Contains(line, "//") {
		return line
	}
	inString := false
	escaped := false
	for i := 0; i < len(line); i++ {
		ch := line[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if !inString && ch == '/' && i+1 < len(line) && line[i+1] == '/' {
			return strings.TrimRight(line[:i], " \t")
		}
	}
	return line
}

func isObject(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}
