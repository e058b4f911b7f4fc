package decode

import (
	"bytes"
	"strings"
)

// parseFieldMap extracts a {...}-delimited textual field map embedded in a
// frame by an earlier best-effort extraction stage. The body must be
// printable; binary data that happens to contain braces is rejected so it
// falls through to the raw dump.
func parseFieldMap(frame []byte) map[string]string {
	open := bytes.IndexByte(frame, '{')
	if open < 0 {
		return nil
	}
	length := bytes.IndexByte(frame[open:], '}')
	if length < 0 {
		return nil
	}
	body := frame[open+1 : open+length]
	for _, b := range body {
		if b < 0x20 || b > 0x7E {
			return nil
		}
	}

	fields := make(map[string]string)
	for _, pair := range strings.Split(string(body), ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value := pair, ""
		if i := strings.IndexAny(pair, ":="); i >= 0 {
			key, value = pair[:i], pair[i+1:]
		}
		key = trimFieldToken(key)
		if key == "" {
			continue
		}
		fields[key] = trimFieldToken(value)
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func trimFieldToken(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"'`)
}
