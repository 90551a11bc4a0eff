package readiness

import (
	"strconv"
	"strings"
	"time"
)

// emailRow is the normalized view of one fetched email record.
type emailRow struct {
	From    string
	Subject string
	Snippet string
	Body    string
	Date    time.Time
	hasDate bool
}

// dateLayouts are tried in order when parsing string dates. RFC 2822 variants
// cover raw provider headers; RFC 3339 covers pre-flattened rows.
var dateLayouts = []string{
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 -0700",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// normalizeEmailRow recognizes either a pre-flattened row (from/subject/
// snippet/body/date fields) or a raw provider payload carrying header arrays,
// and extracts the fields the gate filters on. Unrecognized rows normalize to
// an empty record.
func normalizeEmailRow(row any) emailRow {
	m, ok := row.(map[string]any)
	if !ok {
		return emailRow{}
	}
	out := emailRow{
		From:    stringField(m, "from"),
		Subject: stringField(m, "subject"),
		Snippet: stringField(m, "snippet"),
		Body:    stringField(m, "body"),
	}
	if date, ok := parseDate(m["date"]); ok {
		out.Date, out.hasDate = date, true
	}

	// Raw provider payload: headers live under payload.headers as
	// {name, value} pairs, the snippet at the top level, and the internal
	// timestamp as epoch milliseconds.
	if payload, ok := m["payload"].(map[string]any); ok {
		if headers, ok := payload["headers"].([]any); ok {
			for _, h := range headers {
				header, ok := h.(map[string]any)
				if !ok {
					continue
				}
				name := strings.ToLower(stringField(header, "name"))
				value := stringField(header, "value")
				switch name {
				case "from":
					if out.From == "" {
						out.From = value
					}
				case "subject":
					if out.Subject == "" {
						out.Subject = value
					}
				case "date":
					if !out.hasDate {
						if date, ok := parseDate(value); ok {
							out.Date, out.hasDate = date, true
						}
					}
				}
			}
		}
	}
	if !out.hasDate {
		if date, ok := parseDate(m["internalDate"]); ok {
			out.Date, out.hasDate = date, true
		}
	}
	return out
}

// withinWindow reports whether the row's date falls inside [now-window, now].
// Rows with no parseable date cannot be verified and count as outside.
func (e emailRow) withinWindow(now time.Time, window time.Duration) bool {
	if !e.hasDate {
		return false
	}
	return !e.Date.Before(now.Add(-window))
}

// matchesKeyword reports a case-insensitive substring match against the
// row's subject, snippet, or body.
func (e emailRow) matchesKeyword(keyword string) bool {
	needle := strings.ToLower(strings.TrimSpace(keyword))
	if needle == "" {
		return true
	}
	for _, haystack := range []string{e.Subject, e.Snippet, e.Body} {
		if strings.Contains(strings.ToLower(haystack), needle) {
			return true
		}
	}
	return false
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// parseDate accepts string dates in common layouts, epoch milliseconds as a
// string or number, and time.Time values.
func parseDate(v any) (time.Time, bool) {
	switch d := v.(type) {
	case time.Time:
		return d, true
	case string:
		trimmed := strings.TrimSpace(d)
		if trimmed == "" {
			return time.Time{}, false
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, trimmed); err == nil {
				return t, true
			}
		}
		if ms, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return time.UnixMilli(ms), true
		}
	case float64:
		return time.UnixMilli(int64(d)), true
	case int64:
		return time.UnixMilli(d), true
	case int:
		return time.UnixMilli(int64(d)), true
	}
	return time.Time{}, false
}
