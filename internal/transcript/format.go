package transcript

import (
	"strings"
	"time"
	"unicode"
)

// TimeLayout is the human-readable timestamp format used in transcripts.
const TimeLayout = "2006-01-02 15:04:05.000 MST"

const (
	sessionStartPrefix = "## Session started | "
	sessionEndPrefix   = "## Session ended | "
	entryPrefix        = "### "
	fieldSeparator     = " | "
)

// Kind distinguishes the records of a transcript.
type Kind string

const (
	KindSessionStart Kind = "session_start"
	KindEntry        Kind = "entry"
	KindSessionEnd   Kind = "session_end"
)

// Record is one parsed block of a transcript file.
type Record struct {
	Kind      Kind
	Timestamp time.Time
	// Label is the session id for start markers, the speaker label for
	// entries and the terminal status for end markers.
	Label string
	Body  string
}

func formatStart(at time.Time, sessionID, topic string) []byte {
	var b strings.Builder
	b.WriteString(sessionStartPrefix)
	b.WriteString(at.Format(TimeLayout))
	b.WriteString(fieldSeparator)
	b.WriteString(headerField(sessionID))
	b.WriteString("\n\n")
	if topic != "" {
		b.WriteString(escapeBody("Topic: " + topic))
		b.WriteString("\n\n")
	}
	return []byte(b.String())
}

func formatEntry(at time.Time, label, text string) []byte {
	var b strings.Builder
	b.WriteString(entryPrefix)
	b.WriteString(at.Format(TimeLayout))
	b.WriteString(fieldSeparator)
	b.WriteString(headerField(label))
	b.WriteString("\n\n")
	b.WriteString(escapeBody(text))
	b.WriteString("\n\n")
	return []byte(b.String())
}

func formatEnd(at time.Time, status, reason string) []byte {
	var b strings.Builder
	b.WriteString(sessionEndPrefix)
	b.WriteString(at.Format(TimeLayout))
	b.WriteString(fieldSeparator)
	b.WriteString(status)
	b.WriteString("\n\n")
	if reason != "" {
		b.WriteString(escapeBody(reason))
		b.WriteString("\n\n")
	}
	b.WriteString("---\n\n")
	return []byte(b.String())
}

// headerField keeps a header value on one line.
func headerField(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
}

// escapeBody keeps body lines from being read back as headers. Lines that
// start with '#' or '\' get a leading backslash.
func escapeBody(text string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, "#") || strings.HasPrefix(line, `\`) {
			lines[i] = `\` + line
		}
	}
	return strings.Join(lines, "\n")
}

func unescapeLine(line string) string {
	if strings.HasPrefix(line, `\`) {
		return line[1:]
	}
	return line
}
