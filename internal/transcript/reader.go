package transcript

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"
)

// ReadFile parses a single transcript file into records, in file order.
func ReadFile(path string) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer file.Close()

	var (
		records []Record
		current *Record
		body    []string
	)

	flush := func() {
		if current == nil {
			return
		}
		current.Body = strings.Trim(strings.Join(body, "\n"), "\n")
		if current.Kind == KindSessionStart {
			current.Body = strings.TrimPrefix(current.Body, "Topic: ")
		}
		records = append(records, *current)
		current = nil
		body = nil
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		kind, rest, ok := headerKind(line)
		if ok {
			flush()
			rec, err := parseHeader(kind, rest)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
			}
			current = &rec
			continue
		}

		if current == nil {
			continue
		}
		if current.Kind == KindSessionEnd && line == "---" {
			continue
		}
		body = append(body, unescapeLine(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	flush()

	return records, nil
}

// ReadAll reads the rotated backups of path from oldest to newest followed by
// the active file. Missing files are skipped.
func ReadAll(path string, maxBackups int) ([]Record, error) {
	var records []Record
	for i := maxBackups; i >= 1; i-- {
		backup := BackupPath(path, i)
		if _, err := os.Stat(backup); err != nil {
			continue
		}
		recs, err := ReadFile(backup)
		if err != nil {
			return nil, err
		}
		records = append(records, recs...)
	}

	if _, err := os.Stat(path); err == nil {
		recs, err := ReadFile(path)
		if err != nil {
			return nil, err
		}
		records = append(records, recs...)
	}
	return records, nil
}

// Entries filters records down to turn entries.
func Entries(records []Record) []Record {
	var out []Record
	for _, r := range records {
		if r.Kind == KindEntry {
			out = append(out, r)
		}
	}
	return out
}

func headerKind(line string) (Kind, string, bool) {
	switch {
	case strings.HasPrefix(line, sessionStartPrefix):
		return KindSessionStart, strings.TrimPrefix(line, sessionStartPrefix), true
	case strings.HasPrefix(line, sessionEndPrefix):
		return KindSessionEnd, strings.TrimPrefix(line, sessionEndPrefix), true
	case strings.HasPrefix(line, entryPrefix):
		return KindEntry, strings.TrimPrefix(line, entryPrefix), true
	}
	return "", "", false
}

func parseHeader(kind Kind, rest string) (Record, error) {
	ts, label, found := strings.Cut(rest, fieldSeparator)
	if !found {
		return Record{}, fmt.Errorf("malformed %s header %q", kind, rest)
	}
	at, err := time.Parse(TimeLayout, ts)
	if err != nil {
		return Record{}, fmt.Errorf("malformed timestamp %q: %w", ts, err)
	}
	return Record{Kind: kind, Timestamp: at, Label: label}, nil
}
