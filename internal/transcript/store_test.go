package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/persona-dialogue/internal/model"
)

var base = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T, rotation RotationConfig) *Store {
	t.Helper()
	s, err := NewStore(Config{Dir: t.TempDir(), Rotation: rotation}, WithClock(func() time.Time { return base }))
	require.NoError(t, err)
	return s
}

func turnAt(i int, speaker, text string) model.Turn {
	origin := model.OriginPersona
	if speaker == "" {
		origin = model.OriginSystem
	}
	return model.Turn{
		Index:     i,
		Origin:    origin,
		Speaker:   speaker,
		Text:      text,
		Timestamp: base.Add(time.Duration(i) * time.Second),
	}
}

func TestStoreWritesSessionInOrder(t *testing.T) {
	s := newTestStore(t, RotationConfig{})
	session := model.Session{ID: "sess-1", Topic: "Discuss the weather.", StartedAt: base}

	require.NoError(t, s.StartSession(session))
	require.NoError(t, s.Append(turnAt(0, "", "Discuss the weather.")))
	for i := 1; i <= 5; i++ {
		require.NoError(t, s.Append(turnAt(i, "A", fmt.Sprintf("reply %d", i))))
	}
	require.NoError(t, s.EndSession(model.Result{Status: model.StatusEndedNormally, Reason: "turn limit reached"}))

	records, err := ReadFile(s.Path())
	require.NoError(t, err)
	require.Len(t, records, 8)

	assert.Equal(t, KindSessionStart, records[0].Kind)
	assert.Equal(t, "sess-1", records[0].Label)
	assert.Equal(t, "Discuss the weather.", records[0].Body)

	entries := Entries(records)
	require.Len(t, entries, 6)
	assert.Equal(t, model.SystemLabel, entries[0].Label)
	for i := 1; i <= 5; i++ {
		assert.Equal(t, "A", entries[i].Label)
		assert.Equal(t, fmt.Sprintf("reply %d", i), entries[i].Body)
		assert.True(t, entries[i].Timestamp.Equal(base.Add(time.Duration(i)*time.Second)))
	}

	last := records[len(records)-1]
	assert.Equal(t, KindSessionEnd, last.Kind)
	assert.Equal(t, string(model.StatusEndedNormally), last.Label)
	assert.Equal(t, "turn limit reached", last.Body)
}

func TestStoreEndSessionOnlyOnce(t *testing.T) {
	s := newTestStore(t, RotationConfig{})
	require.NoError(t, s.StartSession(model.Session{ID: "s"}))

	require.NoError(t, s.EndSession(model.Result{Status: model.StatusEndedByUser}))
	assert.ErrorIs(t, s.EndSession(model.Result{Status: model.StatusEndedByUser}), ErrNoSession)
	assert.ErrorIs(t, s.Append(turnAt(1, "A", "late")), ErrNoSession)

	records, err := ReadFile(s.Path())
	require.NoError(t, err)

	ends := 0
	for _, r := range records {
		if r.Kind == KindSessionEnd {
			ends++
		}
	}
	assert.Equal(t, 1, ends)
}

func TestStoreRejectsWritesOutsideSession(t *testing.T) {
	s := newTestStore(t, RotationConfig{})
	assert.ErrorIs(t, s.Append(turnAt(0, "", "seed")), ErrNoSession)
	assert.ErrorIs(t, s.EndSession(model.Result{}), ErrNoSession)

	require.NoError(t, s.StartSession(model.Session{ID: "s"}))
	assert.ErrorIs(t, s.StartSession(model.Session{ID: "t"}), ErrSessionActive)
}

func TestStoreEscapesHeaderLikeBodies(t *testing.T) {
	s := newTestStore(t, RotationConfig{})
	require.NoError(t, s.StartSession(model.Session{ID: "s"}))

	text := "### not a header\n## Session ended | nope\n\\backslash\nplain"
	require.NoError(t, s.Append(turnAt(1, "A", text)))

	records, err := ReadFile(s.Path())
	require.NoError(t, err)
	entries := Entries(records)
	require.Len(t, entries, 1)
	assert.Equal(t, text, entries[0].Body)
}

func TestStoreKeepsLabelsOnOneLine(t *testing.T) {
	s := newTestStore(t, RotationConfig{})
	require.NoError(t, s.StartSession(model.Session{ID: "s"}))

	require.NoError(t, s.Append(turnAt(1, "A", "hello")))
	require.NoError(t, s.Append(turnAt(2, "B\n### 2020-01-01 00:00:00.000 UTC | evil", "hi")))

	records, err := ReadFile(s.Path())
	require.NoError(t, err)
	entries := Entries(records)
	require.Len(t, entries, 2)
	assert.Equal(t, "A", entries[0].Label)
	assert.Equal(t, "hello", entries[0].Body)
	assert.Equal(t, "hi", entries[1].Body)
	assert.NotContains(t, entries[1].Label, "\n")
}

func TestStorePreservesIndentation(t *testing.T) {
	s := newTestStore(t, RotationConfig{})
	require.NoError(t, s.StartSession(model.Session{ID: "s"}))

	text := "    indented code\nline2\n\n  trailing indent"
	require.NoError(t, s.Append(turnAt(1, "A", text)))
	require.NoError(t, s.EndSession(model.Result{Status: model.StatusEndedByUser, Reason: "interrupted by user"}))

	records, err := ReadFile(s.Path())
	require.NoError(t, err)
	entries := Entries(records)
	require.Len(t, entries, 1)
	assert.Equal(t, text, entries[0].Body)
	assert.Equal(t, "interrupted by user", records[len(records)-1].Body)
}

func TestStoreRotationKeepsRecentEntries(t *testing.T) {
	s := newTestStore(t, RotationConfig{MaxBytes: 300, MaxBackups: 2})
	require.NoError(t, s.StartSession(model.Session{ID: "s"}))

	const n = 40
	for i := 1; i <= n; i++ {
		require.NoError(t, s.Append(turnAt(i, "A", fmt.Sprintf("message number %02d", i))))
	}

	_, err := os.Stat(BackupPath(s.Path(), 1))
	require.NoError(t, err, "expected at least one backup")
	_, err = os.Stat(BackupPath(s.Path(), 3))
	assert.True(t, os.IsNotExist(err), "backups beyond the retention bound must be dropped")

	records, err := ReadAll(s.Path(), 2)
	require.NoError(t, err)
	entries := Entries(records)
	require.NotEmpty(t, entries)
	assert.Less(t, len(entries), n)

	// The surviving entries are a contiguous, ordered tail ending at the newest.
	first := n - len(entries) + 1
	for i, e := range entries {
		assert.Equal(t, fmt.Sprintf("message number %02d", first+i), e.Body)
	}
}

func TestStoreRotationWithoutBackups(t *testing.T) {
	s := newTestStore(t, RotationConfig{MaxBytes: 200, MaxBackups: 0})
	require.NoError(t, s.StartSession(model.Session{ID: "s"}))

	for i := 1; i <= 10; i++ {
		require.NoError(t, s.Append(turnAt(i, "B", strings.Repeat("x", 50))))
	}

	_, err := os.Stat(BackupPath(s.Path(), 1))
	assert.True(t, os.IsNotExist(err))

	records, err := ReadFile(s.Path())
	require.NoError(t, err)
	entries := Entries(records)
	require.NotEmpty(t, entries)
	assert.True(t, entries[len(entries)-1].Timestamp.Equal(base.Add(10*time.Second)))
}

func TestStoreWriteFailureIsPersistenceWarning(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("file"), 0o644))

	s, err := NewStore(Config{Dir: filepath.Join(blocker, "nested")})
	require.NoError(t, err)

	err = s.StartSession(model.Session{ID: "s"})
	var warning *PersistenceWarning
	require.ErrorAs(t, err, &warning)
	assert.Equal(t, "start_session", warning.Op)
}

func TestNewStoreValidation(t *testing.T) {
	_, err := NewStore(Config{})
	assert.Error(t, err)

	_, err = NewStore(Config{Dir: t.TempDir(), Rotation: RotationConfig{MaxBytes: -1}})
	assert.Error(t, err)
}

func TestReadAllSkipsMissingFiles(t *testing.T) {
	records, err := ReadAll(filepath.Join(t.TempDir(), "missing.md"), 3)
	require.NoError(t, err)
	assert.Empty(t, records)
}
