package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/persona-dialogue/internal/config"
	"github.com/capitalize-ai/persona-dialogue/internal/model"
	"github.com/capitalize-ai/persona-dialogue/internal/transcript"
)

func writeConfig(t *testing.T, dir, extra string) string {
	t.Helper()
	content := fmt.Sprintf(`
personas:
  a:
    name: Ada
    instructions: You ask short questions.
  b:
    name: Brook
    instructions: You answer at length.
transcript:
  dir: %s
%s`, dir, extra)
	path := filepath.Join(dir, "dialogue.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "none.env")))
	err := root.Execute()
	return out.String(), err
}

func TestPersonasCommand(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "personas", "--config", writeConfig(t, dir, ""))
	require.NoError(t, err)

	assert.Contains(t, out, "Ada")
	assert.Contains(t, out, "speaks first")
	assert.Contains(t, out, "You answer at length.")
	assert.Less(t, bytes.Index([]byte(out), []byte("Ada")), bytes.Index([]byte(out), []byte("Brook")))
}

func TestPersonasCommandMissingPersona(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dialogue.yaml")
	require.NoError(t, os.WriteFile(path, []byte("personas:\n  a: {name: Solo, instructions: x}\n"), 0o644))

	_, err := execute(t, "personas", "--config", path)
	var cerr *config.ConfigurationError
	assert.True(t, errors.As(err, &cerr))
}

func TestTranscriptShow(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "")

	store, err := transcript.NewStore(transcript.Config{Dir: dir})
	require.NoError(t, err)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	session := model.Session{ID: "s-1", Topic: "Tides", StartedAt: at}
	require.NoError(t, store.StartSession(session))
	require.NoError(t, store.Append(model.Turn{SessionID: "s-1", Origin: model.OriginSystem, Text: "Tides", Timestamp: at}))
	require.NoError(t, store.Append(model.Turn{Index: 1, SessionID: "s-1", Origin: model.OriginPersona, Speaker: "Ada", Text: "Why the moon?", Timestamp: at}))
	require.NoError(t, store.Append(model.Turn{Index: 2, SessionID: "s-1", Origin: model.OriginPersona, Speaker: "Brook", Text: "Gravity.", Timestamp: at}))
	require.NoError(t, store.EndSession(model.Result{SessionID: "s-1", Status: model.StatusEndedByUser, Reason: "interrupted by user", EndedAt: at}))

	out, err := execute(t, "transcript", "show", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "== session s-1 started")
	assert.Contains(t, out, "topic: Tides")
	assert.Contains(t, out, "Ada: Why the moon?")
	assert.Contains(t, out, "Brook: Gravity.")
	assert.Contains(t, out, "(ended_by_user): interrupted by user")

	out, err = execute(t, "transcript", "show", "--last", "2", "--config", cfgPath)
	require.NoError(t, err)
	assert.NotContains(t, out, "Ada: Why the moon?")
	assert.Contains(t, out, "Brook: Gravity.")
	assert.Contains(t, out, "ended_by_user")
}

func TestTranscriptShowMissingFile(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "transcript", "show", "--config", writeConfig(t, dir, ""))
	assert.Error(t, err)
}

func TestReplayRequiresNATS(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "replay", "s-1", "--config", writeConfig(t, dir, ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nats.url")
}

func TestRunRejectsInvalidConfiguration(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "--config", writeConfig(t, dir, ""), "--max-turns=-1")

	var cerr *config.ConfigurationError
	require.True(t, errors.As(err, &cerr))
	assert.Contains(t, err.Error(), "llm.api_key")
	assert.Contains(t, err.Error(), "max_turns")
}

func TestMissingConfigFile(t *testing.T) {
	_, err := execute(t, "personas", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
