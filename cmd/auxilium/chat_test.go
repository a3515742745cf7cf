package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selkane/auxilium/internal/config"
	"github.com/selkane/auxilium/internal/domain"
)

func newTestSession(t *testing.T) *session {
	t.Helper()
	return newTestSessionIn(t, t.TempDir())
}

func newTestSessionIn(t *testing.T, audioDir string) *session {
	t.Helper()
	cfg := &config.Config{
		LLMBackend:     "mock",
		StorageBackend: "memory",
		AudioDir:       audioDir,
		HistoryWindow:  10,
	}
	sess, err := openSession(context.Background(), cfg, "", domain.LanguageAuto)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })
	return sess
}

func TestREPLFlow(t *testing.T) {
	ctx := context.Background()
	sess := newTestSession(t)
	var out bytes.Buffer
	r := &repl{sess: sess, out: &out}

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	assert.False(t, r.handle(ctx, "/module tech"))
	assert.Equal(t, domain.ModuleTech, sess.svc.Module())

	assert.False(t, r.handle(ctx, "/lang en"))
	assert.Equal(t, domain.Language("en"), sess.svc.Language())

	assert.False(t, r.handle(ctx, "/attach "+path))
	assert.Equal(t, 1, sess.svc.Pending().Len())

	assert.False(t, r.handle(ctx, "what is in the file?"))
	st := sess.svc.Store().State()
	require.Len(t, st.Messages, 3)
	assert.Len(t, st.Messages[1].Attachments, 1)
	assert.Equal(t, 0, sess.svc.Pending().Len())
	assert.Contains(t, out.String(), "[auxilium ")

	assert.False(t, r.handle(ctx, "/module nope"))
	assert.Contains(t, out.String(), "unknown module")

	assert.True(t, r.handle(ctx, "/quit"))
}

func TestREPLEmptyLine(t *testing.T) {
	sess := newTestSession(t)
	var out bytes.Buffer
	r := &repl{sess: sess, out: &out}

	assert.False(t, r.handle(context.Background(), "   "))
	assert.Len(t, sess.svc.Store().State().Messages, 1)
	assert.Contains(t, out.String(), "nothing to send")
}

func TestREPLPlayWritesWAV(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	dir := t.TempDir()
	sess := newTestSessionIn(t, dir)
	r := &repl{sess: sess, out: &bytes.Buffer{}}

	evs, err := sess.bus.Subscribe(ctx)
	require.NoError(t, err)

	r.play(ctx, "")
	require.NoError(t, waitIdle(ctx, evs, domain.GreetingID))

	files, err := filepath.Glob(filepath.Join(dir, "*.wav"))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestREPLLanguageOnEmptyConversation(t *testing.T) {
	sess := newTestSession(t)
	require.NoError(t, sess.svc.Store().Restore(nil))
	var out bytes.Buffer
	r := &repl{sess: sess, out: &out}

	assert.NotPanics(t, func() { r.handle(context.Background(), "/lang fr") })
	assert.Equal(t, domain.Language("fr"), sess.svc.Language())
	assert.Contains(t, out.String(), "language fr")
}
