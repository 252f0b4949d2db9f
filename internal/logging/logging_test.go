package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New("debug", &buf)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())

	log.WithField("username", "ana").Info("level up")
	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "level up", line["message"])
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "ana", line["username"])
	assert.Contains(t, line, "timestamp")
}

func TestNewFallsBackToInfo(t *testing.T) {
	log := New("chatty", &bytes.Buffer{})
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
}

func TestDailyFileRotatesAndPrunes(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "app-2024-04-01.log")
	require.NoError(t, os.WriteFile(old, []byte("old\n"), 0o644))
	unrelated := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(unrelated, []byte("keep\n"), 0o644))

	now := time.Date(2024, 5, 1, 23, 59, 0, 0, time.UTC)
	files, err := openDailyFile(dir, 3, func() time.Time { return now })
	require.NoError(t, err)
	defer files.Close()

	_, err = files.Write([]byte("first\n"))
	require.NoError(t, err)
	assert.NoFileExists(t, old)
	assert.FileExists(t, unrelated)

	now = now.Add(2 * time.Minute)
	_, err = files.Write([]byte("second\n"))
	require.NoError(t, err)

	first, err := os.ReadFile(filepath.Join(dir, "app-2024-05-01.log"))
	require.NoError(t, err)
	assert.Equal(t, "first\n", string(first))
	second, err := os.ReadFile(filepath.Join(dir, "app-2024-05-02.log"))
	require.NoError(t, err)
	assert.Equal(t, "second\n", string(second))
}

func TestDailyFileKeepsRetentionWindow(t *testing.T) {
	dir := t.TempDir()
	for _, day := range []string{"2024-04-28", "2024-04-29", "2024-04-30"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "app-"+day+".log"), nil, 0o644))
	}
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	files, err := openDailyFile(dir, 3, func() time.Time { return now })
	require.NoError(t, err)
	require.NoError(t, files.Close())

	assert.NoFileExists(t, filepath.Join(dir, "app-2024-04-28.log"))
	assert.FileExists(t, filepath.Join(dir, "app-2024-04-29.log"))
	assert.FileExists(t, filepath.Join(dir, "app-2024-04-30.log"))

	_, err = files.Write([]byte("late"))
	assert.ErrorIs(t, err, os.ErrClosed)
}
