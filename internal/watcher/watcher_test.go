package watcher

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/bankfeed/internal/importer"
	"github.com/cleared-dev/bankfeed/internal/ingestlog"
	"github.com/cleared-dev/bankfeed/internal/logger"
	"github.com/cleared-dev/bankfeed/internal/model"
	"github.com/cleared-dev/bankfeed/internal/store"
)

const westpacHeader = "Bank Account,Date,Narrative,Debit Amount,Credit Amount,Balance,Categories,Serial\n"

var stamp = time.Date(2025, 12, 1, 9, 30, 0, 0, time.UTC)

func copyFixture(t *testing.T, name, dest string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "testdata", name))
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(dest), 0o755))
	require.NoError(t, os.WriteFile(dest, data, 0o644))
	return dest
}

func newWatcher(t *testing.T, gw store.Gateway) (*Watcher, string, string) {
	t.Helper()
	root := t.TempDir()
	watchDir := filepath.Join(root, "incoming")
	dataDir := filepath.Join(root, "data")

	w, err := New(Options{WatchDir: watchDir, DataDir: dataDir, PollInterval: 10 * time.Millisecond},
		importer.DefaultRegistry(), gw)
	require.NoError(t, err)
	w.now = func() time.Time { return stamp }
	return w, watchDir, dataDir
}

type failingGateway struct {
	*store.Memory
}

func (failingGateway) SaveMany(context.Context, []model.Transaction) (store.SaveResult, error) {
	return store.SaveResult{}, errors.New("database is locked")
}

func TestNew_CreatesDirectories(t *testing.T) {
	w, watchDir, dataDir := newWatcher(t, store.NewMemory())

	assert.DirExists(t, watchDir)
	assert.DirExists(t, filepath.Join(dataDir, "processed"))
	assert.DirExists(t, filepath.Join(dataDir, "failed"))
	assert.Equal(t, filepath.Join(dataDir, "processed"), w.ProcessedDir())
	assert.Equal(t, filepath.Join(dataDir, "failed"), w.FailedDir())
}

func TestScan(t *testing.T) {
	w, watchDir, _ := newWatcher(t, store.NewMemory())

	copyFixture(t, "westpac.csv", filepath.Join(watchDir, "b.csv"))
	copyFixture(t, "bankwest.csv", filepath.Join(watchDir, "a.csv"))
	copyFixture(t, "commbank/everyday.csv", filepath.Join(watchDir, "commbank", "everyday.csv"))
	copyFixture(t, "anz_everyday.csv", filepath.Join(watchDir, "x", "y", "deep.csv"))
	require.NoError(t, os.WriteFile(filepath.Join(watchDir, "notes.txt"), []byte("hi"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(watchDir, "dir.csv"), 0o755))

	files, err := w.Scan()
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(watchDir, "a.csv"),
		filepath.Join(watchDir, "b.csv"),
		filepath.Join(watchDir, "commbank", "everyday.csv"),
	}, files)
}

func TestScan_SkipsNestedDataDirs(t *testing.T) {
	root := t.TempDir()
	w, err := New(Options{WatchDir: root, DataDir: root}, importer.DefaultRegistry(), store.NewMemory())
	require.NoError(t, err)

	copyFixture(t, "westpac.csv", filepath.Join(root, "processed", "old.csv"))
	copyFixture(t, "westpac.csv", filepath.Join(root, "failed", "bad.csv"))
	copyFixture(t, "westpac.csv", filepath.Join(root, "new.csv"))

	files, err := w.Scan()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "new.csv")}, files)
}

func TestRunOnce_PartialFailure(t *testing.T) {
	gw := store.NewMemory()
	w, watchDir, dataDir := newWatcher(t, gw)

	copyFixture(t, "westpac.csv", filepath.Join(watchDir, "westpac.csv"))
	copyFixture(t, "unknown.csv", filepath.Join(watchDir, "unknown.csv"))
	copyFixture(t, "bankwest.csv", filepath.Join(watchDir, "bankwest.csv"))

	report, err := w.RunOnce(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 3, report.Found)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 10, report.Inserted)
	assert.Zero(t, report.Duplicates)

	total, err := gw.Count(context.Background(), store.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 10, total)

	processed := filepath.Join(dataDir, "processed")
	assert.FileExists(t, filepath.Join(processed, "westpac_20251201_093000.csv"))
	assert.FileExists(t, filepath.Join(processed, "bankwest_20251201_093000.csv"))

	failed := filepath.Join(dataDir, "failed")
	assert.FileExists(t, filepath.Join(failed, "unknown_20251201_093000.csv"))
	note, err := os.ReadFile(filepath.Join(failed, "unknown_20251201_093000.error"))
	require.NoError(t, err)
	assert.Contains(t, string(note), "Error processing unknown.csv:\n")
	assert.Contains(t, string(note), "could not detect bank format")
	for _, name := range []string{"westpac", "anz", "bankwest", "cba", "macquarie"} {
		assert.Contains(t, string(note), name)
	}

	remaining, err := w.Scan()
	require.NoError(t, err)
	assert.Empty(t, remaining)

	entries, err := ingestlog.Read(dataDir)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.Equal(t, report.RunID, e.RunID)
	}
	assert.Equal(t, ingestlog.StatusProcessed, entries[0].Status)
	assert.Equal(t, "bankwest", entries[0].Parser)
	assert.Equal(t, ingestlog.StatusFailed, entries[1].Status)
	assert.Contains(t, entries[1].Detail, "could not detect bank format")
	assert.Equal(t, ingestlog.StatusProcessed, entries[2].Status)
	assert.Equal(t, 6, entries[2].Inserted)
}

func TestRunOnce_EmptyWatchDir(t *testing.T) {
	w, _, dataDir := newWatcher(t, store.NewMemory())

	report, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Found)
	assert.Empty(t, report.Results)
	assert.NoFileExists(t, ingestlog.Path(dataDir))
}

func TestRunOnce_RedropCountsDuplicates(t *testing.T) {
	gw := store.NewMemory()
	w, watchDir, dataDir := newWatcher(t, gw)

	copyFixture(t, "westpac.csv", filepath.Join(watchDir, "westpac.csv"))
	first, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, first.Inserted)

	copyFixture(t, "westpac.csv", filepath.Join(watchDir, "westpac.csv"))
	second, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, second.Processed)
	assert.Zero(t, second.Inserted)
	assert.Equal(t, 6, second.Duplicates)

	processed := filepath.Join(dataDir, "processed")
	assert.FileExists(t, filepath.Join(processed, "westpac_20251201_093000.csv"))
	assert.FileExists(t, filepath.Join(processed, "westpac_20251201_093000_2.csv"))

	total, err := gw.Count(context.Background(), store.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 6, total)
}

func TestProcessFile_PreservesSubdirectory(t *testing.T) {
	w, watchDir, dataDir := newWatcher(t, store.NewMemory())
	path := copyFixture(t, "commbank/everyday.csv", filepath.Join(watchDir, "commbank", "everyday.csv"))

	res := w.ProcessFile(context.Background(), path)
	require.NoError(t, res.Err)
	assert.Equal(t, ingestlog.StatusProcessed, res.Status)
	assert.Equal(t, "cba", res.Parser)
	assert.Equal(t, 3, res.Inserted)

	want := filepath.Join(dataDir, "processed", "commbank", "everyday_20251201_093000.csv")
	assert.Equal(t, want, res.MovedTo)
	assert.FileExists(t, want)
	assert.NoFileExists(t, path)
}

func TestProcessFile_NoTransactions(t *testing.T) {
	w, watchDir, dataDir := newWatcher(t, store.NewMemory())
	path := filepath.Join(watchDir, "westpac-empty.csv")
	require.NoError(t, os.WriteFile(path, []byte(westpacHeader), 0o644))

	res := w.ProcessFile(context.Background(), path)
	assert.Equal(t, ingestlog.StatusFailed, res.Status)
	assert.ErrorIs(t, res.Err, ErrNoTransactions)
	assert.Equal(t, filepath.Join(dataDir, "failed", "westpac-empty_20251201_093000.csv"), res.MovedTo)
	assert.FileExists(t, filepath.Join(dataDir, "failed", "westpac-empty_20251201_093000.error"))
}

func TestProcessFile_SaveError(t *testing.T) {
	w, watchDir, dataDir := newWatcher(t, failingGateway{store.NewMemory()})
	path := copyFixture(t, "bankwest.csv", filepath.Join(watchDir, "bankwest.csv"))

	res := w.ProcessFile(context.Background(), path)
	assert.Equal(t, ingestlog.StatusFailed, res.Status)
	assert.ErrorContains(t, res.Err, "database is locked")
	assert.Equal(t, "bankwest", res.Parser)

	note, err := os.ReadFile(filepath.Join(dataDir, "failed", "bankwest_20251201_093000.error"))
	require.NoError(t, err)
	assert.Contains(t, string(note), "saving transactions: database is locked")
}

func TestProcessFile_ForcedParser(t *testing.T) {
	root := t.TempDir()
	w, err := New(Options{
		WatchDir: filepath.Join(root, "in"),
		DataDir:  filepath.Join(root, "data"),
		Parser:   "macquarie",
	}, importer.DefaultRegistry(), store.NewMemory())
	require.NoError(t, err)

	path := copyFixture(t, "westpac.csv", filepath.Join(root, "in", "westpac.csv"))
	res := w.ProcessFile(context.Background(), path)
	assert.Equal(t, ingestlog.StatusFailed, res.Status)
	assert.Equal(t, "macquarie", res.Parser)
	assert.ErrorIs(t, res.Err, ErrNoTransactions)
}

func TestRunOnce_CancelledStopsBeforeFiles(t *testing.T) {
	w, watchDir, _ := newWatcher(t, store.NewMemory())
	copyFixture(t, "westpac.csv", filepath.Join(watchDir, "westpac.csv"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Found)
	assert.Empty(t, report.Results)
	assert.FileExists(t, filepath.Join(watchDir, "westpac.csv"))
}

func TestRun_StopsOnCancel(t *testing.T) {
	gw := store.NewMemory()
	w, watchDir, _ := newWatcher(t, gw)
	copyFixture(t, "bankwest.csv", filepath.Join(watchDir, "bankwest.csv"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		n, err := gw.Count(context.Background(), store.Filter{})
		return err == nil && n == 4
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestStampedName(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, "a_20251201_093000", stampedName(dir, "a.csv", stamp, true))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_20251201_093000.error"), nil, 0o644))
	assert.Equal(t, "a_20251201_093000_2", stampedName(dir, "a.csv", stamp, true))
	assert.Equal(t, "a_20251201_093000", stampedName(dir, "a.csv", stamp, false))
}

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.csv")
	dst := filepath.Join(dir, "dst.csv")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))

	require.NoError(t, moveFile(src, dst))
	assert.NoFileExists(t, src)
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))

	assert.Error(t, moveFile(src, dst))
}

func TestProcessFile_IngestLogFailureIsNotFatal(t *testing.T) {
	w, watchDir, dataDir := newWatcher(t, store.NewMemory())
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "logs"), []byte("not a dir"), 0o644))
	path := copyFixture(t, "bankwest.csv", filepath.Join(watchDir, "bankwest.csv"))

	var buf bytes.Buffer
	ctx := logger.WithContext(context.Background(), logger.NewJSON(&buf))

	res := w.ProcessFile(ctx, path)
	require.NoError(t, res.Err)
	assert.Equal(t, ingestlog.StatusProcessed, res.Status)
	assert.Equal(t, 4, res.Inserted)
	assert.FileExists(t, res.MovedTo)
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), "could not append ingest log")
}
