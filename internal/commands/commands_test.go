package commands_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/bankfeed/internal/apperrors"
	"github.com/cleared-dev/bankfeed/internal/commands"
)

var envKeys = []string{
	"WATCH_DIR", "DATA_DIR", "BANKFEED_PARSER", "STORE_DRIVER", "SQLITE_PATH",
	"DATABASE_URL", "DB_HOST", "DB_NAME", "DB_USER", "DB_PASSWORD", "DB_PORT", "POLL_INTERVAL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

// run executes the CLI in-process against a config file that does not exist,
// so only defaults, environment and flags apply.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	clearEnv(t)

	cmd := commands.NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)

	cfg := filepath.Join(t.TempDir(), "missing.yaml")
	cmd.SetArgs(append(args, "--config", cfg))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func fixture(name string) string {
	return filepath.Join("..", "..", "testdata", name)
}

func copyFixture(t *testing.T, name, dest string) {
	t.Helper()
	data, err := os.ReadFile(fixture(name))
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(dest), 0o755))
	require.NoError(t, os.WriteFile(dest, data, 0o644))
}

func TestInit_CreatesStructure(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "init", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Initialized bankfeed at")

	for _, d := range []string{
		"incoming",
		filepath.Join("data", "processed"),
		filepath.Join("data", "failed"),
		filepath.Join("data", "logs"),
		filepath.Join("output", "normalized"),
	} {
		assert.DirExists(t, filepath.Join(dir, d))
	}

	data, err := os.ReadFile(filepath.Join(dir, "bankfeed.yaml"))
	require.NoError(t, err)
	contents := string(data)
	assert.Contains(t, contents, "dir: ./incoming")
	assert.Contains(t, contents, "poll_interval: 30s")
	assert.Contains(t, contents, "driver: sqlite")

	assert.FileExists(t, filepath.Join(dir, ".gitignore"))
}

func TestInit_RefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "init", dir)
	require.NoError(t, err)

	_, err = run(t, "init", dir)
	assert.ErrorContains(t, err, "already exists")

	_, err = run(t, "init", dir, "--force")
	assert.NoError(t, err)
}

func TestParsers_ListsInDetectionOrder(t *testing.T) {
	out, err := run(t, "parsers")
	require.NoError(t, err)

	assert.Contains(t, out, "Available parsers:")
	last := -1
	for _, name := range []string{"westpac", "anz", "bankwest", "cba", "macquarie"} {
		idx := bytes.Index([]byte(out), []byte("  - "+name+": "))
		require.GreaterOrEqual(t, idx, 0, "missing %s", name)
		assert.Greater(t, idx, last, "%s out of order", name)
		last = idx
	}
}

func TestParse_ListParsersFlag(t *testing.T) {
	out, err := run(t, "parse", "--list-parsers")
	require.NoError(t, err)
	assert.Contains(t, out, "  - macquarie: ")
}

func TestParse_SingleFile(t *testing.T) {
	outDir := t.TempDir()
	out, err := run(t, "parse", fixture("westpac.csv"), "-o", outDir, "-f", "json")
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(outDir, "westpac_normalized.json"))
	assert.NoFileExists(t, filepath.Join(outDir, "westpac_normalized.csv"))
	assert.Contains(t, out, "Total transactions parsed: 6")
	assert.Contains(t, out, "  westpac: 6 transactions")
}

func TestParse_Directory(t *testing.T) {
	outDir := t.TempDir()
	out, err := run(t, "parse", filepath.Join("..", "..", "testdata"), "-r", "-o", outDir, "-f", "csv")
	require.NoError(t, err)

	assert.Contains(t, out, "Found 6 CSV files")
	assert.Contains(t, out, "Warning: could not detect bank format")
	assert.Contains(t, out, "Total transactions parsed: 21")
	assert.Contains(t, out, "  cba: 3 transactions")

	assert.FileExists(t, filepath.Join(outDir, "westpac_normalized.csv"))
	assert.FileExists(t, filepath.Join(outDir, "commbank", "everyday_normalized.csv"))
	combined, err := filepath.Glob(filepath.Join(outDir, "all_transactions_*.csv"))
	require.NoError(t, err)
	assert.Len(t, combined, 1)
}

func TestParse_SaveToDB(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tx.db")
	args := []string{"parse", fixture("bankwest.csv"), "--save-to-db", "--db-path", dbPath, "--no-file-output"}

	out, err := run(t, args...)
	require.NoError(t, err)
	assert.Contains(t, out, "Saved: 4 transactions")
	assert.Contains(t, out, "Total in store: 4")
	assert.NotContains(t, out, "_normalized")

	out, err = run(t, args...)
	require.NoError(t, err)
	assert.Contains(t, out, "Saved: 0 transactions")
	assert.Contains(t, out, "Skipped (duplicates): 4 transactions")
	assert.Contains(t, out, "Total in store: 4")
}

func TestParse_Errors(t *testing.T) {
	_, err := run(t, "parse")
	assert.ErrorContains(t, err, "input file or directory is required")

	_, err = run(t, "parse", filepath.Join(t.TempDir(), "nope.csv"))
	assert.ErrorContains(t, err, "input path does not exist")

	_, err = run(t, "parse", fixture("westpac.csv"), "-f", "xml")
	assert.ErrorContains(t, err, "invalid --output-format")

	_, err = run(t, "parse", fixture("unknown.csv"), "--no-file-output")
	assert.ErrorContains(t, err, "could not detect bank format")

	_, err = run(t, "parse", fixture("westpac.csv"), "-p", "hsbc", "--no-file-output")
	assert.ErrorContains(t, err, "unknown parser: hsbc")
}

func TestWatch_OnceThenStats(t *testing.T) {
	root := t.TempDir()
	watchDir := filepath.Join(root, "incoming")
	dataDir := filepath.Join(root, "data")
	copyFixture(t, "westpac.csv", filepath.Join(watchDir, "westpac.csv"))
	copyFixture(t, "unknown.csv", filepath.Join(watchDir, "unknown.csv"))
	copyFixture(t, "commbank/everyday.csv", filepath.Join(watchDir, "commbank", "everyday.csv"))

	out, err := run(t, "watch", "--once", "-w", watchDir, "-d", dataDir, "-i", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "Processed 2 file(s), 1 failed")
	assert.Contains(t, out, "Saved 9 transaction(s), skipped 0 duplicate(s)")
	assert.Contains(t, out, "Total transactions in store: 9")

	assert.FileExists(t, filepath.Join(dataDir, "transactions.db"))
	assert.FileExists(t, filepath.Join(dataDir, "logs", "ingest-log.csv"))
	processed, err := filepath.Glob(filepath.Join(dataDir, "processed", "commbank", "everyday_*.csv"))
	require.NoError(t, err)
	assert.Len(t, processed, 1)
	notes, err := filepath.Glob(filepath.Join(dataDir, "failed", "unknown_*.error"))
	require.NoError(t, err)
	assert.Len(t, notes, 1)

	clearEnv(t)
	cmd := commands.NewRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&bytes.Buffer{})
	t.Setenv("DATA_DIR", dataDir)
	cmd.SetArgs([]string{"stats", "--config", filepath.Join(root, "missing.yaml")})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	stats := buf.String()
	assert.Contains(t, stats, "Total transactions: 9")
	assert.Contains(t, stats, "  cba: 3")
	assert.Contains(t, stats, "  westpac: 6")
	assert.Contains(t, stats, "Ingested files: 2 processed, 1 failed")
	assert.Contains(t, stats, "Last ingest: ")
}

func TestWatch_InvalidConfig(t *testing.T) {
	_, err := run(t, "watch", "--once", "-i", "0")
	assert.ErrorContains(t, err, "poll_interval must be positive")

	_, err = run(t, "watch", "--once", "-i", "soon")
	assert.ErrorContains(t, err, "invalid --poll-interval")
}

func TestStats_InvalidDate(t *testing.T) {
	_, err := run(t, "stats", "--from", "01/11/2025")
	assert.ErrorContains(t, err, "invalid --from")
}

func TestRoot_LogJSON(t *testing.T) {
	clearEnv(t)
	cmd := commands.NewRootCommand()
	var errOut bytes.Buffer
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"parse", fixture("westpac.csv"), "--no-file-output", "--log-json", "-v",
		"--config", filepath.Join(t.TempDir(), "missing.yaml")})

	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, errOut.String(), `"level":"debug"`)
	assert.Contains(t, errOut.String(), `"parser":"westpac"`)
}

func TestWatch_UnknownParserRejectedAtStartup(t *testing.T) {
	root := t.TempDir()
	watchDir := filepath.Join(root, "incoming")
	dataDir := filepath.Join(root, "data")
	inbox := filepath.Join(watchDir, "westpac.csv")
	copyFixture(t, "westpac.csv", inbox)

	_, err := run(t, "watch", "--once", "-w", watchDir, "-d", dataDir, "-p", "westpak")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
	assert.ErrorContains(t, err, "unknown parser: westpak")

	assert.FileExists(t, inbox)
	assert.NoDirExists(t, dataDir)
}

func TestWatch_UnknownParserFromEnv(t *testing.T) {
	root := t.TempDir()
	watchDir := filepath.Join(root, "incoming")
	copyFixture(t, "westpac.csv", filepath.Join(watchDir, "westpac.csv"))

	clearEnv(t)
	t.Setenv("BANKFEED_PARSER", "westpak")
	cmd := commands.NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"watch", "--once", "-w", watchDir, "-d", filepath.Join(root, "data"),
		"--config", filepath.Join(root, "missing.yaml")})

	err := cmd.ExecuteContext(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
	assert.FileExists(t, filepath.Join(watchDir, "westpac.csv"))
}

func TestLoad_ExportedFiles(t *testing.T) {
	outDir := t.TempDir()
	_, err := run(t, "parse", fixture("bankwest.csv"), "-o", outDir, "-f", "both")
	require.NoError(t, err)

	dbPath := filepath.Join(t.TempDir(), "tx.db")
	jsonPath := filepath.Join(outDir, "bankwest_normalized.json")
	csvPath := filepath.Join(outDir, "bankwest_normalized.csv")

	out, err := run(t, "load", jsonPath, "--db-path", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Saved: 4 transactions")
	assert.Contains(t, out, "Total in store: 4")

	out, err = run(t, "load", csvPath, "--db-path", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Skipped (duplicates): 4 transactions")
	assert.Contains(t, out, "Total in store: 4")

	_, err = run(t, "load", fixture("bankwest.csv"), "--db-path", dbPath)
	assert.Error(t, err)

	_, err = run(t, "load")
	assert.Error(t, err)
}
