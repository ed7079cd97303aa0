package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/surveyload/internal/config"
	"github.com/wesleyorama2/surveyload/internal/dataset"
	"github.com/wesleyorama2/surveyload/internal/frontend"
	"github.com/wesleyorama2/surveyload/internal/loadgen"
	"github.com/wesleyorama2/surveyload/internal/output"
)

var testRecords = []dataset.SessionRecord{
	{AccessCode: "UAC0000000000001", AddressLine1: "1 High Street", Postcode: "EX1 1AA"},
	{AccessCode: "UAC0000000000002", AddressLine1: "2 High Street", Postcode: "EX1 1AB"},
	{AccessCode: "UAC0000000000003", AddressLine1: "3 High Street", Postcode: "EX1 1AC"},
}

// execute runs the command line args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := NewRootCmd(&stdout, &stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func writeDataset(t *testing.T, records []dataset.SessionRecord) string {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("uac,addressLine1,postcode\n")
	for _, r := range records {
		sb.WriteString(r.AccessCode + "," + r.AddressLine1 + "," + r.Postcode + "\n")
	}
	path := filepath.Join(t.TempDir(), "event_data.txt")
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))
	return path
}

func startFrontend(t *testing.T, records []dataset.SessionRecord, opts ...frontend.Option) (*frontend.Server, string) {
	t.Helper()
	f := frontend.New(records, opts...)
	server := httptest.NewServer(f)
	t.Cleanup(server.Close)
	return f, server.URL
}

func TestRootCmd_Help(t *testing.T) {
	stdout, _, err := execute(t)
	require.NoError(t, err)
	assert.Contains(t, stdout, "surveyload")
	assert.Contains(t, stdout, "partition")
	assert.Contains(t, stdout, "run")
}

func TestRootCmd_Version(t *testing.T) {
	stdout, _, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, stdout, version)
}

func TestPartitionCmd(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "even",
			args: []string{"--records", "10", "--workers", "2"},
			want: "0  0...4\n1  5...9\n",
		},
		{
			name: "uneven",
			args: []string{"--records", "7", "--workers", "3"},
			want: "0  0...1\n1  2...3\n2  4...6\n",
		},
		{
			name: "more workers than records",
			args: []string{"--records", "1", "--workers", "3"},
			want: "0  0...-1\n1  0...-1\n2  0...0\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := execute(t, append([]string{"partition"}, tt.args...)...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stdout)
		})
	}
}

func TestPartitionCmd_DataFile(t *testing.T) {
	path := writeDataset(t, testRecords)

	stdout, _, err := execute(t, "partition", "--data-file", path, "--workers", "2")
	require.NoError(t, err)
	assert.Equal(t, "0  0...0\n1  1...2\n", stdout)
}

func TestPartitionCmd_InvalidWorkers(t *testing.T) {
	_, _, err := execute(t, "partition", "--records", "5", "--workers", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--workers")
}

func TestConfigCmd(t *testing.T) {
	stdout, _, err := execute(t, "config", "--workers", "7", "--allow-host", "eq.example.com")
	require.NoError(t, err)
	assert.Contains(t, stdout, "workers: 7")
	assert.Contains(t, stdout, "eq.example.com")

	// The printed configuration is itself a valid configuration file.
	assert.NoError(t, config.CheckDocument([]byte(stdout)))
}

func TestConfigCmd_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("load:\n  workers: 0\n"), 0o644))

	_, _, err := execute(t, "config", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load.workers")
}

func TestRunCmd_Completes(t *testing.T) {
	f, baseURL := startFrontend(t, testRecords)
	path := writeDataset(t, testRecords)

	stdout, _, err := execute(t, "run",
		"--base-url", baseURL,
		"--data-file", path,
		"--workers", "2",
		"--passes", "2",
		"--report-interval", "10ms",
		"--no-color")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(stdout, "0  0...0\n1  1...2\n"), stdout)
	assert.Contains(t, stdout, "Completed")
	assert.Contains(t, stdout, "Exchanges:     18")
	assert.Equal(t, 18, f.Count())
}

func TestRunCmd_FailureReport(t *testing.T) {
	// The front-end does not know the last record.
	_, baseURL := startFrontend(t, testRecords[:2])
	path := writeDataset(t, testRecords)

	stdout, _, err := execute(t, "run",
		"--base-url", baseURL,
		"--data-file", path,
		"--workers", "1",
		"--no-color")

	var fatal *loadgen.FatalError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, "UAC0000000000003", fatal.Record.AccessCode)
	assert.Contains(t, stdout, "Failed for POST_Uac due to: Expected 200 but got: 401")
	assert.Contains(t, stdout, "Failed ✗")
}

func TestRunCmd_JSONSummary(t *testing.T) {
	_, baseURL := startFrontend(t, testRecords)
	path := writeDataset(t, testRecords)

	stdout, stderr, err := execute(t, "run",
		"--base-url", baseURL,
		"--data-file", path,
		"--workers", "1",
		"--passes", "1",
		"--summary", "json")
	require.NoError(t, err)

	var summary output.Summary
	require.NoError(t, json.Unmarshal([]byte(stdout), &summary), stdout)
	assert.Equal(t, "completed", summary.Status)
	assert.Equal(t, int64(9), summary.Exchanges)
	require.Len(t, summary.Workers, 1)
	assert.Equal(t, "0...2", summary.Workers[0].Range)
	assert.Contains(t, stderr, "0  0...2")
}

func TestRunCmd_JSONSummaryOnFailure(t *testing.T) {
	_, baseURL := startFrontend(t, testRecords[:2])
	path := writeDataset(t, testRecords)

	stdout, stderr, err := execute(t, "run",
		"--base-url", baseURL,
		"--data-file", path,
		"--workers", "1",
		"--no-color",
		"--summary", "json")

	var fatal *loadgen.FatalError
	require.ErrorAs(t, err, &fatal)

	var summary output.Summary
	require.NoError(t, json.Unmarshal([]byte(stdout), &summary), stdout)
	assert.Equal(t, "failed", summary.Status)
	assert.NotEmpty(t, summary.Error)
	assert.Contains(t, stderr, "Failed for POST_Uac due to: Expected 200 but got: 401")
}

func TestRunCmd_EmptyDataset(t *testing.T) {
	path := writeDataset(t, nil)

	_, _, err := execute(t, "run", "--data-file", path)
	assert.True(t, errors.Is(err, dataset.ErrEmptyDataset))
}

func TestRunCmd_InvalidSummaryFormat(t *testing.T) {
	_, _, err := execute(t, "run", "--summary", "html")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown summary format")
}

func TestRunCmd_MissingDataset(t *testing.T) {
	_, _, err := execute(t, "run", "--data-file", filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Load.Workers = 4
	cfg.Load.Passes = 3
	cfg.Load.Rate = 25
	cfg.Load.Pacing = config.PacingConfig{Type: "random", Min: config.Duration(1), Max: config.Duration(5)}
	cfg.Checks.StartPageMarker = frontend.StartPageMarker

	opts := loadOptions(cfg)
	assert.Equal(t, 4, opts.Workers)
	assert.Equal(t, 3, opts.MaxPasses)
	assert.Equal(t, 25.0, opts.Rate)
	assert.Equal(t, frontend.StartPageMarker, opts.Driver.StartPageMarker)
	assert.Equal(t, frontend.ConfirmPath, opts.Driver.ConfirmPath)
	require.NotNil(t, opts.Pacing)
	assert.Equal(t, loadgen.PacingRandom, opts.Pacing.Type)

	cfg.Load.Pacing = config.PacingConfig{Type: "none"}
	assert.Nil(t, loadOptions(cfg).Pacing)
}
