package main

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

	"github.com/polisai/phonescope/pkg/domain"
)

func TestParseCLIConfig(t *testing.T) {
	tests := []struct {
		name     string
		command  string
		args     []string
		expected *CLIConfig
	}{
		{
			name:     "default values",
			command:  "run",
			args:     nil,
			expected: &CLIConfig{},
		},
		{
			name:    "run flags",
			command: "run",
			args: []string{
				"--silent",
				"--output", "/tmp/out.json",
				"--deep-scan",
				"--concurrency", "3",
				"--timeout", "2s",
			},
			expected: &CLIConfig{
				Silent:      true,
				Output:      "/tmp/out.json",
				DeepScan:    true,
				Concurrency: 3,
				Timeout:     2 * time.Second,
			},
		},
		{
			name:    "batch flags",
			command: "batch",
			args: []string{
				"-w",
				"-c", "/etc/phonescope.yaml",
				"-l", "debug",
				"--report-dir", "/var/reports",
			},
			expected: &CLIConfig{
				Watch:     true,
				Config:    "/etc/phonescope.yaml",
				LogLevel:  "debug",
				ReportDir: "/var/reports",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := newRootCmd()
			cmd, _, err := root.Find([]string{tt.command})
			require.NoError(t, err)
			require.NoError(t, cmd.ParseFlags(tt.args))

			cli, err := parseCLIConfig(cmd)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, cli)
		})
	}
}

func TestBuildConfigOverrides(t *testing.T) {
	cfg, err := buildConfig(&CLIConfig{
		Concurrency: 3,
		Timeout:     time.Second,
		ReportDir:   "out",
		LogLevel:    "debug",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Aggregator.Concurrency)
	assert.Equal(t, time.Second, cfg.Aggregator.ProviderTimeout)
	assert.Equal(t, "out", cfg.Report.Dir)
	assert.Equal(t, "debug", cfg.Logging.Level)

	cfg, err = buildConfig(&CLIConfig{Silent: true, LogLevel: "debug"})
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Logging.Level)

	_, err = buildConfig(&CLIConfig{Concurrency: 100})
	assert.ErrorIs(t, err, domain.ErrConfigInvalid)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitOK, exitCode(nil))
	assert.Equal(t, exitInput, exitCode(fmt.Errorf("analyze: %w", domain.NewInputError("x", "no digits"))))
	assert.Equal(t, exitIOError, exitCode(fmt.Errorf("write report: %w", &domain.IOError{Op: "mkdir", Err: errors.New("denied")})))
	assert.Equal(t, exitFatal, exitCode(errors.New("config: bad")))
}

func TestExecuteRejectsInvalidNumber(t *testing.T) {
	dir := t.TempDir()
	var stdout, stderr bytes.Buffer

	code := execute([]string{"run", "not-a-number", "--silent", "--report-dir", dir}, &stdout, &stderr)

	assert.Equal(t, exitInput, code)
	assert.Contains(t, stderr.String(), "Error: analyze: invalid number")
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no report for rejected input")
}

func TestExecuteBadConfig(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := execute([]string{"providers", "--concurrency", "99"}, &stdout, &stderr)
	assert.Equal(t, exitFatal, code)
	assert.Contains(t, stderr.String(), "Error: config:")
}

func TestExecuteProviders(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := execute([]string{"providers", "--timeout", "3s"}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())

	out := stdout.String()
	for _, name := range []string{"phonenumbers", "numverify", "whatsapp", "telegram", "wa_profile", "truecaller"} {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, out, "3s")
	assert.NotContains(t, out, "wa_status")

	stdout.Reset()
	code = execute([]string{"providers", "--deep-scan"}, &stdout, &stderr)
	require.Equal(t, exitOK, code)
	assert.Contains(t, stdout.String(), "wa_status")
	assert.Contains(t, stdout.String(), "30s")
}

func TestExecuteBatchSkipsInvalidTargets(t *testing.T) {
	dir := t.TempDir()
	targets := filepath.Join(dir, "targets.txt")
	require.NoError(t, os.WriteFile(targets, []byte("# nothing dialable\nnot-a-number\n12\n"), 0o644))

	var stdout, stderr bytes.Buffer
	code := execute([]string{"batch", targets, "--report-dir", filepath.Join(dir, "reports")}, &stdout, &stderr)

	require.Equal(t, exitOK, code, stderr.String())
	assert.Contains(t, stdout.String(), "0/2 reports written")
}

func TestExecuteBatchMissingFile(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := execute([]string{"batch", filepath.Join(t.TempDir(), "missing.txt")}, &stdout, &stderr)
	assert.Equal(t, exitFatal, code)
}
