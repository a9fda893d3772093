// Package report persists analysis reports as JSON files and renders the
// condensed summary printed after a run.
package report

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/polisai/phonescope/pkg/domain"
)

// Defaults for the generated file name.
const (
	DefaultDir    = "reports"
	DefaultPrefix = "phonescope"

	timestampLayout = "20060102_150405"
)

// Config controls where reports are written.
type Config struct {
	Dir    string
	Prefix string
	// Output, when set, is the exact destination and Dir/Prefix are ignored.
	Output string
}

// Writer writes reports to disk. A report is written once; the file appears
// atomically through a rename from a temporary sibling.
type Writer struct {
	cfg    Config
	logger *slog.Logger
}

// NewWriter creates a Writer.
func NewWriter(cfg Config, logger *slog.Logger) *Writer {
	if cfg.Dir == "" {
		cfg.Dir = DefaultDir
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{cfg: cfg, logger: logger}
}

// Path returns the destination for report, as named by target.
func (w *Writer) Path(report *domain.Report, target string) string {
	if w.cfg.Output != "" {
		return w.cfg.Output
	}
	name := fmt.Sprintf("%s_report_%s_%s.json",
		w.cfg.Prefix,
		SanitizeTarget(target),
		report.Timestamp.Format(timestampLayout),
	)
	return filepath.Join(w.cfg.Dir, name)
}

// Write persists report and returns the file path. Failures are *domain.IOError.
func (w *Writer) Write(report *domain.Report, target string) (string, error) {
	path := w.Path(report, target)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", &domain.IOError{Op: "encode", Path: path, Err: err}
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", notWritable("mkdir", dir, err)
	}

	tmp := filepath.Join(dir, "."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return "", notWritable("write", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", notWritable("rename", path, err)
	}

	w.logger.Debug("report written", "path", path, "bytes", len(data))
	return path, nil
}

func notWritable(op, path string, err error) *domain.IOError {
	return &domain.IOError{Op: op, Path: path, Err: fmt.Errorf("%w: %w", domain.ErrReportNotWritable, err)}
}

// Load reads a report written by Write.
func Load(path string) (*domain.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.IOError{Op: "read", Path: path, Err: err}
	}
	var r domain.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return &r, nil
}

// SanitizeTarget makes target safe for use in a file name. Digits, letters and
// a leading '+' survive; every other run of characters becomes one '_'.
func SanitizeTarget(target string) string {
	var b strings.Builder
	lastUnderscore := false
	for i, r := range strings.TrimSpace(target) {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			b.WriteRune(r)
			lastUnderscore = false
		case r == '+' && i == 0:
			b.WriteRune(r)
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.TrimSuffix(b.String(), "_")
	if out == "" || out == "+" {
		return "unknown"
	}
	return out
}
