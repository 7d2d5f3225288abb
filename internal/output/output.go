// Package output persists lookup results, either appended to one combined
// file or as one JSON file per domain.
package output

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"techlookup/internal/prompt"
	"techlookup/pkg/domain"
	"techlookup/pkg/logger"
	"techlookup/pkg/metrics"
	"techlookup/pkg/serrors"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Options select where results go.
type Options struct {
	// CombinedPath, when it names an existing regular file, receives all
	// results appended as a single JSON array. Otherwise per-domain files are
	// written.
	CombinedPath string
	// Dir is the directory for per-domain files.
	Dir string
}

// Writer writes run results.
type Writer struct {
	fs       afero.Fs
	prompter prompt.Prompter
	metrics  *metrics.Metrics
	options  Options
}

// Combined reports whether results will be appended to the combined file.
func (w *Writer) Combined() bool {
	if w.options.CombinedPath == "" {
		return false
	}
	info, err := w.fs.Stat(w.options.CombinedPath)

	return err == nil && info.Mode().IsRegular()
}

// Write persists results and returns the paths it wrote to.
func (w *Writer) Write(ctx context.Context, results []domain.Result) ([]string, error) {
	if w.Combined() {
		if err := w.appendCombined(results); err != nil {
			return nil, err
		}
		w.metrics.FileWritten()
		logger.Info(ctx, "appended results", zap.String("file", w.options.CombinedPath), zap.Int("results", len(results)))

		return []string{w.options.CombinedPath}, nil
	}

	if w.options.CombinedPath != "" {
		logger.Info(ctx, "output file does not exist, creating a separate file for each domain",
			zap.String("file", w.options.CombinedPath))
	} else {
		logger.Info(ctx, "no output file given, creating a separate file for each domain")
	}

	written := make([]string, 0, len(results))
	for _, res := range results {
		path, err := w.writeOne(ctx, res)
		if err != nil {
			return written, err
		}
		if path != "" {
			written = append(written, path)
		}
	}

	return written, nil
}

func (w *Writer) appendCombined(results []domain.Result) error {
	if results == nil {
		results = []domain.Result{}
	}
	data, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("could not encode results: %w", err)
	}

	f, err := w.fs.OpenFile(w.options.CombinedPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("could not open output file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("could not write output file: %w", err)
	}

	return nil
}

// writeOne writes a single record. It returns an empty path when the record
// was skipped.
func (w *Writer) writeOne(ctx context.Context, res domain.Result) (string, error) {
	ctx = logger.WithFields(ctx, zap.String("url", res.URL))

	name, err := Filename(res.URL)
	if err != nil {
		logger.Warn(ctx, "skipping result without a usable URL", zap.Error(err))

		return "", nil
	}
	data, err := json.Marshal(res)
	if err != nil {
		return "", fmt.Errorf("could not encode result: %w", err)
	}

	path := w.resolve(name)
	err = w.create(path, data, true)
	if errors.Is(err, serrors.ErrConflict) {
		logger.Warn(ctx, "output file already exists", zap.String("file", path))
		answer, askErr := w.prompter.Ask(ctx, fmt.Sprintf("Enter new filename for %s : ", res.URL))
		if askErr != nil {
			return "", fmt.Errorf("could not read new filename: %w", askErr)
		}
		answer = strings.TrimSpace(answer)
		if answer == "" {
			logger.Warn(ctx, "no filename given, result not saved")

			return "", nil
		}
		// a name typed by the user replaces whatever is there
		path = w.resolve(answer)
		err = w.create(path, data, false)
	}
	if err != nil {
		return "", err
	}
	w.metrics.FileWritten()
	logger.Info(ctx, "created file", zap.String("file", path))

	return path, nil
}

// create writes data to path. With exclusive set an existing file is left
// alone and serrors.ErrConflict is returned.
func (w *Writer) create(path string, data []byte, exclusive bool) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := w.fs.MkdirAll(dir, 0o755); err != nil && !errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("could not create output directory: %w", err)
		}
	}

	flag := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if exclusive {
		flag = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	f, err := w.fs.OpenFile(path, flag, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return serrors.Wrap(serrors.ErrConflict, err, "output file %q already exists", path)
	}
	if err != nil {
		return fmt.Errorf("could not create output file: %w", err)
	}

	_, err = f.Write(data)
	if err = errors.Join(err, f.Close()); err != nil {
		return fmt.Errorf("could not write output file: %w", err)
	}

	return nil
}

func (w *Writer) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}

	return filepath.Join(w.options.Dir, name)
}

// New creates a Writer on fsys. An empty Dir means the working directory.
func New(fsys afero.Fs, prompter prompt.Prompter, m *metrics.Metrics, options Options) *Writer {
	if options.Dir == "" {
		options.Dir = "."
	}

	return &Writer{
		fs:       fsys,
		prompter: prompter,
		metrics:  m,
		options:  options,
	}
}
