// Package inbox watches a drop directory and registers every tabular
// file placed there as a new form. Files are removed after successful
// registration; files that fail to parse are renamed with a .rejected
// suffix so they are not retried forever.
package inbox

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/fehu/internal/apperr"
	"github.com/starford/fehu/internal/formservice"
	"github.com/starford/fehu/internal/tabular"
)

const (
	// settleDelay is how long a file must be quiet before we pick it up.
	// Copies into the inbox arrive as a burst of Write events; processing
	// too early reads a half-written workbook.
	settleDelay = 500 * time.Millisecond
	sweepEvery  = 250 * time.Millisecond
)

// Watch starts an fsnotify watcher on dir and processes dropped files
// until ctx is cancelled. The inbox is flat: subdirectories are ignored.
func Watch(ctx context.Context, svc *formservice.Service, dir string, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}

	logger.Info("inbox: started", slog.String("dir", dir))

	// Pick up anything already sitting in the inbox from a previous run.
	pending := map[string]time.Time{}
	if entries, readErr := os.ReadDir(dir); readErr == nil {
		for _, e := range entries {
			if !e.IsDir() && eligible(e.Name()) {
				pending[filepath.Join(dir, e.Name())] = time.Now()
			}
		}
	}

	ticker := time.NewTicker(sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("inbox: stopped")
			return nil

		case <-ticker.C:
			now := time.Now()
			for path, last := range pending {
				if now.Sub(last) < settleDelay {
					continue
				}
				delete(pending, path)
				process(ctx, svc, path, logger)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				delete(pending, ev.Name)
				continue
			}
			if !eligible(filepath.Base(ev.Name)) {
				continue
			}
			if info, statErr := os.Stat(ev.Name); statErr != nil || info.IsDir() {
				continue
			}
			pending[ev.Name] = time.Now()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("inbox: error", slog.String("error", watchErr.Error()))
		}
	}
}

// eligible reports whether a file name looks like a registerable upload.
func eligible(name string) bool {
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".rejected") {
		return false
	}
	_, err := tabular.FormatFromFilename(name)
	return err == nil
}

// process registers one dropped file as a form. The form title is the
// file name without its extension.
func process(ctx context.Context, svc *formservice.Service, path string, logger *slog.Logger) {
	name := filepath.Base(path)

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("inbox: read failed", slog.String("file", name), slog.String("error", err.Error()))
		return
	}

	format, err := tabular.FormatFromFilename(name)
	if err != nil {
		return
	}

	title := strings.TrimSuffix(name, filepath.Ext(name))
	def, err := svc.CreateFormFromUpload(ctx, title, name, data, format)
	if err != nil {
		if errors.Is(err, apperr.ErrFormat) {
			logger.Warn("inbox: rejected", slog.String("file", name), slog.String("error", err.Error()))
			if renameErr := os.Rename(path, path+".rejected"); renameErr != nil {
				logger.Warn("inbox: rename failed", slog.String("file", name), slog.String("error", renameErr.Error()))
			}
			return
		}
		// Storage errors are transient; leave the file for the next run.
		logger.Error("inbox: register failed", slog.String("file", name), slog.String("error", err.Error()))
		return
	}

	if err := os.Remove(path); err != nil {
		logger.Warn("inbox: cleanup failed", slog.String("file", name), slog.String("error", err.Error()))
	}
	logger.Info("inbox: registered form",
		slog.String("form_id", def.ID),
		slog.String("title", def.Title),
		slog.String("file", name))
}
