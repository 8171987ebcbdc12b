// Package datawriter persists SaveRequests to per-day CSV logs and
// companion PNG plots, modeled as a single dedicated consumer goroutine
// reading a bounded channel — the same single-writer shape as the
// teacher's batched store writers, adapted from a database sink to a
// plain filesystem sink since this instrument has no SQL dependency.
package datawriter

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/internal/model"
	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/internal/telemetry"
)

// Writer consumes SaveRequests and writes CSV rows plus PNG plots under
// dataDir. It owns no shared mutable state beyond its open file handle
// cache, so it is safe as a single goroutine with no locking.
type Writer struct {
	dataDir  string
	renderer model.SpectralRenderer
	metrics  *telemetry.Metrics
	log      *slog.Logger

	openFiles map[string]*os.File // keyed by absolute CSV path

	writeFail atomic.Bool
	dayCounts map[string]int // per-day REFLECTANCE/RAW save count, for plot titles
}

// NewWriter creates a writer rooted at dataDir. renderer may be nil, in
// which case PNG plots are skipped (useful for headless tests).
func NewWriter(dataDir string, renderer model.SpectralRenderer, metrics *telemetry.Metrics, log *slog.Logger) *Writer {
	return &Writer{
		dataDir:   dataDir,
		renderer:  renderer,
		metrics:   metrics,
		log:       log,
		openFiles: make(map[string]*os.File),
		dayCounts: make(map[string]int),
	}
}

// Run consumes requests until ctx is cancelled or saveCh is closed.
func (w *Writer) Run(ctx context.Context, saveCh <-chan model.SaveRequest) {
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-saveCh:
			if !ok {
				return
			}
			w.handle(req)
		}
	}
}

func (w *Writer) handle(req model.SaveRequest) {
	start := time.Now()
	if err := w.writeCSVRow(req); err != nil {
		w.log.Warn("csv write failed", "err", err)
		w.writeFail.Store(true)
	} else {
		w.writeFail.Store(false)
	}
	w.metrics.CSVWriteDur.Observe(time.Since(start).Seconds())

	if !w.wantsPlot(req.SpectraType) {
		return
	}
	start = time.Now()
	if err := w.writePNG(req); err != nil {
		w.log.Warn("png write failed", "err", err)
	}
	w.metrics.PNGWriteDur.Observe(time.Since(start).Seconds())
}

// wantsPlot reports whether a PNG companion is emitted for this spectra
// type: RAW and REFLECTANCE samples only, not reference captures or the
// RAW_REFLECTANCE companion row.
func (w *Writer) wantsPlot(t model.SpectraType) bool {
	return t == model.SpectraRaw || t == model.SpectraReflectance
}

// WriteFailed reports whether the most recent CSV write failed, for the
// UI's transient "save failed" banner.
func (w *Writer) WriteFailed() bool {
	return w.writeFail.Load()
}

// Close flushes and releases all open file handles.
func (w *Writer) Close() error {
	var first error
	for _, f := range w.openFiles {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
