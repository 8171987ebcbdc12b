package datawriter

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/internal/model"
)

// csvPath returns the per-day CSV path for a given save request's
// timestamp, e.g. <dataDir>/2026-07-31/2026-07-31_spectra_log.csv.
func (w *Writer) csvPath(req model.SaveRequest) (dayDir, path string) {
	day := req.Timestamp.UTC().Format("2006-01-02")
	dayDir = filepath.Join(w.dataDir, day)
	path = filepath.Join(dayDir, day+"_spectra_log.csv")
	return dayDir, path
}

// writeCSVRow appends one row to the appropriate per-day log, writing the
// header first if the file did not already exist (invariant 7 in
// SPEC_FULL.md §8).
func (w *Writer) writeCSVRow(req model.SaveRequest) error {
	dayDir, path := w.csvPath(req)
	if err := os.MkdirAll(dayDir, 0o755); err != nil {
		return err
	}

	f, isNew, err := w.openOrCreate(path)
	if err != nil {
		return err
	}

	if isNew {
		if _, err := f.WriteString(headerRow(req.Wavelengths)); err != nil {
			return err
		}
	}

	row := formatRow(req)
	_, err = f.WriteString(row)
	return err
}

// openOrCreate returns a cached, append-mode handle for path, opening it
// (and reporting whether it was newly created / previously empty) if not
// already cached.
func (w *Writer) openOrCreate(path string) (f *os.File, isNew bool, err error) {
	if cached, ok := w.openFiles[path]; ok {
		return cached, false, nil
	}

	info, statErr := os.Stat(path)
	isNew = statErr != nil || info.Size() == 0

	f, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, false, err
	}
	w.openFiles[path] = f
	return f, isNew, nil
}

func headerRow(wavelengths []float64) string {
	cols := []string{"timestamp_utc", "spectra_type", "lens_type", "integration_time_ms", "temperature_c"}
	for _, wl := range wavelengths {
		cols = append(cols, strconv.FormatFloat(wl, 'f', 2, 64))
	}
	return joinCSV(cols) + "\n"
}

func formatRow(req model.SaveRequest) string {
	tempStr := "N/A"
	if req.TemperatureC != nil {
		tempStr = strconv.FormatFloat(*req.TemperatureC, 'f', 1, 64)
	}

	cols := make([]string, 0, 5+len(req.Intensities))
	cols = append(cols,
		req.Timestamp.UTC().Format("2006-01-02T15:04:05")+"Z",
		string(req.SpectraType),
		string(req.LensType),
		strconv.Itoa(req.IntegrationTimeMS),
		tempStr,
	)
	for _, v := range req.Intensities {
		cols = append(cols, strconv.FormatFloat(v, 'f', 4, 64))
	}
	return joinCSV(cols) + "\n"
}

func joinCSV(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ","
		}
		out += c
	}
	return out
}
