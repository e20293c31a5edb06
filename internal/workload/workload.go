// Package workload reads process workload files.
//
// A workload is plain text. The first non-blank line holds the Round-Robin
// quantum; every following non-blank line holds "arrival burst". Lines that
// fail validation are dropped and reported, the rest of the file still loads.
package workload

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/viant/afs"

	"github.com/me/schedsim/pkg/model"
)

// Workload is a parsed workload file, records in input order.
type Workload struct {
	ID          string
	Quantum     int
	Records     []model.ProcessRecord
	Diagnostics []*model.InvalidLineError
}

// Table returns a fresh table holding copies of the workload's records.
func (w *Workload) Table() model.ProcessTable {
	table := make(model.ProcessTable, len(w.Records))
	copy(table, w.Records)
	return table
}

// Loader fetches workloads through an afs.Service, so any scheme afs
// understands (file, mem, s3, gs, ...) can serve as a workload identifier.
type Loader struct {
	fs     afs.Service
	logger *slog.Logger
}

// NewLoader creates a Loader. A nil fs uses afs.New().
func NewLoader(fs afs.Service, logger *slog.Logger) *Loader {
	if fs == nil {
		fs = afs.New()
	}
	return &Loader{
		fs:     fs,
		logger: logger.With("component", "workload"),
	}
}

// Load downloads and parses the workload named by id.
// Open and quantum failures come back as *model.WorkloadError.
func (l *Loader) Load(ctx context.Context, id string) (*Workload, error) {
	location := Resolve(id)
	l.logger.Debug("loading workload", "workload", id, "url", location)

	data, err := l.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, &model.WorkloadError{Kind: model.WorkloadOpen, Workload: id, Err: err}
	}

	w, err := Parse(id, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	for _, d := range w.Diagnostics {
		l.logger.Warn("invalid workload line skipped", "workload", id, "line", d.Line, "text", d.Text, "error", d.Err)
	}
	return w, nil
}

// Resolve turns a workload identifier into a URL. Identifiers carrying a
// scheme are returned unchanged; anything else is treated as a local path.
func Resolve(id string) string {
	id = strings.TrimSpace(id)
	if strings.Contains(id, "://") {
		return id
	}
	abs, err := filepath.Abs(id)
	if err != nil {
		abs = id
	}
	return "file://" + filepath.ToSlash(abs)
}

// Within reports whether id resolves to a location inside one of roots.
// Roots are directories or URL prefixes and are resolved like ids; both
// sides are cleaned first, so ".." cannot climb out of a root.
func Within(id string, roots []string) bool {
	location := cleanURL(Resolve(id))
	for _, root := range roots {
		prefix := strings.TrimRight(cleanURL(Resolve(root)), "/")
		if location == prefix || strings.HasPrefix(location, prefix+"/") {
			return true
		}
	}
	return false
}

func cleanURL(u string) string {
	scheme, rest, ok := strings.Cut(u, "://")
	if !ok {
		return path.Clean(u)
	}
	return scheme + "://" + path.Clean(rest)
}

// Parse reads a workload from r. The id is used for error reporting only.
func Parse(id string, r io.Reader) (*Workload, error) {
	w := &Workload{ID: id}
	scanner := bufio.NewScanner(r)

	lineNo := 0
	haveQuantum := false
	for scanner.Scan() {
		lineNo++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		if !haveQuantum {
			q, err := parseQuantum(text)
			if err != nil {
				return nil, &model.WorkloadError{Kind: model.InvalidQuantum, Workload: id, Err: err}
			}
			w.Quantum = q
			haveQuantum = true
			continue
		}

		rec, err := parseRecord(text)
		if err != nil {
			w.Diagnostics = append(w.Diagnostics, &model.InvalidLineError{Line: lineNo, Text: text, Err: err})
			continue
		}
		w.Records = append(w.Records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, &model.WorkloadError{Kind: model.WorkloadOpen, Workload: id, Err: err}
	}
	if !haveQuantum {
		return nil, &model.WorkloadError{Kind: model.InvalidQuantum, Workload: id, Err: fmt.Errorf("quantum missing")}
	}
	return w, nil
}

func parseQuantum(text string) (int, error) {
	fields := strings.Fields(text)
	if len(fields) != 1 {
		return 0, fmt.Errorf("quantum line %q: want a single integer", text)
	}
	q, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, fmt.Errorf("quantum line %q: %w", text, err)
	}
	if q < 1 {
		return 0, fmt.Errorf("quantum %d < 1", q)
	}
	return q, nil
}

func parseRecord(text string) (model.ProcessRecord, error) {
	fields := strings.Fields(text)
	if len(fields) != 2 {
		return model.ProcessRecord{}, fmt.Errorf("want \"arrival burst\": %w", model.ErrMalformedLine)
	}
	arrival, err := strconv.Atoi(fields[0])
	if err != nil {
		return model.ProcessRecord{}, fmt.Errorf("arrival %q: %w", fields[0], model.ErrMalformedLine)
	}
	burst, err := strconv.Atoi(fields[1])
	if err != nil {
		return model.ProcessRecord{}, fmt.Errorf("burst %q: %w", fields[1], model.ErrMalformedLine)
	}
	return model.NewProcessRecord(arrival, burst)
}
