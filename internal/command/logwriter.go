package command

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
)

// Redactor masks secret values.
type Redactor struct {
	replacer *strings.Replacer
}

// NewRedactor masks every non-empty value.
func NewRedactor(values ...string) *Redactor {
	var pairs []string
	for _, v := range values {
		if v != "" {
			pairs = append(pairs, v, "***")
		}
	}
	if len(pairs) == 0 {
		return &Redactor{}
	}
	return &Redactor{replacer: strings.NewReplacer(pairs...)}
}

// Apply returns s with secret values replaced.
func (r *Redactor) Apply(s string) string {
	if r == nil || r.replacer == nil {
		return s
	}
	return r.replacer.Replace(s)
}

// LineWriter logs everything written to it, one record per line.
type LineWriter struct {
	mu       sync.Mutex
	logger   *slog.Logger
	stream   string
	redactor *Redactor
	buf      bytes.Buffer
}

// NewLineWriter returns a writer logging at Info with a `stream` attribute.
func NewLineWriter(logger *slog.Logger, stream string, redactor *Redactor) *LineWriter {
	return &LineWriter{logger: logger, stream: stream, redactor: redactor}
}

func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// Incomplete line: keep it for the next write.
			w.buf.Reset()
			w.buf.WriteString(line)
			break
		}
		w.emit(line)
	}
	return len(p), nil
}

// Flush logs a trailing line without newline, if any.
func (w *LineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() > 0 {
		w.emit(w.buf.String())
		w.buf.Reset()
	}
}

func (w *LineWriter) emit(line string) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return
	}
	w.logger.Info(w.redactor.Apply(line), "stream", w.stream)
}
