package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// consoleFieldLimit caps how many attribute lines a single record may print.
const consoleFieldLimit = 8

// field is a flattened, already-formatted attribute ready for printing.
type field struct {
	key   string
	value string
}

type prettyHandler struct {
	mu        sync.Mutex
	writer    io.Writer
	level     *slog.LevelVar
	attrs     []slog.Attr
	groups    []string
	addSource bool
}

func newPrettyHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &prettyHandler{writer: w, level: lvl, addSource: addSource}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *prettyHandler) Handle(_ context.Context, record slog.Record) error {
	if record.Level < h.level.Level() {
		return nil
	}

	fields := make([]field, 0, record.NumAttrs()+len(h.attrs))
	for _, attr := range h.attrs {
		fields = appendFlattened(fields, h.groups, attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		fields = appendFlattened(fields, h.groups, attr)
		return true
	})

	header, rest := splitHeaderFields(fields)

	var buf bytes.Buffer
	buf.Grow(128 + len(rest)*24)
	h.writeHeader(&buf, record, header)
	writeFieldLines(&buf, rest)

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.writer.Write(buf.Bytes())
	return err
}

// headerFields carries the attributes promoted out of the field list and into
// the log line itself.
type headerFields struct {
	component string
	jobID     string
	stage     string
}

func splitHeaderFields(fields []field) (headerFields, []field) {
	var header headerFields
	rest := make([]field, 0, len(fields))
	for _, f := range fields {
		switch f.key {
		case FieldComponent:
			if header.component == "" {
				header.component = f.value
			}
		case FieldJobID:
			if header.jobID == "" {
				header.jobID = f.value
			}
		case FieldStage:
			if header.stage == "" {
				header.stage = f.value
			}
		default:
			rest = append(rest, f)
		}
	}
	return header, rest
}

func (h *prettyHandler) writeHeader(buf *bytes.Buffer, record slog.Record, header headerFields) {
	timestamp := record.Time
	if timestamp.IsZero() {
		timestamp = time.Now()
	}
	buf.WriteString(timestamp.UTC().Format(time.RFC3339))
	buf.WriteByte(' ')
	buf.WriteString(levelLabel(record.Level))
	buf.WriteByte(' ')
	if header.component != "" {
		buf.WriteString(header.component)
		buf.WriteString(": ")
	}
	message := strings.TrimSpace(record.Message)
	if message == "" {
		message = "(no message)"
	}
	buf.WriteString(message)
	if header.jobID != "" || header.stage != "" {
		buf.WriteString(" [")
		if header.jobID != "" {
			buf.WriteString("job ")
			buf.WriteString(shortID(header.jobID))
		}
		if header.stage != "" {
			if header.jobID != "" {
				buf.WriteByte(' ')
			}
			buf.WriteString(header.stage)
		}
		buf.WriteByte(']')
	}
	if h.addSource {
		if src := recordSource(record); src != nil && src.File != "" {
			fmt.Fprintf(buf, " (%s:%d)", filepath.Base(src.File), src.Line)
		}
	}
	buf.WriteByte('\n')
}

// recordSource resolves the record's PC into a source location, matching
// slog.Record.Source, which needs a newer toolchain than this module targets.
func recordSource(record slog.Record) *slog.Source {
	if record.PC == 0 {
		return nil
	}
	frames := runtime.CallersFrames([]uintptr{record.PC})
	frame, _ := frames.Next()
	return &slog.Source{Function: frame.Function, File: frame.File, Line: frame.Line}
}

func writeFieldLines(buf *bytes.Buffer, fields []field) {
	hidden := 0
	if len(fields) > consoleFieldLimit {
		hidden = len(fields) - consoleFieldLimit
		fields = fields[:consoleFieldLimit]
	}
	for _, f := range fields {
		buf.WriteString("    - ")
		buf.WriteString(f.key)
		buf.WriteString(": ")
		buf.WriteString(f.value)
		buf.WriteByte('\n')
	}
	switch {
	case hidden == 1:
		buf.WriteString("    + 1 more field\n")
	case hidden > 1:
		fmt.Fprintf(buf, "    + %d more fields\n", hidden)
	}
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := h.clone()
	clone.attrs = append(clone.attrs, attrs...)
	return clone
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := h.clone()
	clone.groups = append(clone.groups, name)
	return clone
}

func (h *prettyHandler) clone() *prettyHandler {
	return &prettyHandler{
		writer:    h.writer,
		level:     h.level,
		attrs:     append([]slog.Attr(nil), h.attrs...),
		groups:    append([]string(nil), h.groups...),
		addSource: h.addSource,
	}
}

// appendFlattened expands attr into formatted fields, recursing through
// groups and joining group names into dotted key prefixes.
func appendFlattened(fields []field, groups []string, attr slog.Attr) []field {
	if attr.Equal(slog.Attr{}) {
		return fields
	}
	value := attr.Value.Resolve()
	if value.Kind() == slog.KindGroup {
		nested := groups
		if attr.Key != "" {
			nested = append(append([]string(nil), groups...), attr.Key)
		}
		for _, member := range value.Group() {
			fields = appendFlattened(fields, nested, member)
		}
		return fields
	}

	key := attr.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + key
	}
	return append(fields, field{key: key, value: formatValue(value)})
}

func formatValue(value slog.Value) string {
	switch value.Kind() {
	case slog.KindString:
		return value.String()
	case slog.KindBool:
		return strconv.FormatBool(value.Bool())
	case slog.KindInt64:
		return strconv.FormatInt(value.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(value.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(value.Float64(), 'f', -1, 64)
	case slog.KindDuration:
		return value.Duration().String()
	case slog.KindTime:
		return value.Time().UTC().Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", value.Any())
	}
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN "
	case level >= slog.LevelInfo:
		return "INFO "
	default:
		return "DEBUG"
	}
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
