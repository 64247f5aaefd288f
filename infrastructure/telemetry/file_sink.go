package telemetry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultLogFile is used when no slow query log path is configured.
const DefaultLogFile = "graph_slow_queries.log"

const shortStatementLen = 80

// FileSink appends one JSON line per record to a log file. Each line carries
// the record under the "context" key so AnalyzeLog can read it back.
type FileSink struct {
	file   *os.File
	logger *zap.Logger
	path   string
}

// NewFileSink opens (or creates) path for appending. If the parent directory
// cannot be created it falls back to DefaultLogFile in the working directory.
func NewFileSink(path string, logger *zap.Logger) (*FileSink, error) {
	if path == "" {
		path = DefaultLogFile
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Warn("Failed to create slow query log directory, using working directory",
				zap.String("dir", dir), zap.Error(err))
			path = DefaultLogFile
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open slow query log %s: %w", path, err)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	encoderConfig.CallerKey = zapcore.OmitKey
	encoderConfig.StacktraceKey = zapcore.OmitKey

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(file), zapcore.InfoLevel)
	return &FileSink{
		file:   file,
		logger: zap.New(core).Named("graph.queries"),
		path:   path,
	}, nil
}

// Path returns the file being written.
func (s *FileSink) Path() string {
	return s.path
}

// Write logs rec at WARN when slow, ERROR when failed and INFO otherwise.
// The full statement is kept only for queries slower than five times the
// threshold; other lines carry the first line of the statement.
func (s *FileSink) Write(_ context.Context, rec QueryRecord) error {
	short := shortStatement(rec.Statement)
	if rec.ThresholdMs <= 0 || rec.ElapsedMs <= rec.ThresholdMs*5 {
		rec.Statement = short
	}

	switch {
	case !rec.Success():
		s.logger.Error(fmt.Sprintf("Graph query error: %s - %.2fms - %s", rec.Name, rec.ElapsedMs, rec.Error),
			zap.Any("context", rec))
	case rec.Slow:
		s.logger.Warn(fmt.Sprintf("Graph query: %s (SLOW) - %.2fms - %s", rec.Name, rec.ElapsedMs, short),
			zap.Any("context", rec))
	default:
		s.logger.Info(fmt.Sprintf("Graph query: %s - %.2fms - %s", rec.Name, rec.ElapsedMs, short),
			zap.Any("context", rec))
	}
	return nil
}

// Close flushes and closes the file.
func (s *FileSink) Close() error {
	_ = s.logger.Sync()
	return s.file.Close()
}

func shortStatement(statement string) string {
	statement = strings.TrimSpace(statement)
	first, _, _ := strings.Cut(statement, "\n")
	first = strings.TrimSpace(first)
	if r := []rune(first); len(r) > shortStatementLen {
		return string(r[:shortStatementLen]) + "..."
	}
	if len(first) < len(statement) {
		return first + "..."
	}
	return first
}
