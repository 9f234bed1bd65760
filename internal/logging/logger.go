package logging

import (
	"encoding/hex"
	"fmt"
	"net/netip"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger *zap.Logger

// LogLevelEnvVar names the variable read when no --log-level is given:
// one of debug, info, warn or error. Unset means no output at all.
const LogLevelEnvVar = "LANPROBE_LOG_LEVEL"

// maxDumpBytes caps hex and ASCII dumps so a full receive window
// does not flood the console.
const maxDumpBytes = 256

// LogFormatEnvVar selects the encoding: "console" (default) or "json".
// JSON output is what tools/validate_datagrams.go reads most reliably.
const LogFormatEnvVar = "LANPROBE_LOG_FORMAT"

// Initialize builds the global logger at the given level. An empty level
// falls back to LANPROBE_LOG_LEVEL; when that is empty too the logger stays
// silent. Unknown level names log at info.
func Initialize(level string) error {
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}
	if level == "" {
		logger = zap.NewNop()
		return nil
	}

	zapLevel, err := ParseLevel(level)
	if err != nil {
		zapLevel = zapcore.InfoLevel
	}

	built, err := newConfig(zapLevel, os.Getenv(LogFormatEnvVar)).Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger = built

	return nil
}

// newConfig writes to stderr so stdout stays free for command output.
func newConfig(level zapcore.Level, format string) zap.Config {
	encoding := "console"
	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		encoding = "json"
		enc = zap.NewProductionEncoderConfig()
	}
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeCaller = zapcore.ShortCallerEncoder

	return zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Encoding:         encoding,
		EncoderConfig:    enc,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
}

// InitializeFromEnv initializes the logger from the LANPROBE_LOG_LEVEL
// environment variable.
func InitializeFromEnv() error {
	return Initialize("")
}

// ParseLevel maps a level name to a zap level.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// SetLogger replaces the global logger. Tests use it with zaptest/observer.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}

// GetLogger returns the global logger, a no-op one before Initialize.
func GetLogger() *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger
}

func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

// Direction labels a datagram in LogDatagram output.
type Direction string

// Datagram directions, shared by every socket owner so logs group cleanly.
const (
	DirSend Direction = "send"
	DirRecv Direction = "recv"
)

// LogDatagram logs one UDP datagram in either direction.
// The hex dump is only attached at debug level.
func LogDatagram(direction Direction, peer netip.AddrPort, data []byte) {
	fields := []zap.Field{
		zap.String("direction", string(direction)),
		zap.Stringer("peer", peer),
		zap.Int("length", len(data)),
	}

	if GetLogger().Core().Enabled(zapcore.DebugLevel) {
		fields = append(fields, zap.String("hex_dump", hexDump(data)))
	}

	Debug("Datagram", fields...)
}

// LogRawBytes logs bytes that never made it through the frame decoder.
func LogRawBytes(label string, data []byte) {
	Debug(label,
		zap.Int("length", len(data)),
		zap.String("hex", hexDump(data)),
		zap.String("ascii", asciiDump(data)),
	)
}

func hexDump(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	if len(data) > maxDumpBytes {
		return hex.EncodeToString(data[:maxDumpBytes]) + "..."
	}
	return hex.EncodeToString(data)
}

func asciiDump(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	if len(data) > maxDumpBytes {
		data = data[:maxDumpBytes]
	}

	result := make([]byte, len(data))
	for i, b := range data {
		if b >= 32 && b <= 126 {
			result[i] = b
		} else {
			result[i] = '.'
		}
	}
	return string(result)
}

// Sync flushes any buffered log entries
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}
