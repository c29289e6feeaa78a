package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger adapts a *zap.Logger to the Logger interface. Entries are JSON
// encoded and written to the same rotating file the text logger uses.
type ZapLogger struct {
	zl    *zap.Logger
	level zap.AtomicLevel
	out   *rotatingFile
	mu    *sync.Mutex
}

// NewZapLogger creates a JSON logger from config.
func NewZapLogger(config *Config) (*ZapLogger, error) {
	if config == nil {
		config = DefaultConfig()
	}

	rf, err := openRotatingFile(config.LogFilePath, config.MaxFileSize, config.MaxBackups)
	if err != nil {
		return nil, err
	}

	mu := &sync.Mutex{}
	sinks := []zapcore.WriteSyncer{zapcore.Lock(zapcore.AddSync(&lockedWriter{mu: mu, w: rf}))}
	if config.EnableConsole {
		sinks = append(sinks, zapcore.Lock(os.Stdout))
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	level := zap.NewAtomicLevelAt(toZapLevel(config.Level))
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.NewMultiWriteSyncer(sinks...), level)

	return &ZapLogger{
		zl:    zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel)),
		level: level,
		out:   rf,
		mu:    mu,
	}, nil
}

func (l *ZapLogger) Debug(msg string, fields ...Field) { l.zl.Debug(msg, zapFields(fields)...) }
func (l *ZapLogger) Info(msg string, fields ...Field)  { l.zl.Info(msg, zapFields(fields)...) }
func (l *ZapLogger) Warn(msg string, fields ...Field)  { l.zl.Warn(msg, zapFields(fields)...) }

func (l *ZapLogger) Error(msg string, err error, fields ...Field) {
	zf := zapFields(fields)
	if err != nil {
		zf = append(zf, zap.Error(err))
	}
	l.zl.Error(msg, zf...)
}

func (l *ZapLogger) With(fields ...Field) Logger {
	child := *l
	child.zl = l.zl.With(zapFields(fields)...)
	return &child
}

func (l *ZapLogger) SetLevel(level Level) {
	l.level.SetLevel(toZapLevel(level))
}

func (l *ZapLogger) Close() error {
	_ = l.zl.Sync()
	if l.out == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.out.Close()
}

func toZapLevel(level Level) zapcore.Level {
	switch level {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func zapFields(fields []Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}

type lockedWriter struct {
	mu *sync.Mutex
	w  *rotatingFile
}

func (lw *lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	if lw.w.file == nil {
		return len(p), nil
	}
	return lw.w.Write(p)
}
