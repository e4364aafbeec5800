// Package logger wraps a global zap SugaredLogger with an adjustable level.
package logger

import (
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	Log   = zap.NewNop().Sugar()
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Init installs the console logger. Development mode logs at debug with colored
// levels; otherwise info and plain levels.
func Init(isDev bool) {
	cfg := zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		MessageKey:       "msg",
		EncodeTime:       timeEncoder,
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		ConsoleSeparator: " ",
	}
	level.SetLevel(zapcore.InfoLevel)
	if isDev {
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		level.SetLevel(zapcore.DebugLevel)
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.AddSync(os.Stdout), level)
	Log = zap.New(core).Sugar()
}

// InitNop discards all output. Used by tests.
func InitNop() {
	Log = zap.NewNop().Sugar()
}

// SetLevel changes the minimum level at runtime. An empty name leaves it unchanged.
func SetLevel(name string) error {
	if name == "" {
		return nil
	}
	l, err := zapcore.ParseLevel(name)
	if err != nil {
		return err
	}
	level.SetLevel(l)
	return nil
}

// Level returns the current minimum level.
func Level() zapcore.Level {
	return level.Level()
}

func timeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006-01-02 15:04:05"))
}

func Sync() {
	_ = Log.Sync()
}

func Info(args ...interface{})                    { Log.Info(args...) }
func Infof(template string, args ...interface{})  { Log.Infof(template, args...) }
func Error(args ...interface{})                   { Log.Error(args...) }
func Errorf(template string, args ...interface{}) { Log.Errorf(template, args...) }
func Debug(args ...interface{})                   { Log.Debug(args...) }
func Debugf(template string, args ...interface{}) { Log.Debugf(template, args...) }
func Warn(args ...interface{})                    { Log.Warn(args...) }
func Warnf(template string, args ...interface{})  { Log.Warnf(template, args...) }
func Fatal(args ...interface{})                   { Log.Fatal(args...); os.Exit(1) }
func Fatalf(template string, args ...interface{}) { Log.Fatalf(template, args...); os.Exit(1) }
