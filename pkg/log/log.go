package log

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log atomic.Value

// Logger is the logging surface passed to the bridge components.
type Logger interface {
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
	Debugf(template string, args ...interface{})
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	Fatalf(template string, args ...interface{})
	With(args ...interface{}) Logger
}

const (
	DeviceIDKey         = "deviceId"
	SubscriptionTypeKey = "subscriptionType"
	EventTypeKey        = "eventType"
	CallbackURLKey      = "callbackUrl"
	StatusCodeKey       = "statusCode"
)

// Config configuration for setup logging.
type Config struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string `yaml:"level" json:"level"`
	// Encoding is json or console. Empty means json.
	Encoding string `yaml:"encoding" json:"encoding"`
	Debug    bool   `yaml:"debug" json:"debug" description:"enable debug logs"`
}

func (c *Config) Validate() error {
	if _, err := c.zapLevel(); err != nil {
		return err
	}
	switch c.Encoding {
	case "", "json", "console":
	default:
		return fmt.Errorf("encoding('%v')", c.Encoding)
	}
	return nil
}

func (c *Config) zapLevel() (zapcore.Level, error) {
	if c.Level == "" {
		if c.Debug {
			return zapcore.DebugLevel, nil
		}
		return zapcore.InfoLevel, nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(c.Level))); err != nil {
		return lvl, fmt.Errorf("level('%v')", c.Level)
	}
	return lvl, nil
}

// MakeDefaultConfig returns the configuration used when none is provided.
func MakeDefaultConfig() Config {
	return Config{
		Level:    "info",
		Encoding: "json",
	}
}

type wrapSuggarLogger struct {
	*zap.SugaredLogger
}

func (l wrapSuggarLogger) With(args ...interface{}) Logger {
	return wrapSuggarLogger{SugaredLogger: l.SugaredLogger.With(args...)}
}

func init() {
	config := zap.NewProductionConfig()
	logger, err := config.Build()
	if err != nil {
		panic("Unable to create logger")
	}
	log.Store(wrapSuggarLogger{SugaredLogger: logger.Sugar()})
}

// Setup changes log configuration for the application.
// Call ASAP in main after parse args/env.
func Setup(config Config) {
	if err := Build(config); err != nil {
		panic(err)
	}
}

// Set logger for global log fuctions
func Set(logger Logger) {
	log.Store(logger)
}

func newZapLogger(config Config) (*zap.Logger, error) {
	lvl, err := config.zapLevel()
	if err != nil {
		return nil, err
	}
	var cfg zap.Config
	if config.Debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	if config.Encoding != "" {
		cfg.Encoding = config.Encoding
	}
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339Nano)
	return cfg.Build()
}

// NewLogger creates logger. Invalid configuration falls back to the default one.
func NewLogger(config Config) Logger {
	logger, err := newZapLogger(config)
	if err != nil {
		logger, _ = newZapLogger(MakeDefaultConfig())
	}
	return wrapSuggarLogger{SugaredLogger: logger.Sugar()}
}

// Build is a panic-free version of Setup.
func Build(config Config) error {
	logger, err := newZapLogger(config)
	if err != nil {
		return fmt.Errorf("logger creation failed: %w", err)
	}
	Set(wrapSuggarLogger{SugaredLogger: logger.Sugar()})
	return nil
}

func Get() Logger {
	return log.Load().(Logger)
}

// Debug uses fmt.Sprint to construct and log a message.
func Debug(args ...interface{}) {
	Get().Debug(args...)
}

// Info uses fmt.Sprint to construct and log a message.
func Info(args ...interface{}) {
	Get().Info(args...)
}

// Warn uses fmt.Sprint to construct and log a message.
func Warn(args ...interface{}) {
	Get().Warn(args...)
}

// Error uses fmt.Sprint to construct and log a message.
func Error(args ...interface{}) {
	Get().Error(args...)
}

// Debugf uses fmt.Sprintf to log a templated message.
func Debugf(template string, args ...interface{}) {
	Get().Debugf(template, args...)
}

// Infof uses fmt.Sprintf to log a templated message.
func Infof(template string, args ...interface{}) {
	Get().Infof(template, args...)
}

// Warnf uses fmt.Sprintf to log a templated message.
func Warnf(template string, args ...interface{}) {
	Get().Warnf(template, args...)
}

// Errorf uses fmt.Sprintf to log a templated message.
func Errorf(template string, args ...interface{}) {
	Get().Errorf(template, args...)
}

// Fatalf uses fmt.Sprintf to log a templated message, then calls os.Exit.
func Fatalf(template string, args ...interface{}) {
	Get().Fatalf(template, args...)
}

// DurationToMilliseconds converts d to a float for structured log fields.
func DurationToMilliseconds(d time.Duration) float32 {
	return float32(d.Nanoseconds()/1000) / 1000
}
