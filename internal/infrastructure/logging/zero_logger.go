package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

var zeroLogLevelMapping = map[string]zerolog.Level{
	"debug": zerolog.DebugLevel,
	"info":  zerolog.InfoLevel,
	"warn":  zerolog.WarnLevel,
	"error": zerolog.ErrorLevel,
	"fatal": zerolog.FatalLevel,
}

type zeroLogger struct {
	cfg    *LoggerConfig
	once   sync.Once
	logger *zerolog.Logger
}

func newZeroLogger(cfg *LoggerConfig) *zeroLogger {
	return &zeroLogger{cfg: cfg}
}

func (l *zeroLogger) getLogLevel() zerolog.Level {
	level, ok := zeroLogLevelMapping[strings.ToLower(l.cfg.Level)]
	if !ok {
		return zerolog.InfoLevel
	}
	return level
}

func (l *zeroLogger) Init() {
	l.once.Do(func() {
		var stdout io.Writer = os.Stdout
		if l.cfg.Encoding == "console" {
			stdout = zerolog.ConsoleWriter{Out: os.Stdout}
		}

		writers := []io.Writer{stdout}
		if w := fileSink(l.cfg); w != nil {
			writers = append(writers, w)
		}

		logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
			Level(l.getLogLevel()).
			With().
			Timestamp().
			Str(string(AppName), appName).
			Str(string(LoggerName), "Zerolog").
			Logger()
		l.logger = &logger
	})
}

func (l *zeroLogger) Debug(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any) {
	l.logger.Debug().Fields(prepareZeroFields(cat, sub, extra)).Msg(msg)
}

func (l *zeroLogger) Debugf(template string, args ...any) {
	l.logger.Debug().Msgf(template, args...)
}

func (l *zeroLogger) Info(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any) {
	l.logger.Info().Fields(prepareZeroFields(cat, sub, extra)).Msg(msg)
}

func (l *zeroLogger) Infof(template string, args ...any) {
	l.logger.Info().Msgf(template, args...)
}

func (l *zeroLogger) Warn(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any) {
	l.logger.Warn().Fields(prepareZeroFields(cat, sub, extra)).Msg(msg)
}

func (l *zeroLogger) Warnf(template string, args ...any) {
	l.logger.Warn().Msgf(template, args...)
}

func (l *zeroLogger) Error(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any) {
	l.logger.Error().Fields(prepareZeroFields(cat, sub, extra)).Msg(msg)
}

func (l *zeroLogger) Errorf(template string, args ...any) {
	l.logger.Error().Msgf(template, args...)
}

func (l *zeroLogger) Fatal(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any) {
	l.logger.Fatal().Fields(prepareZeroFields(cat, sub, extra)).Msg(msg)
}

func (l *zeroLogger) Fatalf(template string, args ...any) {
	l.logger.Fatal().Msgf(template, args...)
}

func prepareZeroFields(cat Category, sub SubCategory, extra map[ExtraKey]any) map[string]any {
	return logParamsToZeroParams(withCategories(cat, sub, extra))
}
