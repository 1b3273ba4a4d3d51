package logging

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"
)

// fileSink returns a rotating writer under cfg.FilePath, or nil when the file
// sink is disabled.
func fileSink(cfg *LoggerConfig) io.Writer {
	if cfg.FilePath == "" {
		return nil
	}

	name := fmt.Sprintf("%s-%s.log", time.Now().Format("2006-01-02"), uuid.NewString())
	return &lumberjack.Logger{
		Filename:   filepath.Join(cfg.FilePath, name),
		MaxSize:    10,
		MaxAge:     20,
		MaxBackups: 5,
		LocalTime:  true,
		Compress:   true,
	}
}
