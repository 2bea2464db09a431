package utils

import (
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation policy for the daemon log file.
const (
	daemonLogMaxSizeMB = 10
	daemonLogBackups   = 3
	daemonLogMaxAgeDay = 28
)

// UseDaemonLog redirects the global logger to a rotating log file. Used in
// daemon mode, where stderr goes nowhere useful.
func UseDaemonLog(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    daemonLogMaxSizeMB,
		MaxBackups: daemonLogBackups,
		MaxAge:     daemonLogMaxAgeDay,
		Compress:   true,
	}

	GetLogger().SetOutput(log.New(rotator, "", log.LstdFlags))
	return nil
}
