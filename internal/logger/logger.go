// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Shrinkr - 批量转码代理文件工具

package logger

import (
	"io"
	"log"
	"os"
	"strings"
)

// Logger provides a simple leveled logging interface
type Logger interface {
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
	Debug(format string, args ...interface{})
}

// Level 日志级别，数值越大输出越多
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// ParseLevel maps a -v flag value to a Level. Accepts names or 0..3.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "0", "error":
		return LevelError
	case "1", "warn", "warning":
		return LevelWarn
	case "3", "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

type defaultLogger struct {
	prefix string
	level  Level
	out    *log.Logger
}

// New writes to stderr with the standard log flags
func New(prefix string, level Level) Logger {
	return NewWriter(os.Stderr, prefix, level)
}

// NewWriter is New with an explicit destination
func NewWriter(w io.Writer, prefix string, level Level) Logger {
	if prefix != "" && !strings.HasSuffix(prefix, " ") {
		prefix += " "
	}
	return &defaultLogger{
		prefix: prefix,
		level:  level,
		out:    log.New(w, "", log.LstdFlags),
	}
}

// Nop discards everything
func Nop() Logger {
	return NewWriter(io.Discard, "", LevelError)
}

func (l *defaultLogger) logf(level Level, tag, format string, args ...interface{}) {
	if level > l.level {
		return
	}
	l.out.Printf("["+tag+"] "+l.prefix+format, args...)
}

func (l *defaultLogger) Info(format string, args ...interface{}) {
	l.logf(LevelInfo, "INFO", format, args...)
}

func (l *defaultLogger) Warn(format string, args ...interface{}) {
	l.logf(LevelWarn, "WARN", format, args...)
}

func (l *defaultLogger) Error(format string, args ...interface{}) {
	l.logf(LevelError, "ERROR", format, args...)
}

func (l *defaultLogger) Debug(format string, args ...interface{}) {
	l.logf(LevelDebug, "DEBUG", format, args...)
}
