package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[Level]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
}

type Logger struct {
	level Level
}

type LogEntry struct {
	Time    string                 `json:"time"`
	Level   string                 `json:"level"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// New reads LOG_LEVEL from the environment (debug, info, warn, error).
func New() *Logger {
	level := INFO
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = DEBUG
	case "warn":
		level = WARN
	case "error":
		level = ERROR
	}
	return &Logger{level: level}
}

func (l *Logger) log(level Level, msg string, args ...interface{}) {
	if level < l.level {
		return
	}

	entry := LogEntry{
		Time:    time.Now().Format(time.RFC3339),
		Level:   levelNames[level],
		Message: msg,
	}

	if len(args) > 0 {
		entry.Data = make(map[string]interface{})
		for i := 0; i < len(args)-1; i += 2 {
			if key, ok := args[i].(string); ok {
				entry.Data[key] = args[i+1]
			}
		}
	}

	output, _ := json.Marshal(entry)
	fmt.Fprintln(os.Stdout, string(output))
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	l.log(DEBUG, msg, args...)
}

func (l *Logger) Info(msg string, args ...interface{}) {
	l.log(INFO, msg, args...)
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	l.log(WARN, msg, args...)
}

func (l *Logger) Error(msg string, args ...interface{}) {
	l.log(ERROR, msg, args...)
}

func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.log(ERROR, msg, args...)
	os.Exit(1)
}
