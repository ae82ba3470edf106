// internal/utils/logger.go
package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel 日志级别
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARNING
	ERROR
	FATAL
)

var levelNames = map[LogLevel]string{
	DEBUG:   "DEBUG",
	INFO:    "INFO",
	WARNING: "WARNING",
	ERROR:   "ERROR",
	FATAL:   "FATAL",
}

// Logger 结构化日志：固定前缀 + 有序的键值字段
// 始终写stdout，配置日志文件后同时落盘
type Logger struct {
	mu      sync.Mutex
	file    *os.File
	level   LogLevel
	enabled bool
}

var (
	globalLogger *Logger
	loggerOnce   sync.Once
)

// GetLogger 返回进程级全局日志实例
func GetLogger() *Logger {
	loggerOnce.Do(func() {
		globalLogger = &Logger{
			level:   INFO,
			enabled: true,
		}
	})
	return globalLogger
}

// InitLogger 配置日志文件，目录不存在时自动创建
func InitLogger(logFile string) error {
	logger := GetLogger()

	if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
		return fmt.Errorf("创建日志目录失败: %w", err)
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("打开日志文件失败: %w", err)
	}

	logger.mu.Lock()
	defer logger.mu.Unlock()

	if logger.file != nil {
		logger.file.Close()
	}
	logger.file = file
	return nil
}

// SetLogLevel 设置最低输出级别
func (l *Logger) SetLogLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// Enable 开关日志输出
func (l *Logger) Enable(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}

func (l *Logger) log(level LogLevel, message string, fields map[string]interface{}) {
	if !l.enabled || level < l.level {
		return
	}

	file := "?"
	line := 0
	if _, callerFile, callerLine, ok := runtime.Caller(2); ok {
		file = callerFile
		line = callerLine
		if idx := strings.LastIndex(file, "/"); idx >= 0 {
			file = file[idx+1:]
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s %s:%d - %s",
		levelNames[level],
		time.Now().Format("2006-01-02 15:04:05.000"),
		file, line, message)

	// 字段按键名排序，同一事件的输出可比对
	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for key := range fields {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		sb.WriteString(" |")
		for _, key := range keys {
			fmt.Fprintf(&sb, " %s=%v", key, fields[key])
		}
	}
	sb.WriteString("\n")
	logLine := sb.String()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		l.file.WriteString(logLine)
		l.file.Sync()
	}
	os.Stdout.WriteString(logLine)

	if level == FATAL {
		os.Exit(1)
	}
}

// Debug 调试日志
func (l *Logger) Debug(message string, fields map[string]interface{}) {
	l.log(DEBUG, message, fields)
}

// Info 信息日志
func (l *Logger) Info(message string, fields map[string]interface{}) {
	l.log(INFO, message, fields)
}

// Warn 警告日志
func (l *Logger) Warn(message string, fields map[string]interface{}) {
	l.log(WARNING, message, fields)
}

// Error 错误日志
func (l *Logger) Error(message string, fields map[string]interface{}) {
	l.log(ERROR, message, fields)
}

// Fatal 致命错误，输出后退出进程
func (l *Logger) Fatal(message string, fields map[string]interface{}) {
	l.log(FATAL, message, fields)
}
