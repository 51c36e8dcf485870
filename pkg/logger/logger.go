// Component-tagged leveled logging. Every subsystem logs through the
// C/CF variants so output can be filtered by component name.
package logger

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type Level int32

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

var levelNames = map[Level]string{
	DebugLevel: "DEBUG",
	InfoLevel:  "INFO",
	WarnLevel:  "WARN",
	ErrorLevel: "ERROR",
}

var (
	currentLevel atomic.Int32
	mu           sync.Mutex
	out          = os.Stderr
)

func init() {
	currentLevel.Store(int32(InfoLevel))
}

// SetLevel sets the minimum level that will be emitted.
func SetLevel(l Level) {
	currentLevel.Store(int32(l))
}

// ParseLevel maps a config string to a Level. Unknown values fall back to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

func logC(l Level, component, msg string, fields map[string]interface{}) {
	if l < Level(currentLevel.Load()) {
		return
	}

	var sb strings.Builder
	sb.WriteString(time.Now().Format("2006-01-02 15:04:05.000"))
	sb.WriteString(" [")
	sb.WriteString(levelNames[l])
	sb.WriteString("] [")
	sb.WriteString(component)
	sb.WriteString("] ")
	sb.WriteString(msg)

	if len(fields) > 0 {
		// Stable key order so log lines diff cleanly
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, " %s=%v", k, fields[k])
		}
	}
	sb.WriteByte('\n')

	mu.Lock()
	out.WriteString(sb.String())
	mu.Unlock()
}

func DebugC(component, msg string) { logC(DebugLevel, component, msg, nil) }
func InfoC(component, msg string)  { logC(InfoLevel, component, msg, nil) }
func WarnC(component, msg string)  { logC(WarnLevel, component, msg, nil) }
func ErrorC(component, msg string) { logC(ErrorLevel, component, msg, nil) }

func DebugCF(component, msg string, fields map[string]interface{}) {
	logC(DebugLevel, component, msg, fields)
}

func InfoCF(component, msg string, fields map[string]interface{}) {
	logC(InfoLevel, component, msg, fields)
}

func WarnCF(component, msg string, fields map[string]interface{}) {
	logC(WarnLevel, component, msg, fields)
}

func ErrorCF(component, msg string, fields map[string]interface{}) {
	logC(ErrorLevel, component, msg, fields)
}
