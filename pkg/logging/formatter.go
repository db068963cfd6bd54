/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: formatter.go
Description: Log formatters for the IMG! fuzzer. CustomFormatter prints compact colored
lines with sorted fields; FuzzerFormatter adds an event tag such as CRASH or PATH.
*/

package logging

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// CustomFormatter renders one readable line per entry
type CustomFormatter struct {
	Timestamp bool
	Caller    bool
	Colors    bool
}

// Format formats a log entry
func (f *CustomFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	return f.render(entry, ""), nil
}

func (f *CustomFormatter) render(entry *logrus.Entry, tag string) []byte {
	var output strings.Builder

	if f.Timestamp {
		f.write(&output, 36, entry.Time.Format("2006-01-02 15:04:05.000"))
	}

	f.write(&output, f.getLevelColor(entry.Level), strings.ToUpper(entry.Level.String()))

	if tag != "" {
		f.write(&output, 35, "["+tag+"]")
	}

	if f.Caller && entry.HasCaller() {
		f.write(&output, 33, fmt.Sprintf("[%s:%d]", entry.Caller.File, entry.Caller.Line))
	}

	output.WriteString(entry.Message)

	if len(entry.Data) > 0 {
		output.WriteString(" ")
		output.WriteString(f.formatFields(entry.Data))
	}

	output.WriteString("\n")
	return []byte(output.String())
}

// write appends s followed by a space, colored when enabled
func (f *CustomFormatter) write(b *strings.Builder, color int, s string) {
	if f.Colors {
		fmt.Fprintf(b, "\033[%dm%s\033[0m ", color, s)
		return
	}
	b.WriteString(s)
	b.WriteString(" ")
}

// getLevelColor returns the ANSI color code for a log level
func (f *CustomFormatter) getLevelColor(level logrus.Level) int {
	switch level {
	case logrus.InfoLevel:
		return 32 // Green
	case logrus.WarnLevel:
		return 33 // Yellow
	case logrus.ErrorLevel:
		return 31 // Red
	case logrus.FatalLevel, logrus.PanicLevel:
		return 35 // Magenta
	default:
		return 37 // White
	}
}

// formatFields formats fields as key=value pairs in key order
func (f *CustomFormatter) formatFields(fields logrus.Fields) string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		value := formatValue(key, fields[key])
		if f.Colors {
			parts = append(parts, fmt.Sprintf("\033[34m%s\033[0m=\033[32m%s\033[0m", key, value))
		} else {
			parts = append(parts, fmt.Sprintf("%s=%s", key, value))
		}
	}
	return strings.Join(parts, " ")
}

// formatValue formats a field value appropriately
func formatValue(key string, value interface{}) string {
	switch v := value.(type) {
	case time.Duration:
		return v.String()
	case time.Time:
		return v.Format("15:04:05.000")
	case float64:
		if key == "executions_per_sec" {
			return fmt.Sprintf("%.2f/sec", v)
		}
		return fmt.Sprintf("%.2f", v)
	case string:
		if len(v) > 50 {
			return v[:50] + "..."
		}
		return v
	case []byte:
		if len(v) > 20 {
			return fmt.Sprintf("[%d bytes]", len(v))
		}
		return fmt.Sprintf("%x", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// FuzzerFormatter tags entries by fuzzer event
type FuzzerFormatter struct {
	CustomFormatter
}

// Format formats a log entry with its event tag
func (f *FuzzerFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	return f.render(entry, fuzzerTag(entry.Message)), nil
}

// fuzzerTag returns a tag based on the log message
func fuzzerTag(message string) string {
	switch {
	case strings.Contains(message, "Test case executed"):
		return "EXEC"
	case strings.Contains(message, "rash"):
		return "CRASH"
	case strings.Contains(message, "ath discovered"), strings.Contains(message, "parser path"):
		return "PATH"
	case strings.Contains(message, "mutated"):
		return "MUTATE"
	case strings.Contains(message, "Statistics"):
		return "STATS"
	case strings.Contains(message, "engine"), strings.Contains(message, "Campaign"):
		return "ENGINE"
	default:
		return ""
	}
}
