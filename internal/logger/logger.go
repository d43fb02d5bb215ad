// Package logger emits one JSON line per event.
package logger

import (
	"encoding/json"
	"log"
	"os"
	"time"
)

func Info(message string, fields map[string]any) {
	logJSON("info", message, fields)
}

func Warn(message string, fields map[string]any) {
	logJSON("warn", message, fields)
}

func Error(message string, fields map[string]any) {
	logJSON("error", message, fields)
}

func Fatal(message string, fields map[string]any) {
	logJSON("fatal", message, fields)
	os.Exit(1)
}

func logJSON(level, message string, fields map[string]any) {
	entry := map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"level":     level,
		"message":   message,
		"service":   "bakery-backend",
	}
	for k, v := range fields {
		entry[k] = v
	}
	raw, _ := json.Marshal(entry)
	log.Println(string(raw))
}
