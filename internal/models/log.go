
package models

import "time"

// LogEntry represents an audit log record buffered in SQLite tbl_log
// and later shipped to Oracle tbl_log
type LogEntry struct {
	ID        int64     `json:"-"` // SQLite Row ID
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Fields    string    `json:"fields,omitempty"` // JSON representation of extra fields
}
