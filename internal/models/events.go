package models

import "time"

// ProgressUpdate is the payload delivered to progress subscribers on each
// scraping tick.
type ProgressUpdate struct {
	TargetID      string     `json:"targetId"`
	PagesScraped  int        `json:"pagesScraped"`
	CostUnits     int        `json:"costUnits"`
	CurrentSource SourceType `json:"currentSource,omitempty"`
	Status        Status     `json:"status"`
}

// EventLevel grades event severity for the activity stream.
type EventLevel string

const (
	EventInfo  EventLevel = "info"
	EventWarn  EventLevel = "warn"
	EventError EventLevel = "error"
)

// Event is one structured line in an investigation's activity stream.
type Event struct {
	ID        int64             `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Level     EventLevel        `json:"level"`
	Category  string            `json:"category"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
}
