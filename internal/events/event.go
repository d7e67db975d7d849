// Package events defines the emitted event records and the embedded
// NATS bus they are dispatched over.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Subjects for dispatched events.
const (
	SubjectScreenshot = "events.screenshot"
	SubjectClip       = "events.clip"

	// SubjectAll matches every dispatched event.
	SubjectAll = "events.>"
)

// ScreenshotEvent records a motion-triggered screenshot. One event is
// dispatched per notification subscriber.
type ScreenshotEvent struct {
	ID           string    `json:"id"`
	CameraID     string    `json:"camera_id"`
	SubscriberID string    `json:"subscriber_id"`
	Path         string    `json:"path"`
	Timestamp    time.Time `json:"timestamp"`
}

// ClipEvent records a finished motion-triggered clip. One event is
// dispatched per notification subscriber.
type ClipEvent struct {
	ID              string    `json:"id"`
	CameraID        string    `json:"camera_id"`
	SubscriberID    string    `json:"subscriber_id"`
	Path            string    `json:"path"`
	Timestamp       time.Time `json:"timestamp"`
	DurationSeconds float64   `json:"duration_seconds"`
}

func newEventID() string {
	return uuid.New().String()
}
