package events

import (
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Dispatcher submits screenshot and clip events to the bus,
// fire-and-forget: publish failures are logged and never propagate to
// the stream pipeline.
type Dispatcher struct {
	bus    *Bus
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher over the bus.
func NewDispatcher(bus *Bus) *Dispatcher {
	return &Dispatcher{
		bus:    bus,
		logger: slog.Default().With("component", "dispatcher"),
	}
}

// DispatchScreenshot publishes one ScreenshotEvent per subscriber.
func (d *Dispatcher) DispatchScreenshot(cameraID, path string, ts time.Time, subscribers []string) {
	for _, sub := range subscribers {
		ev := ScreenshotEvent{
			ID:           newEventID(),
			CameraID:     cameraID,
			SubscriberID: sub,
			Path:         path,
			Timestamp:    ts,
		}
		if err := d.bus.Publish(SubjectScreenshot, ev); err != nil {
			d.logger.Error("Failed to dispatch screenshot event",
				"camera", cameraID, "subscriber", sub, "error", err)
		}
	}
}

// DispatchClip publishes one ClipEvent per subscriber.
func (d *Dispatcher) DispatchClip(cameraID, path string, ts time.Time, duration time.Duration, subscribers []string) {
	for _, sub := range subscribers {
		ev := ClipEvent{
			ID:              newEventID(),
			CameraID:        cameraID,
			SubscriberID:    sub,
			Path:            path,
			Timestamp:       ts,
			DurationSeconds: duration.Seconds(),
		}
		if err := d.bus.Publish(SubjectClip, ev); err != nil {
			d.logger.Error("Failed to dispatch clip event",
				"camera", cameraID, "subscriber", sub, "error", err)
		}
	}
}

// SubscribeAll relays every dispatched event to handler. Used by the
// websocket feed.
func (d *Dispatcher) SubscribeAll(handler func(subject string, data []byte)) (*nats.Subscription, error) {
	return d.bus.Subscribe(SubjectAll, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
}
