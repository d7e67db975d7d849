package motion

import (
	"image"
	"time"
)

type trackedObject struct {
	pos      image.Point
	lastSeen time.Time
}

// State is the per-camera detection state. It is owned by the camera's
// entry and is never shared across cameras.
type State struct {
	bg       *background
	trackers map[int]*trackedObject
	nextID   int

	count        int
	sessionStart time.Time

	lastScreenshot time.Time
}

// NewState creates fresh detection state. The session starts now.
func NewState(now time.Time) *State {
	return &State{
		trackers:     make(map[int]*trackedObject),
		sessionStart: now,
	}
}

// Reset zeroes the session counter and restarts the session clock.
// Trackers survive so an object present at reset time is not
// re-counted.
func (s *State) Reset(now time.Time) {
	s.count = 0
	s.sessionStart = now
}

// Count returns the session object counter.
func (s *State) Count() int {
	return s.count
}

// SessionStart returns when the current session began.
func (s *State) SessionStart() time.Time {
	return s.sessionStart
}

// track matches the centroid against live trackers: nearest within
// maxDist whose last sighting is within staleness. A miss inside the
// zone mints a new ID and bumps the counter. Returns the object ID and
// whether the object is new.
func (s *State) track(centroid image.Point, inZone bool, cfg Config, now time.Time) (int, bool) {
	bestID := -1
	bestDist := cfg.MaxTrackerDistance*cfg.MaxTrackerDistance + 1
	for id, obj := range s.trackers {
		if now.Sub(obj.lastSeen) >= cfg.TrackerStaleness {
			continue
		}
		dx := centroid.X - obj.pos.X
		dy := centroid.Y - obj.pos.Y
		d := dx*dx + dy*dy
		if d <= cfg.MaxTrackerDistance*cfg.MaxTrackerDistance && d < bestDist {
			bestDist = d
			bestID = id
		}
	}

	if bestID >= 0 {
		s.trackers[bestID].pos = centroid
		s.trackers[bestID].lastSeen = now
		return bestID, false
	}

	if !inZone {
		return -1, false
	}

	id := s.nextID
	s.nextID++
	s.trackers[id] = &trackedObject{pos: centroid, lastSeen: now}
	s.count++
	return id, true
}

// evictStale drops trackers not seen within the staleness window. An
// evicted object that re-enters the zone counts again.
func (s *State) evictStale(cfg Config, now time.Time) {
	for id, obj := range s.trackers {
		if now.Sub(obj.lastSeen) > cfg.TrackerStaleness {
			delete(s.trackers, id)
		}
	}
}
