// Package progress defines the progress event shared by the pack, unpack, and
// preview pipelines.
package progress

import "fmt"

// Phase names the pipeline step an event belongs to.
type Phase string

const (
	PhaseZipping    Phase = "zipping"
	PhaseMerging    Phase = "merging"
	PhaseUnzipping  Phase = "unzipping"
	PhasePreviewing Phase = "previewing"
)

// Event is one progress report. Track is nil for phases that span every track.
type Event struct {
	Message         string  `json:"message"`
	FrameCount      int64   `json:"frameCount"`
	TotalFrames     int64   `json:"totalFrames,omitempty"`
	CurrentFPS      float64 `json:"currentFps"`
	CurrentKbps     float64 `json:"currentBitrateKbps"`
	TargetSizeBytes int64   `json:"targetSizeBytes"`
	Timemark        string  `json:"elapsedTimecode"`
	Phase           Phase   `json:"phase"`
	Track           *int    `json:"track,omitempty"`
	// TrackCount is the number of tracks in the operation.
	TrackCount int `json:"trackCount,omitempty"`
}

// Sink receives events. Implementations must not block for long; pipelines
// call it from the goroutine reading the codec engine output.
type Sink func(Event)

// Emit delivers e to s when s is non-nil.
func (s Sink) Emit(e Event) {
	if s != nil {
		s(e)
	}
}

// TrackRef returns a pointer suitable for Event.Track.
func TrackRef(track int) *int {
	return &track
}

// Percent returns the completion of the current track in [0,100], or -1 when
// the total is unknown.
func (e Event) Percent() float64 {
	if e.TotalFrames <= 0 {
		return -1
	}
	p := float64(e.FrameCount) / float64(e.TotalFrames) * 100
	return min(max(p, 0), 100)
}

// Label renders a short human description such as "zipping track 2/3".
func (e Event) Label() string {
	if e.Track == nil {
		return string(e.Phase)
	}
	if e.TrackCount > 0 {
		return fmt.Sprintf("%s track %d/%d", e.Phase, *e.Track+1, e.TrackCount)
	}
	return fmt.Sprintf("%s track %d", e.Phase, *e.Track)
}
