package planner

import "github.com/doublecapcrimpin/openpilot/internal/ptypes"

// ChannelID identifies one of the planner's conflated input channels.
// Ordering is deliberate: Poll returns messages in this ascending order so
// a tick processes model/map/lat-control/GPS-plan state before the radar
// (live20) message that drives the bulk of a tick's work, matching the
// "path planner update happens before MPC update" ordering guarantee.
type ChannelID int

const (
	ChModel ChannelID = iota
	ChMapData
	ChLatControl
	ChGPSPlan
	ChLive20
)

// RawMessage is one polled input, tagged with the channel it arrived on.
type RawMessage struct {
	Channel ChannelID
	Payload interface{}
}

// ModelMsg is the vision-derived lane-geometry message ("model").
type ModelMsg struct {
	DPoly        [4]float64
	LPoly        [4]float64
	RPoly        [4]float64
	LaneWidth    float64
	HasLeftLane  bool
	HasRightLane bool
}

// Live20Msg is the radar-derived tracking message ("live20").
type Live20Msg struct {
	Lead1 ptypes.LeadTrack
	Lead2 ptypes.LeadTrack
	Radar ptypes.RadarStatus
}

// GPSPlanMsg is the optional GPS-planner override ("gpsPlannerPlan").
type GPSPlanMsg struct {
	Valid bool
	Poly  [4]float64
}

// Source polls all conflated input channels once per tick, returning at
// most one message per channel (the latest received since the previous
// poll), in ascending ChannelID order.
type Source interface {
	Poll() []RawMessage
}

// ChannelSource implements Source over five buffered Go channels, draining
// each non-blockingly and keeping only the most recent payload per
// channel: "last message wins" conflated semantics.
type ChannelSource struct {
	Model      chan ModelMsg
	MapData    chan ptypes.MapSnapshot
	LatControl chan ptypes.LateralHint
	GPSPlan    chan GPSPlanMsg
	Live20     chan Live20Msg
}

// NewChannelSource allocates a ChannelSource with buffers deep enough that
// a producer running at its native cadence never blocks on a slow tick.
func NewChannelSource() *ChannelSource {
	return &ChannelSource{
		Model:      make(chan ModelMsg, 8),
		MapData:    make(chan ptypes.MapSnapshot, 8),
		LatControl: make(chan ptypes.LateralHint, 8),
		GPSPlan:    make(chan GPSPlanMsg, 8),
		Live20:     make(chan Live20Msg, 8),
	}
}

// Poll drains every channel without blocking, keeping only the newest
// payload seen on each, and returns them in fixed ChannelID order so
// dispatch order never depends on channel/goroutine scheduling.
func (s *ChannelSource) Poll() []RawMessage {
	var msgs []RawMessage

	if m, ok := drainLatest(s.Model); ok {
		msgs = append(msgs, RawMessage{Channel: ChModel, Payload: m})
	}
	if m, ok := drainLatest(s.MapData); ok {
		msgs = append(msgs, RawMessage{Channel: ChMapData, Payload: m})
	}
	if m, ok := drainLatest(s.LatControl); ok {
		msgs = append(msgs, RawMessage{Channel: ChLatControl, Payload: m})
	}
	if m, ok := drainLatest(s.GPSPlan); ok {
		msgs = append(msgs, RawMessage{Channel: ChGPSPlan, Payload: m})
	}
	if m, ok := drainLatest(s.Live20); ok {
		msgs = append(msgs, RawMessage{Channel: ChLive20, Payload: m})
	}
	return msgs
}

// drainLatest empties ch without blocking, returning the last value seen.
func drainLatest[T any](ch chan T) (T, bool) {
	var latest T
	var ok bool
	for {
		select {
		case v := <-ch:
			latest = v
			ok = true
		default:
			return latest, ok
		}
	}
}
