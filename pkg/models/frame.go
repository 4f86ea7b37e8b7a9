package models

// EventView is an event as pushed to display consumers, with the color
// its threat level is rendered in.
type EventView struct {
	AttackEvent
	Color string `json:"color"`
}

// NewEventView attaches the threat color to e.
func NewEventView(e AttackEvent) EventView {
	return EventView{AttackEvent: e, Color: e.ThreatLevel.Color()}
}

// Frame types
const (
	FrameSnapshot = "snapshot"
)

// Frame is one message on the live stream.
type Frame struct {
	Type     string      `json:"type"` // snapshot, inserted, selected, cleared, reset
	Seq      uint64      `json:"seq"`
	RunID    string      `json:"run_id,omitempty"`
	Origin   string      `json:"origin,omitempty"`
	Event    *EventView  `json:"event,omitempty"`
	Evicted  []string    `json:"evicted,omitempty"`
	Events   []EventView `json:"events,omitempty"`
	Selected *EventView  `json:"selected,omitempty"`
	Count    int         `json:"count"`
}

// NotificationFrame converts a session notification into a stream frame.
func NotificationFrame(n Notification) Frame {
	f := Frame{Type: string(n.Kind), Seq: n.Seq, RunID: n.RunID, Origin: n.Origin, Count: n.Count}
	switch n.Kind {
	case NotifyInserted, NotifySelected:
		v := NewEventView(n.Event)
		f.Event = &v
	}
	for _, e := range n.Evicted {
		f.Evicted = append(f.Evicted, e.ID)
	}
	return f
}

// SnapshotFrame builds the frame a consumer receives on connect. seq is the
// sequence of the last change the snapshot includes.
func SnapshotFrame(seq uint64, runID string, events []AttackEvent, selected *AttackEvent) Frame {
	f := Frame{Type: FrameSnapshot, Seq: seq, RunID: runID, Count: len(events), Events: make([]EventView, 0, len(events))}
	for _, e := range events {
		f.Events = append(f.Events, NewEventView(e))
	}
	if selected != nil {
		v := NewEventView(*selected)
		f.Selected = &v
	}
	return f
}
