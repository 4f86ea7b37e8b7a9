package models

// NotificationKind describes a session state change.
type NotificationKind string

// Notification kinds
const (
	NotifyInserted NotificationKind = "inserted"
	NotifySelected NotificationKind = "selected"
	NotifyCleared  NotificationKind = "cleared"
	NotifyReset    NotificationKind = "reset"
)

// Event origins
const (
	OriginSeed      = "seed"
	OriginScheduler = "scheduler"
	OriginAnomaly   = "anomaly"
	OriginUser      = "user"
)

// Notification is emitted by the session after each mutation.
// Event is the zero value for cleared and reset notifications.
type Notification struct {
	Kind    NotificationKind
	Origin  string // seed, scheduler, anomaly, user
	RunID   string
	Event   AttackEvent
	Evicted []AttackEvent
	Seq     uint64 // strictly increasing per session, starting at 1
	Count   int    // buffer length right after the change
}
