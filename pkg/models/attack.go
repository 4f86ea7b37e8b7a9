// Package models defines data structures for simulated attack events.
package models

import "time"

// TimestampLayout is the display format of AttackEvent.Timestamp.
// Display and log consumers parse this exact text, so it must not change.
const TimestampLayout = "2006-01-02 15:04:05 UTC"

// GeoPoint is a location snapshot copied into an event at generation time.
type GeoPoint struct {
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Country string  `json:"country,omitempty"` // ISO 3166-1 alpha-2
}

// AttackEvent represents one synthetic attack between two locations.
// Events are values: once generated they are never modified.
type AttackEvent struct {
	ID          string      `json:"id"` // ATK-<n>
	Source      GeoPoint    `json:"source"`
	Target      GeoPoint    `json:"target"`
	AttackType  AttackType  `json:"attack_type"`
	ThreatLevel ThreatLevel `json:"threat_level"`
	Timestamp   string      `json:"timestamp"`
	Status      Status      `json:"status"`
	CrossBorder bool        `json:"cross_border"`
	CapturedAt  time.Time   `json:"captured_at"`
	RunID       string      `json:"run_id,omitempty"`
}

// FormatTimestamp renders t in TimestampLayout after converting to UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// AttackType is the category of a simulated attack.
type AttackType string

// Attack types
const (
	AttackDDoS       AttackType = "DDoS"
	AttackMalware    AttackType = "Malware"
	AttackPhishing   AttackType = "Phishing"
	AttackRansomware AttackType = "Ransomware"
	AttackDataBreach AttackType = "Data Breach"
)

// AttackTypes lists every attack type. Generation samples it uniformly.
var AttackTypes = []AttackType{
	AttackDDoS,
	AttackMalware,
	AttackPhishing,
	AttackRansomware,
	AttackDataBreach,
}

// Valid reports whether t is a known attack type.
func (t AttackType) Valid() bool {
	for _, known := range AttackTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ThreatLevel is the ordered severity of an event.
type ThreatLevel string

// Threat levels, lowest first
const (
	ThreatLow      ThreatLevel = "Low"
	ThreatMedium   ThreatLevel = "Medium"
	ThreatHigh     ThreatLevel = "High"
	ThreatCritical ThreatLevel = "Critical"
)

// ThreatLevels lists every threat level in severity order.
var ThreatLevels = []ThreatLevel{ThreatLow, ThreatMedium, ThreatHigh, ThreatCritical}

// Rank returns the position of l in severity order, or -1 if unknown.
func (l ThreatLevel) Rank() int {
	for i, known := range ThreatLevels {
		if l == known {
			return i
		}
	}
	return -1
}

// Valid reports whether l is a known threat level.
func (l ThreatLevel) Valid() bool { return l.Rank() >= 0 }

// ColorHex returns the marker color used by renderers for this level.
func (l ThreatLevel) ColorHex() uint32 {
	switch l {
	case ThreatLow:
		return 0xffaa00
	case ThreatMedium:
		return 0xff4444
	case ThreatHigh:
		return 0xff0044
	case ThreatCritical:
		return 0xff0022
	}
	return 0xffffff
}

// Color returns ColorHex as a CSS "#rrggbb" string.
func (l ThreatLevel) Color() string {
	const digits = "0123456789abcdef"
	c := l.ColorHex()
	b := []byte("#000000")
	for i := 6; i >= 1; i-- {
		b[i] = digits[c&0xf]
		c >>= 4
	}
	return string(b)
}

// Status is the display lifecycle state of an event. It is fixed at
// generation time.
type Status string

// Statuses
const (
	StatusActive    Status = "Active"
	StatusDetected  Status = "Detected"
	StatusMitigated Status = "Mitigated"
)

// Statuses lists every status.
var Statuses = []Status{StatusActive, StatusDetected, StatusMitigated}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}
