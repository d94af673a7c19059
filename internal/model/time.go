package model

import "time"

// Timestamp converts t into seconds since epoch.
func Timestamp(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// FromMillis converts an exchange millisecond timestamp into seconds.
func FromMillis(ms int64) float64 {
	return float64(ms) / 1000
}

// ToTime converts seconds since epoch into a UTC time.
func ToTime(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}
