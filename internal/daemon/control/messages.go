package control

import "time"

// ConfigChanged is published once a burst of writes to the watched
// configuration file has settled.
type ConfigChanged struct {
	Path      string
	Events    int
	SettledAt time.Time
}
