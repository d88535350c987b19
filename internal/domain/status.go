package domain

import "time"

// Status is a point-in-time view of the device for the ops endpoint.
type Status struct {
	State       string    `json:"state"`
	EnteredAt   time.Time `json:"entered_at"`
	Station     string    `json:"station"`
	SSID        string    `json:"ssid"`
	LastFetch   time.Time `json:"last_fetch"`
	Observation string    `json:"observation,omitempty"`
	Forecast    string    `json:"forecast,omitempty"`
}
