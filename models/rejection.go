package models

import "time"

// Rejection records a single record that failed coercion or validation.
// Rejections never abort a batch; they are logged, counted and archived.
type Rejection struct {
	Entity string
	Key    string
	Reason string
	At     time.Time
}
