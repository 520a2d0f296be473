package engine

import "time"

type (
	// AlertPriority tells the host how loudly to surface an alert.
	AlertPriority int

	// Alert is a non-fatal report from the engine to the host: driver
	// fallbacks, slot-map overflow, queue overflow and the like. Alerts with
	// the same Name replace each other so a recurring condition does not
	// flood the host.
	Alert struct {
		Name     string
		Priority AlertPriority
		Message  string
		Duration time.Duration
	}
)

const (
	None AlertPriority = iota
	Info
	Warning
	Error
)

const defaultAlertDuration = 3 * time.Second
