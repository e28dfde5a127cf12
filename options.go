package senso4s

import "time"

// WithConnector sets the Connector used to acquire GATT sessions
func WithConnector(connector Connector) func(*Scale) {
	return func(s *Scale) {
		s.connector = connector
	}
}

// WithLogger sets a logger
func WithLogger(logger Logger) func(*Scale) {
	return func(s *Scale) {
		s.logger = logger
	}
}

// WithTimeZone sets the time zone used to interpret the setup time
// characteristic (the device reports local wall time without any zone
// information of its own)
func WithTimeZone(loc *time.Location) func(*Scale) {
	return func(s *Scale) {
		s.timeZone = loc
	}
}

// WithHistoryWindow sets the collection window to wait for history
// notifications after writing the trigger
func WithHistoryWindow(window time.Duration) func(*Scale) {
	return func(s *Scale) {
		s.historyWindow = window
	}
}

// WithHistoryPolicy sets the handling of malformed history notifications
func WithHistoryPolicy(policy HistoryPolicy) func(*Scale) {
	return func(s *Scale) {
		s.historyPolicy = policy
	}
}

// WithoutDeviceInfo disables reading the hardware / firmware revision
// characteristics during full acquisition
func WithoutDeviceInfo() func(*Scale) {
	return func(s *Scale) {
		s.deviceInfo = false
	}
}
