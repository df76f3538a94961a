package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"

	// Configuration errors
	ErrInvalidConfig   ErrorCode = "invalid_configuration"
	ErrBindFlags       ErrorCode = "bind_flags_failed"
	ErrReadConfig      ErrorCode = "read_config_failed"
	ErrInvalidInterval ErrorCode = "invalid_interval"

	// Logging errors
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"

	// Initialization errors
	ErrInitFailed     ErrorCode = "initialization_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"
	ErrAlreadyRunning ErrorCode = "already_running"

	// Sensor errors
	ErrSensorUnavailable ErrorCode = "sensor_unavailable"
	ErrSensorRead        ErrorCode = "sensor_read_failed"
	ErrSensorClosed      ErrorCode = "sensor_closed"
	ErrNonFiniteReading  ErrorCode = "non_finite_reading"

	// Log file errors
	ErrLogFileOpen   ErrorCode = "log_file_open_failed"
	ErrLogFileWrite  ErrorCode = "log_file_write_failed"
	ErrLogFileClosed ErrorCode = "log_file_closed"
	ErrParseSample   ErrorCode = "parse_sample_failed"

	// Chart errors
	ErrRenderChart     ErrorCode = "render_chart_failed"
	ErrPublishArtifact ErrorCode = "publish_artifact_failed"

	// Application errors
	ErrSampleCycle ErrorCode = "sample_cycle_failed"
	ErrServeHTTP   ErrorCode = "serve_http_failed"
	ErrTimeout     ErrorCode = "operation_timeout"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:          "Internal error occurred",
	ErrInvalidArgument:   "Invalid argument provided",
	ErrInvalidConfig:     "Invalid configuration",
	ErrBindFlags:         "Failed to bind flags",
	ErrReadConfig:        "Failed to read config file",
	ErrInvalidInterval:   "Invalid interval value",
	ErrInvalidLogLevel:   "Invalid log level",
	ErrInitFailed:        "Initialization failed",
	ErrShutdownFailed:    "Shutdown failed",
	ErrAlreadyRunning:    "Another instance is already running",
	ErrSensorUnavailable: "Sensor device unavailable",
	ErrSensorRead:        "Failed to read sensor",
	ErrSensorClosed:      "Sensor already released",
	ErrNonFiniteReading:  "Calibrated reading is not finite",
	ErrLogFileOpen:       "Failed to open log file",
	ErrLogFileWrite:      "Failed to write log file",
	ErrLogFileClosed:     "Log file already closed",
	ErrParseSample:       "Failed to parse sample line",
	ErrRenderChart:       "Failed to render chart",
	ErrPublishArtifact:   "Failed to publish chart artifact",
	ErrSampleCycle:       "Sample cycle failed",
	ErrServeHTTP:         "HTTP server failed",
	ErrTimeout:           "Operation timed out",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
