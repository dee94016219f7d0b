package telemetry

// HTTP semantic convention attributes
const (
	AttrHTTPMethod                = "http.method"
	AttrHTTPURL                   = "http.url"
	AttrHTTPStatusCode            = "http.status_code"
	AttrHTTPRequestContentLength  = "http.request_content_length"
	AttrHTTPResponseContentLength = "http.response_content_length"
	AttrHTTPDurationMS            = "http.duration_ms"
)

// RestBackup-specific attributes
const (
	AttrRestBackupHost      = "restbackup.host"
	AttrRestBackupURI       = "restbackup.uri"
	AttrRestBackupAttempt   = "restbackup.attempt"
	AttrRestBackupAttempts  = "restbackup.attempts"
	AttrRestBackupRequestID = "restbackup.request_id"
)

// CLI command attributes
const (
	AttrCommandName   = "command.name"
	AttrCommandStatus = "command.status"
)

// Error attributes
const (
	AttrError = "error"
)
