package telemetry

// This file defines error message templates for common failure scenarios.
// Templates provide consistent, actionable error messages with troubleshooting steps.
//
// Usage:
//
//	if errors.Is(err, restbackup.ErrUnauthorized) {
//	    logging.LogError(fmt.Sprintf(telemetry.ErrUnauthorizedTemplate, accessURL.Redacted()))
//	}

// Error message templates for common scenarios
const (
	// ErrUnauthorizedTemplate is reported when the service rejects the credentials of an access-URL
	ErrUnauthorizedTemplate = `The RestBackup service rejected the credentials (HTTP 401 Unauthorized).

This usually indicates:
1. The access-URL was mistyped or truncated
2. The account was deleted through the Management API
3. A Backup API access-URL was used where a Management API one is required, or the reverse

Troubleshooting steps:
1. Check the 'accessUrl' fields in config.yaml or the RESTBACKUP_* environment variables
2. Fetch the account again with: restbackup account get <account-id>

Access-URL: %s`

	// ErrInvalidAccessURLTemplate is reported when an access-URL does not parse
	ErrInvalidAccessURLTemplate = `Invalid access-URL %q.

An access-URL has the form:
  https://<user>:<password>@<host>[:<port>]/

User and password are alphanumeric, the host may contain letters, digits,
dots and dashes, and the trailing slash is required.`

	// ErrRetriesExhaustedTemplate is reported when every attempt of a call failed transiently
	ErrRetriesExhaustedTemplate = `Request to %s failed after %d attempts.

The service or the network returned transient errors on every attempt.
Last failure: %v

Troubleshooting steps:
1. Check network connectivity to the RestBackup endpoint
2. Retry later, the service may be under maintenance
3. Raise 'client.maxAttempts' in config.yaml for long outages`
)
