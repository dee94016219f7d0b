package restbackup

// Class is the outcome category of an HTTP status code.
type Class int

const (
	// ClassTerminalClientError covers every code outside the other classes,
	// including 1xx, 3xx, 4xx other than 401, and out-of-range values.
	ClassTerminalClientError Class = iota
	// ClassSuccess covers 200 through 299.
	ClassSuccess
	// ClassUnauthorized is 401.
	ClassUnauthorized
	// ClassRetryableServerError covers 500 through 599.
	ClassRetryableServerError
)

func (c Class) String() string {
	switch c {
	case ClassSuccess:
		return "success"
	case ClassUnauthorized:
		return "unauthorized"
	case ClassRetryableServerError:
		return "retryable_server_error"
	default:
		return "terminal_client_error"
	}
}

// Classify maps a status code to its Class. It is total over all ints.
func Classify(statusCode int) Class {
	switch {
	case statusCode >= 200 && statusCode <= 299:
		return ClassSuccess
	case statusCode == 401:
		return ClassUnauthorized
	case statusCode >= 500 && statusCode <= 599:
		return ClassRetryableServerError
	default:
		return ClassTerminalClientError
	}
}
