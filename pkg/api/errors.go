package api

// HTTPError is returned for a non-2xx response or an envelope whose status
// is not "ok".
type HTTPError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// newHTTPError prefers error.message, then a flat message, then fallback.
func newHTTPError(statusCode int, env envelope, fallback string) *HTTPError {
	e := &HTTPError{StatusCode: statusCode, Message: fallback}
	if env.Error != nil {
		e.Code = env.Error.Code
	}
	switch {
	case env.Error != nil && env.Error.Message != "":
		e.Message = env.Error.Message
	case env.Message != "":
		e.Message = env.Message
	}
	return e
}
