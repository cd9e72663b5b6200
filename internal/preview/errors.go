package preview

import "fmt"

// InvalidURLError is returned when a page URL cannot be fetched at all
type InvalidURLError struct {
	URL     string
	Message string
	Cause   error
}

func (e *InvalidURLError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid page URL %q: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("invalid page URL %q: %s", e.URL, e.Message)
}

func (e *InvalidURLError) Unwrap() error {
	return e.Cause
}
