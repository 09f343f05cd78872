package content

import (
	"fmt"

	"github.com/pkg/errors"
)

// Quarantine kinds. These classify content-validation failures, which are
// never retried.
const (
	KindEmptyContent        = "empty_content"
	KindHTTPError           = "http_error"
	KindErrorPage           = "error_page"
	KindInsufficientContent = "insufficient_content"
)

// QuarantineError marks scrape content that failed validation and should be
// quarantined rather than retried.
type QuarantineError struct {
	Kind      string
	Detail    string
	RawPrefix string
}

func (e *QuarantineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// AsQuarantine unwraps err into a *QuarantineError if one is in the chain.
func AsQuarantine(err error) (*QuarantineError, bool) {
	var qe *QuarantineError
	if errors.As(err, &qe) {
		return qe, true
	}
	return nil, false
}
