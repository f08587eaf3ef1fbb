package endpoint

import (
	"errors"
	"fmt"
	"net"
	"net/url"
)

// ErrUnreachable matches every transport failure surfaced by Send.
var ErrUnreachable = errors.New("api host unreachable")

// TransportError reports that no response was received from Host.
type TransportError struct {
	Host     string
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("api host %s unreachable after %d attempt(s): %s", e.Host, e.Attempts, shortenError(e.Err))
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrUnreachable
}

// shortenError keeps "connection refused" instead of the full dial trace.
func shortenError(err error) string {
	var ue *url.Error
	if errors.As(err, &ue) {
		err = ue.Err
	}
	var oe *net.OpError
	if errors.As(err, &oe) && oe.Err != nil {
		return oe.Err.Error()
	}
	return err.Error()
}
