package tracker

import "fmt"

// UnsupportedProtocolError is returned for announce URLs that are not http or
// https. No request is made in that case.
type UnsupportedProtocolError struct {
	URL    string
	Scheme string
}

func (err *UnsupportedProtocolError) Error() string {
	return fmt.Sprintf("%s trackers are not supported: %s", err.Scheme, err.URL)
}

// TransportError wraps a failure to reach the tracker or to read its answer.
type TransportError struct {
	URL string
	Err error
}

func (err *TransportError) Error() string {
	return fmt.Sprintf("unable to reach tracker %s: %v", err.URL, err.Err)
}

func (err *TransportError) Unwrap() error {
	return err.Err
}

// ProtocolError reports a malformed tracker response, or a response carrying
// a "failure reason", in which case FailureReason is set.
type ProtocolError struct {
	Reason        string
	FailureReason string
	Err           error
}

func (err *ProtocolError) Error() string {
	if err.FailureReason != "" {
		return fmt.Sprintf("tracker returned failure: %s", err.FailureReason)
	}

	if err.Err != nil {
		return fmt.Sprintf("invalid tracker response: %s: %v", err.Reason, err.Err)
	}

	return fmt.Sprintf("invalid tracker response: %s", err.Reason)
}

func (err *ProtocolError) Unwrap() error {
	return err.Err
}
