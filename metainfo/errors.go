package metainfo

import "fmt"

// DescriptorError reports a malformed torrent file.
type DescriptorError struct {
	Reason string
	Err    error
}

func (err *DescriptorError) Error() string {
	if err.Err != nil {
		return fmt.Sprintf("malformed descriptor: %s: %v", err.Reason, err.Err)
	}

	return fmt.Sprintf("malformed descriptor: %s", err.Reason)
}

func (err *DescriptorError) Unwrap() error {
	return err.Err
}

func descriptorError(err error, format string, args ...interface{}) *DescriptorError {
	return &DescriptorError{
		Reason: fmt.Sprintf(format, args...),
		Err:    err,
	}
}
