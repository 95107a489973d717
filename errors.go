package gotorrent

import "fmt"

const (
	StepLoad     = "load"
	StepAnnounce = "announce"
	StepConnect  = "connect"
)

// BootstrapError names the step of the bootstrap that failed.
type BootstrapError struct {
	Step string
	Err  error
}

func (err *BootstrapError) Error() string {
	return fmt.Sprintf("%s: %v", err.Step, err.Err)
}

func (err *BootstrapError) Unwrap() error {
	return err.Err
}
