package peer

import (
	"errors"
	"fmt"
)

var (
	ErrInfoHashMismatch = errors.New("info hash mismatch")
	ErrPeerIdMismatch   = errors.New("peer id mismatch")
)

// ConnectError is returned when the TCP connection to a peer cannot be opened.
type ConnectError struct {
	Addr string
	Err  error
}

func (err *ConnectError) Error() string {
	return fmt.Sprintf("unable to connect to peer %s: %v", err.Addr, err.Err)
}

func (err *ConnectError) Unwrap() error {
	return err.Err
}

// HandshakeError is returned when sending, receiving or validating the
// handshake with a peer fails.
type HandshakeError struct {
	Addr string
	Err  error
}

func (err *HandshakeError) Error() string {
	return fmt.Sprintf("handshake with peer %s failed: %v", err.Addr, err.Err)
}

func (err *HandshakeError) Unwrap() error {
	return err.Err
}
