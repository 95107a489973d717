// Package peer opens TCP connections to swarm members and validates them with
// the BEP 3 handshake.
package peer

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"time"

	"erri120/gotorrent/protocol"

	"go.uber.org/zap"
)

const (
	DefaultDialTimeout = 5 * time.Second
	DefaultReadTimeout = 10 * time.Second
)

type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Connector performs the handshake for one torrent on behalf of the local peer.
type Connector struct {
	Logger   *zap.Logger
	InfoHash protocol.InfoHash
	PeerId   protocol.PeerId

	DialTimeout time.Duration
	// Deadline for sending our handshake and receiving the remote one.
	ReadTimeout time.Duration
	Dial        DialFunc
}

// Attempt records the outcome of connecting to a single peer. Conn is only
// set, and left open, when State is StateValidated.
type Attempt struct {
	Peer   protocol.Peer
	State  State
	Conn   net.Conn
	Remote protocol.Handshake
	Err    error

	logger *zap.Logger
}

func (attempt *Attempt) transition(to State) {
	if !attempt.State.canTransition(to) {
		panic(fmt.Sprintf("invalid peer state transition from %s to %s", attempt.State, to))
	}

	attempt.logger.Debug("Peer state changed", zap.Stringer("from", attempt.State), zap.Stringer("to", to))
	attempt.State = to
}

func (attempt *Attempt) reject(conn net.Conn, err error) *Attempt {
	if conn != nil {
		conn.Close()
	}

	attempt.Err = err
	attempt.transition(StateRejected)
	attempt.logger.Warn("Peer rejected", zap.Error(err))
	return attempt
}

func (connector *Connector) logger() *zap.Logger {
	if connector.Logger == nil {
		return zap.NewNop()
	}

	return connector.Logger
}

func (connector *Connector) dial(ctx context.Context, address string) (net.Conn, error) {
	timeout := connector.DialTimeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if connector.Dial != nil {
		return connector.Dial(ctx, "tcp", address)
	}

	var dialer net.Dialer
	return dialer.DialContext(ctx, "tcp", address)
}

func (connector *Connector) readTimeout() time.Duration {
	if connector.ReadTimeout <= 0 {
		return DefaultReadTimeout
	}

	return connector.ReadTimeout
}

// cause prefers the cancellation of ctx over the i/o error it provoked.
func cause(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v", ctxErr, err)
	}

	return err
}

// Connect dials the peer, sends the local handshake before reading anything,
// then reads and validates the remote handshake. Cancelling ctx interrupts the
// dial and any blocked read or write.
func (connector *Connector) Connect(ctx context.Context, peer protocol.Peer) *Attempt {
	address := peer.String()

	attempt := &Attempt{
		Peer:   peer,
		State:  StateDisconnected,
		logger: connector.logger().With(zap.String("remote", address)),
	}

	attempt.transition(StateConnecting)

	conn, err := connector.dial(ctx, address)
	if err != nil {
		return attempt.reject(nil, &ConnectError{Addr: address, Err: cause(ctx, err)})
	}

	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	if err := conn.SetDeadline(time.Now().Add(connector.readTimeout())); err != nil {
		return attempt.reject(conn, &HandshakeError{Addr: address, Err: err})
	}

	local, err := protocol.NewHandshake(connector.InfoHash, connector.PeerId).MarshalBinary()
	if err != nil {
		return attempt.reject(conn, &HandshakeError{Addr: address, Err: err})
	}

	if _, err := conn.Write(local); err != nil {
		return attempt.reject(conn, &HandshakeError{Addr: address, Err: cause(ctx, fmt.Errorf("unable to send handshake: %w", err))})
	}

	attempt.transition(StateHandshakeSent)

	remote, err := protocol.ReadHandshake(conn)
	if err != nil {
		return attempt.reject(conn, &HandshakeError{Addr: address, Err: cause(ctx, err)})
	}

	attempt.Remote = remote
	attempt.transition(StateHandshakeReceived)

	if remote.InfoHash != connector.InfoHash {
		return attempt.reject(conn, &HandshakeError{Addr: address, Err: ErrInfoHashMismatch})
	}

	if len(peer.Id) > 0 && !bytes.Equal(peer.Id, remote.PeerId[:]) {
		return attempt.reject(conn, &HandshakeError{Addr: address, Err: ErrPeerIdMismatch})
	}

	// past this point cancelling ctx no longer touches the connection
	if !stop() {
		return attempt.reject(conn, &HandshakeError{Addr: address, Err: ctx.Err()})
	}

	if err := conn.SetDeadline(time.Time{}); err != nil {
		return attempt.reject(conn, &HandshakeError{Addr: address, Err: err})
	}

	attempt.Conn = conn
	attempt.transition(StateValidated)
	attempt.logger.Info("Peer validated", zap.Binary("peerId", remote.PeerId[:]))

	return attempt
}
