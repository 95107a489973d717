package gotorrent

import (
	"time"

	"erri120/gotorrent/peer"
	"erri120/gotorrent/protocol"
	"erri120/gotorrent/tracker"
)

const DefaultPeerIdPrefix = "-GT0001-"

type Config struct {
	Port            uint16        // Port announced to the tracker.
	Workers         int           // Concurrent peer connection attempts.
	DialTimeout     time.Duration //
	ReadTimeout     time.Duration // Deadline for the handshake exchange.
	AnnounceTimeout time.Duration //
	PeerIdPrefix    string        // Client prefix of the generated peer id.
}

func DefaultConfig() Config {
	return Config{
		Port:            protocol.DefaultPort,
		Workers:         peer.DefaultWorkers,
		DialTimeout:     peer.DefaultDialTimeout,
		ReadTimeout:     peer.DefaultReadTimeout,
		AnnounceTimeout: tracker.DefaultTimeout,
		PeerIdPrefix:    DefaultPeerIdPrefix,
	}
}
