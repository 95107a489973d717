package server

import (
	"sync"

	"erri120/gotorrent/protocol"
)

const (
	maxPeerCount     = 50
	defaultPeerCount = 10
)

type Torrent interface {
	GetLeechers() (int32, error)
	GetSeeders() (int32, error)
	AddPeer(peer protocol.Peer) error
	GetPeers(maxPeers int32) ([]protocol.Peer, error)
}

// MemoryTorrent keeps the swarm of a torrent in memory.
type MemoryTorrent struct {
	Leechers int32
	Seeders  int32
	Peers    []protocol.Peer

	mutex sync.Mutex
}

func (torrent *MemoryTorrent) GetLeechers() (int32, error) {
	torrent.mutex.Lock()
	defer torrent.mutex.Unlock()

	return torrent.Leechers, nil
}

func (torrent *MemoryTorrent) GetSeeders() (int32, error) {
	torrent.mutex.Lock()
	defer torrent.mutex.Unlock()

	return torrent.Seeders, nil
}

// AddPeer registers a peer. A peer announcing again from the same address
// replaces its previous entry.
func (torrent *MemoryTorrent) AddPeer(peer protocol.Peer) error {
	torrent.mutex.Lock()
	defer torrent.mutex.Unlock()

	for i, existing := range torrent.Peers {
		if existing.IP.Equal(peer.IP) && existing.Port == peer.Port {
			torrent.Peers[i] = peer
			return nil
		}
	}

	torrent.Peers = append(torrent.Peers, peer)
	torrent.Leechers++
	return nil
}

func (torrent *MemoryTorrent) GetPeers(maxPeers int32) ([]protocol.Peer, error) {
	torrent.mutex.Lock()
	defer torrent.mutex.Unlock()

	if maxPeers < 0 {
		maxPeers = defaultPeerCount
	}

	if maxPeers > maxPeerCount {
		maxPeers = maxPeerCount
	}

	count := len(torrent.Peers)
	if count > int(maxPeers) {
		count = int(maxPeers)
	}

	peers := make([]protocol.Peer, count)
	copy(peers, torrent.Peers)
	return peers, nil
}
