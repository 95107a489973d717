package tracker

import (
	"fmt"
	"math"
	"net"
	"strconv"

	"erri120/gotorrent/protocol"

	"github.com/anacrolix/torrent/bencode"
)

type dictPeer struct {
	Id   string    `bencode:"peer id"`
	IP   string    `bencode:"ip"`
	Port *peerPort `bencode:"port"`
}

// Trackers disagree on whether the port is an integer or a string.
type peerPort uint16

func (port *peerPort) UnmarshalBencode(data []byte) error {
	var value int64

	if len(data) > 0 && data[0] == 'i' {
		if err := bencode.Unmarshal(data, &value); err != nil {
			return err
		}
	} else {
		var text string
		if err := bencode.Unmarshal(data, &text); err != nil {
			return err
		}

		parsed, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return err
		}
		value = parsed
	}

	if value < 0 || value > math.MaxUint16 {
		return fmt.Errorf("port %d out of range", value)
	}

	*port = peerPort(value)
	return nil
}

// DecodePeers decodes the value of the "peers" key. raw is first read as a
// bencoded list of dictionaries; when that fails it is taken as a compact
// string of 6-byte groups.
func DecodePeers(raw []byte) ([]protocol.Peer, error) {
	var dictPeers []dictPeer
	if err := bencode.Unmarshal(raw, &dictPeers); err == nil {
		return fromDictPeers(dictPeers)
	}

	var compact protocol.IPv4Peers
	if err := compact.UnmarshalBinary(raw); err != nil {
		return nil, &ProtocolError{Reason: "malformed compact peer list", Err: err}
	}

	peers := make([]protocol.Peer, 0, len(compact))
	for _, addr := range compact {
		peers = append(peers, protocol.Peer{PeerAddr: addr})
	}

	return peers, nil
}

func fromDictPeers(dictPeers []dictPeer) ([]protocol.Peer, error) {
	peers := make([]protocol.Peer, 0, len(dictPeers))

	for i, dict := range dictPeers {
		ip := net.ParseIP(dict.IP)
		if ip == nil {
			return nil, &ProtocolError{Reason: fmt.Sprintf("peer %d has invalid ip %q", i, dict.IP)}
		}

		if dict.Port == nil {
			return nil, &ProtocolError{Reason: fmt.Sprintf("peer %d has no port", i)}
		}

		var id []byte
		if dict.Id != "" {
			if len(dict.Id) != protocol.SizeOfPeerId {
				return nil, &ProtocolError{Reason: fmt.Sprintf("peer %d has a %d byte peer id", i, len(dict.Id))}
			}
			id = []byte(dict.Id)
		}

		peers = append(peers, protocol.Peer{
			PeerAddr: protocol.PeerAddr{
				IP:   ip,
				Port: uint16(*dict.Port),
			},
			Id: id,
		})
	}

	return peers, nil
}
