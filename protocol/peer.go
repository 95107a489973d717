package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"strconv"
)

const SizeOfIPv4Peer = net.IPv4len + 2

var ErrInvalidCompactLength = errors.New("compact peer list length is not a multiple of 6")

type PeerAddr struct {
	IP   net.IP
	Port uint16
}

func (addr PeerAddr) String() string {
	return net.JoinHostPort(addr.IP.String(), strconv.Itoa(int(addr.Port)))
}

// Peer is a swarm member as reported by a tracker. Id is empty when the
// tracker answered in compact form.
type Peer struct {
	PeerAddr
	Id []byte
}

type IPv4Peers []PeerAddr

func (peers IPv4Peers) MarshalBinary() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, len(peers)*SizeOfIPv4Peer))

	for _, peer := range peers {
		ip := peer.IP.To4()

		// skip this peer if the IP is not IPv4
		if ip == nil {
			continue
		}

		if _, err := buf.Write(ip); err != nil {
			return nil, err
		}

		if err := binary.Write(buf, binary.BigEndian, &peer.Port); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// UnmarshalBinary decodes consecutive 6-byte groups. A trailing partial group
// is an error, the list is never truncated.
func (peers *IPv4Peers) UnmarshalBinary(data []byte) error {
	if len(data)%SizeOfIPv4Peer != 0 {
		return fmt.Errorf("%w: got %d bytes", ErrInvalidCompactLength, len(data))
	}

	count := len(data) / SizeOfIPv4Peer
	result := make(IPv4Peers, 0, count)
	reader := bytes.NewReader(data)

	for i := 0; i < count; i++ {
		var compact struct {
			IP   [net.IPv4len]byte
			Port uint16
		}

		if err := Unmarshal(reader, &compact); err != nil {
			return err
		}

		result = append(result, PeerAddr{
			IP:   net.IPv4(compact.IP[0], compact.IP[1], compact.IP[2], compact.IP[3]),
			Port: compact.Port,
		})
	}

	*peers = result
	return nil
}
