package protocol

import (
	"fmt"
	"io"
	"math"
)

const ProtocolName = "BitTorrent protocol"

const SizeOfReserved = 8

// Bytes following the protocol name: reserved, info hash and peer id.
const SizeOfHandshakeTail uint32 = SizeOfReserved + SizeOfInfoHash + SizeOfPeerId

const MaxHandshakeLen = 1 + math.MaxUint8 + int(SizeOfHandshakeTail)

type Handshake struct {
	ProtocolName string
	Reserved     [SizeOfReserved]byte
	InfoHash     InfoHash
	PeerId       PeerId
}

// HandshakeDecodeError is returned when a buffer is too short for the frame
// announced by its length prefix.
type HandshakeDecodeError struct {
	Expected int
	Actual   int
}

func (err *HandshakeDecodeError) Error() string {
	return fmt.Sprintf("handshake needs %d bytes, got %d", err.Expected, err.Actual)
}

func NewHandshake(infoHash InfoHash, peerId PeerId) Handshake {
	return Handshake{
		ProtocolName: ProtocolName,
		InfoHash:     infoHash,
		PeerId:       peerId,
	}
}

func (handshake Handshake) Size() int {
	return 1 + len(handshake.ProtocolName) + int(SizeOfHandshakeTail)
}

func (handshake Handshake) MarshalBinary() ([]byte, error) {
	if len(handshake.ProtocolName) > math.MaxUint8 {
		return nil, fmt.Errorf("protocol name is %d bytes, at most %d allowed", len(handshake.ProtocolName), math.MaxUint8)
	}

	return Marshal(uint32(handshake.Size()),
		uint8(len(handshake.ProtocolName)),
		[]byte(handshake.ProtocolName),
		handshake.Reserved,
		handshake.InfoHash,
		handshake.PeerId,
	)
}

// UnmarshalHandshake decodes a frame using its length prefix to locate the
// remaining fields. Trailing bytes after the frame are ignored.
func UnmarshalHandshake(data []byte) (Handshake, error) {
	var handshake Handshake

	if len(data) < 1 {
		return handshake, &HandshakeDecodeError{Expected: 1, Actual: len(data)}
	}

	nameLen := int(data[0])
	expected := 1 + nameLen + int(SizeOfHandshakeTail)
	if len(data) < expected {
		return handshake, &HandshakeDecodeError{Expected: expected, Actual: len(data)}
	}

	offset := 1
	handshake.ProtocolName = string(data[offset : offset+nameLen])
	offset += nameLen

	offset += copy(handshake.Reserved[:], data[offset:offset+SizeOfReserved])
	offset += copy(handshake.InfoHash[:], data[offset:offset+SizeOfInfoHash])
	copy(handshake.PeerId[:], data[offset:offset+SizeOfPeerId])

	return handshake, nil
}

// ReadHandshake reads one frame from reader: the length prefix first, then
// exactly the number of bytes it announces.
func ReadHandshake(reader io.Reader) (Handshake, error) {
	buf := make([]byte, 1, MaxHandshakeLen)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return Handshake{}, fmt.Errorf("unable to read protocol name length: %w", err)
	}

	buf = buf[:1+int(buf[0])+int(SizeOfHandshakeTail)]
	if _, err := io.ReadFull(reader, buf[1:]); err != nil {
		return Handshake{}, fmt.Errorf("unable to read handshake body: %w", err)
	}

	return UnmarshalHandshake(buf)
}
