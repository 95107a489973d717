package protocol

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	SizeOfInfoHash = 20
	SizeOfPeerId   = 20
)

// InfoHash is the SHA-1 of the canonical info dictionary of a torrent.
type InfoHash [SizeOfInfoHash]byte

// Raw view, used on the wire.
func (infoHash InfoHash) Bytes() []byte {
	return infoHash[:]
}

// Percent-encoded view, used in tracker query strings.
func (infoHash InfoHash) URLEncoded() string {
	return PercentEncode(infoHash[:])
}

func (infoHash InfoHash) String() string {
	return hex.EncodeToString(infoHash[:])
}

type PeerId [SizeOfPeerId]byte

func (peerId PeerId) Bytes() []byte {
	return peerId[:]
}

func (peerId PeerId) URLEncoded() string {
	return PercentEncode(peerId[:])
}

func (peerId PeerId) String() string {
	return string(peerId[:])
}

const upperHex = "0123456789ABCDEF"

// PercentEncode renders every byte as an uppercase %XX escape, including bytes
// that url.QueryEscape would leave alone.
func PercentEncode(data []byte) string {
	var builder strings.Builder
	builder.Grow(len(data) * 3)

	for _, b := range data {
		builder.WriteByte('%')
		builder.WriteByte(upperHex[b>>4])
		builder.WriteByte(upperHex[b&0x0f])
	}

	return builder.String()
}

const peerIdAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// GeneratePeerId returns a peer id made of the client prefix (e.g. "-GT0001-")
// followed by random alphanumeric characters.
func GeneratePeerId(prefix string) (PeerId, error) {
	var peerId PeerId

	if len(prefix) > SizeOfPeerId {
		return peerId, fmt.Errorf("peer id prefix %q is longer than %d bytes", prefix, SizeOfPeerId)
	}

	n := copy(peerId[:], prefix)

	random := make([]byte, SizeOfPeerId-n)
	if _, err := rand.Read(random); err != nil {
		return peerId, fmt.Errorf("unable to read random bytes: %w", err)
	}

	for i, b := range random {
		peerId[n+i] = peerIdAlphabet[int(b)%len(peerIdAlphabet)]
	}

	return peerId, nil
}
