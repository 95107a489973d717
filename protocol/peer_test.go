package protocol

import (
	"bytes"
	"errors"
	"net"
	"testing"
)

func TestIPv4PeerMarshalBinary(t *testing.T) {
	var tests = []struct {
		peers    IPv4Peers
		expected []byte
	}{
		{
			peers: IPv4Peers{
				{
					IP:   net.ParseIP("127.0.0.1"),
					Port: uint16(8080),
				},
				{
					IP:   net.ParseIP("192.168.178.1"),
					Port: uint16(8080),
				},
			},
			expected: []byte{
				0x7f, 0x00, 0x00, 0x01, 0x1F, 0x90,
				0xC0, 0xA8, 0xB2, 0x01, 0x1F, 0x90,
			},
		},
		{
			peers: IPv4Peers{
				{
					IP:   net.ParseIP("::1"),
					Port: uint16(8080),
				},
			},
			expected: []byte{},
		},
	}

	for _, test := range tests {
		actual, err := test.peers.MarshalBinary()
		if err != nil {
			t.Fatalf("IPv4Peers.MarshalBinary() returned error: %v", err)
		}

		if !bytes.Equal(actual, test.expected) {
			t.Fatalf("IPv4Peers.MarshalBinary() returned %v, expected %v", actual, test.expected)
		}
	}
}

func TestIPv4PeerUnmarshalBinary(t *testing.T) {
	var tests = []struct {
		input    []byte
		expected IPv4Peers
	}{
		{
			input:    []byte{192, 0, 2, 1, 0x1A, 0xE1},
			expected: IPv4Peers{{IP: net.IPv4(192, 0, 2, 1), Port: 6881}},
		},
		{
			input: []byte{
				0x7f, 0x00, 0x00, 0x01, 0x1F, 0x90,
				0xC0, 0xA8, 0xB2, 0x01, 0xFF, 0xFF,
			},
			expected: IPv4Peers{
				{IP: net.IPv4(127, 0, 0, 1), Port: 8080},
				{IP: net.IPv4(192, 168, 178, 1), Port: 65535},
			},
		},
		{
			input:    []byte{},
			expected: IPv4Peers{},
		},
	}

	for _, test := range tests {
		var actual IPv4Peers
		if err := actual.UnmarshalBinary(test.input); err != nil {
			t.Fatalf("IPv4Peers.UnmarshalBinary(%v) returned error: %v", test.input, err)
		}

		if len(actual) != len(test.expected) {
			t.Fatalf("IPv4Peers.UnmarshalBinary(%v) returned %d peers, expected %d", test.input, len(actual), len(test.expected))
		}

		for i := range actual {
			if !actual[i].IP.Equal(test.expected[i].IP) || actual[i].Port != test.expected[i].Port {
				t.Fatalf("IPv4Peers.UnmarshalBinary(%v)[%d] = %v, expected %v", test.input, i, actual[i], test.expected[i])
			}
		}
	}
}

func TestIPv4PeerUnmarshalBinaryRejectsPartialGroup(t *testing.T) {
	peers := IPv4Peers{{IP: net.IPv4(1, 1, 1, 1), Port: 1}}

	err := peers.UnmarshalBinary([]byte{192, 0, 2, 1, 0x1A, 0xE1, 0x01})
	if !errors.Is(err, ErrInvalidCompactLength) {
		t.Fatalf("expected ErrInvalidCompactLength, got %v", err)
	}

	// the receiver must be left untouched
	if len(peers) != 1 {
		t.Fatalf("expected receiver to keep 1 peer, got %d", len(peers))
	}
}

func TestPeerAddrString(t *testing.T) {
	addr := PeerAddr{IP: net.IPv4(10, 0, 0, 5), Port: 51413}
	if addr.String() != "10.0.0.5:51413" {
		t.Fatalf("PeerAddr.String() returned %q", addr.String())
	}
}
