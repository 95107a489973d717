package tracker

import (
	"erri120/gotorrent/protocol"

	"github.com/anacrolix/torrent/bencode"
)

const keyFailureReason = "failure reason"

type rawResponse struct {
	WarningMessage string        `bencode:"warning message,omitempty"`
	Interval       int64         `bencode:"interval,omitempty"`
	MinInterval    *int64        `bencode:"min interval,omitempty"`
	TrackerId      string        `bencode:"tracker id,omitempty"`
	Complete       int64         `bencode:"complete,omitempty"`
	Incomplete     int64         `bencode:"incomplete,omitempty"`
	Peers          bencode.Bytes `bencode:"peers,omitempty"`
}

// DecodeResponse decodes an announce response body. A response carrying a
// "failure reason" is returned as a ProtocolError.
func DecodeResponse(body []byte) (*protocol.AnnounceResponse, error) {
	var dict map[string]bencode.Bytes
	if err := bencode.Unmarshal(body, &dict); err != nil {
		return nil, &ProtocolError{Reason: "body is not a bencoded dictionary", Err: err}
	}

	// the failure reason wins over any other malformed key
	if value, ok := dict[keyFailureReason]; ok {
		var failureReason string
		if err := bencode.Unmarshal(value, &failureReason); err != nil {
			return nil, &ProtocolError{Reason: "failure reason is not a string", Err: err}
		}

		return nil, &ProtocolError{FailureReason: failureReason}
	}

	var raw rawResponse
	if err := bencode.Unmarshal(body, &raw); err != nil {
		return nil, &ProtocolError{Reason: "malformed response field", Err: err}
	}

	peers, err := decodePeersValue(raw.Peers)
	if err != nil {
		return nil, err
	}

	return &protocol.AnnounceResponse{
		WarningMessage: raw.WarningMessage,
		Interval:       raw.Interval,
		MinInterval:    raw.MinInterval,
		TrackerId:      raw.TrackerId,
		Complete:       raw.Complete,
		Incomplete:     raw.Incomplete,
		Peers:          peers,
	}, nil
}

// decodePeersValue passes lists on as bencode and strings as their content.
func decodePeersValue(value bencode.Bytes) ([]protocol.Peer, error) {
	if len(value) == 0 {
		return nil, nil
	}

	if value[0] == 'l' {
		return DecodePeers(value)
	}

	var compact []byte
	if err := bencode.Unmarshal(value, &compact); err != nil {
		return nil, &ProtocolError{Reason: "peers is neither a list nor a string", Err: err}
	}

	return DecodePeers(compact)
}
