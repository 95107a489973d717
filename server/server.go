// Package server is a minimal HTTP tracker. It answers announces from an
// in-memory swarm and is used to exercise the client end to end.
package server

import (
	"fmt"
	"net"
	"net/http"
	"strconv"

	"erri120/gotorrent/protocol"

	"github.com/anacrolix/torrent/bencode"
	"go.uber.org/zap"
)

const announceInterval = 900

type GetTorrentFunc func(infoHash protocol.InfoHash) (Torrent, error)

type IsBannedFunc func(remoteAddr string) bool

type Server struct {
	Logger     *zap.Logger
	GetTorrent GetTorrentFunc
	IsBanned   IsBannedFunc
}

type announceResponse struct {
	Interval   int64       `bencode:"interval"`
	Complete   int32       `bencode:"complete"`
	Incomplete int32       `bencode:"incomplete"`
	Peers      interface{} `bencode:"peers"`
}

type failureResponse struct {
	FailureReason string `bencode:"failure reason"`
}

type dictPeer struct {
	Id   string `bencode:"peer id"`
	IP   string `bencode:"ip"`
	Port uint16 `bencode:"port"`
}

func (server *Server) logger() *zap.Logger {
	if server.Logger == nil {
		return zap.NewNop()
	}

	return server.Logger
}

// Responds to a client with a bencoded value.
func (server *Server) respond(w http.ResponseWriter, value interface{}) error {
	data, err := bencode.Marshal(value)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return err
	}

	w.Header().Set("Content-Type", "text/plain")
	_, err = w.Write(data)
	return err
}

// Responds to a client with a failure reason.
func (server *Server) respondWithError(w http.ResponseWriter, message string) error {
	return server.respond(w, failureResponse{FailureReason: message})
}

func parseId(value string) ([20]byte, error) {
	var id [20]byte
	if len(value) != len(id) {
		return id, fmt.Errorf("expected %d bytes, got %d", len(id), len(value))
	}

	copy(id[:], value)
	return id, nil
}

func (server *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := server.logger().With(zap.String("remote", r.RemoteAddr))

	if server.IsBanned != nil && server.IsBanned(r.RemoteAddr) {
		logger.Warn("Banned client tried to announce")
		server.respondWithError(w, "banned")
		return
	}

	if server.GetTorrent == nil {
		logger.Error("GetTorrent function is not set")
		http.Error(w, "tracker is not configured", http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()

	infoHash, err := parseId(query.Get("info_hash"))
	if err != nil {
		logger.Error("Client sent an invalid info_hash", zap.Error(err))
		server.respondWithError(w, "invalid info_hash")
		return
	}

	peerId, err := parseId(query.Get("peer_id"))
	if err != nil {
		logger.Error("Client sent an invalid peer_id", zap.Error(err))
		server.respondWithError(w, "invalid peer_id")
		return
	}

	port, err := strconv.ParseUint(query.Get("port"), 10, 16)
	if err != nil {
		logger.Error("Client sent an invalid port", zap.Error(err))
		server.respondWithError(w, "invalid port")
		return
	}

	numWant := int64(-1)
	if value := query.Get("numwant"); value != "" {
		if numWant, err = strconv.ParseInt(value, 10, 32); err != nil {
			logger.Error("Client sent an invalid numwant", zap.Error(err))
			server.respondWithError(w, "invalid numwant")
			return
		}
	}

	logger = logger.With(zap.Stringer("infoHash", protocol.InfoHash(infoHash)))
	logger.Debug("Handling announce", zap.String("event", query.Get("event")))

	torrent, err := server.GetTorrent(infoHash)
	if err != nil {
		logger.Error("Unable to get torrent", zap.Error(err))
		server.respondWithError(w, "unknown torrent")
		return
	}

	peers, err := torrent.GetPeers(int32(numWant))
	if err != nil {
		logger.Error("Unable to get peers", zap.Error(err))
		server.respondWithError(w, "internal error")
		return
	}

	leechers, err := torrent.GetLeechers()
	if err != nil {
		logger.Error("Unable to get leechers", zap.Error(err))
		server.respondWithError(w, "internal error")
		return
	}

	seeders, err := torrent.GetSeeders()
	if err != nil {
		logger.Error("Unable to get seeders", zap.Error(err))
		server.respondWithError(w, "internal error")
		return
	}

	// add current client as peer
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	err = torrent.AddPeer(protocol.Peer{
		PeerAddr: protocol.PeerAddr{IP: net.ParseIP(host), Port: uint16(port)},
		Id:       peerId[:],
	})
	if err != nil {
		logger.Error("Unable to add peer", zap.Error(err))
		server.respondWithError(w, "internal error")
		return
	}

	response := announceResponse{
		Interval:   announceInterval,
		Complete:   seeders,
		Incomplete: leechers,
	}

	if query.Get("compact") == "1" {
		addrs := make(protocol.IPv4Peers, 0, len(peers))
		for _, peer := range peers {
			addrs = append(addrs, peer.PeerAddr)
		}

		b, err := addrs.MarshalBinary()
		if err != nil {
			logger.Error("Unable to marshal IPv4 peers", zap.Error(err))
			server.respondWithError(w, "internal error")
			return
		}

		response.Peers = b
	} else {
		dictPeers := make([]dictPeer, 0, len(peers))
		for _, peer := range peers {
			dictPeers = append(dictPeers, dictPeer{
				Id:   string(peer.Id),
				IP:   peer.IP.String(),
				Port: peer.Port,
			})
		}

		response.Peers = dictPeers
	}

	if err := server.respond(w, response); err != nil {
		logger.Error("Unable to respond to client with announce response", zap.Error(err))
		return
	}

	logger.Info("Answered announce", zap.Int("peers", len(peers)))
}
