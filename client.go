// Package gotorrent bootstraps a download: it loads a torrent descriptor,
// announces to the tracker and opens validated connections to the peers the
// tracker returned.
package gotorrent

import (
	"context"
	"net/http"

	"erri120/gotorrent/metainfo"
	"erri120/gotorrent/peer"
	"erri120/gotorrent/protocol"
	"erri120/gotorrent/tracker"

	"go.uber.org/zap"
)

type Client struct {
	Logger *zap.Logger
	Config Config

	// Optional, replaces the HTTP client built from Config.AnnounceTimeout.
	HTTPClient *http.Client
	// Optional, replaces the TCP dialer used to reach peers.
	Dial peer.DialFunc
}

// NewClient returns a client using DefaultConfig.
func NewClient(logger *zap.Logger) *Client {
	return &Client{
		Logger: logger,
		Config: DefaultConfig(),
	}
}

// Session is the outcome of a bootstrap. Connections are the validated
// attempts, in the order the tracker listed the peers.
type Session struct {
	MetaInfo    *metainfo.MetaInfo
	PeerId      protocol.PeerId
	Response    *protocol.AnnounceResponse
	Connections []*peer.Attempt
	Failures    error // Combined errors of the rejected peers.
}

// Connection returns the validated attempt for the given "host:port" address.
func (session *Session) Connection(addr string) (*peer.Attempt, bool) {
	for _, attempt := range session.Connections {
		if attempt.Peer.String() == addr {
			return attempt, true
		}
	}

	return nil, false
}

func (session *Session) Close() error {
	result := peer.Result{Connections: session.Connections}
	return result.Close()
}

func (client *Client) logger() *zap.Logger {
	if client.Logger == nil {
		return zap.NewNop()
	}

	return client.Logger
}

// Load parses a descriptor and generates the local peer id.
func (client *Client) Load(descriptor []byte) (*metainfo.MetaInfo, protocol.PeerId, error) {
	metaInfo, err := metainfo.Parse(descriptor)
	if err != nil {
		return nil, protocol.PeerId{}, &BootstrapError{Step: StepLoad, Err: err}
	}

	return client.loaded(metaInfo)
}

// LoadFile is Load for a descriptor stored at path.
func (client *Client) LoadFile(path string) (*metainfo.MetaInfo, protocol.PeerId, error) {
	metaInfo, err := metainfo.Load(path)
	if err != nil {
		return nil, protocol.PeerId{}, &BootstrapError{Step: StepLoad, Err: err}
	}

	return client.loaded(metaInfo)
}

func (client *Client) loaded(metaInfo *metainfo.MetaInfo) (*metainfo.MetaInfo, protocol.PeerId, error) {
	prefix := client.Config.PeerIdPrefix
	if prefix == "" {
		prefix = DefaultPeerIdPrefix
	}

	peerId, err := protocol.GeneratePeerId(prefix)
	if err != nil {
		return nil, peerId, &BootstrapError{Step: StepLoad, Err: err}
	}

	client.logger().Info("Loaded torrent",
		zap.String("name", metaInfo.Info.Name),
		zap.Stringer("infoHash", metaInfo.InfoHash()),
		zap.String("tracker", metaInfo.Announce),
		zap.String("peerId", peerId.String()),
	)

	return metaInfo, peerId, nil
}

// Announce sends a single announce for the torrent. It never retries.
func (client *Client) Announce(ctx context.Context, metaInfo *metainfo.MetaInfo, peerId protocol.PeerId) (*protocol.AnnounceResponse, error) {
	left, err := metaInfo.Info.TotalSize()
	if err != nil {
		return nil, &BootstrapError{Step: StepAnnounce, Err: err}
	}

	request := protocol.NewAnnounceRequest(metaInfo.InfoHash(), peerId, left)
	if client.Config.Port != 0 {
		request.Port = client.Config.Port
	}
	request.Event = protocol.AnnounceEventStarted

	httpClient := client.HTTPClient
	if httpClient == nil && client.Config.AnnounceTimeout > 0 {
		httpClient = &http.Client{Timeout: client.Config.AnnounceTimeout}
	}

	trackerClient := &tracker.Client{
		Logger:     client.logger(),
		HTTPClient: httpClient,
	}

	response, err := trackerClient.Send(ctx, metaInfo.Announce, request)
	if err != nil {
		return nil, &BootstrapError{Step: StepAnnounce, Err: err}
	}

	return response, nil
}

// Connect performs the handshake with every peer. Only a cancelled ctx makes
// it fail, rejected peers are reported in Session.Failures.
func (client *Client) Connect(ctx context.Context, metaInfo *metainfo.MetaInfo, peerId protocol.PeerId, peers []protocol.Peer) (*peer.Result, error) {
	pool := &peer.Pool{
		Logger: client.logger(),
		Connector: &peer.Connector{
			Logger:      client.logger(),
			InfoHash:    metaInfo.InfoHash(),
			PeerId:      peerId,
			DialTimeout: client.Config.DialTimeout,
			ReadTimeout: client.Config.ReadTimeout,
			Dial:        client.Dial,
		},
		Workers: client.Config.Workers,
	}

	result, err := pool.Run(ctx, peers)
	if err != nil {
		result.Close()
		return nil, &BootstrapError{Step: StepConnect, Err: err}
	}

	return result, nil
}

// Bootstrap runs the load, announce and connect steps. The returned session
// owns the validated connections, the caller closes them with Session.Close.
func (client *Client) Bootstrap(ctx context.Context, descriptor []byte) (*Session, error) {
	metaInfo, peerId, err := client.Load(descriptor)
	if err != nil {
		return nil, err
	}

	return client.bootstrap(ctx, metaInfo, peerId)
}

// BootstrapFile reads the descriptor from path and bootstraps it.
func (client *Client) BootstrapFile(ctx context.Context, path string) (*Session, error) {
	metaInfo, peerId, err := client.LoadFile(path)
	if err != nil {
		return nil, err
	}

	return client.bootstrap(ctx, metaInfo, peerId)
}

func (client *Client) bootstrap(ctx context.Context, metaInfo *metainfo.MetaInfo, peerId protocol.PeerId) (*Session, error) {
	response, err := client.Announce(ctx, metaInfo, peerId)
	if err != nil {
		return nil, err
	}

	result, err := client.Connect(ctx, metaInfo, peerId, response.Peers)
	if err != nil {
		return nil, err
	}

	return &Session{
		MetaInfo:    metaInfo,
		PeerId:      peerId,
		Response:    response,
		Connections: result.Connections,
		Failures:    result.Err(),
	}, nil
}
