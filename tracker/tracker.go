// Package tracker implements the HTTP announce of BEP 3.
package tracker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"erri120/gotorrent/metainfo"
	"erri120/gotorrent/protocol"

	"go.uber.org/zap"
)

const (
	DefaultTimeout  = 15 * time.Second
	maxResponseSize = 4 << 20
)

type Client struct {
	Logger     *zap.Logger
	HTTPClient *http.Client
}

func (client *Client) logger() *zap.Logger {
	if client.Logger == nil {
		return zap.NewNop()
	}

	return client.Logger
}

func (client *Client) httpClient() *http.Client {
	if client.HTTPClient == nil {
		return &http.Client{Timeout: DefaultTimeout}
	}

	return client.HTTPClient
}

// BuildAnnounceURL appends the announce parameters to the tracker URL. The
// info hash and peer id are percent-encoded byte by byte.
func BuildAnnounceURL(announce string, request protocol.AnnounceRequest) string {
	var builder strings.Builder
	builder.WriteString(announce)

	if strings.Contains(announce, "?") {
		builder.WriteByte('&')
	} else {
		builder.WriteByte('?')
	}

	compact := "0"
	if request.Compact {
		compact = "1"
	}

	builder.WriteString("info_hash=" + request.InfoHash.URLEncoded())
	builder.WriteString("&peer_id=" + request.PeerId.URLEncoded())
	builder.WriteString("&port=" + strconv.FormatUint(uint64(request.Port), 10))
	builder.WriteString("&uploaded=" + strconv.FormatInt(request.Uploaded, 10))
	builder.WriteString("&downloaded=" + strconv.FormatInt(request.Downloaded, 10))
	builder.WriteString("&compact=" + compact)
	builder.WriteString("&left=" + strconv.FormatInt(request.Left, 10))

	if request.Event != protocol.AnnounceEventNone {
		builder.WriteString("&event=" + request.Event.String())
	}

	if request.NumWant > 0 {
		builder.WriteString("&numwant=" + strconv.FormatInt(int64(request.NumWant), 10))
	}

	return builder.String()
}

func checkScheme(announce string) error {
	u, err := url.Parse(announce)
	if err != nil {
		return &metainfo.DescriptorError{Reason: "invalid announce URL", Err: err}
	}

	switch u.Scheme {
	case "http", "https":
		return nil
	default:
		return &UnsupportedProtocolError{URL: announce, Scheme: u.Scheme}
	}
}

// Announce registers the local peer for the torrent with default parameters
// and returns the peers known to the tracker.
func (client *Client) Announce(ctx context.Context, metaInfo *metainfo.MetaInfo, peerId protocol.PeerId) (*protocol.AnnounceResponse, error) {
	left, err := metaInfo.Info.TotalSize()
	if err != nil {
		return nil, err
	}

	request := protocol.NewAnnounceRequest(metaInfo.InfoHash(), peerId, left)
	return client.Send(ctx, metaInfo.Announce, request)
}

// Send performs a single announce. It never retries.
func (client *Client) Send(ctx context.Context, announce string, request protocol.AnnounceRequest) (*protocol.AnnounceResponse, error) {
	if err := checkScheme(announce); err != nil {
		return nil, err
	}

	logger := client.logger().With(
		zap.String("tracker", announce),
		zap.Stringer("infoHash", request.InfoHash),
	)

	announceUrl := BuildAnnounceURL(announce, request)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, announceUrl, nil)
	if err != nil {
		return nil, &TransportError{URL: announce, Err: err}
	}

	logger.Debug("Sending announce", zap.String("url", announceUrl))

	resp, err := client.httpClient().Do(req)
	if err != nil {
		logger.Error("Unable to reach tracker", zap.Error(err))
		return nil, &TransportError{URL: announce, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		logger.Error("Unable to read tracker response", zap.Error(err))
		return nil, &TransportError{URL: announce, Err: fmt.Errorf("unable to read body: %w", err)}
	}

	response, err := DecodeResponse(body)
	if err != nil {
		if resp.StatusCode != http.StatusOK {
			if protocolErr, ok := err.(*ProtocolError); ok && protocolErr.FailureReason == "" {
				protocolErr.Reason = fmt.Sprintf("status %d: %s", resp.StatusCode, protocolErr.Reason)
			}
		}

		logger.Error("Tracker rejected announce", zap.Int("status", resp.StatusCode), zap.Error(err))
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		err := &ProtocolError{Reason: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
		logger.Error("Tracker rejected announce", zap.Error(err))
		return nil, err
	}

	if response.WarningMessage != "" {
		logger.Warn("Tracker sent a warning", zap.String("warning", response.WarningMessage))
	}

	logger.Info("Tracker responded",
		zap.Int64("interval", response.Interval),
		zap.Int64("seeders", response.Complete),
		zap.Int64("leechers", response.Incomplete),
		zap.Int("peers", len(response.Peers)),
	)

	return response, nil
}
