package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"erri120/gotorrent"
	"erri120/gotorrent/metainfo"
	"erri120/gotorrent/peer"
	"erri120/gotorrent/protocol"
	"erri120/gotorrent/server"
	"erri120/gotorrent/tracker"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// retryBackoff spaces out announce retries after transport errors.
var retryBackoff = &backoff.ExponentialBackOff{
	InitialInterval:     time.Second,
	RandomizationFactor: 0.5,
	Multiplier:          2,
	MaxInterval:         30 * time.Second,
	MaxElapsedTime:      2 * time.Minute,
	Clock:               backoff.SystemClock,
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func run() error {
	config := gotorrent.DefaultConfig()

	port := flag.Uint("port", uint(config.Port), "port announced to the tracker")
	flag.IntVar(&config.Workers, "workers", config.Workers, "number of concurrent peer connections")
	flag.DurationVar(&config.DialTimeout, "dial-timeout", config.DialTimeout, "timeout for connecting to a peer")
	flag.DurationVar(&config.ReadTimeout, "read-timeout", config.ReadTimeout, "timeout for the handshake exchange")
	flag.DurationVar(&config.AnnounceTimeout, "announce-timeout", config.AnnounceTimeout, "timeout for the tracker request")
	flag.StringVar(&config.PeerIdPrefix, "prefix", config.PeerIdPrefix, "client prefix of the peer id")
	retries := flag.Uint64("retries", 3, "announce retries after transport errors")
	serve := flag.String("serve", "", "run a tracker for the torrent on this address instead of downloading")
	debug := flag.Bool("debug", false, "enable debug logging")

	flag.Parse()

	if flag.NArg() != 1 {
		return fmt.Errorf("usage: %s [flags] <file.torrent>", os.Args[0])
	}

	if *port > 0xffff {
		return fmt.Errorf("invalid port %d", *port)
	}
	config.Port = uint16(*port)

	level := zap.InfoLevel
	if *debug {
		level = zap.DebugLevel
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(zap.NewProductionEncoderConfig()), os.Stderr, level)
	logger := zap.New(core).With(zap.String("name", "gotorrent"))
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := &gotorrent.Client{Logger: logger, Config: config}

	metaInfo, peerId, err := client.LoadFile(flag.Arg(0))
	if err != nil {
		return err
	}

	printMetaInfo(metaInfo)

	if *serve != "" {
		return serveTracker(ctx, logger, *serve, metaInfo)
	}

	response, err := announce(ctx, client, metaInfo, peerId, *retries)
	if err != nil {
		return err
	}

	fmt.Printf("Tracker: %d peers, %d seeders, %d leechers, interval %ds\n",
		len(response.Peers), response.Complete, response.Incomplete, response.Interval)

	result, err := client.Connect(ctx, metaInfo, peerId, response.Peers)
	if err != nil {
		return err
	}
	defer result.Close()

	for _, attempt := range result.Connections {
		fmt.Println(describeConnection(attempt))
	}

	for _, attempt := range result.Failed {
		fmt.Printf("Failed: %s: %v\n", attempt.Peer, attempt.Err)
	}

	if len(result.Connections) == 0 && len(response.Peers) > 0 {
		return fmt.Errorf("unable to connect to any of %d peers", len(response.Peers))
	}

	return nil
}

// announce retries transport errors only, the tracker's answer is final.
func announce(ctx context.Context, client *gotorrent.Client, metaInfo *metainfo.MetaInfo, peerId protocol.PeerId, retries uint64) (*protocol.AnnounceResponse, error) {
	var response *protocol.AnnounceResponse

	operation := func() error {
		var err error
		response, err = client.Announce(ctx, metaInfo, peerId)
		if err == nil {
			return nil
		}

		var transportErr *tracker.TransportError
		if !errors.As(err, &transportErr) {
			return backoff.Permanent(err)
		}

		return err
	}

	retryBackoff.Reset()
	policy := backoff.WithContext(backoff.WithMaxRetries(retryBackoff, retries), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return nil, permanent.Err
		}

		return nil, err
	}

	return response, nil
}

// describeConnection quotes the remote peer id, it is arbitrary bytes.
func describeConnection(attempt *peer.Attempt) string {
	return fmt.Sprintf("Connected: %s (%q)", attempt.Peer, attempt.Remote.PeerId.String())
}

func printMetaInfo(metaInfo *metainfo.MetaInfo) {
	info := metaInfo.Info

	fmt.Printf("Name: %s\n", info.Name)
	fmt.Printf("Tracker URL: %s\n", metaInfo.Announce)
	fmt.Printf("Info Hash: %s\n", metaInfo.InfoHash())
	fmt.Printf("Piece Length: %d\n", info.PieceLength)
	fmt.Printf("Pieces: %d\n", info.NumPieces())

	if info.Length != nil {
		fmt.Printf("Length: %d\n", *info.Length)
		return
	}

	for _, file := range info.Files {
		fmt.Printf("File: %v (%d)\n", file.Path, file.Length)
	}
}

// serveTracker runs an in-memory tracker that only knows metaInfo.
func serveTracker(ctx context.Context, logger *zap.Logger, addr string, metaInfo *metainfo.MetaInfo) error {
	torrent := &server.MemoryTorrent{}

	httpServer := &http.Server{
		Addr: addr,
		Handler: &server.Server{
			Logger: logger.With(zap.String("name", "server")),
			GetTorrent: func(infoHash protocol.InfoHash) (server.Torrent, error) {
				if infoHash != metaInfo.InfoHash() {
					return nil, fmt.Errorf("unknown info hash %s", infoHash)
				}

				return torrent, nil
			},
		},
	}

	go func() {
		<-ctx.Done()
		httpServer.Close()
	}()

	logger.Info("Serving tracker", zap.String("addr", addr))

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
