package peer

import (
	"context"
	"sync"

	"erri120/gotorrent/protocol"

	"github.com/bradfitz/iter"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const DefaultWorkers = 8

// Pool runs connection attempts concurrently with a bounded number of workers.
type Pool struct {
	Logger    *zap.Logger
	Connector *Connector
	Workers   int
}

type Result struct {
	Connections []*Attempt // Validated attempts, in the order the peers were given.
	Failed      []*Attempt
}

// Err combines the errors of all failed attempts.
func (result *Result) Err() error {
	var err error
	for _, attempt := range result.Failed {
		err = multierr.Append(err, attempt.Err)
	}

	return err
}

// Close closes every validated connection.
func (result *Result) Close() error {
	var err error
	for _, attempt := range result.Connections {
		err = multierr.Append(err, attempt.Conn.Close())
	}

	return err
}

type task struct {
	index int
	peer  protocol.Peer
}

type outcome struct {
	index   int
	attempt *Attempt
}

func (pool *Pool) logger() *zap.Logger {
	if pool.Logger == nil {
		return zap.NewNop()
	}

	return pool.Logger
}

// Run tries every peer and waits for all attempts to finish. Per-peer
// failures are reported in the result, the returned error is only set when
// ctx was cancelled, in which case peers not yet dispatched are skipped.
func (pool *Pool) Run(ctx context.Context, peers []protocol.Peer) (*Result, error) {
	workers := pool.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	if workers > len(peers) {
		workers = len(peers)
	}

	tasks := make(chan task)
	outcomes := make(chan outcome, len(peers))

	var wg sync.WaitGroup
	for range iter.N(workers) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range tasks {
				outcomes <- outcome{
					index:   task.index,
					attempt: pool.Connector.Connect(ctx, task.peer),
				}
			}
		}()
	}

	go func() {
		defer close(tasks)
		for i, peer := range peers {
			select {
			case tasks <- task{index: i, peer: peer}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	attempts := make([]*Attempt, len(peers))
	for outcome := range outcomes {
		attempts[outcome.index] = outcome.attempt
	}

	result := &Result{}
	for _, attempt := range attempts {
		switch {
		case attempt == nil:
			// never dispatched
		case attempt.State == StateValidated:
			result.Connections = append(result.Connections, attempt)
		default:
			result.Failed = append(result.Failed, attempt)
		}
	}

	pool.logger().Info("Finished connecting to peers",
		zap.Int("peers", len(peers)),
		zap.Int("validated", len(result.Connections)),
		zap.Int("failed", len(result.Failed)),
	)

	if err := ctx.Err(); err != nil {
		return result, err
	}

	return result, nil
}
