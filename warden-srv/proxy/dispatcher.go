// Package proxy implements the request handler (HTTP forwarder + HTTPS
// tunnel) and the connection dispatcher that accepts client connections and
// hands them to a bounded worker pool.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/wardenproxy/warden/warden-srv/block"
	"github.com/wardenproxy/warden/warden-srv/cache"
	"github.com/wardenproxy/warden/warden-srv/config"
	"github.com/wardenproxy/warden/warden-srv/logger"
	"github.com/wardenproxy/warden/warden-srv/resolver"
	"github.com/wardenproxy/warden/warden-srv/stats"
)

// shutdownGrace is how long Stop waits for in-flight workers to finish
// before giving up on them (§4.5, §7).
const shutdownGrace = 60 * time.Second

// readHeadSize is the maximum number of bytes read from a client connection
// before the dispatcher decides whether it is looking at a CONNECT tunnel or
// a plaintext request (§4.3 step 1).
const readHeadSize = 4096

// connectPrefix is the literal that distinguishes the CONNECT tunnel path.
const connectPrefix = "CONNECT"

type dispatcherState int32

const (
	stateRunning dispatcherState = iota
	stateDraining
	stateStopped
)

var dispatcherLog = logger.Component("dispatcher")

// Dispatcher owns the listening socket and the bounded worker pool (§4.5).
// It is the RUNNING -> DRAINING -> STOPPED state machine the spec describes.
type Dispatcher struct {
	cfg     *config.Config
	handler *Handler

	listener     net.Listener
	sem          *semaphore.Weighted
	queueTickets chan struct{}
	wg           sync.WaitGroup

	state   atomic.Int32
	connSeq atomic.Int64
}

// NewDispatcher constructs a Dispatcher from configuration and shared state.
// blockSet and c are the process-wide BlockSet and LRU cache (§3); collector
// may be nil, in which case requests are recorded nowhere.
func NewDispatcher(cfg *config.Config, blockSet *block.Set, patterns *block.PatternMatcher, c *cache.LRU, collector stats.Collector) *Dispatcher {
	maxWorkers := cfg.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 400
	}

	var dial func(network, address string) (net.Conn, error)
	if cfg.DNS.Enabled && len(cfg.DNS.Servers) > 0 {
		res := resolver.GetResolver(cfg.DNS)
		dialer := &net.Dialer{Timeout: dialTimeout, Resolver: res}
		dial = dialer.Dial
	}

	d := &Dispatcher{
		cfg:     cfg,
		handler: NewHandler(blockSet, patterns, c, collector, dial),
		sem:     semaphore.NewWeighted(int64(maxWorkers)),
	}
	// WorkQueueSize > 0 bounds the number of accepted connections waiting for
	// a worker slot; 0 keeps the reference's unbounded submission queue (§9).
	if cfg.WorkQueueSize > 0 {
		d.queueTickets = make(chan struct{}, cfg.WorkQueueSize)
	}
	d.state.Store(int32(stateRunning))
	return d
}

// Start binds the listening socket and runs the accept loop until the
// dispatcher is stopped. It returns an error only if the socket cannot be
// bound; accept errors while RUNNING are logged and the loop continues. It
// blocks the calling goroutine, matching the teacher's proxy.Start().
func (d *Dispatcher) Start() error {
	ln, err := net.Listen("tcp", d.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", d.cfg.ListenAddress, err)
	}
	d.listener = ln
	dispatcherLog.Info("listening on %s", d.cfg.ListenAddress)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if d.state.Load() == int32(stateDraining) || d.state.Load() == int32(stateStopped) {
				dispatcherLog.Info("accept loop exiting: %v", err)
				return nil
			}
			acceptErr := NewInternalError(ErrCodeSystemError, GetErrorDescription(ErrCodeSystemError), err)
			dispatcherLog.Warn("%v", acceptErr)
			continue
		}

		// With a bounded WorkQueueSize, acquiring a ticket here blocks the
		// accept loop itself once that many connections are already queued
		// for a worker, applying backpressure at the socket.
		if d.queueTickets != nil {
			d.queueTickets <- struct{}{}
		}

		d.wg.Add(1)
		go d.submit(conn)
	}
}

// submit queues conn for a worker. With WorkQueueSize == 0 the submission
// queue is the goroutine itself: an unbounded number of these may be waiting
// on the semaphore at once, while actual concurrent execution is capped at
// MaxWorkers (§9 "Unbounded work queue"). With WorkQueueSize > 0 the accept
// loop's ticket channel additionally bounds how many may be waiting.
func (d *Dispatcher) submit(conn net.Conn) {
	defer d.wg.Done()

	if err := d.sem.Acquire(context.Background(), 1); err != nil {
		if d.queueTickets != nil {
			<-d.queueTickets
		}
		conn.Close()
		return
	}
	if d.queueTickets != nil {
		<-d.queueTickets
	}
	defer d.sem.Release(1)

	d.handleConnection(conn)
}

// handleConnection owns conn for its entire lifetime: it reads the initial
// request head, dispatches to the HTTP forwarder or HTTPS tunnel, and
// unconditionally closes conn on every exit path (§3 ClientJob, §5).
func (d *Dispatcher) handleConnection(conn net.Conn) {
	connID := d.connSeq.Add(1)
	defer conn.Close()

	tracked := newTrackedConn(context.Background(), conn, d.handler.stats, connID)
	_ = d.handler.stats.StartConnection(context.Background(), connID, conn.RemoteAddr().String())

	head := make([]byte, readHeadSize)
	n, err := tracked.Read(head)
	if err != nil && n == 0 {
		return
	}
	head = head[:n]

	if len(head) >= len(connectPrefix) && string(head[:len(connectPrefix)]) == connectPrefix {
		d.handler.HandleConnect(tracked, head)
		return
	}
	d.handler.HandleHTTP(tracked, head)
}

// Stop flips the dispatcher to DRAINING, closes the listening socket (which
// causes the accept loop to exit), and waits up to shutdownGrace for
// in-flight workers to finish before forcing STOPPED regardless (§4.5, §7).
// Workers still running when the grace period ends are not interrupted and
// their connections are not closed by Stop.
func (d *Dispatcher) Stop() error {
	if !d.state.CompareAndSwap(int32(stateRunning), int32(stateDraining)) {
		return nil
	}

	var closeErr error
	if d.listener != nil {
		closeErr = d.listener.Close()
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		dispatcherLog.Info("all workers drained cleanly")
	case <-time.After(shutdownGrace):
		dispatcherLog.Warn("shutdown grace period elapsed, returning with workers still running")
	}

	d.state.Store(int32(stateStopped))
	if closeErr != nil && !errors.Is(closeErr, net.ErrClosed) {
		return closeErr
	}
	return nil
}

// State reports the dispatcher's current lifecycle state, primarily for tests.
func (d *Dispatcher) State() string {
	switch dispatcherState(d.state.Load()) {
	case stateRunning:
		return "RUNNING"
	case stateDraining:
		return "DRAINING"
	case stateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}
