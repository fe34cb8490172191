package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-orderbook/cmd/stockserver/internal/session"
)

// Multiplexed runs every dispatch and write on a single loop. Each
// connection has a reader goroutine that only waits for the next line and
// hands it over; it does not read again until the loop has answered.
type Multiplexed struct {
	handler    Handler
	maxClients int
	logger     *zap.Logger
}

func NewMultiplexed(h Handler, maxClients int, logger *zap.Logger) *Multiplexed {
	return &Multiplexed{handler: h, maxClients: maxClients, logger: logger}
}

type client struct {
	slot    int
	session string
	conn    net.Conn
	next    chan struct{} // loop -> reader: read the next line; closed on termination
}

type lineEvent struct {
	c    *client
	line string
	err  error
}

func (m *Multiplexed) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	accepted := make(chan net.Conn)
	acceptErr := make(chan error, 1)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				acceptErr <- err
				return
			}
			select {
			case accepted <- conn:
			case <-ctx.Done():
				conn.Close()
				return
			}
		}
	}()

	table := make([]*client, m.maxClients)
	events := make(chan lineEvent)
	var readers sync.WaitGroup
	m.logger.Info("Event loop started", zap.Int("max_clients", m.maxClients), zap.Stringer("addr", ln.Addr()))

	defer func() {
		cancel()
		for _, c := range table {
			if c != nil {
				close(c.next)
				c.conn.Close()
			}
		}
		readers.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-acceptErr:
			if ctx.Err() != nil || isClosed(err) {
				return nil
			}
			m.logger.Error("Accept failed", zap.Error(err))
			return err

		case conn := <-accepted:
			slot := freeSlot(table)
			if slot < 0 {
				m.logger.Warn("Rejecting connection", zap.Error(ErrTooManyClients), zap.Stringer("remote", conn.RemoteAddr()))
				conn.Close()
				continue
			}
			c := &client{
				slot:    slot,
				session: session.NewSessionID(),
				conn:    conn,
				next:    make(chan struct{}),
			}
			table[slot] = c
			m.logger.Info("Session started", zap.String("session", c.session), zap.Int("slot", slot), zap.Stringer("remote", conn.RemoteAddr()))
			readers.Add(1)
			go m.read(ctx, c, events, &readers)

		case ev := <-events:
			if m.handle(ctx, ev) {
				// The reader may already have left on cancellation.
				select {
				case ev.c.next <- struct{}{}:
				case <-ctx.Done():
				}
				continue
			}
			table[ev.c.slot] = nil
			close(ev.c.next)
			m.handler.Terminate(ctx, ev.c.session)
			ev.c.conn.Close()
		}
	}
}

// handle answers one line and reports whether the session stays open.
func (m *Multiplexed) handle(ctx context.Context, ev lineEvent) bool {
	c := ev.c
	if len(ev.line) > 0 {
		m.logger.Debug("server received bytes", zap.String("session", c.session), zap.Int("bytes", len(ev.line)))
		reply := m.handler.Dispatch(ctx, c.session, ev.line)
		if err := m.handler.WriteReply(c.conn, reply.Text); err != nil {
			m.logger.Warn("Write failed", zap.String("session", c.session), zap.Error(err))
			return false
		}
		if reply.Terminate {
			return false
		}
	}
	if ev.err != nil {
		if !errors.Is(ev.err, io.EOF) && ctx.Err() == nil {
			m.logger.Warn("Read failed", zap.String("session", c.session), zap.Error(ev.err))
		}
		return false
	}
	return true
}

func (m *Multiplexed) read(ctx context.Context, c *client, events chan<- lineEvent, wg *sync.WaitGroup) {
	defer wg.Done()
	r := bufio.NewReader(c.conn)
	for {
		line, err := r.ReadString('\n')
		select {
		case events <- lineEvent{c: c, line: line, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
		select {
		case _, ok := <-c.next:
			if !ok {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func freeSlot(table []*client) int {
	for i, c := range table {
		if c == nil {
			return i
		}
	}
	return -1
}
