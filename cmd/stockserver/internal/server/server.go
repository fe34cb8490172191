// Package server accepts client connections and drives sessions with one of
// two strategies: a single event loop over every connection, or a fixed pool
// of workers fed through a bounded queue.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-orderbook/cmd/stockserver/internal/session"
	"github.com/shubham-shewale/stock-orderbook/pkg/config"
)

var ErrTooManyClients = errors.New("too many clients")

// Strategy serves connections from ln until ctx is cancelled or accepting fails.
type Strategy interface {
	Serve(ctx context.Context, ln net.Listener) error
}

// Handler is the session side a strategy drives.
type Handler interface {
	Serve(ctx context.Context, conn net.Conn)
	Dispatch(ctx context.Context, sessionID, line string) session.Reply
	WriteReply(w io.Writer, text string) error
	Terminate(ctx context.Context, sessionID string)
}

func New(cfg config.ServerConfig, h Handler, logger *zap.Logger) (Strategy, error) {
	switch cfg.Mode {
	case config.ModePool:
		return NewWorkerPool(h, cfg.Workers, cfg.QueueSize, logger), nil
	case config.ModeMultiplex:
		return NewMultiplexed(h, cfg.MaxClients, logger), nil
	default:
		return nil, fmt.Errorf("unknown server mode %q", cfg.Mode)
	}
}

func isClosed(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
