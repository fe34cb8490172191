package server

import (
	"context"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-orderbook/cmd/stockserver/internal/queue"
)

// WorkerPool accepts on one goroutine and hands each connection to the next
// free worker. A worker owns a connection until its session ends.
type WorkerPool struct {
	handler Handler
	workers int
	queue   *queue.Queue[net.Conn]
	logger  *zap.Logger
}

func NewWorkerPool(h Handler, workers, queueSize int, logger *zap.Logger) *WorkerPool {
	return &WorkerPool{
		handler: h,
		workers: workers,
		queue:   queue.New[net.Conn](queueSize),
		logger:  logger,
	}
}

func (p *WorkerPool) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go p.worker(ctx, i, &wg)
	}
	p.logger.Info("Worker pool started", zap.Int("workers", p.workers), zap.Int("queue", p.queue.Cap()), zap.Stringer("addr", ln.Addr()))

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	var err error
	for {
		conn, aerr := ln.Accept()
		if aerr != nil {
			if ctx.Err() == nil && !isClosed(aerr) {
				p.logger.Error("Accept failed", zap.Error(aerr))
				err = aerr
			}
			break
		}
		p.logger.Debug("Accepted", zap.Stringer("remote", conn.RemoteAddr()))
		if perr := p.queue.Push(ctx, conn); perr != nil {
			conn.Close()
			break
		}
	}

	cancel()
	p.logger.Info("Waiting for workers to drain...")
	wg.Wait()

	// Connections still queued never reached a worker.
	for p.queue.Len() > 0 {
		conn, perr := p.queue.Pop(context.Background())
		if perr != nil {
			break
		}
		conn.Close()
	}
	return err
}

func (p *WorkerPool) worker(ctx context.Context, id int, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		conn, err := p.queue.Pop(ctx)
		if err != nil {
			return
		}
		p.logger.Debug("Worker picked connection", zap.Int("worker_id", id))
		p.handler.Serve(ctx, conn)
	}
}
