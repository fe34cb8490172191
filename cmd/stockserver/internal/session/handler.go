// Package session runs the line protocol for one client: read a line,
// dispatch it against the catalog, write one framed reply, and persist the
// catalog when the client leaves.
package session

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-orderbook/cmd/stockserver/internal/repository"
	"github.com/shubham-shewale/stock-orderbook/pkg/models"
	"github.com/shubham-shewale/stock-orderbook/pkg/protocol"
)

type Catalog interface {
	Show() []models.StockRow
	Buy(id, quantity int64) (models.StockRow, error)
	Sell(id, quantity int64) (models.StockRow, error)
}

type Persister interface {
	Persist(ctx context.Context) error
}

// Reply is the outcome of one line. Terminate is set for exit.
type Reply struct {
	Text      string
	Terminate bool
}

type Handler struct {
	catalog     Catalog
	persister   Persister
	publisher   repository.Publisher
	logger      *zap.Logger
	messageSize int

	seq atomic.Int64
	now func() time.Time
}

func NewHandler(cat Catalog, persister Persister, publisher repository.Publisher, logger *zap.Logger, messageSize int) *Handler {
	if publisher == nil {
		publisher = repository.NopPublisher{}
	}
	if messageSize <= 0 {
		messageSize = protocol.DefaultMessageSize
	}
	return &Handler{
		catalog:     cat,
		persister:   persister,
		publisher:   publisher,
		logger:      logger,
		messageSize: messageSize,
		now:         time.Now,
	}
}

func NewSessionID() string { return uuid.NewString() }

func (h *Handler) MessageSize() int { return h.messageSize }

// Dispatch runs one command line. Protocol errors produce an error reply and
// leave the session open.
func (h *Handler) Dispatch(ctx context.Context, sessionID, line string) Reply {
	cmd, err := protocol.Parse(line)
	if err != nil {
		h.logger.Debug("Rejected command", zap.String("session", sessionID), zap.Error(err))
		return Reply{Text: protocol.ErrorReply(cmd, err) + "\n"}
	}

	switch cmd.Name {
	case protocol.CmdShow:
		var b strings.Builder
		for _, row := range h.catalog.Show() {
			b.WriteString(row.String())
			b.WriteByte('\n')
		}
		return Reply{Text: b.String()}

	case protocol.CmdBuy:
		row, err := h.catalog.Buy(cmd.ID, cmd.Quantity)
		if err != nil {
			h.logger.Debug("Buy rejected", zap.String("session", sessionID), zap.Error(err))
			return Reply{Text: protocol.ReplyNotEnough + "\n"}
		}
		h.publish(ctx, sessionID, protocol.CmdBuy, -cmd.Quantity, row)
		return Reply{Text: protocol.ReplyBuySuccess + "\n"}

	case protocol.CmdSell:
		row, err := h.catalog.Sell(cmd.ID, cmd.Quantity)
		if err != nil {
			h.logger.Debug("Sell rejected", zap.String("session", sessionID), zap.Error(err))
			return Reply{Text: protocol.ReplySellFail + "\n"}
		}
		h.publish(ctx, sessionID, protocol.CmdSell, cmd.Quantity, row)
		return Reply{Text: protocol.ReplySellSuccess + "\n"}

	default: // exit
		return Reply{Text: protocol.ReplyExit + "\n", Terminate: true}
	}
}

func (h *Handler) publish(ctx context.Context, sessionID, action string, delta int64, row models.StockRow) {
	update := models.StockUpdate{
		ID:        row.ID,
		Action:    action,
		Delta:     delta,
		Quantity:  row.Quantity,
		Price:     row.Price,
		Timestamp: h.now().UnixMicro(),
		SeqID:     h.seq.Add(1),
		Session:   sessionID,
	}
	if err := h.publisher.Publish(ctx, update); err != nil {
		h.logger.Warn("Publish failed", zap.String("session", sessionID), zap.Int64("id", row.ID), zap.Error(err))
	}
}

// WriteReply sends text as one fixed-size frame. A reply that does not fit
// is replaced by a short error reply.
func (h *Handler) WriteReply(w io.Writer, text string) error {
	err := protocol.WriteFrame(w, text, h.messageSize)
	if errors.Is(err, protocol.ErrResponseTooLarge) {
		h.logger.Warn("Reply dropped", zap.Int("bytes", len(text)), zap.Int("limit", h.messageSize))
		return protocol.WriteFrame(w, protocol.ReplyTooLarge+"\n", h.messageSize)
	}
	return err
}

// Serve runs a whole session on conn and returns once the client is gone.
// Cancelling ctx closes the connection.
func (h *Handler) Serve(ctx context.Context, conn net.Conn) {
	id := NewSessionID()
	log := h.logger.With(zap.String("session", id), zap.Stringer("remote", conn.RemoteAddr()))
	log.Info("Session started")

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			log.Debug("server received bytes", zap.Int("bytes", len(line)))
			reply := h.Dispatch(ctx, id, line)
			if werr := h.WriteReply(conn, reply.Text); werr != nil {
				log.Warn("Write failed", zap.Error(werr))
				break
			}
			if reply.Terminate {
				break
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				log.Warn("Read failed", zap.Error(err))
			}
			break
		}
	}

	h.Terminate(ctx, id)
}

// Terminate persists the catalog for a closed session. It still runs when
// ctx is already cancelled.
func (h *Handler) Terminate(ctx context.Context, sessionID string) {
	if err := h.persister.Persist(context.WithoutCancel(ctx)); err != nil {
		h.logger.Error("Persist failed", zap.String("session", sessionID), zap.Error(err))
		return
	}
	h.logger.Info("Session closed", zap.String("session", sessionID))
}
