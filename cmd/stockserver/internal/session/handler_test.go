package session_test

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-orderbook/cmd/stockserver/internal/catalog"
	"github.com/shubham-shewale/stock-orderbook/cmd/stockserver/internal/index"
	"github.com/shubham-shewale/stock-orderbook/cmd/stockserver/internal/repository"
	"github.com/shubham-shewale/stock-orderbook/cmd/stockserver/internal/session"
	"github.com/shubham-shewale/stock-orderbook/cmd/stockserver/internal/testutils"
	"github.com/shubham-shewale/stock-orderbook/pkg/models"
	"github.com/shubham-shewale/stock-orderbook/pkg/protocol"
)

const frameSize = 256

type fixture struct {
	handler   *session.Handler
	store     *testutils.MockStore
	publisher *testutils.MockPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := &testutils.MockStore{Rows: []models.StockRow{{ID: 1, Quantity: 100, Price: 50}, {ID: 2, Quantity: 200, Price: 10}}}
	tree := index.New()
	if _, err := repository.Restore(store, tree); err != nil {
		t.Fatal(err)
	}
	cat := catalog.New(tree, 8)
	if err := cat.Build(); err != nil {
		t.Fatal(err)
	}
	pub := &testutils.MockPublisher{}
	persister := repository.NewPersister(cat, store, nil, zap.NewNop())
	return &fixture{
		handler:   session.NewHandler(cat, persister, pub, zap.NewNop(), frameSize),
		store:     store,
		publisher: pub,
	}
}

func TestDispatch_Scenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	steps := []struct {
		line string
		want string
	}{
		{"show\n", "1 100 50\n2 200 10\n"},
		{"buy 1 30\n", "[buy] success\n"},
		{"show\n", "1 70 50\n2 200 10\n"},
		{"sell 2 5\n", "[sell] success\n"},
		{"show\n", "1 70 50\n2 205 10\n"},
		{"buy 1 71\n", "Not enough left stocks\n"},
		{"buy 9 1\n", "Not enough left stocks\n"},
		{"sell 9 1\n", "[sell] fail\n"},
		{"buy 1 70\n", "[buy] success\n"},
		{"show\n", "1 0 50\n2 205 10\n"},
		{"dance\n", "Unknown command: dance\n"},
		{"sell 2\n", "Invalid arguments: usage sell <id> <quantity>\n"},
		{"\n", "Empty command\n"},
	}
	for _, s := range steps {
		got := f.handler.Dispatch(ctx, "s1", s.line)
		if got.Text != s.want {
			t.Errorf("Dispatch(%q) = %q, want %q", s.line, got.Text, s.want)
		}
		if got.Terminate {
			t.Errorf("Dispatch(%q) should not terminate", s.line)
		}
	}

	exit := f.handler.Dispatch(ctx, "s1", "exit\n")
	if exit.Text != "exit\n" || !exit.Terminate {
		t.Errorf("Unexpected exit reply %+v", exit)
	}
}

func TestDispatch_PublishesTrades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.handler.Dispatch(ctx, "s1", "buy 1 30")
	f.handler.Dispatch(ctx, "s1", "buy 1 1000") // rejected, not published
	f.handler.Dispatch(ctx, "s2", "sell 2 5")

	if n := f.publisher.Count(); n != 2 {
		t.Fatalf("Expected 2 updates, got %d", n)
	}
	buy, sell := f.publisher.Updates[0], f.publisher.Updates[1]
	if buy.Action != "buy" || buy.Delta != -30 || buy.Quantity != 70 || buy.Session != "s1" {
		t.Errorf("Unexpected buy update %+v", buy)
	}
	if sell.Action != "sell" || sell.Delta != 5 || sell.Quantity != 205 || sell.Price != 10 {
		t.Errorf("Unexpected sell update %+v", sell)
	}
	if sell.SeqID <= buy.SeqID {
		t.Errorf("SeqID must increase: %d then %d", buy.SeqID, sell.SeqID)
	}
}

func TestDispatch_PublishFailureIsHidden(t *testing.T) {
	f := newFixture(t)
	f.publisher.ShouldFail = true

	got := f.handler.Dispatch(context.Background(), "s1", "buy 1 1")
	if got.Text != "[buy] success\n" {
		t.Errorf("Client should not see publish errors, got %q", got.Text)
	}
}

func TestWriteReply_TooLarge(t *testing.T) {
	f := newFixture(t)
	var b strings.Builder

	if err := f.handler.WriteReply(&b, strings.Repeat("x", frameSize+1)); err != nil {
		t.Fatalf("WriteReply: %v", err)
	}
	got, err := protocol.ReadFrame(strings.NewReader(b.String()), frameSize)
	if err != nil {
		t.Fatal(err)
	}
	if got != protocol.ReplyTooLarge+"\n" {
		t.Errorf("Expected too-large reply, got %q", got)
	}
}

func roundTrip(t *testing.T, conn net.Conn, line string) string {
	t.Helper()
	conn.SetDeadline(time.Now().Add(2 * time.Second))
	if _, err := fmt.Fprint(conn, line); err != nil {
		t.Fatalf("write %q: %v", line, err)
	}
	reply, err := protocol.ReadFrame(conn, frameSize)
	if err != nil {
		t.Fatalf("read reply to %q: %v", line, err)
	}
	return reply
}

func TestServe_ExitPersists(t *testing.T) {
	f := newFixture(t)
	server, client := net.Pipe()
	defer client.Close()

	done := make(chan struct{})
	go func() {
		f.handler.Serve(context.Background(), server)
		close(done)
	}()

	if got := roundTrip(t, client, "buy 1 30\n"); got != "[buy] success\n" {
		t.Errorf("Unexpected reply %q", got)
	}
	if got := roundTrip(t, client, "exit\n"); got != "exit\n" {
		t.Errorf("Unexpected reply %q", got)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after exit")
	}

	if f.store.SaveCount() != 1 {
		t.Fatalf("Expected one persist, got %d", f.store.SaveCount())
	}
	if f.store.Rows[0] != (models.StockRow{ID: 1, Quantity: 70, Price: 50}) {
		t.Errorf("Unexpected persisted row %+v", f.store.Rows[0])
	}
}

func TestServe_EOFPersists(t *testing.T) {
	f := newFixture(t)
	server, client := net.Pipe()

	done := make(chan struct{})
	go func() {
		f.handler.Serve(context.Background(), server)
		close(done)
	}()

	roundTrip(t, client, "sell 2 5\n")
	client.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after EOF")
	}
	if f.store.SaveCount() != 1 {
		t.Errorf("Expected one persist on EOF, got %d", f.store.SaveCount())
	}
}

func TestServe_CancelClosesConnection(t *testing.T) {
	f := newFixture(t)
	server, client := net.Pipe()
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.handler.Serve(ctx, server)
		close(done)
	}()

	roundTrip(t, client, "show\n")
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve ignored cancellation")
	}
	if f.store.SaveCount() != 1 {
		t.Errorf("Cancelled session must still persist, got %d saves", f.store.SaveCount())
	}

	_, err := bufio.NewReader(client).ReadByte()
	if err == nil {
		t.Error("Expected the connection to be closed")
	}
}
