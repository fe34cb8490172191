package repository_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/shubham-shewale/stock-orderbook/cmd/stockserver/internal/repository"
	"github.com/shubham-shewale/stock-orderbook/pkg/models"
)

func TestRedisFeed_Publish(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	feed := repository.NewRedisFeed(rdb)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sub := rdb.Subscribe(ctx, repository.PriceChannel(7))
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	update := models.StockUpdate{ID: 7, Action: "buy", Delta: -3, Quantity: 17, Price: 900, SeqID: 1}
	if err := feed.Publish(ctx, update); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	val, err := mr.Get(repository.StockKey(7))
	if err != nil {
		t.Fatalf("key not written: %v", err)
	}
	var row models.StockRow
	if err := json.Unmarshal([]byte(val), &row); err != nil {
		t.Fatal(err)
	}
	if row != (models.StockRow{ID: 7, Quantity: 17, Price: 900}) {
		t.Errorf("Unexpected stored row %+v", row)
	}

	msg, err := sub.ReceiveMessage(ctx)
	if err != nil {
		t.Fatalf("no message: %v", err)
	}
	var got models.StockUpdate
	if err := json.Unmarshal([]byte(msg.Payload), &got); err != nil {
		t.Fatal(err)
	}
	if got != update {
		t.Errorf("Expected %+v, got %+v", update, got)
	}
}

func TestRedisFeed_Mirror(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	feed := repository.NewRedisFeed(rdb)

	rows := []models.StockRow{{ID: 1, Quantity: 10, Price: 1}, {ID: 2, Quantity: 0, Price: 5}}
	if err := feed.Mirror(context.Background(), rows); err != nil {
		t.Fatalf("Mirror: %v", err)
	}
	for _, r := range rows {
		if !mr.Exists(repository.StockKey(r.ID)) {
			t.Errorf("Missing key for %d", r.ID)
		}
	}

	if err := feed.Mirror(context.Background(), nil); err != nil {
		t.Errorf("Empty mirror should be a no-op: %v", err)
	}
}
