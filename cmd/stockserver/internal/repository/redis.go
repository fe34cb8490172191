package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/shubham-shewale/stock-orderbook/pkg/models"
)

var (
	_ Publisher = (*RedisFeed)(nil)
	_ Mirror    = (*RedisFeed)(nil)
)

// RedisFeed keeps the latest row of each stock under "stock:<id>" and
// announces every trade on the "prices.<id>" channel.
type RedisFeed struct {
	rdb RedisClient
}

func NewRedisFeed(rdb RedisClient) *RedisFeed {
	return &RedisFeed{rdb: rdb}
}

func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func StockKey(id int64) string     { return fmt.Sprintf("stock:%d", id) }
func PriceChannel(id int64) string { return fmt.Sprintf("prices.%d", id) }

// Publish stores the new row and broadcasts the update in one pipeline.
func (f *RedisFeed) Publish(ctx context.Context, u models.StockUpdate) error {
	payload, err := json.Marshal(u)
	if err != nil {
		return err
	}
	row, err := json.Marshal(models.StockRow{ID: u.ID, Quantity: u.Quantity, Price: u.Price})
	if err != nil {
		return err
	}

	pipe := f.rdb.Pipeline()
	pipe.Set(ctx, StockKey(u.ID), row, 0)
	pipe.Publish(ctx, PriceChannel(u.ID), payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}

// Mirror writes every row under its stock key.
func (f *RedisFeed) Mirror(ctx context.Context, rows []models.StockRow) error {
	if len(rows) == 0 {
		return nil
	}
	pipe := f.rdb.Pipeline()
	for _, r := range rows {
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		pipe.Set(ctx, StockKey(r.ID), data, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis mirror: %w", err)
	}
	return nil
}

func (f *RedisFeed) Close() error {
	return f.rdb.Close()
}
