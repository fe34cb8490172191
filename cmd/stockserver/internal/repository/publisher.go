package repository

import (
	"context"
	"errors"

	"github.com/shubham-shewale/stock-orderbook/pkg/models"
)

// NopPublisher drops every update. Used when no feed is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, models.StockUpdate) error { return nil }

// MultiPublisher fans an update out to every publisher and joins their errors.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, u models.StockUpdate) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, u); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
