package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-orderbook/pkg/models"
)

var _ Publisher = (*KafkaPublisher)(nil)

// KafkaPublisher emits one message per trade, keyed by stock id so all
// trades of a stock land on the same partition in order.
type KafkaPublisher struct {
	writer  KafkaWriter
	timeout time.Duration
}

func NewKafkaPublisher(writer KafkaWriter, timeout time.Duration) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, timeout: timeout}
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
}

func (k *KafkaPublisher) Publish(ctx context.Context, u models.StockUpdate) error {
	payload, err := json.Marshal(u)
	if err != nil {
		return err
	}
	if k.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, k.timeout)
		defer cancel()
	}
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(u.ID, 10)),
		Value: payload,
		Time:  time.UnixMicro(u.Timestamp),
	})
}

func (k *KafkaPublisher) Close() error {
	return k.writer.Close()
}

// TradeTopic is the topic every trade event is written to. Ensure creates
// it through the cluster controller and waits for its partitions, so the
// first trades are not lost to an unknown-topic error.
type TradeTopic struct {
	name       string
	partitions int
	dialer     KafkaDialer
	clock      Clock
	logger     *zap.Logger

	checks  int
	backoff time.Duration
}

func NewTradeTopic(name string, partitions int, dialer KafkaDialer, clock Clock, logger *zap.Logger) *TradeTopic {
	return &TradeTopic{
		name:       name,
		partitions: partitions,
		dialer:     dialer,
		clock:      clock,
		logger:     logger,
		checks:     5,
		backoff:    100 * time.Millisecond,
	}
}

func (t *TradeTopic) Ensure(ctx context.Context, brokers []string) error {
	conn, err := t.dialAny(ctx, brokers)
	if err != nil {
		return fmt.Errorf("trade topic %s: %w", t.name, err)
	}
	defer conn.Close()

	// An existing topic makes CreateTopics fail; the partition check decides.
	if err := t.create(ctx, conn); err != nil {
		t.logger.Debug("Trade topic not created", zap.String("topic", t.name), zap.Error(err))
	}
	return t.awaitPartitions(ctx, conn)
}

func (t *TradeTopic) dialAny(ctx context.Context, brokers []string) (KafkaConn, error) {
	if len(brokers) == 0 {
		return nil, errors.New("no brokers configured")
	}
	var errs []error
	for _, addr := range brokers {
		conn, err := t.dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", addr, err))
	}
	return nil, errors.Join(errs...)
}

func (t *TradeTopic) create(ctx context.Context, conn KafkaConn) error {
	broker, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("find controller: %w", err)
	}
	ctrl, err := t.dialer.DialContext(ctx, "tcp", net.JoinHostPort(broker.Host, strconv.Itoa(broker.Port)))
	if err != nil {
		return fmt.Errorf("dial controller: %w", err)
	}
	defer ctrl.Close()

	return ctrl.CreateTopics(kafka.TopicConfig{
		Topic:             t.name,
		NumPartitions:     t.partitions,
		ReplicationFactor: 1,
	})
}

// awaitPartitions polls with a doubling delay between checks.
func (t *TradeTopic) awaitPartitions(ctx context.Context, conn KafkaConn) error {
	delay := t.backoff
	for check := 1; ; check++ {
		parts, err := conn.ReadPartitions(t.name)
		if err == nil && len(parts) > 0 {
			t.logger.Info("Trade topic ready", zap.String("topic", t.name), zap.Int("partitions", len(parts)))
			return nil
		}
		if check == t.checks {
			return fmt.Errorf("trade topic %s has no partitions after %d checks", t.name, check)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		t.clock.Sleep(delay)
		delay *= 2
	}
}
