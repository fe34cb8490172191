package testutils

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/shubham-shewale/stock-orderbook/cmd/stockserver/internal/repository"
	"github.com/shubham-shewale/stock-orderbook/pkg/models"
)

// MockStore keeps rows in memory and records every Save.
type MockStore struct {
	Rows       []models.StockRow
	Saves      [][]models.StockRow
	ShouldFail bool
	Mu         sync.Mutex
}

func (m *MockStore) Load() ([]models.StockRow, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.ShouldFail {
		return nil, errors.New("store error")
	}
	out := make([]models.StockRow, len(m.Rows))
	copy(out, m.Rows)
	return out, nil
}

func (m *MockStore) Save(rows []models.StockRow) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.ShouldFail {
		return errors.New("store error")
	}
	saved := make([]models.StockRow, len(rows))
	copy(saved, rows)
	m.Saves = append(m.Saves, saved)
	m.Rows = saved
	return nil
}

func (m *MockStore) Close() error { return nil }

func (m *MockStore) SaveCount() int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return len(m.Saves)
}

// MockPublisher records published updates.
type MockPublisher struct {
	Updates    []models.StockUpdate
	ShouldFail bool
	Mu         sync.Mutex
}

func (m *MockPublisher) Publish(ctx context.Context, u models.StockUpdate) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.ShouldFail {
		return errors.New("publish error")
	}
	m.Updates = append(m.Updates, u)
	return nil
}

func (m *MockPublisher) Count() int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return len(m.Updates)
}

// MockMirror records mirrored catalogs.
type MockMirror struct {
	Calls      [][]models.StockRow
	ShouldFail bool
	Mu         sync.Mutex
}

func (m *MockMirror) Mirror(ctx context.Context, rows []models.StockRow) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.ShouldFail {
		return errors.New("mirror error")
	}
	m.Calls = append(m.Calls, rows)
	return nil
}

type MockKafkaWriter struct {
	Messages   []kafka.Message
	Mu         sync.Mutex
	ShouldFail bool
}

func (m *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.ShouldFail {
		return errors.New("kafka error")
	}
	m.Messages = append(m.Messages, msgs...)
	return nil
}

func (m *MockKafkaWriter) Close() error { return nil }

type MockClock struct {
	CurrentTime time.Time
	Sleeps      int
}

func (m *MockClock) Now() time.Time { return m.CurrentTime }
func (m *MockClock) Sleep(d time.Duration) {
	m.Sleeps++
	m.CurrentTime = m.CurrentTime.Add(d)
}

type MockKafkaConn struct {
	CreatedTopics []kafka.TopicConfig
	NotReady      bool
}

func (m *MockKafkaConn) Controller() (kafka.Broker, error) {
	return kafka.Broker{Host: "localhost", Port: 9092}, nil
}
func (m *MockKafkaConn) Close() error { return nil }
func (m *MockKafkaConn) CreateTopics(topics ...kafka.TopicConfig) error {
	m.CreatedTopics = append(m.CreatedTopics, topics...)
	return nil
}
func (m *MockKafkaConn) ReadPartitions(topics ...string) ([]kafka.Partition, error) {
	if m.NotReady {
		return nil, nil
	}
	return []kafka.Partition{{ID: 0}}, nil
}

type MockKafkaDialer struct {
	ConnSpy    *MockKafkaConn
	ShouldFail bool
	Dialed     []string
}

func (m *MockKafkaDialer) DialContext(ctx context.Context, network, address string) (repository.KafkaConn, error) {
	m.Dialed = append(m.Dialed, address)
	if m.ShouldFail {
		return nil, errors.New("dial error")
	}
	if m.ConnSpy == nil {
		m.ConnSpy = &MockKafkaConn{}
	}
	return m.ConnSpy, nil
}
