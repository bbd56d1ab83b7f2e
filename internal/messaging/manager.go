package messaging

import (
	"context"
	"log/slog"
	"sync"
)

// QueueManager owns the publishers and consumers sharing one broker
// connection and drives their lifecycle.
type QueueManager struct {
	conn       *Connection
	logger     *slog.Logger
	publishers map[string]*Publisher
	consumers  map[string]*Consumer
	mutex      sync.RWMutex
}

// NewQueueManager creates a manager for the given connection.
func NewQueueManager(conn *Connection, logger *slog.Logger) *QueueManager {
	return &QueueManager{
		conn:       conn,
		logger:     logger,
		publishers: make(map[string]*Publisher),
		consumers:  make(map[string]*Consumer),
	}
}

// GetOrCreatePublisher returns the publisher registered under key,
// creating it on first use.
func (m *QueueManager) GetOrCreatePublisher(key string, config PublisherConfig) *Publisher {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if pub, exists := m.publishers[key]; exists {
		return pub
	}

	pub := NewPublisher(m.conn, config)
	m.publishers[key] = pub
	return pub
}

// RegisterConsumer adds a consumer under a key.
func (m *QueueManager) RegisterConsumer(key string, consumer *Consumer) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.consumers[key] = consumer
}

// StartAllConsumers launches every registered consumer.
func (m *QueueManager) StartAllConsumers(ctx context.Context) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	for key, consumer := range m.consumers {
		go func(k string, c *Consumer) {
			if err := c.Start(ctx); err != nil && m.logger != nil {
				m.logger.Error("consumer stopped",
					slog.String("consumer", k),
					slog.String("error", err.Error()),
				)
			}
		}(key, consumer)
	}
}

// StopAllConsumers cancels every registered consumer.
func (m *QueueManager) StopAllConsumers() {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	for _, consumer := range m.consumers {
		consumer.Stop()
	}
}

// Close stops all consumers and closes the connection.
func (m *QueueManager) Close() error {
	m.StopAllConsumers()
	return m.conn.Close()
}
