// Package messaging provides the RabbitMQ transport: a self-reconnecting
// connection, persistent publishers and prefetch-bounded consumers.
package messaging

import (
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	apperrors "github.com/allisson/orders/internal/errors"
)

var (
	// ErrNotConnected indicates the broker connection is not established.
	ErrNotConnected = apperrors.Wrap(apperrors.ErrUnavailable, "not connected to broker")
	// ErrShutdown indicates the connection was closed on purpose.
	ErrShutdown = apperrors.New("connection is shutting down")
)

// ConnectionConfig carries broker connection settings.
type ConnectionConfig struct {
	URL            string
	MaxReconnects  int
	ReconnectDelay time.Duration
}

// Connection wraps an AMQP connection with automatic reconnects.
type Connection struct {
	config         ConnectionConfig
	conn           *amqp.Connection
	channel        *amqp.Channel
	logger         *slog.Logger
	mutex          sync.RWMutex
	closed         bool
	reconnectCount int
}

// NewConnection creates an unconnected Connection.
func NewConnection(config ConnectionConfig, logger *slog.Logger) *Connection {
	return &Connection{
		config: config,
		logger: logger,
	}
}

// Connect dials the broker and opens a channel. A watcher goroutine
// re-dials when the broker drops the connection, up to MaxReconnects
// consecutive attempts.
func (c *Connection) Connect() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return ErrShutdown
	}

	conn, err := amqp.Dial(c.config.URL)
	if err != nil {
		return apperrors.Wrap(err, "failed to connect to broker")
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return apperrors.Wrap(err, "failed to open channel")
	}

	c.conn = conn
	c.channel = ch
	c.reconnectCount = 0

	go c.handleConnectionClose()

	if c.logger != nil {
		c.logger.Info("connected to broker", slog.String("url", amqpRedacted(c.config.URL)))
	}
	return nil
}

func (c *Connection) handleConnectionClose() {
	err := <-c.conn.NotifyClose(make(chan *amqp.Error))
	if err != nil && c.logger != nil {
		c.logger.Warn("broker connection closed", slog.String("error", err.Error()))
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed || c.reconnectCount >= c.config.MaxReconnects {
		return
	}

	c.reconnectCount++
	if c.logger != nil {
		c.logger.Info("reconnecting to broker",
			slog.Int("attempt", c.reconnectCount),
			slog.Int("max_attempts", c.config.MaxReconnects),
		)
	}

	time.Sleep(c.config.ReconnectDelay)

	go func() {
		if err := c.Connect(); err != nil && c.logger != nil {
			c.logger.Error("failed to reconnect to broker", slog.String("error", err.Error()))
		}
	}()
}

// Channel returns the current channel.
func (c *Connection) Channel() (*amqp.Channel, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	if c.channel == nil || c.closed {
		return nil, ErrNotConnected
	}

	return c.channel, nil
}

// IsConnected reports whether the broker connection is healthy.
func (c *Connection) IsConnected() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return c.conn != nil && !c.conn.IsClosed() && !c.closed
}

// Close shuts the connection down for good; the watcher stops
// reconnecting.
func (c *Connection) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.closed = true

	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}

	return nil
}

// amqpRedacted strips credentials from an AMQP URL for logging.
func amqpRedacted(url string) string {
	uri, err := amqp.ParseURI(url)
	if err != nil {
		return "amqp://<invalid>"
	}
	uri.Password = ""
	uri.Username = ""
	return uri.String()
}
