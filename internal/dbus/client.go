package dbus

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"
)

// Client sends notifications to the session notification daemon.
type Client struct {
	mu     sync.Mutex
	conn   *dbus.Conn
	logger *slog.Logger
}

// NewClient connects to the session bus.
func NewClient(logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}

	return &Client{conn: conn, logger: logger}, nil
}

// Notify sends n and returns the id assigned by the notification daemon.
func (c *Client) Notify(n *Notification) (uint32, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return 0, fmt.Errorf("not connected to D-Bus")
	}

	var id uint32
	obj := conn.Object(DBusInterface, DBusPath)
	if err := obj.Call(DBusInterface+".Notify", 0, n.args()...).Store(&id); err != nil {
		return 0, fmt.Errorf("notify: %w", err)
	}

	c.logger.Debug("sent desktop notification", "id", id, "summary", n.Summary)
	return id, nil
}

// CloseNotification asks the daemon to close a notification.
func (c *Client) CloseNotification(id uint32) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("not connected to D-Bus")
	}

	obj := conn.Object(DBusInterface, DBusPath)
	if err := obj.Call(DBusInterface+".CloseNotification", 0, id).Err; err != nil {
		return fmt.Errorf("close notification %d: %w", id, err)
	}
	return nil
}

// Close releases the bus connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
