package daemon

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gen2brain/beeep"
	godbus "github.com/godbus/dbus/v5"

	"github.com/jmylchreest/classbell/internal/dbus"
	"github.com/jmylchreest/classbell/internal/model"
)

// NotificationLevel indicates the urgency/severity of a desktop notification.
type NotificationLevel int

const (
	// NotificationLevelInfo is for informational messages (low urgency).
	NotificationLevelInfo NotificationLevel = iota
	// NotificationLevelWarning is for warning messages (normal urgency).
	NotificationLevelWarning
	// NotificationLevelError is for error messages (critical urgency).
	NotificationLevelError
)

// NotifyHandler delivers a notification, typically dbus.Client.Notify.
type NotifyHandler func(notification *dbus.Notification) (uint32, error)

// BeeepHandler delivers notifications through beeep. It is used when no
// session bus connection could be made.
func BeeepHandler(notification *dbus.Notification) (uint32, error) {
	return 0, beeep.Notify(notification.Summary, notification.Body, "")
}

// Notifier raises desktop notifications about watcher outcomes.
// It rate limits by key so a burst of identical failures shows once.
type Notifier struct {
	mu     sync.Mutex
	logger *slog.Logger

	notifyHandler NotifyHandler

	// Rate limiting
	lastNotifyTime map[string]time.Time // key -> last notification time
	minInterval    time.Duration        // minimum time between same notifications

	enabled bool
	onFire  bool

	now func() time.Time
}

// NewNotifier creates a new Notifier.
func NewNotifier(logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}

	return &Notifier{
		logger:         logger,
		lastNotifyTime: make(map[string]time.Time),
		minInterval:    5 * time.Second,
		enabled:        true,
		now:            time.Now,
	}
}

// SetNotifyHandler sets the function that delivers notifications.
func (n *Notifier) SetNotifyHandler(handler NotifyHandler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifyHandler = handler
}

// SetEnabled enables or disables notifications.
func (n *Notifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// SetNotifyOnFire sets whether rung bells are announced too.
func (n *Notifier) SetNotifyOnFire(onFire bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onFire = onFire
}

// SetMinInterval sets the minimum interval between duplicate notifications.
func (n *Notifier) SetMinInterval(interval time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.minInterval = interval
}

// Notify sends a notification if not rate-limited.
// The same key won't notify again within the minimum interval.
func (n *Notifier) Notify(key, summary, body string, level NotificationLevel) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.enabled {
		return
	}

	if n.notifyHandler == nil {
		n.logger.Debug("notification skipped: no handler", "summary", summary)
		return
	}

	now := n.now()
	if lastTime, ok := n.lastNotifyTime[key]; ok {
		if now.Sub(lastTime) < n.minInterval {
			n.logger.Debug("notification rate-limited", "key", key, "summary", summary)
			return
		}
	}
	n.lastNotifyTime[key] = now

	urgency := dbus.UrgencyNormal
	icon := "dialog-warning"
	switch level {
	case NotificationLevelInfo:
		urgency = dbus.UrgencyLow
		icon = "dialog-information"
	case NotificationLevelError:
		urgency = dbus.UrgencyCritical
		icon = "dialog-error"
	}

	notification := &dbus.Notification{
		AppName: "classbell",
		AppIcon: icon,
		Summary: summary,
		Body:    body,
		Hints: map[string]godbus.Variant{
			"urgency":        godbus.MakeVariant(urgency),
			"category":       godbus.MakeVariant("x-classbell"),
			"transient":      godbus.MakeVariant(true),
			"suppress-sound": godbus.MakeVariant(true), // The bell is the sound
			"desktop-entry":  godbus.MakeVariant("classbell"),
		},
		ExpireTimeout: 10000,
	}

	n.logger.Debug("sending desktop notification", "key", key, "summary", summary, "level", level)

	if _, err := n.notifyHandler(notification); err != nil {
		n.logger.Warn("failed to send desktop notification", "summary", summary, "error", err)
	}
}

// NotifyOutcome announces a watcher's terminal outcome: always for failures,
// and for rung bells when enabled.
func (n *Notifier) NotifyOutcome(o model.Outcome) {
	switch o.State {
	case model.StateFailed:
		n.Notify(
			"failed:"+o.Entry.String(),
			"Class bell failed: "+o.Entry.Name,
			fmt.Sprintf("%s\n%s", o.Entry, o.Error),
			NotificationLevelError,
		)
	case model.StateFired:
		n.mu.Lock()
		onFire := n.onFire
		n.mu.Unlock()
		if !onFire {
			return
		}
		body := o.Entry.Clock()
		if o.Entry.Teacher != "" {
			body = o.Entry.Teacher + " at " + body
		}
		n.Notify("fired:"+o.Entry.String(), o.Entry.Name+" is starting", body, NotificationLevelInfo)
	}
}

// NotifyScheduleReloaded announces that the timetable was reloaded.
func (n *Notifier) NotifyScheduleReloaded(classes int) {
	n.Notify(
		"schedule-reload",
		"Timetable Reloaded",
		fmt.Sprintf("Watching %d classes.", classes),
		NotificationLevelInfo,
	)
}

// NotifyScheduleError announces that a changed timetable could not be loaded.
func (n *Notifier) NotifyScheduleError(err error) {
	n.Notify(
		"schedule-error",
		"Timetable Error",
		"Failed to reload timetable: "+err.Error(),
		NotificationLevelWarning,
	)
}

// NotifyConfigError announces that a changed config file was rejected.
func (n *Notifier) NotifyConfigError(err error) {
	n.Notify(
		"config-error",
		"Configuration Error",
		"Failed to reload configuration: "+err.Error(),
		NotificationLevelWarning,
	)
}
