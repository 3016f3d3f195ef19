// Package dbus is a small client for the org.freedesktop.Notifications
// D-Bus interface. classbell uses it to raise desktop notifications when a
// class bell rings or a watcher fails.
package dbus
