// Package daemon runs the class bell: one Watcher per timetable entry, a
// Dispatcher that launches them and collects their outcomes, and the desktop
// Notifier and config hot-reload used while a run is in progress.
package daemon
