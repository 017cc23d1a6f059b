// Package progress aggregates navigation counters of a flow from engine
// events so callers can report on it without subscribing to every topic.
package progress
