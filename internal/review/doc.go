// Package review implements the human-review queue state machine: enqueue
// with Slack delivery, reviewer decision application, reminder nudges, and
// automatic expiry. Expiry reuses the resolution path so metrics and storage
// never drift apart.
package review
