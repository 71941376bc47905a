// Package notifications pushes catalog milestones to an ntfy topic.
//
// The Poller tails the entity event log and matches completion and error
// descriptions; the Service formats and delivers the push. With no topic
// configured the service is a noop, so callers never branch on whether
// notifications are enabled.
package notifications
