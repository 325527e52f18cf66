// Package broadcast pushes content to every registered group.
//
// Each push iterates a point-in-time snapshot of the registry, so groups
// added or removed while a push is running neither get skipped nor sent to
// twice within that push. A permanent delivery failure deregisters the group.
package broadcast
