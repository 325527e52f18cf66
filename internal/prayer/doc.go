// Package prayer fetches daily prayer times and keeps the per-day prayer
// jobs in the scheduler in sync with them.
//
// Once a day the Manager computes the desired job set (an alert shortly
// before each prayer and a content push after it), cancels installed prayer
// jobs that are no longer wanted, and installs the rest by id. Running it
// twice with the same timings leaves the same jobs installed.
package prayer
