// Package scheduler keeps the live job table and fires jobs at their due time.
//
// Jobs are keyed by id: scheduling an existing id replaces it. Each job has a
// trigger (interval, daily cron slot, or one-shot date) whose next fire time
// is a pure function of the previous fire time and the current time. A job
// never runs twice at once: an occurrence that comes due while the previous
// run is still in flight is skipped, and an occurrence later than its misfire
// grace is skipped and logged.
package scheduler
