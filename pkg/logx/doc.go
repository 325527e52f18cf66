// Package logx configures azkarbot's structured logging.
//
// A thin wrapper (logx.Logger) over zerolog keeps console output short and
// readable, file output JSON-structured, and lets warnings reach the admin
// chat through the bot itself.
package logx
