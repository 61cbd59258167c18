// Package logx wraps zerolog behind a small, swap-safe logging facade.
//
// Components hold a Logger value; the Service re-targets all of them at once
// when logging config is reloaded (level, console, file sinks). The zero
// Logger is a safe no-op, so optional dependencies never need nil checks.
package logx
