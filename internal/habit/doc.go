// Package habit defines reminder declarations and compiles them into
// absolute-time scheduled entries.
//
// Two rule shapes exist: specific wall-clock times and fixed-step intervals
// inside a daily window. Compilation is pure and deterministic; the same
// declarations and clock produce the same entries with the same ids, which
// is what makes re-scheduling idempotent for the engine.
package habit
