// Package clock supplies the time source for report timestamps and stored
// outcomes. Tests pass a Fixed clock so persisted rows and batch reports are
// deterministic.
package clock
