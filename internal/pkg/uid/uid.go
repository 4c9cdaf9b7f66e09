// Package uid generates identifiers for batches and remote template clones.
package uid

// StringID generates string identifiers.
type StringID interface {
	Generate() string
}
