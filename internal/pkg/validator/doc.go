// Package validator checks recipient records and module dependencies against
// their struct tags.
//
// Callers depend on the Validator interface. The implementation is backed by
// go-playground/validator v10 and reports failing fields by their csv tag, so
// messages name the column a recipient row came from.
package validator
