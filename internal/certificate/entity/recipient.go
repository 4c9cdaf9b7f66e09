package entity

import (
	"strings"
)

// Recipient is one row of the recipient list.
type Recipient struct {
	FullName string `csv:"Full Name" validate:"notblank"`
	Email    string `csv:"Email" validate:"required,email"`
}

// Normalize trims surrounding whitespace from both fields.
func (r Recipient) Normalize() Recipient {
	return Recipient{
		FullName: strings.TrimSpace(r.FullName),
		Email:    strings.TrimSpace(r.Email),
	}
}

// IsBlank reports whether the name or the email is missing.
func (r Recipient) IsBlank() bool {
	return strings.TrimSpace(r.FullName) == "" || strings.TrimSpace(r.Email) == ""
}

// Key identifies the recipient inside a campaign.
func (r Recipient) Key() string {
	return strings.ToLower(strings.TrimSpace(r.Email)) + "|" + strings.TrimSpace(r.FullName)
}

// AttachmentName is the file name of the certificate sent to the recipient.
func (r Recipient) AttachmentName() string {
	return r.FullName + "_Certificate.pdf"
}
