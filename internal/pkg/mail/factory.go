package mail

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// DriverEmailIt selects the EmailIt REST API.
	DriverEmailIt = "emailit"
	// DriverSMTP selects an authenticated SMTP submission server.
	DriverSMTP = "smtp"
	// DriverResend selects the Resend API.
	DriverResend = "resend"
)

// ErrUnknownDriver indicates an unsupported mail driver.
var ErrUnknownDriver = errors.New("mail: unknown driver")

// FactoryOptions groups configuration for mail drivers.
type FactoryOptions struct {
	// EmailIt configures the EmailIt backend.
	EmailIt EmailItConfig
	// SMTP configures the SMTP backend.
	SMTP SMTPConfig
	// Resend configures the Resend backend.
	Resend ResendConfig
}

// NewFromDriver constructs a Mail implementation by driver name.
func NewFromDriver(driver string, opts FactoryOptions) (Mail, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverEmailIt:
		return NewEmailIt(opts.EmailIt)
	case DriverSMTP:
		return NewSMTP(opts.SMTP)
	case DriverResend:
		return NewResend(opts.Resend)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}
}
