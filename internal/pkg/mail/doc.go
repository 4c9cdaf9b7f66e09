// Package mail defines the contracts for sending email messages.
//
// The rest of the application stays independent from a specific provider:
// callers work with the Mail interface and the Message payload, and the
// concrete delivery mechanism (SMTP, EmailIt REST API, Resend) is selected by
// driver name through NewFromDriver.
package mail
