package outbound

import "context"

// EmailMessage is a rendered email.
type EmailMessage struct {
	To       string
	Subject  string
	HTMLBody string
}

// EmailSenderPort delivers rendered emails.
type EmailSenderPort interface {
	Send(ctx context.Context, msg *EmailMessage) error
}
