package mailer

import (
	"context"
	"fmt"
	"html/template"
	"strings"
)

const brand = "E-SHOP"

// htmlBody lays out paragraphs of lines. The template escapes every line.
var htmlBody = template.Must(template.New("body").Parse(
	`{{range .}}<p>{{range $i, $line := .}}{{if $i}}<br>{{end}}{{$line}}{{end}}</p>{{end}}`,
))

// Mailer renders the account emails and hands them to a Sender.
type Mailer struct {
	sender Sender
}

func New(sender Sender) *Mailer {
	return &Mailer{sender: sender}
}

func (m *Mailer) SendVerification(ctx context.Context, to, firstName, otp string) error {
	return m.send(ctx, to,
		fmt.Sprintf("Your %s email verification code", brand),
		fmt.Sprintf("Hi %s,\n\nYour verification code is: %s\n\nThis code is valid for 10 minutes.\n\nIf you didn't request this, please ignore this email.", firstName, otp),
	)
}

func (m *Mailer) SendWelcome(ctx context.Context, to, firstName string) error {
	return m.send(ctx, to,
		fmt.Sprintf("Welcome to %s!", brand),
		fmt.Sprintf("Hi %s,\n\nWelcome to %s! We're excited to have you with us.", firstName, brand),
	)
}

func (m *Mailer) SendPasswordReset(ctx context.Context, to, firstName, resetURL string) error {
	return m.send(ctx, to,
		"Your password reset link (valid for 10 minutes)",
		fmt.Sprintf("Hi %s,\n\nYou requested a password reset.\nClick the link below to reset your password:\n%s\n\nIf you didn't request this, please ignore this email.", firstName, resetURL),
	)
}

func (m *Mailer) send(ctx context.Context, to, subject, text string) error {
	msg, err := render(to, subject, text)
	if err != nil {
		return err
	}
	return m.sender.Send(ctx, msg)
}

// render derives the HTML part from the plain text, one paragraph per
// blank-line separated block.
func render(to, subject, text string) (Message, error) {
	var paragraphs [][]string
	for _, block := range strings.Split(text, "\n\n") {
		paragraphs = append(paragraphs, strings.Split(block, "\n"))
	}
	var b strings.Builder
	if err := htmlBody.Execute(&b, paragraphs); err != nil {
		return Message{}, fmt.Errorf("render %q: %w", subject, err)
	}
	return Message{To: to, Subject: subject, Text: text, HTML: b.String()}, nil
}
