package sinks

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"sales-assistant/internal/domain"
	"sales-assistant/internal/lead"
)

// EmailMessage is a plain-text email.
type EmailMessage struct {
	To      string
	Subject string
	Body    string
}

// EmailSender delivers one email.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailReceipt mails the contact receipt to the visitor. Leads with only a
// phone number fail this sink; the others still count.
type EmailReceipt struct {
	sender  EmailSender
	company lead.Company
}

func NewEmailReceipt(sender EmailSender, company lead.Company) (*EmailReceipt, error) {
	if sender == nil {
		return nil, errors.New("sinks: email sender must not be nil")
	}
	return &EmailReceipt{sender: sender, company: company}, nil
}

func (e *EmailReceipt) Name() string { return "email-receipt" }

func (e *EmailReceipt) Deliver(ctx context.Context, l domain.LeadData) (string, error) {
	if l.Email == "" {
		return "", errors.New("sinks: lead has no email address")
	}
	err := e.sender.Send(ctx, EmailMessage{
		To:      l.Email,
		Subject: lead.ReceiptSubject(e.company),
		Body:    lead.RenderReceipt(l, e.company),
	})
	if err != nil {
		return "", err
	}
	return "receipt sent to " + l.Email, nil
}

type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender sends through Amazon SES.
type SESSender struct {
	client sesAPI
	from   string
}

func NewSESSender(client sesAPI, from string) (*SESSender, error) {
	if client == nil {
		return nil, errors.New("sinks: ses client must not be nil")
	}
	if from == "" {
		return nil, errors.New("sinks: sender address must not be empty")
	}
	return &SESSender{client: client, from: from}, nil
}

func (s *SESSender) Send(ctx context.Context, msg EmailMessage) error {
	_, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination:      &sestypes.Destination{ToAddresses: []string{msg.To}},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &sestypes.Body{
					Text: &sestypes.Content{Data: aws.String(msg.Body), Charset: aws.String("UTF-8")},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("sinks: ses send: %w", err)
	}
	return nil
}

type sendGridAPI interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridSender sends through the SendGrid v3 API.
type SendGridSender struct {
	client   sendGridAPI
	from     string
	fromName string
}

func NewSendGridSender(apiKey, from, fromName string) (*SendGridSender, error) {
	if apiKey == "" {
		return nil, errors.New("sinks: sendgrid api key must not be empty")
	}
	return newSendGridSender(sendgrid.NewSendClient(apiKey), from, fromName)
}

func newSendGridSender(client sendGridAPI, from, fromName string) (*SendGridSender, error) {
	if from == "" {
		return nil, errors.New("sinks: sender address must not be empty")
	}
	return &SendGridSender{client: client, from: from, fromName: fromName}, nil
}

func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	message := mail.NewV3Mail()
	message.SetFrom(mail.NewEmail(s.fromName, s.from))
	message.Subject = msg.Subject
	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail("", msg.To))
	message.AddPersonalizations(p)
	message.AddContent(mail.NewContent("text/plain", msg.Body))

	res, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sinks: sendgrid send: %w", err)
	}
	if res.StatusCode >= 400 {
		return fmt.Errorf("sinks: sendgrid returned status %d", res.StatusCode)
	}
	return nil
}
