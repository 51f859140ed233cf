package mail

import (
	"fmt"
	"log"
	"net/smtp"

	"github.com/invisifeed/invisifeed/internal/pkg/env"
)

// SendMail sends an HTML email via SMTP.
func SendMail(to string, subject string, body string) error {
	host := env.GetEnv("SMTP_HOST", "")
	port := env.GetEnv("SMTP_PORT", "")
	username := env.GetEnv("SMTP_USERNAME", "")
	password := env.GetEnv("SMTP_PASSWORD", "")
	sender := env.GetEnv("SMTP_SENDER", "")

	if sender == "" {
		sender = fmt.Sprintf("no-reply@%s", "localhost")
		log.Printf("SMTP_SENDER not set, using default sender: %s", sender)
	}

	var auth smtp.Auth
	if username != "" && password != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	addr := fmt.Sprintf("%s:%s", host, port)

	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", sender, to, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			body,
	)

	err := smtp.SendMail(addr, auth, sender, []string{to}, msg)
	if err != nil {
		log.Printf("SMTP send error: %v", err)
	} else {
		log.Printf("Email sent to %s via %s", to, addr)
	}
	return err
}

// SendInvoiceMail emails a customer their invoice with the feedback link.
func SendInvoiceMail(to, businessName, invoiceNumber, feedbackURL, note string) error {
	subject := fmt.Sprintf("Invoice %s from %s", invoiceNumber, businessName)
	body := fmt.Sprintf(
		"<p>%s</p>"+
			"<p>Your invoice <strong>%s</strong> is attached.</p>"+
			"<p>We would love to hear from you: <a href=\"%s\">share your feedback</a> "+
			"(anonymous if you prefer).</p>",
		note, invoiceNumber, feedbackURL,
	)
	return SendMail(to, subject, body)
}
