package mailer

import (
	"bytes"
	"embed"
	htmltemplate "html/template"
	"text/template"
	"time"

	"github.com/go-mail/mail/v2"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const sendAttempts = 3

type Mailer struct {
	dialer *mail.Dialer
	sender string
}

func New(host string, port int, username, password, sender string) *Mailer {
	dialer := mail.NewDialer(host, port, username, password)
	dialer.Timeout = 5 * time.Second
	return &Mailer{
		dialer: dialer,
		sender: sender,
	}
}

// Send renders the subject, plainBody and htmlBody blocks of templateFile and
// delivers the message, retrying a few times before giving up.
func (m *Mailer) Send(recipient, templateFile string, data any) error {
	msg, err := buildMessage(m.sender, recipient, templateFile, data)
	if err != nil {
		return err
	}

	for i := 0; i < sendAttempts; i++ {
		err = m.dialer.DialAndSend(msg)
		if err == nil {
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return err
}

// render executes the three blocks of templateFile. Subject and plain body go
// through text/template so message text is not HTML-escaped.
func render(templateFile string, data any) (subject, plainBody, htmlBody string, err error) {
	path := "templates/" + templateFile

	textTmpl, err := template.New("email").ParseFS(templateFS, path)
	if err != nil {
		return "", "", "", err
	}
	htmlTmpl, err := htmltemplate.New("email").ParseFS(templateFS, path)
	if err != nil {
		return "", "", "", err
	}

	var buf bytes.Buffer
	if err := textTmpl.ExecuteTemplate(&buf, "subject", data); err != nil {
		return "", "", "", err
	}
	subject = buf.String()

	buf.Reset()
	if err := textTmpl.ExecuteTemplate(&buf, "plainBody", data); err != nil {
		return "", "", "", err
	}
	plainBody = buf.String()

	buf.Reset()
	if err := htmlTmpl.ExecuteTemplate(&buf, "htmlBody", data); err != nil {
		return "", "", "", err
	}
	htmlBody = buf.String()

	return subject, plainBody, htmlBody, nil
}

func buildMessage(sender, recipient, templateFile string, data any) (*mail.Message, error) {
	subject, plainBody, htmlBody, err := render(templateFile, data)
	if err != nil {
		return nil, err
	}

	msg := mail.NewMessage()
	msg.SetHeader("To", recipient)
	msg.SetHeader("From", sender)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", plainBody)
	msg.AddAlternative("text/html", htmlBody)
	return msg, nil
}
