package core

import (
	"bytes"
	"fmt"
	htmltmpl "html/template"
	"net/mail"
	"strings"
	texttmpl "text/template"

	"github.com/trezcool/elimu/fs"
)

var (
	textTemplates   *texttmpl.Template
	htmlTemplates   *htmltmpl.Template
	frontendBaseURL string
)

type (
	EmailMessage struct {
		To      []mail.Address
		Cc      []mail.Address
		Bcc     []mail.Address
		Subject string
		BodyStr string // simple text/plain, non-templated content

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	ContextData struct {
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails.
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

// ParseEmailTemplates parses all embedded email templates once at startup.
func ParseEmailTemplates(conf *Config, logger Logger) {
	frontendBaseURL = conf.FrontendBaseURL

	var err error
	if textTemplates, err = texttmpl.ParseFS(fs.FS, "templates/emails/*.txt.tmpl"); err != nil {
		logger.Fatal(fmt.Sprintf("parsing text email templates: %v", err), err)
	}
	if htmlTemplates, err = htmltmpl.ParseFS(fs.FS, "templates/emails/*.html.tmpl"); err != nil {
		logger.Fatal(fmt.Sprintf("parsing html email templates: %v", err), err)
	}
}

func (m *EmailMessage) getContextData() ContextData {
	return ContextData{
		FrontendBaseURL: frontendBaseURL,
		Data:            m.TemplateData,
	}
}

// Render resolves the message's TextContent and HTMLContent; either from its
// templates or from the plain BodyStr.
func (m *EmailMessage) Render() error {
	if m.TemplateName == "" {
		m.TextContent = m.BodyStr
		return nil
	}

	data := m.getContextData()

	var txt bytes.Buffer
	if tmpl := textTemplates.Lookup(m.TemplateName + ".txt.tmpl"); tmpl != nil {
		if err := tmpl.Execute(&txt, data); err != nil {
			return err
		}
		m.TextContent = strings.TrimSpace(txt.String())
	}

	var html bytes.Buffer
	if tmpl := htmlTemplates.Lookup(m.TemplateName + ".html.tmpl"); tmpl != nil {
		if err := tmpl.Execute(&html, data); err != nil {
			return err
		}
		m.HTMLContent = html.String()
	}
	return nil
}

func (m *EmailMessage) HasRecipients() bool {
	return len(m.To) > 0 || len(m.Cc) > 0 || len(m.Bcc) > 0
}

func (m *EmailMessage) HasContent() bool {
	return m.BodyStr != "" || m.TextContent != "" || m.HTMLContent != ""
}
