package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// email request payload for ZeptoMail API
type emailRequest struct {
	From     emailAddress  `json:"from"`
	To       []toRecipient `json:"to"`
	Subject  string        `json:"subject"`
	HtmlBody string        `json:"htmlbody"`
}

type emailAddress struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

type toRecipient struct {
	Email emailWithName `json:"email_address"`
}

type emailWithName struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// Notifier delivers notification emails to back-office staff.
type Notifier interface {
	SendEmail(ctx context.Context, to, toName, subject, body string) error
}

// Mailer sends HTML email through the ZeptoMail HTTP API.
type Mailer struct {
	APIURL   string // e.g. https://api.zeptomail.com/v1.1/email
	APIKey   string // e.g. Zoho-enczapikey xxxxx
	From     string
	FromName string
	Client   *http.Client
}

func (m *Mailer) Configured() bool {
	return m != nil && m.APIURL != "" && m.APIKey != "" && m.From != ""
}

func (m *Mailer) SendEmail(ctx context.Context, to, toName, subject, body string) error {
	if !m.Configured() {
		return fmt.Errorf("missing required email config")
	}

	payload := emailRequest{
		From:     emailAddress{Address: m.From, Name: m.FromName},
		To:       []toRecipient{{Email: emailWithName{Address: to, Name: toName}}},
		Subject:  subject,
		HtmlBody: body,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.APIURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("create email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", m.APIKey)

	client := m.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("zeptomail API error: %s", resp.Status)
	}

	log.Printf("[mail] sent %q to %s", subject, to)
	return nil
}
