package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultMailtrapURL = "https://send.api.mailtrap.io"

// MailtrapClient sends transactional template mail through the Mailtrap
// send API.
type MailtrapClient struct {
	baseURL     string
	token       string
	senderEmail string
	senderName  string
	client      *http.Client
}

func NewMailtrapClient(baseURL, token, senderEmail, senderName string) *MailtrapClient {
	if baseURL == "" {
		baseURL = defaultMailtrapURL
	}
	return &MailtrapClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		token:       token,
		senderEmail: senderEmail,
		senderName:  senderName,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

type mailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendRequest struct {
	From              mailAddress    `json:"from"`
	To                []mailAddress  `json:"to"`
	TemplateUUID      string         `json:"template_uuid"`
	TemplateVariables map[string]any `json:"template_variables,omitempty"`
}

func (c *MailtrapClient) SendTemplate(ctx context.Context, toEmail, templateID string, vars map[string]any) error {
	payload := sendRequest{
		From:              mailAddress{Email: c.senderEmail, Name: c.senderName},
		To:                []mailAddress{{Email: toEmail}},
		TemplateUUID:      templateID,
		TemplateVariables: vars,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/send", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		text := strings.TrimSpace(string(msg))
		if text == "" {
			text = resp.Status
		}
		return errors.New("mailtrap send failed: " + text)
	}
	return nil
}
