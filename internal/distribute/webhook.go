package distribute

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Delivery is one message with a zip attachment.
type Delivery struct {
	Email      string
	Subject    string
	Message    string
	Attachment string // path to the zip file
}

// Sender delivers a zip archive to an attendee.
type Sender interface {
	Send(ctx context.Context, d Delivery) error
}

// WebhookSender posts deliveries as multipart forms to an automation webhook.
type WebhookSender struct {
	url  string
	http *http.Client
}

// NewWebhookSender creates a sender for url.
func NewWebhookSender(url string, timeout time.Duration) *WebhookSender {
	return &WebhookSender{
		url:  url,
		http: &http.Client{Timeout: timeout},
	}
}

// Message returns the default mail body for an address.
func Message(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return fmt.Sprintf("Dear %s,\n\nYour event photos are ready! Please find them attached.\n\nBest regards,\nEvent Photo Team", local)
}

// Send uploads the attachment with the email, subject and message fields.
// Any status other than 200 is an error.
func (s *WebhookSender) Send(ctx context.Context, d Delivery) error {
	data, err := os.ReadFile(d.Attachment)
	if err != nil {
		return fmt.Errorf("zip file not found: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="attachment"; filename=%q`, filepath.Base(d.Attachment)))
	h.Set("Content-Type", "application/zip")
	part, err := writer.CreatePart(h)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("failed to write attachment: %w", err)
	}

	for _, f := range []struct{ name, value string }{
		{"email", d.Email},
		{"subject", d.Subject},
		{"message", d.Message},
	} {
		if err := writer.WriteField(f.name, f.value); err != nil {
			return fmt.Errorf("failed to write %s field: %w", f.name, err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, &body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
