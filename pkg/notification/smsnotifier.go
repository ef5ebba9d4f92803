package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// SMSGatewayConfig configures the HTTP SMS gateway used to deliver text messages.
type SMSGatewayConfig struct {
	GatewayURL string `env:"SMS_GATEWAY_URL"`
	APIKey     string `env:"SMS_GATEWAY_API_KEY"`
	From       string `env:"SMS_FROM" env-default:"+15005550006"`
}

// SMSNotifier delivers notices as text messages through a JSON HTTP gateway.
type SMSNotifier struct {
	Config SMSGatewayConfig
	client *http.Client
}

func NewSMSNotifier(config SMSGatewayConfig) *SMSNotifier {
	return &SMSNotifier{
		Config: config,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type smsMessage struct {
	To   string `json:"to"`
	From string `json:"from"`
	Body string `json:"body"`
}

func (s *SMSNotifier) Send(noticeType NoticeType, notification NotificationData, template NoticeTemplate) error {
	if notification.To == "" {
		return fmt.Errorf("SMS notification requires 'To'")
	}

	body, err := renderTemplate("sms", template.Text, notification.Data)
	if err != nil {
		slog.Error("Failed to render sms template", "err", err)
		return err
	}
	if body == "" {
		body = notification.Body
	}
	if body == "" {
		return fmt.Errorf("SMS notification requires a body")
	}

	payload, err := json.Marshal(smsMessage{
		To:   notification.To,
		From: s.Config.From,
		Body: body,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, s.Config.GatewayURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.Config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.Config.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Error("Failed to send sms", "err", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway returned status %d", resp.StatusCode)
	}

	slog.Info("Successfully sent sms", "to", notification.To)
	return nil
}
