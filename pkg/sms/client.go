package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ptfoundation/pandham-backend/pkg/config"
	"github.com/ptfoundation/pandham-backend/pkg/logger"
)

// Sender delivers a short message to a Thai mobile number.
type Sender interface {
	Send(ctx context.Context, phone, message string) error
}

// Client talks to the SMS gateway's JSON API.
type Client struct {
	cfg  config.SMSConfig
	http *http.Client
	logg *logger.Logger
}

// NewClient builds a gateway client. With DryRun enabled the client logs the
// message instead of calling the gateway, which is how dev and CI run.
func NewClient(cfg config.SMSConfig, logg *logger.Logger) (*Client, error) {
	if !cfg.DryRun {
		if strings.TrimSpace(cfg.GatewayURL) == "" {
			return nil, fmt.Errorf("sms gateway url is required")
		}
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, fmt.Errorf("sms api key is required")
		}
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 10 * time.Second},
		logg: logg,
	}, nil
}

type sendRequest struct {
	Sender  string `json:"sender"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

type sendResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Send delivers the message through the gateway.
func (c *Client) Send(ctx context.Context, phone, message string) error {
	if strings.TrimSpace(phone) == "" {
		return fmt.Errorf("phone is required")
	}
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("message is required")
	}

	if c.cfg.DryRun {
		if c.logg != nil {
			logCtx := c.logg.WithFields(ctx, map[string]any{"phone": phone})
			c.logg.Info(logCtx, "sms dry-run, message not sent")
		}
		return nil
	}

	body, err := json.Marshal(sendRequest{
		Sender:  c.cfg.SenderID,
		Phone:   phone,
		Message: message,
	})
	if err != nil {
		return fmt.Errorf("encode sms request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.GatewayURL, strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if c.cfg.ClientID != "" {
		req.Header.Set("X-Client-ID", c.cfg.ClientID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway returned status %d", resp.StatusCode)
	}

	var decoded sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("decode sms response: %w", err)
	}
	if !decoded.Success {
		return fmt.Errorf("sms gateway rejected message: %s", decoded.Message)
	}
	return nil
}
