// Package push delivers notifications to user devices: Expo push for the
// mobile apps, Telegram for chat-linked users and a log-only gateway for
// development. Router picks the gateway from the token's shape.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rejectly/rejectly/internal/domain"
)

// DefaultExpoURL is Expo's push endpoint.
const DefaultExpoURL = "https://exp.host/--/api/v2/push/send"

// Expo sends pushes through the Expo push service.
type Expo struct {
	url         string
	accessToken string
	client      *http.Client
}

var _ domain.PushGateway = (*Expo)(nil)

// NewExpo creates an Expo gateway. An empty url uses DefaultExpoURL.
func NewExpo(url, accessToken string, timeout time.Duration) *Expo {
	if url == "" {
		url = DefaultExpoURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Expo{url: url, accessToken: accessToken, client: &http.Client{Timeout: timeout}}
}

// Name implements domain.PushGateway.
func (e *Expo) Name() string { return "expo" }

type expoMessage struct {
	To    string            `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Sound string            `json:"sound,omitempty"`
	Data  map[string]string `json:"data,omitempty"`
}

type expoResponse struct {
	Data struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Send posts one message. Failures come back in the result.
func (e *Expo) Send(ctx context.Context, msg domain.PushMessage) domain.PushResult {
	body, err := json.Marshal(expoMessage{
		To: msg.Token, Title: msg.Title, Body: msg.Body, Sound: "default", Data: msg.Data,
	})
	if err != nil {
		return failed(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return failed(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if e.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+e.accessToken)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return unavailable(err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var er expoResponse
	if err := json.Unmarshal(raw, &er); err != nil {
		return unavailable(fmt.Errorf("HTTP %d: %w", resp.StatusCode, err))
	}
	switch {
	case len(er.Errors) > 0:
		return unavailable(fmt.Errorf("HTTP %d: %s", resp.StatusCode, er.Errors[0].Message))
	case resp.StatusCode != http.StatusOK:
		return unavailable(fmt.Errorf("HTTP %d", resp.StatusCode))
	case er.Data.Status != "ok":
		return failed(fmt.Errorf("ticket %s: %s", er.Data.Status, er.Data.Message))
	}
	return domain.PushResult{Success: true}
}

func failed(err error) domain.PushResult {
	return domain.PushResult{Error: fmt.Errorf("%w: %v", domain.ErrPushGateway, err).Error()}
}

// unavailable marks a failure of the upstream itself.
func unavailable(err error) domain.PushResult {
	res := failed(err)
	res.Transport = true
	return res
}
