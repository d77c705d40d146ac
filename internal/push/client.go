package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

type Config struct {
	BaseURL     string
	Timeout     time.Duration
	MaxFailures uint32
	OpenTimeout time.Duration
}

// HTTPClient talks to a LINE-style messaging API:
// POST {BaseURL}/v2/bot/message/push with a bearer token.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	tokens  *TokenCache
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewHTTPClient(cfg Config, tokens *TokenCache, logger *zap.Logger) *HTTPClient {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	st := gobreaker.Settings{
		Name:        "push",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("circuit breaker state", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		tokens:  tokens,
		breaker: gobreaker.NewCircuitBreaker(st),
		logger:  logger,
	}
}

type pushRequest struct {
	To       string        `json:"to"`
	Messages []textMessage `json:"messages"`
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Push sends text to handle. A blocked user is reported as ErrUserBlocked
// and does not count as a breaker failure.
func (c *HTTPClient) Push(ctx context.Context, handle, text string) error {
	res, err := c.breaker.Execute(func() (interface{}, error) {
		blocked, err := c.send(ctx, handle, text)
		return blocked, err
	})
	if err != nil {
		return fmt.Errorf("push to %s: %w", handle, err)
	}
	if blocked, _ := res.(bool); blocked {
		return ErrUserBlocked
	}
	return nil
}

func (c *HTTPClient) send(ctx context.Context, handle, text string) (bool, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return false, err
	}

	body, err := json.Marshal(pushRequest{
		To:       handle,
		Messages: []textMessage{{Type: "text", Text: text}},
	})
	if err != nil {
		return false, fmt.Errorf("encoding push request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/bot/message/push", bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("building push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("sending push request: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return false, nil
	case resp.StatusCode == http.StatusForbidden:
		return true, nil
	case resp.StatusCode == http.StatusUnauthorized:
		c.tokens.Invalidate()
	}
	return false, fmt.Errorf("push provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
}
