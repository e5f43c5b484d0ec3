// Package telegram delivers notifications as Bot API text messages.
package telegram

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"staybook/internal/adapters/observability"
	"staybook/internal/domain"
)

const maxAttempts = 4

var (
	ErrUnauthorized = errors.New("telegram: unauthorized")
	ErrChatNotFound = errors.New("telegram: chat not found")
)

type Client struct {
	base   string
	token  string
	chatID string
	hc     *http.Client
	rl     *rate.Limiter
}

func New(base, token, chatID string, rps int) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	if chatID == "" {
		return nil, fmt.Errorf("chat id is required")
	}
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		base:   strings.TrimRight(base, "/"),
		token:  token,
		chatID: chatID,
		hc:     &http.Client{Timeout: 10 * time.Second},
		rl:     rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// Notify implements domain.Notifier.
func (c *Client) Notify(ctx context.Context, n domain.Notification) error {
	return c.SendMessage(ctx, n.Text)
}

type sendMessage struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
	Parameters  struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// SendMessage posts text to the configured chat. 429 and transient 5xx answers are
// retried, honoring Retry-After from the header or the response body.
func (c *Client) SendMessage(ctx context.Context, text string) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}
	body, err := json.Marshal(sendMessage{ChatID: c.chatID, Text: text})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", c.base, c.token)

	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "staybook/1.0")

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal("telegram", "sendMessage", 0, time.Since(start))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if i < maxAttempts-1 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
		observability.ObserveExternal("telegram", "sendMessage", resp.StatusCode, time.Since(start))

		var ar apiResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
		_ = json.Unmarshal(raw, &ar)

		switch resp.StatusCode {
		case http.StatusOK:
			if !ar.OK {
				return fmt.Errorf("telegram: %s", ar.Description)
			}
			return nil

		case http.StatusUnauthorized:
			return ErrUnauthorized

		case http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound:
			if strings.Contains(strings.ToLower(ar.Description), "chat not found") {
				return ErrChatNotFound
			}
			return fmt.Errorf("telegram: bad status %d: %s", resp.StatusCode, strings.TrimSpace(ar.Description))

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			if wait == 0 && ar.Parameters.RetryAfter > 0 {
				wait = time.Duration(ar.Parameters.RetryAfter) * time.Second
			}
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("telegram: remote %d", resp.StatusCode)
			if i < maxAttempts-1 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			return fmt.Errorf("telegram: bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		}
	}
	return lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter reads the Retry-After header in seconds or HTTP-date form; 0 if absent.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff doubles from 200ms per attempt with up to 50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	return base + time.Duration(0.5*float64(b[0])/255.0*float64(base))
}
