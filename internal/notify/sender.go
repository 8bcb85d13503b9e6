package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type Sender interface {
	Send(ctx context.Context, to, body string) error
}

// SMSGateway talks to a Twilio-compatible REST API:
// POST {BaseURL}/2010-04-01/Accounts/{AccountSID}/Messages.json with basic auth.
type SMSGateway struct {
	BaseURL    string
	AccountSID string
	AuthToken  string
	From       string
	Client     *http.Client
}

var ErrGateway = errors.New("sms gateway error")

func (g *SMSGateway) Send(ctx context.Context, to, body string) error {
	endpoint := strings.TrimRight(g.BaseURL, "/") + "/2010-04-01/Accounts/" + url.PathEscape(g.AccountSID) + "/Messages.json"
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", g.From)
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(g.AccountSID, g.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := g.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrGateway, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// LogSender only logs; used when no gateway is configured.
type LogSender struct{ Log *zap.Logger }

func (l LogSender) Send(_ context.Context, to, body string) error {
	l.Log.Info("sms (log only)", zap.String("to", to), zap.String("body", body))
	return nil
}

// RateLimited throttles an underlying Sender.
type RateLimited struct {
	Sender  Sender
	Limiter *rate.Limiter
}

func NewRateLimited(s Sender, perSec float64) *RateLimited {
	limit := rate.Limit(perSec)
	if perSec <= 0 {
		limit = rate.Inf
	}
	return &RateLimited{Sender: s, Limiter: rate.NewLimiter(limit, 1)}
}

func (r *RateLimited) Send(ctx context.Context, to, body string) error {
	if err := r.Limiter.Wait(ctx); err != nil {
		return err
	}
	return r.Sender.Send(ctx, to, body)
}
