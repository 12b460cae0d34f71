package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const twilioAPIBase = "https://api.twilio.com/2010-04-01"

// TwilioConfig carries the provider credentials.
// AccountSID and AuthToken usually come from the environment, not the
// config file, so they never end up in version control.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// TwilioChannel sends SMS through the Twilio Messages API.
type TwilioChannel struct {
	cfg     TwilioConfig
	client  *http.Client
	baseURL string
}

func NewTwilioChannel(cfg TwilioConfig, client *http.Client) *TwilioChannel {
	if client == nil {
		client = http.DefaultClient
	}
	return &TwilioChannel{cfg: cfg, client: client, baseURL: twilioAPIBase}
}

type twilioResponse struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func (t *TwilioChannel) Send(ctx context.Context, recipient, body string) (Receipt, error) {
	if t.cfg.AccountSID == "" || t.cfg.AuthToken == "" {
		return Receipt{}, fmt.Errorf("twilio credentials not configured")
	}
	if t.cfg.FromNumber == "" {
		return Receipt{}, fmt.Errorf("twilio from number not configured")
	}

	form := url.Values{}
	form.Set("To", recipient)
	form.Set("From", t.cfg.FromNumber)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", t.baseURL, t.cfg.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Receipt{}, err
	}
	req.SetBasicAuth(t.cfg.AccountSID, t.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return Receipt{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return Receipt{}, err
	}

	var tr twilioResponse
	_ = json.Unmarshal(raw, &tr)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if tr.Message != "" {
			return Receipt{}, fmt.Errorf("twilio: %s (code %d)", tr.Message, tr.Code)
		}
		return Receipt{}, fmt.Errorf("twilio: unexpected status %d", resp.StatusCode)
	}

	return Receipt{Delivered: true, ExternalID: tr.SID}, nil
}
