// Package dispatch delivers rendered alerts through a notification channel,
// one message at a time.
//
// Serialization is deliberate: the provider rate-limits aggressively and the
// recipient should read messages in the order the detector produced them.
// Never send concurrently.
package dispatch

import (
	"context"
	"errors"
	"regexp"
	"time"

	"golang.org/x/time/rate"

	"bagwatch/internal/policy"
	"bagwatch/pkg/logx"
)

// Error kinds recorded on per-alert outcomes.
const (
	ErrKindValidation = "ValidationError"
	ErrKindDelivery   = "DeliveryError"
)

var ErrInvalidRecipient = errors.New("recipient is not a valid E.164 number")

// e164Re matches the canonical international phone format, e.g. +14155550100.
var e164Re = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// Receipt is what the channel reports back for one accepted message.
type Receipt struct {
	Delivered  bool
	ExternalID string
}

// Channel is the transport that actually delivers a text message.
type Channel interface {
	Send(ctx context.Context, recipient, body string) (Receipt, error)
}

// Outcome is the per-alert result of a dispatch run.
type Outcome struct {
	Alert      policy.Alert
	Delivered  bool
	ExternalID string
	ErrorKind  string
	Err        error
}

// Config controls the dispatcher.
type Config struct {
	Recipient    string
	MessageDelay time.Duration // pacing between consecutive sends; default 1s
	SendTimeout  time.Duration // per-message bound on the channel call; default 10s
}

// Dispatcher sends alerts strictly sequentially with inter-message pacing.
// A failure on one alert never suppresses the rest of the queue.
type Dispatcher struct {
	cfg     Config
	channel Channel
	limiter *rate.Limiter
	log     logx.Logger
}

func New(cfg Config, channel Channel, log logx.Logger) *Dispatcher {
	if cfg.MessageDelay <= 0 {
		cfg.MessageDelay = time.Second
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{
		cfg:     cfg,
		channel: channel,
		// 1-token bucket: consecutive sends are spaced by MessageDelay,
		// including across separate Send calls within the same cycle.
		limiter: rate.NewLimiter(rate.Every(cfg.MessageDelay), 1),
		log:     log,
	}
}

// ValidRecipient reports whether the number satisfies E.164.
func ValidRecipient(number string) bool {
	return e164Re.MatchString(number)
}

// Send pushes alerts through the channel one at a time and returns one
// Outcome per input alert, in input order.
//
// A malformed recipient short-circuits each message before any network call.
// A channel-reported failure is recorded on that alert alone; the remaining
// queue still runs.
func (d *Dispatcher) Send(ctx context.Context, alerts []policy.Alert) []Outcome {
	outcomes := make([]Outcome, 0, len(alerts))

	for _, a := range alerts {
		out := Outcome{Alert: a}

		if !ValidRecipient(d.cfg.Recipient) {
			out.ErrorKind = ErrKindValidation
			out.Err = ErrInvalidRecipient
			d.log.Warn("alert skipped: invalid recipient", logx.String("kind", string(a.Kind)))
			outcomes = append(outcomes, out)
			continue
		}

		if err := d.limiter.Wait(ctx); err != nil {
			out.ErrorKind = ErrKindDelivery
			out.Err = err
			outcomes = append(outcomes, out)
			continue
		}

		receipt, err := d.sendOne(ctx, a.Message)
		if err != nil {
			out.ErrorKind = ErrKindDelivery
			out.Err = err
			d.log.Warn("alert delivery failed",
				logx.String("kind", string(a.Kind)),
				logx.String("entry", a.Entry.ID),
				logx.Err(err))
		} else {
			out.Delivered = receipt.Delivered
			out.ExternalID = receipt.ExternalID
			d.log.Debug("alert sent",
				logx.String("kind", string(a.Kind)),
				logx.String("entry", a.Entry.ID),
				logx.String("external_id", receipt.ExternalID))
		}
		outcomes = append(outcomes, out)
	}

	return outcomes
}

// Notify sends a single free-form message (startup / daily / operator
// notices) through the same channel with the same validation and pacing.
func (d *Dispatcher) Notify(ctx context.Context, body string) error {
	if !ValidRecipient(d.cfg.Recipient) {
		return ErrInvalidRecipient
	}
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := d.sendOne(ctx, body)
	return err
}

func (d *Dispatcher) sendOne(ctx context.Context, body string) (Receipt, error) {
	callCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()
	return d.channel.Send(callCtx, d.cfg.Recipient, body)
}

// Delivered counts successful outcomes.
func Delivered(outcomes []Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Delivered {
			n++
		}
	}
	return n
}
