// Package notification pushes gesture events to chat and push services
// through shoutrrr service URLs.
package notification

import (
	"fmt"
	"io"
	"log"
	"math"
	"slices"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/sawring/sawring/internal/conf"
	"github.com/sawring/sawring/internal/errors"
	"github.com/sawring/sawring/internal/events"
	"github.com/sawring/sawring/internal/logger"
	"github.com/sawring/sawring/internal/privacy"
)

const title = "SAW-Ring"

// Sender delivers one message to every configured service.
type Sender interface {
	Send(message string, params *stypes.Params) []error
}

// Notifier is an events.EventConsumer that sends a push message per event.
// End events are only sent when enabled.
type Notifier struct {
	sender Sender
	onEnd  bool
}

// NewNotifier builds a shoutrrr router for the configured URLs.
func NewNotifier(s conf.NotifySettings) (*Notifier, error) {
	if len(s.URLs) == 0 {
		return nil, errors.Newf("at least one notification URL is required").
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}

	sender, err := shoutrrr.CreateSender(slices.Clone(s.URLs)...)
	if err != nil {
		// URLs carry tokens; never log them verbatim.
		return nil, errors.New(privacy.WrapError(err)).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Context("url_count", len(s.URLs)).
			Build()
	}
	if s.Timeout > 0 {
		sender.Timeout = s.Timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))

	GetLogger().Info("push notifications enabled",
		logger.Int("services", len(s.URLs)),
		logger.Bool("notify_on_end", s.OnEnd))
	return NewNotifierWithSender(sender, s.OnEnd), nil
}

// NewNotifierWithSender wraps an existing sender.
func NewNotifierWithSender(sender Sender, onEnd bool) *Notifier {
	return &Notifier{sender: sender, onEnd: onEnd}
}

// Name implements events.EventConsumer.
func (n *Notifier) Name() string { return "notify" }

// ProcessEvent sends ev unless it is an end event and those are disabled.
// The first delivery error is returned, scrubbed of service URLs.
func (n *Notifier) ProcessEvent(ev events.Event) error {
	if ev.Kind == events.KindEnd && !n.onEnd {
		return nil
	}

	params := stypes.Params{}
	params.SetTitle(title)

	for _, err := range n.sender.Send(Message(ev), &params) {
		if err != nil {
			return errors.New(privacy.WrapError(err)).
				Component("notification").
				Category(errors.CategoryEventDispatch).
				Context("event_id", ev.ID).
				Context("label", ev.Label).
				Build()
		}
	}
	return nil
}

// Message renders the push text for ev.
func Message(ev events.Event) string {
	pct := int(math.Round(ev.Confidence * 100))
	switch ev.Kind {
	case events.KindEnd:
		return fmt.Sprintf("Gesture %s ended after %d ms", ev.Label, ev.Duration.Milliseconds())
	default:
		if ev.Action != "" {
			return fmt.Sprintf("Gesture %s detected (%d%%), action %s", ev.Label, pct, ev.Action)
		}
		return fmt.Sprintf("Gesture %s detected (%d%%)", ev.Label, pct)
	}
}
