package notification

import (
	"errors"
	"testing"
	"time"

	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawring/sawring/internal/conf"
	sawerrors "github.com/sawring/sawring/internal/errors"
	"github.com/sawring/sawring/internal/events"
)

type mockSender struct {
	messages []string
	titles   []string
	errs     []error
}

func (m *mockSender) Send(message string, params *stypes.Params) []error {
	m.messages = append(m.messages, message)
	if params != nil {
		title, _ := params.Title()
		m.titles = append(m.titles, title)
	}
	return m.errs
}

func TestNotifierSendsStartEvents(t *testing.T) {
	t.Parallel()

	s := &mockSender{}
	n := NewNotifierWithSender(s, false)
	assert.Equal(t, "notify", n.Name())

	require.NoError(t, n.ProcessEvent(events.Event{Kind: events.KindStart, Label: "tap", Confidence: 0.934, Action: "play_pause"}))
	require.NoError(t, n.ProcessEvent(events.Event{Kind: events.KindEnd, Label: "tap"}))

	require.Len(t, s.messages, 1)
	assert.Equal(t, "Gesture tap detected (93%), action play_pause", s.messages[0])
	assert.Equal(t, []string{"SAW-Ring"}, s.titles)
}

func TestNotifierOptionallySendsEnd(t *testing.T) {
	t.Parallel()

	s := &mockSender{}
	n := NewNotifierWithSender(s, true)
	require.NoError(t, n.ProcessEvent(events.Event{Kind: events.KindEnd, Label: "swipe", Duration: 1200 * time.Millisecond}))
	assert.Equal(t, []string{"Gesture swipe ended after 1200 ms"}, s.messages)
}

func TestNotifierScrubsDeliveryErrors(t *testing.T) {
	t.Parallel()

	s := &mockSender{errs: []error{nil, errors.New("POST https://hooks.example.com/secret-token: 500")}}
	n := NewNotifierWithSender(s, false)

	err := n.ProcessEvent(events.Event{ID: "e1", Kind: events.KindStart, Label: "tap"})
	require.Error(t, err)
	assert.True(t, sawerrors.IsCategory(err, sawerrors.CategoryEventDispatch))
	assert.NotContains(t, err.Error(), "secret-token")
}

func TestMessageWithoutAction(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Gesture none detected (50%)", Message(events.Event{Kind: events.KindStart, Label: "none", Confidence: 0.5}))
}

func TestNewNotifierValidation(t *testing.T) {
	t.Parallel()

	_, err := NewNotifier(conf.NotifySettings{})
	require.Error(t, err)

	_, err = NewNotifier(conf.NotifySettings{URLs: []string{"nosuchservice://token@host"}})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "token@host")

	n, err := NewNotifier(conf.NotifySettings{URLs: []string{"logger://"}, Timeout: time.Second})
	require.NoError(t, err)
	assert.NotNil(t, n)
}
