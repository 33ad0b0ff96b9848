package eventbus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	b := New()
	var got interface{}
	b.Subscribe(TopicBlockAccepted, func(payload interface{}) { got = payload })

	b.Publish(TopicBlockAccepted, "block-1")
	require.Equal(t, "block-1", got)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	calls := 0
	id := b.Subscribe(TopicTransactionAdmitted, func(interface{}) { calls++ })

	b.Publish(TopicTransactionAdmitted, nil)
	b.Unsubscribe(TopicTransactionAdmitted, id)
	b.Publish(TopicTransactionAdmitted, nil)

	require.Equal(t, 1, calls)
}

func TestPublishWithNoSubscribersIsNoop(t *testing.T) {
	b := New()
	require.NotPanics(t, func() { b.Publish(TopicBlockAccepted, nil) })
}
