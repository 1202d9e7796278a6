package widgetstore_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/illmade-knight/go-widgetflow/pkg/widgetstore"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNotifyingStore_Validation(t *testing.T) {
	_, err := widgetstore.NewNotifyingStore(nil, &mockPublisher{}, zerolog.Nop())
	assert.Error(t, err)
	_, err = widgetstore.NewNotifyingStore(widgetstore.NewInMemoryWidgetStore(zerolog.Nop()), nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestNotifyingStore_PublishesAfterWrite(t *testing.T) {
	inner := widgetstore.NewInMemoryWidgetStore(zerolog.Nop())
	pub := &mockPublisher{}
	store, err := widgetstore.NewNotifyingStore(inner, pub, zerolog.Nop())
	require.NoError(t, err)

	id, err := store.PutWidget(context.Background(), newCreateRequest())

	require.NoError(t, err)
	assert.Equal(t, "w1", id)
	assert.Equal(t, 1, inner.Len())
	require.Len(t, pub.messages, 1)
	assert.Equal(t, "WidgetStored", pub.attrs[0]["event_type"])
	assert.Equal(t, "w1", pub.attrs[0]["widget_id"])

	var event struct {
		EventID   string            `json:"eventId"`
		RequestID string            `json:"requestId"`
		WidgetID  string            `json:"widgetId"`
		Location  string            `json:"location"`
		Widget    map[string]string `json:"widget"`
	}
	require.NoError(t, json.Unmarshal(pub.messages[0], &event))
	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, "req-1", event.RequestID)
	assert.Equal(t, "w1", event.Location)
	assert.Equal(t, "red", event.Widget["color"])
}

func TestNotifyingStore_PublishFailureDoesNotFailWrite(t *testing.T) {
	inner := widgetstore.NewInMemoryWidgetStore(zerolog.Nop())
	store, err := widgetstore.NewNotifyingStore(inner, &mockPublisher{err: errors.New("topic deleted")}, zerolog.Nop())
	require.NoError(t, err)

	id, err := store.PutWidget(context.Background(), newCreateRequest())

	require.NoError(t, err)
	assert.Equal(t, "w1", id)
	assert.Equal(t, 1, inner.Len())
}

func TestNotifyingStore_WriteFailureSkipsPublish(t *testing.T) {
	inner := widgetstore.NewInMemoryWidgetStore(zerolog.Nop())
	inner.FailWith(errors.New("disk full"))
	pub := &mockPublisher{}
	store, err := widgetstore.NewNotifyingStore(inner, pub, zerolog.Nop())
	require.NoError(t, err)

	_, err = store.PutWidget(context.Background(), newCreateRequest())

	require.Error(t, err)
	assert.Empty(t, pub.messages)
}
