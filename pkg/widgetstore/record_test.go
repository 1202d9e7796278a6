package widgetstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/illmade-knight/go-widgetflow/pkg/widgetstore"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestNewRecordWidgetStore_Validation(t *testing.T) {
	_, err := widgetstore.NewRecordWidgetStore(nil, widgetstore.RecordWidgetStoreConfig{CollectionName: "widgets"}, zerolog.Nop())
	assert.Error(t, err)

	_, err = widgetstore.NewRecordWidgetStore(newMockRecordPutter(), widgetstore.RecordWidgetStoreConfig{}, zerolog.Nop())
	assert.Error(t, err)

	_, err = widgetstore.NewFirestorePutter(nil)
	assert.Error(t, err)
}

func TestRecordWidgetStore_PutWidget(t *testing.T) {
	putter := newMockRecordPutter()
	store, err := widgetstore.NewRecordWidgetStore(putter, widgetstore.RecordWidgetStoreConfig{CollectionName: "widgets"}, zerolog.Nop())
	require.NoError(t, err)

	id, err := store.PutWidget(context.Background(), newCreateRequest())

	require.NoError(t, err)
	assert.Equal(t, "w1", id)
	assert.Equal(t, map[string]interface{}{
		"widgetId":    "w1",
		"owner":       "Alice Smith",
		"label":       "Widget A",
		"description": "A red widget",
		"color":       "red",
	}, putter.records["widgets/w1"])
}

func TestRecordWidgetStore_PutWidgetIsIdempotent(t *testing.T) {
	putter := newMockRecordPutter()
	store, err := widgetstore.NewRecordWidgetStore(putter, widgetstore.RecordWidgetStoreConfig{CollectionName: "widgets"}, zerolog.Nop())
	require.NoError(t, err)

	_, err = store.PutWidget(context.Background(), newCreateRequest())
	require.NoError(t, err)
	first := putter.records["widgets/w1"]
	_, err = store.PutWidget(context.Background(), newCreateRequest())
	require.NoError(t, err)

	assert.Len(t, putter.records, 1)
	assert.Equal(t, first, putter.records["widgets/w1"])
	assert.Equal(t, 2, putter.calls)
}

func TestRecordWidgetStore_WriteFailureIsReturned(t *testing.T) {
	putter := newMockRecordPutter()
	putter.err = status.Error(codes.Unavailable, "backend unavailable")
	store, err := widgetstore.NewRecordWidgetStore(putter, widgetstore.RecordWidgetStoreConfig{CollectionName: "widgets"}, zerolog.Nop())
	require.NoError(t, err)

	id, err := store.PutWidget(context.Background(), newCreateRequest())

	require.Error(t, err)
	assert.Empty(t, id)
	var writeErr *widgetstore.StorageWriteError
	require.True(t, errors.As(err, &writeErr))
	assert.Equal(t, "record", writeErr.Backend)
	assert.Equal(t, codes.Unavailable, status.Code(writeErr.Err))
}
