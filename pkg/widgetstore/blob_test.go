package widgetstore_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/illmade-knight/go-widgetflow/pkg/blob"
	"github.com/illmade-knight/go-widgetflow/pkg/blob/blobtest"
	"github.com/illmade-knight/go-widgetflow/pkg/widgetstore"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBlobWidgetStore_Validation(t *testing.T) {
	_, err := widgetstore.NewBlobWidgetStore(nil, widgetstore.BlobWidgetStoreConfig{BucketName: "widgets"}, zerolog.Nop())
	assert.Error(t, err)

	_, err = widgetstore.NewBlobWidgetStore(blobtest.NewClient(), widgetstore.BlobWidgetStoreConfig{}, zerolog.Nop())
	assert.Error(t, err)
}

func TestBlobWidgetStore_PutWidget(t *testing.T) {
	// Arrange
	client := blobtest.NewClient("widget-bucket")
	store, err := widgetstore.NewBlobWidgetStore(client, widgetstore.BlobWidgetStoreConfig{BucketName: "widget-bucket"}, zerolog.Nop())
	require.NoError(t, err)

	// Act
	key, err := store.PutWidget(context.Background(), newCreateRequest())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "widgets/alice-smith/w1", key)

	bucket := client.CreateBucket("widget-bucket")
	obj, ok := bucket.Get("widgets/alice-smith/w1")
	require.True(t, ok, "object should be stored at the widget key")
	assert.Equal(t, "application/json", obj.ContentType)
	assert.JSONEq(t, `{"widgetId":"w1","owner":"Alice Smith","label":"Widget A","description":"A red widget","color":"red"}`, string(obj.Body))
}

func TestBlobWidgetStore_PutWidgetIsIdempotent(t *testing.T) {
	client := blobtest.NewClient("widget-bucket")
	store, err := widgetstore.NewBlobWidgetStore(client, widgetstore.BlobWidgetStoreConfig{BucketName: "widget-bucket"}, zerolog.Nop())
	require.NoError(t, err)
	bucket := client.CreateBucket("widget-bucket")

	_, err = store.PutWidget(context.Background(), newCreateRequest())
	require.NoError(t, err)
	first, _ := bucket.Get("widgets/alice-smith/w1")

	_, err = store.PutWidget(context.Background(), newCreateRequest())
	require.NoError(t, err)
	second, _ := bucket.Get("widgets/alice-smith/w1")

	assert.Equal(t, []string{"widgets/alice-smith/w1"}, bucket.Keys())
	assert.Equal(t, first, second)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(second.Body, &decoded))
	assert.Equal(t, "w1", decoded["widgetId"])
}

func TestBlobWidgetStore_WriteFailureIsReturned(t *testing.T) {
	client := blobtest.NewClient("widget-bucket")
	bucket := client.CreateBucket("widget-bucket")
	bucket.WriteErr = errors.New("quota exceeded")
	store, err := widgetstore.NewBlobWidgetStore(client, widgetstore.BlobWidgetStoreConfig{BucketName: "widget-bucket"}, zerolog.Nop())
	require.NoError(t, err)

	key, err := store.PutWidget(context.Background(), newCreateRequest())

	require.Error(t, err)
	assert.Empty(t, key)
	var writeErr *widgetstore.StorageWriteError
	require.True(t, errors.As(err, &writeErr))
	assert.Equal(t, "blob", writeErr.Backend)
	assert.Equal(t, "w1", writeErr.WidgetID)
	assert.Empty(t, bucket.Keys())
}

func TestBlobWidgetStore_MissingBucket(t *testing.T) {
	store, err := widgetstore.NewBlobWidgetStore(blobtest.NewClient(), widgetstore.BlobWidgetStoreConfig{BucketName: "gone"}, zerolog.Nop())
	require.NoError(t, err)

	_, err = store.PutWidget(context.Background(), newCreateRequest())

	assert.ErrorIs(t, err, blob.ErrBucketNotExist)
}
