// Package compliance holds the behavior every photo backend must share.
package compliance

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/housekeeping/internal/infrastructure/blob"
)

// RunBlobStoreComplianceTest runs a standard set of tests against a blob.Store.
// setup returns a fresh store and a cleanup function.
func RunBlobStoreComplianceTest(t *testing.T, setup func() (blob.Store, func())) {
	name := func() string {
		return "issues/" + uuid.NewString() + "/" + uuid.NewString() + ".png"
	}

	t.Run("UploadAndOpen", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()
		ctx := context.Background()

		objectName := name()
		url, err := store.Upload(ctx, objectName, "image/png", []byte("png-bytes"))
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(url, "/"+objectName), url)

		obj, err := store.Open(ctx, objectName)
		require.NoError(t, err)
		defer obj.Close()

		data, err := io.ReadAll(obj)
		require.NoError(t, err)
		assert.Equal(t, []byte("png-bytes"), data)
		assert.Equal(t, "image/png", obj.ContentType)
		assert.Equal(t, int64(len("png-bytes")), obj.Size)
	})

	t.Run("UploadOverwrites", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()
		ctx := context.Background()

		objectName := name()
		_, err := store.Upload(ctx, objectName, "image/png", []byte("first"))
		require.NoError(t, err)
		_, err = store.Upload(ctx, objectName, "image/png", []byte("second"))
		require.NoError(t, err)

		obj, err := store.Open(ctx, objectName)
		require.NoError(t, err)
		defer obj.Close()
		data, err := io.ReadAll(obj)
		require.NoError(t, err)
		assert.Equal(t, []byte("second"), data)
	})

	t.Run("OpenMissing", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()

		_, err := store.Open(context.Background(), name())
		assert.ErrorIs(t, err, blob.ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()
		ctx := context.Background()

		objectName := name()
		_, err := store.Upload(ctx, objectName, "image/png", []byte("x"))
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, objectName))
		_, err = store.Open(ctx, objectName)
		assert.ErrorIs(t, err, blob.ErrNotFound)

		assert.ErrorIs(t, store.Delete(ctx, objectName), blob.ErrNotFound)
	})

	t.Run("RejectsInvalidNames", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()
		ctx := context.Background()

		_, err := store.Upload(ctx, "../escape.png", "image/png", []byte("x"))
		assert.ErrorIs(t, err, blob.ErrInvalidName)
		_, err = store.Open(ctx, "/abs.png")
		assert.ErrorIs(t, err, blob.ErrInvalidName)
	})
}
