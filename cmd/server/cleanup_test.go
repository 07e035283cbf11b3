package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewCleanup_StopsServerBeforeClosingStorage(t *testing.T) {
	ctx := context.WithValue(context.Background(), ctxKey("test"), "marker")
	var callOrder []string

	server := &fakeServer{calls: &callOrder}
	broker := &fakeBroker{calls: &callOrder}
	store := &fakeStore{calls: &callOrder}
	closePhotos := func() error {
		callOrder = append(callOrder, "photosClose")
		return nil
	}

	cleanup := newCleanup(server, broker, closePhotos, store)
	cleanup(ctx)

	require.Equal(t, []string{"serverShutdown", "brokerClose", "photosClose", "storeClose"}, callOrder)
	require.Equal(t, "marker", server.receivedCtx.Value(ctxKey("test")))
}

func TestNewCleanup_ContinuesAfterErrors(t *testing.T) {
	var callOrder []string

	server := &fakeServer{calls: &callOrder, err: errors.New("deadline exceeded")}
	broker := &fakeBroker{calls: &callOrder}
	store := &fakeStore{calls: &callOrder}
	closePhotos := func() error {
		callOrder = append(callOrder, "photosClose")
		return errors.New("bucket gone")
	}

	newCleanup(server, broker, closePhotos, store)(context.Background())

	require.Equal(t, []string{"serverShutdown", "brokerClose", "photosClose", "storeClose"}, callOrder)
}

func TestMaskPassword(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"postgres with password", "postgres://hk:secret@db:5432/hk?sslmode=disable", "postgres://hk:xxxxxx@db:5432/hk?sslmode=disable"},
		{"no password", "postgres://hk@db/hk", "postgres://hk@db/hk"},
		{"sqlite memory", ":memory:", "[REDACTED]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, maskPassword(tt.in))
		})
	}
}

type ctxKey string

type fakeServer struct {
	calls       *[]string
	receivedCtx context.Context
	err         error
}

func (f *fakeServer) Shutdown(ctx context.Context) error {
	f.receivedCtx = ctx
	*f.calls = append(*f.calls, "serverShutdown")
	return f.err
}

type fakeBroker struct {
	calls *[]string
}

func (b *fakeBroker) Close() {
	*b.calls = append(*b.calls, "brokerClose")
}

type fakeStore struct {
	calls *[]string
}

func (s *fakeStore) Close() error {
	*s.calls = append(*s.calls, "storeClose")
	return nil
}
