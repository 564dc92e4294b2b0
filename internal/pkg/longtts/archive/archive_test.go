package archive_test

import (
	"context"
	"testing"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"longtts/internal/pkg/longtts/archive"
)

func startServer(t *testing.T) *server.Server {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	srv := test.RunServer(&opts)
	t.Cleanup(srv.Shutdown)
	return srv
}

func readObject(t *testing.T, url, bucket, key string) ([]byte, error) {
	t.Helper()

	nc, err := nats.Connect(url)
	require.NoError(t, err)
	defer nc.Close()

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	store, err := js.ObjectStore(context.Background(), bucket)
	require.NoError(t, err)
	return store.GetBytes(context.Background(), key)
}

func TestStore_Put(t *testing.T) {
	t.Parallel()

	srv := startServer(t)
	ctx := context.Background()

	store, err := archive.Connect(ctx, srv.ClientURL(), "speech-test")
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, "speech-test", store.Bucket())

	wav := []byte("RIFF....WAVEfmt fake")
	require.NoError(t, store.Put(ctx, "req-1.wav", wav))

	got, err := readObject(t, srv.ClientURL(), "speech-test", "req-1.wav")
	require.NoError(t, err)
	assert.Equal(t, wav, got)

	_, err = readObject(t, srv.ClientURL(), "speech-test", "missing.wav")
	require.ErrorIs(t, err, jetstream.ErrObjectNotFound)
}

func TestNew_BindsExistingBucket(t *testing.T) {
	t.Parallel()

	srv := startServer(t)
	ctx := context.Background()

	nc, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	first, err := archive.New(ctx, js, "")
	require.NoError(t, err)
	assert.Equal(t, archive.DefaultBucket, first.Bucket())
	require.NoError(t, first.Put(ctx, "a.wav", []byte("one")))

	second, err := archive.New(ctx, js, archive.DefaultBucket)
	require.NoError(t, err)
	require.NoError(t, second.Put(ctx, "b.wav", []byte("two")))

	got, err := readObject(t, srv.ClientURL(), archive.DefaultBucket, "a.wav")
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), got, "binding keeps existing objects")

	got, err = readObject(t, srv.ClientURL(), archive.DefaultBucket, "b.wav")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got)
}

func TestConnect_Unreachable(t *testing.T) {
	t.Parallel()

	_, err := archive.Connect(context.Background(), "nats://127.0.0.1:1", "x")
	require.Error(t, err)
}
