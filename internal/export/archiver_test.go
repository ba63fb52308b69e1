package export

import (
	"bytes"
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/setbench/setbench/internal/errors"
	"github.com/setbench/setbench/internal/logging"
	"github.com/setbench/setbench/internal/storage"
)

func newTestArchiver(t *testing.T, compress bool) (*Archiver, *storage.LocalStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	a := NewArchiver(store, "/setbench/", compress, logging.Discard())
	a.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return a, store
}

func sampleArtifacts() []Artifact {
	return []Artifact{
		{Name: "metrics.csv", ContentType: "text/csv", Data: bytes.Repeat([]byte("db_create,db,1000\n"), 200)},
		{Name: "metrics.json", ContentType: "application/json", Data: []byte(`{"entry_count":0}`)},
	}
}

func TestArchive_CompressedRoundTrip(t *testing.T) {
	a, store := newTestArchiver(t, true)
	ctx := context.Background()

	m, err := a.Archive(ctx, sampleArtifacts())
	require.NoError(t, err)

	assert.Equal(t, "setbench/20260301T120000.000000000Z", m.Root)
	assert.Equal(t, m.Root+"/manifest.json", m.Key)
	require.Len(t, m.Entries, 2)

	csv := m.Entries[0]
	assert.Equal(t, m.Root+"/metrics.csv.sz", csv.Key)
	assert.True(t, csv.Compressed)
	assert.Less(t, csv.StoredSize, csv.RawSize)
	assert.Equal(t, Checksum(sampleArtifacts()[0].Data), csv.Checksum)

	got, err := a.Fetch(ctx, csv)
	require.NoError(t, err)
	assert.Equal(t, sampleArtifacts()[0].Data, got)

	exists, err := store.Exists(ctx, m.Key)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestArchive_Uncompressed(t *testing.T) {
	a, store := newTestArchiver(t, false)
	ctx := context.Background()

	m, err := a.Archive(ctx, sampleArtifacts())
	require.NoError(t, err)

	entry := m.Entries[1]
	assert.False(t, entry.Compressed)
	assert.Equal(t, entry.RawSize, entry.StoredSize)

	raw, err := store.Get(ctx, entry.Key)
	require.NoError(t, err)
	assert.Equal(t, sampleArtifacts()[1].Data, raw)
}

func TestLoadManifest(t *testing.T) {
	a, _ := newTestArchiver(t, true)
	ctx := context.Background()

	m, err := a.Archive(ctx, sampleArtifacts())
	require.NoError(t, err)

	loaded, err := a.LoadManifest(ctx, m.Key)
	require.NoError(t, err)
	assert.Equal(t, m.Entries, loaded.Entries)
	assert.True(t, m.CreatedAt.Equal(loaded.CreatedAt))

	keys, err := a.Archives(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{m.Key}, keys)
}

func TestFetch_ChecksumMismatch(t *testing.T) {
	a, store := newTestArchiver(t, false)
	ctx := context.Background()

	m, err := a.Archive(ctx, sampleArtifacts())
	require.NoError(t, err)

	_, err = store.Put(ctx, m.Entries[1].Key, []byte("tampered"))
	require.NoError(t, err)

	_, err = a.Fetch(ctx, m.Entries[1])
	require.Error(t, err)
	assert.Equal(t, errors.CodeDownloadFailed, errors.GetCode(err))
}

func TestFetch_Missing(t *testing.T) {
	a, _ := newTestArchiver(t, false)

	_, err := a.Fetch(context.Background(), Entry{Key: "setbench/none/metrics.csv"})
	require.Error(t, err)
	assert.Equal(t, errors.CodeObjectNotFound, errors.GetCode(err))
}

func TestArchive_RejectsBadInput(t *testing.T) {
	a, _ := newTestArchiver(t, false)
	ctx := context.Background()

	_, err := a.Archive(ctx, nil)
	assert.True(t, errors.IsInvalidConfiguration(err))

	for _, name := range []string{"", "a/b", ManifestName} {
		_, err := a.Archive(ctx, []Artifact{{Name: name, Data: []byte("x")}})
		assert.True(t, errors.IsInvalidConfiguration(err), "name %q", name)
	}
}

type failingStorage struct{ storage.ObjectStorage }

func (failingStorage) Put(context.Context, string, []byte) (string, error) {
	return "", storage.ErrUploadFailed
}

func (failingStorage) Location() string { return "nowhere" }

func TestArchive_UploadFailureIsRetryable(t *testing.T) {
	a := NewArchiver(failingStorage{}, "p", true, nil)

	_, err := a.Archive(context.Background(), sampleArtifacts())
	require.Error(t, err)
	assert.Equal(t, errors.CodeUploadFailed, errors.GetCode(err))
	assert.True(t, errors.IsRetryable(err))
	assert.True(t, stderrors.Is(err, storage.ErrUploadFailed))
}
