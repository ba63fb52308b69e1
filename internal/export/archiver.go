// Package export archives benchmark artifacts to object storage.
//
// Each archive lives under <prefix>/<timestamp>/ and holds one object per
// artifact plus a manifest.json describing them. Artifacts are optionally
// snappy-compressed; the manifest records a murmur3 64-bit checksum of the
// uncompressed bytes so a reader can verify what it fetched.
package export

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/golang/snappy"
	"github.com/spaolacci/murmur3"

	"github.com/setbench/setbench/internal/errors"
	"github.com/setbench/setbench/internal/logging"
	"github.com/setbench/setbench/internal/storage"
)

// ManifestName is the object name of the manifest inside an archive.
const ManifestName = "manifest.json"

const compressedSuffix = ".sz"

// Artifact is one named payload to archive.
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
}

// Entry describes one stored artifact.
type Entry struct {
	Name        string `json:"name"`
	Key         string `json:"key"`
	ContentType string `json:"content_type,omitempty"`
	RawSize     int    `json:"raw_size"`
	StoredSize  int    `json:"stored_size"`
	Compressed  bool   `json:"compressed"`
	Checksum    string `json:"checksum"`
	ETag        string `json:"etag,omitempty"`
}

// Manifest lists the contents of one archive.
type Manifest struct {
	CreatedAt time.Time `json:"created_at"`
	Location  string    `json:"location"`
	Root      string    `json:"root"`
	Key       string    `json:"key"`
	Entries   []Entry   `json:"entries"`
}

// Archiver writes artifacts to an ObjectStorage.
type Archiver struct {
	store    storage.ObjectStorage
	prefix   string
	compress bool
	logger   *slog.Logger

	// now is replaced in tests
	now func() time.Time
}

// NewArchiver creates an archiver writing under prefix.
func NewArchiver(store storage.ObjectStorage, prefix string, compress bool, logger *slog.Logger) *Archiver {
	return &Archiver{
		store:    store,
		prefix:   strings.Trim(prefix, "/"),
		compress: compress,
		logger:   logging.OrDefault(logger),
		now:      time.Now,
	}
}

// Checksum returns the hex murmur3 64-bit hash of data.
func Checksum(data []byte) string {
	return fmt.Sprintf("%016x", murmur3.Sum64(data))
}

// Archive stores every artifact then the manifest. An artifact with an empty
// name is rejected before anything is written.
func (a *Archiver) Archive(ctx context.Context, artifacts []Artifact) (*Manifest, error) {
	if len(artifacts) == 0 {
		return nil, errors.NewValidationError(errors.CodeInvalidConfiguration, "nothing to export")
	}
	for _, art := range artifacts {
		if art.Name == "" || strings.Contains(art.Name, "/") || art.Name == ManifestName {
			return nil, errors.NewValidationError(errors.CodeInvalidConfiguration,
				fmt.Sprintf("invalid artifact name %q", art.Name))
		}
	}

	createdAt := a.now().UTC()
	root := path.Join(a.prefix, createdAt.Format("20060102T150405.000000000Z"))

	manifest := &Manifest{
		CreatedAt: createdAt,
		Location:  a.store.Location(),
		Root:      root,
		Key:       path.Join(root, ManifestName),
		Entries:   make([]Entry, 0, len(artifacts)),
	}

	for _, art := range artifacts {
		entry := Entry{
			Name:        art.Name,
			Key:         path.Join(root, art.Name),
			ContentType: art.ContentType,
			RawSize:     len(art.Data),
			Checksum:    Checksum(art.Data),
		}

		stored := art.Data
		if a.compress {
			stored = snappy.Encode(nil, art.Data)
			entry.Key += compressedSuffix
			entry.Compressed = true
		}
		entry.StoredSize = len(stored)

		etag, err := a.store.Put(ctx, entry.Key, stored)
		if err != nil {
			return nil, errors.NewExportError(errors.CodeUploadFailed,
				fmt.Sprintf("failed to store %s", entry.Key), err)
		}
		entry.ETag = etag
		manifest.Entries = append(manifest.Entries, entry)
	}

	body, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, errors.NewInternalError("failed to encode manifest", err)
	}
	if _, err := a.store.Put(ctx, manifest.Key, body); err != nil {
		return nil, errors.NewExportError(errors.CodeUploadFailed, "failed to store manifest", err)
	}

	a.logger.Info("export archived",
		"location", manifest.Location,
		"root", root,
		"artifacts", len(manifest.Entries),
		"compressed", a.compress)

	return manifest, nil
}

// LoadManifest reads a manifest by key.
func (a *Archiver) LoadManifest(ctx context.Context, key string) (*Manifest, error) {
	body, err := a.get(ctx, key)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, errors.NewExportError(errors.CodeDownloadFailed, "corrupt manifest", err)
	}
	return &m, nil
}

// Fetch reads one artifact back, decompressing and verifying its checksum.
func (a *Archiver) Fetch(ctx context.Context, entry Entry) ([]byte, error) {
	data, err := a.get(ctx, entry.Key)
	if err != nil {
		return nil, err
	}

	if entry.Compressed {
		data, err = snappy.Decode(nil, data)
		if err != nil {
			return nil, errors.NewExportError(errors.CodeDownloadFailed,
				fmt.Sprintf("snappy decode of %s failed", entry.Key), err)
		}
	}

	if sum := Checksum(data); sum != entry.Checksum {
		return nil, errors.NewExportError(errors.CodeDownloadFailed, "checksum mismatch", nil).
			WithDetails(map[string]interface{}{"key": entry.Key, "want": entry.Checksum, "got": sum})
	}
	return data, nil
}

// Archives lists the manifest keys under the prefix, oldest first.
func (a *Archiver) Archives(ctx context.Context) ([]string, error) {
	keys, err := a.store.List(ctx, a.prefix)
	if err != nil {
		return nil, errors.NewExportError(errors.CodeDownloadFailed, "failed to list archives", err)
	}

	var manifests []string
	for _, k := range keys {
		if path.Base(k) == ManifestName {
			manifests = append(manifests, k)
		}
	}
	return manifests, nil
}

func (a *Archiver) get(ctx context.Context, key string) ([]byte, error) {
	data, err := a.store.Get(ctx, key)
	if err != nil {
		if stderrors.Is(err, storage.ErrObjectNotFound) {
			return nil, errors.NewExportError(errors.CodeObjectNotFound, fmt.Sprintf("%s not found", key), err)
		}
		return nil, errors.NewExportError(errors.CodeDownloadFailed, fmt.Sprintf("failed to read %s", key), err)
	}
	return data, nil
}
