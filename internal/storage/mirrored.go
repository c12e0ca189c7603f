package storage

import (
	"context"

	"github.com/rs/zerolog"
)

// Mirrored writes to Primary and then, best effort, to Secondary. The
// primary's outcome is returned; secondary failures are only logged.
type Mirrored struct {
	Primary   BlobStore
	Secondary BlobStore
	Logger    zerolog.Logger
}

// Name implements BlobStore.
func (m *Mirrored) Name() string { return m.Primary.Name() + "+" + m.Secondary.Name() }

// Put implements BlobStore.
func (m *Mirrored) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	url, err := m.Primary.Put(ctx, key, data, contentType)
	if err != nil {
		return "", err
	}
	if _, serr := m.Secondary.Put(ctx, key, data, contentType); serr != nil {
		m.Logger.Warn().Err(serr).Str("key", key).Str("store", m.Secondary.Name()).Msg("mirror write failed")
	}
	return url, nil
}
