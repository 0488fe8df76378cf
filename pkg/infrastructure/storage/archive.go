package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/civil"

	shared "github.com/fitline/server/pkg"
	"github.com/fitline/server/pkg/types"
)

// RawArchive keeps upstream payloads as received. Writes are best-effort:
// failures are logged and never reach the caller.
type RawArchive struct {
	Store  shared.BlobStore
	Bucket string
	Logger *slog.Logger
	Now    func() time.Time
}

// ObjectName is raw/{provider}/{user}/{yyyy-mm-dd}/{resource}-{unix nanos}.json.
func (a *RawArchive) ObjectName(userID string, provider types.Provider, resource string, day civil.Date) string {
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	return fmt.Sprintf("raw/%s/%s/%s/%s-%d.json", provider, userID, day, resource, now().UnixNano())
}

func (a *RawArchive) Archive(ctx context.Context, userID string, provider types.Provider, resource string, day civil.Date, payload []byte) {
	if a == nil || a.Store == nil || a.Bucket == "" {
		return
	}
	name := a.ObjectName(userID, provider, resource, day)
	if err := a.Store.Write(ctx, a.Bucket, name, payload); err != nil {
		logger := a.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("Failed to archive raw payload", "object", name, "error", err)
	}
}

// Load returns an archived payload by object name.
func (a *RawArchive) Load(ctx context.Context, name string) ([]byte, error) {
	if a == nil || a.Store == nil || a.Bucket == "" {
		return nil, fmt.Errorf("%w: raw archive bucket", shared.ErrConfigurationMissing)
	}
	return a.Store.Read(ctx, a.Bucket, name)
}
