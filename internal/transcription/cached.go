package transcription

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/therealutkarshpriyadarshi/liturgia/internal/logging"
	"github.com/therealutkarshpriyadarshi/liturgia/internal/metrics"
	"github.com/therealutkarshpriyadarshi/liturgia/internal/subtitle"
)

// SegmentCache stores transcriptions by audio checksum. *cache.Cache satisfies it.
// A prompted transcription is keyed by the audio and prompt together.
type SegmentCache interface {
	GetSegments(ctx context.Context, checksum string) ([]subtitle.Segment, bool, error)
	SetSegments(ctx context.Context, checksum string, segments []subtitle.Segment, ttl time.Duration) error
}

// Cached skips transcription for audio it has already seen
type Cached struct {
	next   Transcriber
	store  SegmentCache
	ttl    time.Duration
	logger *logging.Logger
}

// NewCached wraps next with a transcript cache
func NewCached(next Transcriber, store SegmentCache, ttl time.Duration, logger *logging.Logger) *Cached {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Cached{next: next, store: store, ttl: ttl, logger: logger.WithComponent("transcript-cache")}
}

// Transcribe returns cached segments when available. Cache failures are
// logged and never fail the transcription.
func (c *Cached) Transcribe(ctx context.Context, audioPath string, opts Options) ([]subtitle.Segment, error) {
	checksum, err := fileChecksum(audioPath)
	if err != nil {
		return nil, err
	}
	if prompt := opts.prompt(); prompt != "" {
		sum := sha256.Sum256([]byte(prompt))
		checksum += "-" + hex.EncodeToString(sum[:8])
	}

	segments, ok, err := c.store.GetSegments(ctx, checksum)
	if err != nil {
		c.logger.WithError(err).Warn("Transcript cache lookup failed")
	}
	if ok {
		metrics.RecordCacheAccess("transcript", true)
		return segments, nil
	}
	metrics.RecordCacheAccess("transcript", false)

	segments, err = c.next.Transcribe(ctx, audioPath, opts)
	if err != nil {
		return nil, err
	}

	if err := c.store.SetSegments(ctx, checksum, segments, c.ttl); err != nil {
		c.logger.WithError(err).Warn("Transcript cache store failed")
	}
	return segments, nil
}

func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open audio: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash audio: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
