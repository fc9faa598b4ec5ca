package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/time/rate"

	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/apperrors"
	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/models"
	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/youtube"
)

// TokenProvider supplies access tokens for a channel. *oauth.Manager
// implements it.
type TokenProvider interface {
	ValidToken(ctx context.Context, channelID string) (string, error)
	// ForceRefresh discards the current access token; called once per
	// transfer when the remote rejects a token mid-flight.
	ForceRefresh(ctx context.Context, channelID string) (string, error)
}

// Config carries the engine tunables. Zero values fall back to defaults.
type Config struct {
	ChunkSize      int64
	MaxRetries     int
	RetryBaseDelay time.Duration
	// BandwidthLimit caps aggregate upload throughput in bytes/sec across
	// all transfers sharing this engine. 0 means unlimited.
	BandwidthLimit int64
	SpeedWindow    time.Duration
}

const (
	defaultChunkSize      = 256 << 20 // 256 MiB
	defaultMaxRetries     = 3
	defaultRetryBaseDelay = 2 * time.Second
	defaultSpeedWindow    = 30 * time.Second
)

// Engine moves bytes from a file reference to the remote API under the
// resumable protocol. Chunks for one transfer are strictly ordered; the
// engine itself holds no per-session state and is shared by all sessions.
type Engine struct {
	remote     youtube.RemoteHost
	tokens     TokenProvider
	chunkSize  int64
	maxRetries int
	baseDelay  time.Duration
	limiter    *rate.Limiter
	windowSpan time.Duration
	now        func() time.Time
}

func New(remote youtube.RemoteHost, tokens TokenProvider, cfg Config) *Engine {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = defaultRetryBaseDelay
	}
	if cfg.SpeedWindow <= 0 {
		cfg.SpeedWindow = defaultSpeedWindow
	}
	return &Engine{
		remote:     remote,
		tokens:     tokens,
		chunkSize:  cfg.ChunkSize,
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.RetryBaseDelay,
		limiter:    newBandwidthLimiter(cfg.BandwidthLimit),
		windowSpan: cfg.SpeedWindow,
		now:        time.Now,
	}
}

// Result is what a finished transfer hands back to the coordinator.
type Result struct {
	VideoID string
	// RetryCount is the number of chunk attempts that failed and were
	// retried during this transfer.
	RetryCount int
}

// StartRemoteSession declares the file and metadata to the remote API and
// returns the resumable session handle. The handle is issued exactly once;
// losing it means starting over with a fresh session.
func (e *Engine) StartRemoteSession(ctx context.Context, channelID string, ref models.FileReference, meta models.VideoMetadata) (string, error) {
	token, err := e.tokens.ValidToken(ctx, channelID)
	if err != nil {
		return "", err
	}
	return e.remote.StartSession(ctx, token, meta, ref.SizeBytes, ref.MimeType)
}

// Transfer uploads the whole file from offset zero.
func (e *Engine) Transfer(ctx context.Context, sessionURL, channelID string, src io.ReadSeeker, total int64, onProgress func(Progress)) (Result, error) {
	return e.run(ctx, sessionURL, channelID, src, total, 0, onProgress)
}

// Resume queries the remote for the confirmed offset and continues from
// there, re-reading the source from that offset. Bytes before it are never
// re-sent.
func (e *Engine) Resume(ctx context.Context, sessionURL, channelID string, src io.ReadSeeker, total int64, onProgress func(Progress)) (Result, error) {
	token, err := e.token(ctx, channelID)
	if err != nil {
		return Result{}, err
	}
	confirmed, err := e.remote.QueryOffset(ctx, sessionURL, token, total)
	if err != nil {
		return Result{}, err
	}
	if confirmed.Done {
		return Result{VideoID: confirmed.VideoID}, nil
	}
	return e.run(ctx, sessionURL, channelID, src, total, confirmed.ConfirmedOffset, onProgress)
}

func (e *Engine) run(ctx context.Context, sessionURL, channelID string, src io.ReadSeeker, total, offset int64, onProgress func(Progress)) (Result, error) {
	start := e.now()
	window := newSpeedWindow(e.windowSpan)
	window.observe(start, offset)

	var res Result
	refreshed := false

	for offset < total {
		// Cancellation is cooperative and checked at chunk boundaries.
		if ctx.Err() != nil {
			return res, apperrors.ErrCancelled
		}

		chunk, next, err := e.sendWithRetry(ctx, sessionURL, channelID, src, offset, total, &refreshed, &res.RetryCount)
		if err != nil {
			return res, err
		}
		offset = next

		if onProgress != nil {
			now := e.now()
			window.observe(now, offset)
			onProgress(Progress{
				BytesUploaded: offset,
				TotalBytes:    total,
				Percent:       float64(offset) / float64(total) * 100,
				Elapsed:       now.Sub(start),
				SpeedBps:      window.rate(),
			})
		}

		if chunk.Done {
			res.VideoID = chunk.VideoID
			return res, nil
		}
	}

	// All bytes confirmed but the remote never produced a video id.
	return res, fmt.Errorf("%w: transfer confirmed %d/%d bytes without completing", apperrors.ErrInternal, offset, total)
}

// sendWithRetry sends the chunk starting at offset, retrying transient
// failures with exponential backoff and performing at most one
// refresh-and-resume when the access token expires mid-transfer.
func (e *Engine) sendWithRetry(ctx context.Context, sessionURL, channelID string, src io.ReadSeeker, offset, total int64, refreshed *bool, retryCount *int) (youtube.ChunkResult, int64, error) {
	length := e.chunkSize
	if remaining := total - offset; remaining < length {
		length = remaining
	}

	attempts := 0
	for {
		if ctx.Err() != nil {
			return youtube.ChunkResult{}, 0, apperrors.ErrCancelled
		}

		token, err := e.token(ctx, channelID)
		if err != nil {
			return youtube.ChunkResult{}, 0, err
		}

		// Every attempt re-reads the chunk from the source: the previous
		// attempt may have consumed part of the reader.
		if _, seekErr := src.Seek(offset, io.SeekStart); seekErr != nil {
			return youtube.ChunkResult{}, 0, fmt.Errorf("failed to seek source to offset %d: %w", offset, seekErr)
		}
		reader := e.wrapReader(ctx, io.LimitReader(src, length))

		chunk, err := e.remote.SendChunk(ctx, sessionURL, token, reader, offset, length, total)
		if err == nil {
			if chunk.Done {
				return chunk, total, nil
			}
			if chunk.ConfirmedOffset <= offset {
				// The remote accepted the request but confirmed no new
				// bytes; retry rather than loop forever at this offset.
				err = apperrors.Transientf("remote confirmed no progress at offset %d", offset)
			} else {
				return chunk, chunk.ConfirmedOffset, nil
			}
		}

		if errors.Is(err, apperrors.ErrAuthRejected) && !*refreshed {
			// Token expired mid-transfer: refresh once and continue from
			// the remote's confirmed offset. No restart from zero.
			*refreshed = true
			if _, refreshErr := e.tokens.ForceRefresh(ctx, channelID); refreshErr != nil {
				return youtube.ChunkResult{}, 0, e.mapTokenErr(refreshErr)
			}
			freshToken, tokErr := e.token(ctx, channelID)
			if tokErr != nil {
				return youtube.ChunkResult{}, 0, tokErr
			}
			confirmed, queryErr := e.remote.QueryOffset(ctx, sessionURL, freshToken, total)
			if queryErr == nil {
				if confirmed.Done {
					return confirmed, total, nil
				}
				offset = confirmed.ConfirmedOffset
				length = e.chunkSize
				if remaining := total - offset; remaining < length {
					length = remaining
				}
			}
			continue
		}

		if apperrors.IsTransient(err) && attempts < e.maxRetries {
			attempts++
			*retryCount++
			if sleepErr := e.backoff(ctx, attempts); sleepErr != nil {
				return youtube.ChunkResult{}, 0, apperrors.ErrCancelled
			}
			continue
		}

		return youtube.ChunkResult{}, 0, err
	}
}

// token fetches a valid access token, mapping a credential that vanished
// mid-transfer (user disconnected the channel) to AuthRevoked.
func (e *Engine) token(ctx context.Context, channelID string) (string, error) {
	token, err := e.tokens.ValidToken(ctx, channelID)
	if err != nil {
		return "", e.mapTokenErr(err)
	}
	return token, nil
}

func (e *Engine) mapTokenErr(err error) error {
	if errors.Is(err, apperrors.ErrNoSuchAccount) {
		return fmt.Errorf("%w: channel disconnected during transfer", apperrors.ErrAuthRevoked)
	}
	return err
}

func (e *Engine) wrapReader(ctx context.Context, r io.Reader) io.Reader {
	if e.limiter == nil {
		return r
	}
	return &rateLimitedReader{r: r, limiter: e.limiter, ctx: ctx}
}

// backoff sleeps for baseDelay doubled per attempt, respecting cancellation.
func (e *Engine) backoff(ctx context.Context, attempt int) error {
	delay := e.baseDelay << (attempt - 1)
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
