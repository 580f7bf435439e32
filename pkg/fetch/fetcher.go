package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/msg-photos/pkg/config"
	"github.com/Sriram-PR/msg-photos/pkg/utils"
)

const tempFilePattern = ".msg-photos-*.part"

// Fetcher downloads images to disk with retries, per-host concurrency limits and pacing
type Fetcher struct {
	client    *http.Client
	policy    RetryPolicy
	hosts     *HostSemaphorePool
	pacer     *RateLimiter
	userAgent string
	log       *logrus.Entry
}

// NewFetcher creates a Fetcher from a validated config
func NewFetcher(client *http.Client, cfg *config.AppConfig, log *logrus.Entry) *Fetcher {
	return &Fetcher{
		client: client,
		policy: RetryPolicy{
			MaxAttempts:  cfg.MaxAttempts,
			InitialDelay: cfg.InitialRetryDelay,
			MaxDelay:     cfg.MaxRetryDelay,
		},
		hosts:     NewHostSemaphorePool(cfg.MaxRequestsPerHost, log),
		pacer:     NewRateLimiter(cfg.DelayPerHost, log),
		userAgent: cfg.UserAgent,
		log:       log,
	}
}

// Download fetches rawURL into destPath. The body is streamed into a temporary file next to
// destPath and renamed into place only after a complete 2xx response, so a failed download
// never leaves a file at destPath. Any transport error or non-2xx status is retried.
// When attempts run out the error wraps ErrRetryFailed; local write failures wrap ErrFilesystem.
func (f *Fetcher) Download(ctx context.Context, rawURL, destPath string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %w: %w", utils.ErrSkipped, utils.ErrRequestCreation, err)
	}
	host := u.Hostname()
	dlLog := f.log.WithFields(logrus.Fields{"url": rawURL, "dest": destPath})

	err = f.policy.Do(ctx, dlLog, func(ctx context.Context, attempt int) (Outcome, error) {
		return f.attempt(ctx, u, host, destPath)
	})
	if err != nil {
		return err
	}
	dlLog.Debug("Downloaded")
	return nil
}

func (f *Fetcher) attempt(ctx context.Context, u *url.URL, host, destPath string) (Outcome, error) {
	if err := f.hosts.Acquire(ctx, host); err != nil {
		return OutcomeAbort, err
	}
	defer f.hosts.Release(host)

	if err := f.pacer.Wait(ctx, host); err != nil {
		return OutcomeAbort, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return OutcomeAbort, fmt.Errorf("%w: %w: %w", utils.ErrSkipped, utils.ErrRequestCreation, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			if ctx.Err() != nil {
				return OutcomeAbort, err
			}
		}
		return OutcomeRetry, err
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return OutcomeRetry, statusError(resp)
	}

	written, err := writeAtomically(destPath, resp.Body)
	if err != nil {
		if errors.Is(err, utils.ErrFilesystem) {
			return OutcomeAbort, err
		}
		return OutcomeRetry, err
	}
	f.log.WithFields(logrus.Fields{"dest": destPath, "bytes": written}).Debug("Wrote image")
	return OutcomeSuccess, nil
}

func statusError(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %s", utils.ErrServerHTTPError, resp.Status)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: status %s", utils.ErrClientHTTPError, resp.Status)
	default:
		return fmt.Errorf("%w: status %s", utils.ErrOtherHTTPError, resp.Status)
	}
}

// writeAtomically copies body into a temp file in destPath's directory and renames it into place.
// Body read errors wrap ErrResponseBodyRead; everything else wraps ErrFilesystem.
func writeAtomically(destPath string, body io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(destPath), tempFilePattern)
	if err != nil {
		return 0, fmt.Errorf("%w: create temp file: %w", utils.ErrFilesystem, err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmp, body)
	if err != nil {
		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			return written, fmt.Errorf("%w: write '%s': %w", utils.ErrFilesystem, tmpPath, err)
		}
		return written, fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, err)
	}
	if err := tmp.Close(); err != nil {
		return written, fmt.Errorf("%w: close '%s': %w", utils.ErrFilesystem, tmpPath, err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return written, fmt.Errorf("%w: rename to '%s': %w", utils.ErrFilesystem, destPath, err)
	}
	committed = true
	return written, nil
}
