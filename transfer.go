package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// ==================== TRANSFER PIPELINE ====================
//
// Two strictly sequential stages per request: pull the file out of
// Mega into a temp file, then push the temp file to Gofile. Each
// request runs on its own goroutine; a weighted semaphore caps how
// many move bytes at once, and a user can only have one running.

type TransferResult struct {
	FileName string
	Size     int64
	URL      string
}

type TransferPipeline struct {
	mega   *MegaClient
	gofile *GofileClient
	cfg    *Config
	sem    *semaphore.Weighted

	mu     sync.Mutex
	active map[int64]context.CancelFunc
}

func NewTransferPipeline(cfg *Config, mega *MegaClient, gofile *GofileClient) *TransferPipeline {
	return &TransferPipeline{
		mega:   mega,
		gofile: gofile,
		cfg:    cfg,
		sem:    semaphore.NewWeighted(cfg.Transfer.MaxConcurrent),
		active: make(map[int64]context.CancelFunc),
	}
}

// Transfer runs one request end to end. It claims the per-user slot,
// so a second link from the same user is rejected while one runs.
func (p *TransferPipeline) Transfer(parent context.Context, req *TransferRequest, reporter *ProgressReporter) (*TransferResult, error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	if err := p.register(req.UserID, cancel); err != nil {
		return nil, err
	}
	defer p.unregister(req.UserID)

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer p.sem.Release(1)

	return p.run(ctx, req, reporter)
}

// Cancel aborts the user's running transfer, if any.
func (p *TransferPipeline) Cancel(userID int64) bool {
	p.mu.Lock()
	cancel, ok := p.active[userID]
	p.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

func (p *TransferPipeline) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

func (p *TransferPipeline) register(userID int64, cancel context.CancelFunc) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.active[userID]; busy {
		return fmt.Errorf("%w: you already have a transfer running", ErrInvalidOperation)
	}
	p.active[userID] = cancel
	return nil
}

func (p *TransferPipeline) unregister(userID int64) {
	p.mu.Lock()
	delete(p.active, userID)
	p.mu.Unlock()
}

func (p *TransferPipeline) run(ctx context.Context, req *TransferRequest, reporter *ProgressReporter) (*TransferResult, error) {
	// Resolve the link first: name, size, download URL. No content
	// bytes are fetched yet, so the size limit check below aborts
	// free of charge.
	var file *MegaFile
	err := p.withRetry(ctx, "mega file info", func() error {
		var ferr error
		file, ferr = p.mega.FileInfo(ctx, req.Link)
		return ferr
	})
	if err != nil {
		return nil, err
	}

	maxBytes := p.cfg.maxSizeBytes()
	if maxBytes > 0 && file.Size > maxBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes, the limit is %d",
			ErrSourceTooLarge, file.Name, file.Size, maxBytes)
	}

	fmt.Printf("📥 [TRANSFER %s] %s (%d bytes) for user %d\n", req.ID, file.Name, file.Size, req.UserID)

	tmp, err := os.CreateTemp("", "megofile-*")
	if err != nil {
		return nil, fmt.Errorf("temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	// Stage 1: download. Every attempt starts the file over.
	err = p.withRetry(ctx, "mega download", func() error {
		if _, serr := tmp.Seek(0, io.SeekStart); serr != nil {
			return serr
		}
		if terr := tmp.Truncate(0); terr != nil {
			return terr
		}
		if reporter != nil {
			reporter.StartStage(StageDownload, file.Name, file.Size)
		}
		dst := io.Writer(tmp)
		if maxBytes > 0 {
			// Guards against the advertised size lying.
			dst = &limitWriter{w: tmp, remaining: maxBytes}
		}
		return p.mega.Download(ctx, file, dst, reporter)
	})
	if err != nil {
		return nil, err
	}

	// Stage 2: upload.
	var link string
	err = p.withRetry(ctx, "gofile upload", func() error {
		if _, serr := tmp.Seek(0, io.SeekStart); serr != nil {
			return serr
		}
		server, uerr := p.gofile.PickServer(ctx)
		if uerr != nil {
			return uerr
		}
		if reporter != nil {
			reporter.StartStage(StageUpload, file.Name, file.Size)
		}
		link, uerr = p.gofile.Upload(ctx, server, file.Name, tmp, file.Size, reporter)
		return uerr
	})
	if err != nil {
		return nil, err
	}

	fmt.Printf("✅ [TRANSFER %s] Done: %s\n", req.ID, link)
	return &TransferResult{FileName: file.Name, Size: file.Size, URL: link}, nil
}

// withRetry reruns a stage on transient failures with linear backoff.
// Permanent failures and context cancellation bail out immediately.
func (p *TransferPipeline) withRetry(ctx context.Context, op string, fn func() error) error {
	attempts := p.cfg.Transfer.RetryAttempts
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil || !isTransient(err) || ctx.Err() != nil {
			return err
		}
		if attempt < attempts {
			wait := time.Duration(attempt) * p.cfg.retryBackoff()
			fmt.Printf("⚠️ [RETRY] %s failed (attempt %d/%d), retrying in %s: %v\n", op, attempt, attempts, wait, err)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return err
}

// limitWriter aborts the stream as soon as more bytes arrive than the
// configured ceiling allows.
type limitWriter struct {
	w         io.Writer
	remaining int64
}

func (lw *limitWriter) Write(p []byte) (int, error) {
	lw.remaining -= int64(len(p))
	if lw.remaining < 0 {
		return 0, fmt.Errorf("%w: size limit exceeded mid-stream", ErrSourceTooLarge)
	}
	return lw.w.Write(p)
}
