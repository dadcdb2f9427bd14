// Package audit implements the append-only audit trail for the OpenRide
// backend: sanitization of sensitive payload fields, the recorder that writes
// audit records to PostgreSQL, and shippers that copy records to secondary
// destinations. Audit records are intentionally separate from application
// logs because they have different consumers and retention requirements —
// application logs are ephemeral debug output consumed by on-call engineers,
// while audit records are immutable evidence consumed by trust-and-safety
// and compliance teams. The Shipper interface lets records be routed to a
// SIEM or log aggregator independently of the database write.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/openride/openride/internal/config"
	"github.com/openride/openride/internal/db/models"
)

// Shipper delivers audit records to a secondary destination. Shipping is
// best-effort: a shipper failure never blocks or rolls back the database
// write that is the record of truth.
type Shipper interface {
	Ship(ctx context.Context, record *models.AuditLog) error
	Close() error
}

// MultiShipper fans each record out to every configured destination.
type MultiShipper struct {
	shippers []Shipper
	mu       sync.RWMutex
}

// NewMultiShipper builds a shipper for each enabled entry in the audit
// configuration. Unknown shipper types are a configuration error.
func NewMultiShipper(configs []config.AuditShipperConfig) (*MultiShipper, error) {
	ms := &MultiShipper{
		shippers: make([]Shipper, 0),
	}

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		var shipper Shipper
		var err error

		switch cfg.Type {
		case "webhook":
			if cfg.Webhook == nil {
				return nil, fmt.Errorf("webhook config is required for webhook shipper")
			}
			shipper, err = NewWebhookShipper(cfg.Webhook)
		case "file":
			if cfg.File == nil {
				return nil, fmt.Errorf("file config is required for file shipper")
			}
			shipper, err = NewFileShipper(cfg.File)
		default:
			return nil, fmt.Errorf("unknown shipper type: %s", cfg.Type)
		}

		if err != nil {
			return nil, fmt.Errorf("failed to create %s shipper: %w", cfg.Type, err)
		}

		ms.shippers = append(ms.shippers, shipper)
	}

	return ms, nil
}

// Ship sends a record to all configured shippers. A failing shipper does not
// stop delivery to the others; the last error is returned.
func (ms *MultiShipper) Ship(ctx context.Context, record *models.AuditLog) error {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var lastErr error
	for _, shipper := range ms.shippers {
		if err := shipper.Ship(ctx, record); err != nil {
			lastErr = err
			slog.Warn("audit shipper error", "error", err)
		}
	}
	return lastErr
}

// Close closes all shippers.
func (ms *MultiShipper) Close() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var lastErr error
	for _, shipper := range ms.shippers {
		if err := shipper.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// WebhookShipper POSTs audit records to an HTTP endpoint, optionally batching
// them to reduce request volume against the receiving aggregator.
type WebhookShipper struct {
	cfg       *config.AuditWebhookConfig
	client    *http.Client
	timeout   time.Duration
	batchCh   chan *models.AuditLog
	batch     []*models.AuditLog
	batchMu   sync.Mutex
	closeCh   chan struct{}
	closeOnce sync.Once
}

// NewWebhookShipper creates a webhook shipper. When BatchSize > 0 a
// background goroutine accumulates records and flushes on size or interval.
func NewWebhookShipper(cfg *config.AuditWebhookConfig) (*WebhookShipper, error) {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	ws := &WebhookShipper{
		cfg:     cfg,
		timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
		},
		batchCh: make(chan *models.AuditLog, 1000),
		batch:   make([]*models.AuditLog, 0),
		closeCh: make(chan struct{}),
	}

	if cfg.BatchSize > 0 {
		go ws.processBatches()
	}

	return ws, nil
}

func (ws *WebhookShipper) processBatches() {
	flushInterval := time.Duration(ws.cfg.FlushIntervalSecs) * time.Second
	if flushInterval == 0 {
		flushInterval = 5 * time.Second
	}

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case record := <-ws.batchCh:
			ws.batchMu.Lock()
			ws.batch = append(ws.batch, record)
			if len(ws.batch) >= ws.cfg.BatchSize {
				ws.flushBatch()
			}
			ws.batchMu.Unlock()
		case <-ticker.C:
			ws.batchMu.Lock()
			if len(ws.batch) > 0 {
				ws.flushBatch()
			}
			ws.batchMu.Unlock()
		case <-ws.closeCh:
			// Flush remaining
			ws.batchMu.Lock()
			if len(ws.batch) > 0 {
				ws.flushBatch()
			}
			ws.batchMu.Unlock()
			return
		}
	}
}

// flushBatch sends the current batch. Caller holds batchMu.
func (ws *WebhookShipper) flushBatch() {
	if len(ws.batch) == 0 {
		return
	}

	data, err := json.Marshal(ws.batch)
	if err != nil {
		slog.Error("failed to marshal audit batch", "error", err)
		ws.batch = ws.batch[:0]
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), ws.timeout)
	defer cancel()

	if err := ws.sendRequest(ctx, data); err != nil {
		slog.Warn("failed to send audit batch", "error", err, "records", len(ws.batch))
	}

	ws.batch = ws.batch[:0]
}

// Ship queues the record for batching, or sends it directly when batching is
// disabled or the queue is full.
func (ws *WebhookShipper) Ship(ctx context.Context, record *models.AuditLog) error {
	if ws.cfg.BatchSize > 0 {
		select {
		case ws.batchCh <- record:
			return nil
		default:
			// Queue full, send directly
		}
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}

	return ws.sendRequest(ctx, data)
}

func (ws *WebhookShipper) sendRequest(ctx context.Context, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, "POST", ws.cfg.URL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range ws.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := ws.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// Close stops the batch processor, flushing any pending records.
func (ws *WebhookShipper) Close() error {
	ws.closeOnce.Do(func() {
		close(ws.closeCh)
	})
	return nil
}

// FileShipper appends audit records as JSON lines to a local file with
// size-based rotation.
type FileShipper struct {
	cfg  *config.AuditFileConfig
	file *os.File
	mu   sync.Mutex
}

// NewFileShipper opens (or creates) the audit log file.
func NewFileShipper(cfg *config.AuditFileConfig) (*FileShipper, error) {
	file, err := os.OpenFile(cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}

	return &FileShipper{
		cfg:  cfg,
		file: file,
	}, nil
}

// Ship writes a record to the file, rotating first if the size limit is hit.
func (fs *FileShipper) Ship(ctx context.Context, record *models.AuditLog) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.cfg.MaxSizeMB > 0 {
		info, err := fs.file.Stat()
		if err == nil && info.Size() > int64(fs.cfg.MaxSizeMB)*1024*1024 {
			if err := fs.rotate(); err != nil {
				slog.Warn("failed to rotate audit log file", "error", err)
			}
		}
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}

	if _, err := fs.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}

	return nil
}

func (fs *FileShipper) rotate() error {
	if err := fs.file.Close(); err != nil {
		return err
	}

	// Shift existing backups up one slot
	for i := fs.cfg.MaxBackups - 1; i >= 1; i-- {
		oldPath := fmt.Sprintf("%s.%d", fs.cfg.Path, i)
		newPath := fmt.Sprintf("%s.%d", fs.cfg.Path, i+1)
		_ = os.Rename(oldPath, newPath)
	}

	_ = os.Rename(fs.cfg.Path, fs.cfg.Path+".1")

	if fs.cfg.MaxBackups > 0 {
		_ = os.Remove(fmt.Sprintf("%s.%d", fs.cfg.Path, fs.cfg.MaxBackups+1))
	}

	file, err := os.OpenFile(fs.cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}

	fs.file = file
	return nil
}

// Close closes the file.
func (fs *FileShipper) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.file.Close()
}
