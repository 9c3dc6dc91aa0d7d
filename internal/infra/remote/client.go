// Package remote implements the HTTP client for the remote bill sync
// endpoints. It is the device side of synchronisation: upload batches
// of operations, download changed records since a watermark.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mosaicfin/bill-insights-go/internal/domain"
	"github.com/mosaicfin/bill-insights-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("remote")

// Client talks to the remote bill store over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiToken   string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	bulkhead   *resilience.Bulkhead
	logger     *zap.Logger
}

// NewClient creates a remote sync client.
func NewClient(httpClient *http.Client, baseURL, apiToken string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiToken:   apiToken,
		cb:         cb,
		cfg:        cfg,
		bulkhead:   resilience.NewBulkhead(cfg.MaxConcurrency),
		logger:     logger,
	}
}

type uploadRequest struct {
	Operations []domain.SyncOperation `json:"operations"`
}

// Upload sends a batch of sync operations to the remote store.
// The server applies them best-effort and reports the applied count.
func (c *Client) Upload(ctx context.Context, ops []domain.SyncOperation) (*domain.UploadResult, error) {
	ctx, span := tracer.Start(ctx, "Remote.Upload")
	defer span.End()
	span.SetAttributes(attribute.Int("ops", len(ops)))

	if err := c.bulkhead.Acquire(ctx); err != nil {
		return nil, err
	}
	defer c.bulkhead.Release()

	var result domain.UploadResult
	err := resilience.Execute(ctx, c.cb, c.cfg, func() error {
		body, err := json.Marshal(uploadRequest{Operations: ops})
		if err != nil {
			return err
		}
		return c.doJSON(ctx, http.MethodPost, "/v1/sync/upload", body, &result)
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "remote/upload", Err: err}
	}
	return &result, nil
}

// Download fetches every record changed after lastSync, tombstones
// included. A nil watermark requests a full sync.
func (c *Client) Download(ctx context.Context, lastSync *time.Time) ([]domain.Bill, error) {
	ctx, span := tracer.Start(ctx, "Remote.Download")
	defer span.End()

	if err := c.bulkhead.Acquire(ctx); err != nil {
		return nil, err
	}
	defer c.bulkhead.Release()

	path := "/v1/sync/download"
	if lastSync != nil {
		path = fmt.Sprintf("%s?last_sync=%s", path, lastSync.UTC().Format(time.RFC3339))
	}

	var result domain.DownloadResult
	err := resilience.Execute(ctx, c.cb, c.cfg, func() error {
		return c.doJSON(ctx, http.MethodGet, path, nil, &result)
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "remote/download", Err: err}
	}
	return result.Bills, nil
}

// doJSON executes one authenticated request and decodes the response.
func (c *Client) doJSON(ctx context.Context, method, path string, body []byte, out any) error {
	url := c.baseURL + path

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("remote: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		// Auth failure is fatal for the whole request, no retry value.
		return &domain.ErrUnauthorized{Message: "remote sync rejected credentials"}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("remote: non-2xx response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(respBody)),
		)
		return fmt.Errorf("remote returned status %d: %s", resp.StatusCode, string(respBody))
	}

	c.logger.Debug("remote: request OK",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)
	return json.Unmarshal(respBody, out)
}
