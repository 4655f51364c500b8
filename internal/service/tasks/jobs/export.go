package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"leadgen/internal/pkg/errorsx"
	"leadgen/internal/pkg/logctx"
	"leadgen/internal/pkg/logger"
	"leadgen/internal/pkg/worker"

	"go.uber.org/zap"
)

const maxResponseBody = 64 << 10

// ExportJob pushes a lead to the B2B partner endpoint.
//
// Args: lead_id (required), payload (optional object forwarded as-is).
// 4xx responses other than 408 and 429 are permanent; everything else is retried.
type ExportJob struct {
	client   *http.Client
	endpoint string
	apiKey   string
	now      func() time.Time
	log      *logger.Logger
}

// NewExportJob returns nil when no endpoint is configured
func NewExportJob(client *http.Client, endpoint, apiKey string, log *logger.Logger) *ExportJob {
	if endpoint == "" {
		return nil
	}
	return &ExportJob{
		client:   client,
		endpoint: endpoint,
		apiKey:   apiKey,
		now:      time.Now,
		log:      log.Named(NameB2BExport),
	}
}

func (j *ExportJob) Name() string { return NameB2BExport }

type exportRequest struct {
	LeadID     interface{} `json:"lead_id"`
	Payload    interface{} `json:"payload,omitempty"`
	ExportedAt time.Time   `json:"exported_at"`
}

// Execute implements worker.Handler
func (j *ExportJob) Execute(ctx context.Context, args worker.Args) (interface{}, error) {
	leadID, ok := args["lead_id"]
	if !ok || leadID == nil || leadID == "" {
		return nil, errorsx.WrapPermanent(errors.New("argument lead_id is required"))
	}

	body, err := json.Marshal(exportRequest{
		LeadID:     leadID,
		Payload:    args["payload"],
		ExportedAt: j.now().UTC(),
	})
	if err != nil {
		return nil, errorsx.WrapPermanent(fmt.Errorf("encode export payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errorsx.WrapPermanent(fmt.Errorf("build export request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if j.apiKey != "" {
		req.Header.Set("X-API-Key", j.apiKey)
	}
	if id, ok := logctx.CorrelationID(ctx); ok {
		req.Header.Set("X-Correlation-ID", id)
	}

	resp, err := j.client.Do(req)
	if err != nil {
		return nil, errorsx.WrapRetryable(fmt.Errorf("post lead %v: %w", leadID, err))
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests:
		return nil, errorsx.WrapRetryable(fmt.Errorf("partner throttled lead %v: status %d", leadID, resp.StatusCode))
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, errorsx.WrapPermanent(fmt.Errorf("partner rejected lead %v: status %d: %s", leadID, resp.StatusCode, bytes.TrimSpace(respBody)))
	default:
		return nil, errorsx.WrapRetryable(fmt.Errorf("partner error for lead %v: status %d", leadID, resp.StatusCode))
	}

	result := map[string]interface{}{
		"lead_id":     leadID,
		"status_code": resp.StatusCode,
	}
	var decoded interface{}
	if len(respBody) > 0 && json.Unmarshal(respBody, &decoded) == nil {
		result["response"] = decoded
	}

	j.log.Info("Lead exported",
		append(logctx.Fields(ctx),
			zap.Any("lead_id", leadID),
			zap.Int("status_code", resp.StatusCode),
		)...,
	)
	return result, nil
}
