// Package client contains HTTP clients for external collaborator
// services.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mosaicfin/bill-insights-go/internal/domain"
	"github.com/mosaicfin/bill-insights-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("client")

// AgentClient calls the external insight agent. The agent consumes a
// bill summary and returns insight text; its internals are opaque here.
type AgentClient struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
}

// NewAgentClient creates a new AgentClient.
func NewAgentClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *AgentClient {
	return &AgentClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		cb:         cb,
		cfg:        cfg,
	}
}

// Generate sends the bill summary and returns the agent's insights.
func (c *AgentClient) Generate(ctx context.Context, req *domain.InsightRequest) (*domain.InsightResponse, error) {
	ctx, span := tracer.Start(ctx, "AgentClient.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", req.UserID))

	var agentResp domain.InsightResponse

	err := resilience.Execute(ctx, c.cb, c.cfg, func() error {
		body, err := json.Marshal(req)
		if err != nil {
			return err
		}

		url := fmt.Sprintf("%s/v1/insights/generate", c.baseURL)
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("insight agent returned status %d", resp.StatusCode)
		}

		return json.NewDecoder(resp.Body).Decode(&agentResp)
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "insight_agent", Err: err}
	}

	return &agentResp, nil
}
