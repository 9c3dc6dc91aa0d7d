package domain

// ============================================================
// Insights (external agent)
// ============================================================

// Insight is one piece of advice produced by the external insight
// agent from a BillSummary. The core consumes the list verbatim.
type Insight struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	Description       string `json:"description"`
	Severity          string `json:"severity"` // info, warning, critical
	RecommendedAction string `json:"recommended_action,omitempty"`
}

// InsightRequest is the payload sent to the insight agent.
type InsightRequest struct {
	UserID  string      `json:"user_id"`
	Summary BillSummary `json:"summary"`
}

// InsightResponse is the agent's reply, including token accounting
// for cost metrics.
type InsightResponse struct {
	Insights   []Insight  `json:"insights"`
	TokensUsed TokenUsage `json:"tokens_used"`
}

// TokenUsage tracks LLM token consumption per request.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
