package decision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"claimflow/validation"
)

// LLMConfig configures the OpenAI-backed enrichment strategy.
type LLMConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// LLMStrategy enriches decisions with reasoning and claimant-facing guidance
// using a chat-completion model constrained to a JSON schema.
type LLMStrategy struct {
	client *openai.Client
	cfg    LLMConfig
}

// NewLLMStrategy builds the strategy. An empty API key is an error; callers
// that want enrichment disabled pass a nil Strategy instead.
func NewLLMStrategy(cfg LLMConfig) (*LLMStrategy, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("decision: llm api key required")
	}
	cc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		cc.BaseURL = cfg.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4o
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &LLMStrategy{client: openai.NewClientWithConfig(cc), cfg: cfg}, nil
}

func (s *LLMStrategy) Name() string { return "openai" }

// llmResponse is the schema the model must emit.
type llmResponse struct {
	FinalDecision string   `json:"final_decision"`
	Reasoning     string   `json:"reasoning"`
	Citations     []string `json:"citations"`
	NextSteps     string   `json:"next_steps"`
}

const systemPrompt = `You are an expert insurance claims adjudicator reviewing an OPD claim.
You receive the policy terms, the claim evidence, and the automated validation results.
Output a JSON object with fields:
- final_decision: "APPROVED", "REJECTED", "PARTIAL", or "MANUAL_REVIEW"
- reasoning: a clear, professional 2-3 sentence explanation
- citations: specific policy references (e.g. "Annual limit: 50000")
- next_steps: instructions for the claimant
Rules: trust the validation results. If they show hard failures you must not approve.
If a failure looks minor or technical, suggest manual review. Reference specific
numbers from the policy terms. Be empathetic but firm.`

// Enrich calls the model and maps its JSON output onto the draft schema.
func (s *LLMStrategy) Enrich(ctx context.Context, in EnrichmentInput) (Draft, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	payload := map[string]any{
		"claim": map[string]any{
			"claim_id":       in.Claim.ID,
			"claimed_amount": in.Claim.ClaimedAmount,
			"treatment_type": in.Claim.TreatmentType,
			"treatment_date": in.Claim.TreatmentDate.Format("2006-01-02"),
			"diagnosis":      in.Claim.Diagnosis,
			"provider":       in.Claim.ProviderName,
		},
		"policy_terms": map[string]any{
			"plan":            in.Term.Name,
			"annual_limit":    in.Term.AnnualLimit,
			"per_claim_limit": in.Term.PerClaimLimit,
			"sub_limits":      in.Term.SubLimits,
			"exclusions":      in.Term.Exclusions,
		},
		"validation_results":   findingsForPrompt(in.Findings),
		"preliminary_decision": string(in.Preliminary.Decision),
		"preliminary_reasons":  in.Preliminary.Reasons,
		"confidence":           in.Confidence,
	}
	evidence, err := json.Marshal(payload)
	if err != nil {
		return Draft{}, fmt.Errorf("decision: marshal enrichment payload: %w", err)
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: string(evidence)},
		},
		MaxTokens:      s.cfg.MaxTokens,
		Temperature:    0.1,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return Draft{}, fmt.Errorf("decision: llm enrichment: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Draft{}, fmt.Errorf("decision: llm returned no choices")
	}

	var out llmResponse
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &out); err != nil {
		return Draft{}, fmt.Errorf("decision: parse llm response: %w", err)
	}

	notes := strings.TrimSpace(out.Reasoning)
	if len(out.Citations) > 0 {
		notes += "\n\nPolicy citations:\n- " + strings.Join(out.Citations, "\n- ")
	}

	return Draft{
		Decision:       Type(strings.ToUpper(strings.TrimSpace(out.FinalDecision))),
		ApprovedAmount: in.Preliminary.ApprovedAmount,
		Reasons:        in.Preliminary.Reasons,
		Notes:          notes,
		NextSteps:      strings.TrimSpace(out.NextSteps),
	}, nil
}

func findingsForPrompt(findings []validation.Finding) []map[string]any {
	out := make([]map[string]any, 0, len(findings))
	for _, f := range findings {
		out = append(out, map[string]any{
			"validator": f.Validator,
			"passed":    f.Passed,
			"codes":     f.ReasonCodes,
			"severity":  string(f.Severity),
		})
	}
	return out
}
