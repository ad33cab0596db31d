// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/genai"

	"github.com/tomtom215/growreporter/internal/breaker"
	"github.com/tomtom215/growreporter/internal/logging"
	"github.com/tomtom215/growreporter/internal/metrics"
	"github.com/tomtom215/growreporter/internal/prompt"
)

// Config configures the Gemini generator.
type Config struct {
	APIKey          string
	Model           string
	Temperature     float32
	MaxOutputTokens int32
	Timeout         time.Duration
}

// contentGenerator is satisfied by *genai.Models.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini generates analyses with the Gemini API.
type Gemini struct {
	models  contentGenerator
	cfg     Config
	breaker *breaker.Breaker
}

// NewGemini creates a Gemini generator.
func NewGemini(ctx context.Context, cfg Config) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return newGemini(client.Models, cfg), nil
}

func newGemini(m contentGenerator, cfg Config) *Gemini {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 4096
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	return &Gemini{
		models: m,
		cfg:    cfg,
		breaker: breaker.New(breaker.Settings{
			Name:         "gemini",
			IsSuccessful: isBreakerSuccess,
		}),
	}
}

// Model returns the configured model name.
func (g *Gemini) Model() string { return g.cfg.Model }

// Generate sends p to the model and decodes the answer.
func (g *Gemini) Generate(ctx context.Context, p *prompt.Prompt) (*Result, error) {
	if p == nil || p.User == "" {
		return nil, errors.New("generate: empty prompt")
	}
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(g.cfg.Temperature),
		MaxOutputTokens:  g.cfg.MaxOutputTokens,
		ResponseMIMEType: "application/json",
		ResponseSchema:   analysisSchema(),
	}
	if p.System != "" {
		config.SystemInstruction = genai.NewContentFromText(p.System, genai.RoleUser)
	}
	contents := []*genai.Content{genai.NewContentFromText(p.User, genai.RoleUser)}

	start := time.Now()
	resp, err := breaker.Execute(g.breaker, func() (*genai.GenerateContentResponse, error) {
		return g.models.GenerateContent(ctx, g.cfg.Model, contents, config)
	})
	if err != nil {
		return nil, fmt.Errorf("gemini generate %s: %w", p.PageType, err)
	}

	result, err := g.decode(resp)
	if err != nil {
		return nil, fmt.Errorf("gemini generate %s: %w", p.PageType, err)
	}
	metrics.RecordAITokens(result.PromptTokens, result.OutputTokens)
	logging.Ctx(ctx).Debug().
		Str("page_type", string(p.PageType)).
		Str("model", result.Model).
		Int32("prompt_tokens", result.PromptTokens).
		Int32("output_tokens", result.OutputTokens).
		Dur("duration", time.Since(start)).
		Bool("raw", result.Raw).
		Msg("AI analysis generated")
	return result, nil
}

func (g *Gemini) decode(resp *genai.GenerateContentResponse) (*Result, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return nil, fmt.Errorf("%w: %s", ErrBlocked, resp.PromptFeedback.BlockReason)
		}
		return nil, ErrEmptyResponse
	}
	if fr := resp.Candidates[0].FinishReason; fr == genai.FinishReasonSafety || fr == genai.FinishReasonProhibitedContent {
		return nil, fmt.Errorf("%w: %s", ErrBlocked, fr)
	}

	result, err := ParseResponse(resp.Text())
	if err != nil {
		return nil, err
	}
	result.Model = g.cfg.Model
	if resp.ModelVersion != "" {
		result.Model = resp.ModelVersion
	}
	if u := resp.UsageMetadata; u != nil {
		result.PromptTokens = u.PromptTokenCount
		result.OutputTokens = u.CandidatesTokenCount
	}
	return result, nil
}

// isBreakerSuccess keeps caller cancellations and request errors other than
// rate limiting from tripping the breaker.
func isBreakerSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code >= 400 && apiErr.Code < 500 && apiErr.Code != http.StatusTooManyRequests
	}
	return false
}

func analysisSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"summary": {
				Type:        genai.TypeString,
				Description: "Overall assessment of the period",
			},
			"insights": {
				Type:  genai.TypeArray,
				Items: &genai.Schema{Type: genai.TypeString},
			},
			"recommendations": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"title":       {Type: genai.TypeString},
						"description": {Type: genai.TypeString},
						"priority":    {Type: genai.TypeString, Enum: []string{"high", "medium", "low"}},
						"category":    {Type: genai.TypeString},
					},
					Required: []string{"title", "description", "priority"},
				},
			},
		},
		Required:         []string{"summary", "insights", "recommendations"},
		PropertyOrdering: []string{"summary", "insights", "recommendations"},
	}
}
