// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package ai

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/genai"

	"github.com/tomtom215/growreporter/internal/models"
	"github.com/tomtom215/growreporter/internal/prompt"
)

type fakeModels struct {
	resp       *genai.GenerateContentResponse
	err        error
	gotModel   string
	gotConfig  *genai.GenerateContentConfig
	gotContent []*genai.Content
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.gotModel, f.gotContent, f.gotConfig = model, contents, config
	return f.resp, f.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      genai.NewContentFromText(text, genai.RoleModel),
			FinishReason: genai.FinishReasonStop,
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     120,
			CandidatesTokenCount: 80,
		},
	}
}

var testPrompt = &prompt.Prompt{PageType: models.PageSummary, System: "be brief", User: "sessions: 10"}

func TestStripCodeFences(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, want string
	}{
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  {\"a\":1}  ", `{"a":1}`},
		{"```{\"a\":1}```", `{"a":1}`},
	}
	for _, tt := range tests {
		if got := StripCodeFences(tt.in); got != tt.want {
			t.Errorf("StripCodeFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseResponse(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		in          string
		wantSummary string
		wantRaw     bool
		wantErr     error
	}{
		{
			name:        "json",
			in:          `{"summary":" Traffic grew. ","insights":["a",""],"recommendations":[{"title":"t","description":"d","priority":"HIGH"}]}`,
			wantSummary: "Traffic grew.",
		},
		{
			name:        "fenced json",
			in:          "```json\n{\"summary\":\"ok\",\"insights\":[],\"recommendations\":[]}\n```",
			wantSummary: "ok",
		},
		{
			name:        "json with preamble",
			in:          `Here you go: {"summary":"inside","insights":[],"recommendations":[]}`,
			wantSummary: "inside",
		},
		{
			name:        "plain text",
			in:          "Sessions were flat.",
			wantSummary: "Sessions were flat.",
			wantRaw:     true,
		},
		{name: "empty", in: "  ", wantErr: ErrEmptyResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r, err := ParseResponse(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if r.Summary != tt.wantSummary || r.Raw != tt.wantRaw {
				t.Errorf("got %+v", r)
			}
		})
	}
}

func TestParseResponseNormalizes(t *testing.T) {
	t.Parallel()
	r, err := ParseResponse(`{"summary":"s","insights":["a","  ","b"],"recommendations":[{"title":"x","priority":"urgent"},{"title":"y","priority":"Low"}]}`)
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Insights) != 2 {
		t.Errorf("insights = %v", r.Insights)
	}
	if r.Recommendations[0].Priority != models.PriorityMedium || r.Recommendations[1].Priority != models.PriorityLow {
		t.Errorf("priorities = %+v", r.Recommendations)
	}
}

func TestGeminiGenerate(t *testing.T) {
	t.Parallel()
	fake := &fakeModels{resp: textResponse(`{"summary":"Good month","insights":["up"],"recommendations":[]}`)}
	g := newGemini(fake, Config{Model: "gemini-test", Temperature: 0.4, MaxOutputTokens: 1000})

	r, err := g.Generate(context.Background(), testPrompt)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if r.Summary != "Good month" || r.PromptTokens != 120 || r.OutputTokens != 80 || r.Model != "gemini-test" {
		t.Errorf("result = %+v", r)
	}
	if fake.gotModel != "gemini-test" {
		t.Errorf("model = %s", fake.gotModel)
	}
	cfg := fake.gotConfig
	if cfg.ResponseMIMEType != "application/json" || cfg.ResponseSchema == nil {
		t.Errorf("config = %+v", cfg)
	}
	if cfg.Temperature == nil || *cfg.Temperature != 0.4 || cfg.MaxOutputTokens != 1000 {
		t.Errorf("sampling config = %+v", cfg)
	}
	if cfg.SystemInstruction == nil {
		t.Error("system instruction not set")
	}
}

func TestGeminiErrors(t *testing.T) {
	t.Parallel()
	boom := errors.New("unavailable")
	tests := []struct {
		name string
		fake *fakeModels
		want error
	}{
		{"api error", &fakeModels{err: boom}, boom},
		{"no candidates", &fakeModels{resp: &genai.GenerateContentResponse{}}, ErrEmptyResponse},
		{"blocked prompt", &fakeModels{resp: &genai.GenerateContentResponse{
			PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: genai.BlockedReasonSafety},
		}}, ErrBlocked},
		{"safety finish", &fakeModels{resp: &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}},
		}}, ErrBlocked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := newGemini(tt.fake, Config{})
			if _, err := g.Generate(context.Background(), testPrompt); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNewGeminiRequiresKey(t *testing.T) {
	t.Parallel()
	if _, err := NewGemini(context.Background(), Config{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v", err)
	}
}

func TestIsBreakerSuccess(t *testing.T) {
	t.Parallel()
	tests := []struct {
		err  error
		want bool
	}{
		{nil, true},
		{context.Canceled, true},
		{genai.APIError{Code: 400}, true},
		{genai.APIError{Code: 429}, false},
		{genai.APIError{Code: 503}, false},
		{errors.New("network"), false},
	}
	for _, tt := range tests {
		if got := isBreakerSuccess(tt.err); got != tt.want {
			t.Errorf("isBreakerSuccess(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
