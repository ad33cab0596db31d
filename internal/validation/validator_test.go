// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package validation

import (
	"strings"
	"testing"
)

type siteRequest struct {
	Name     string   `json:"name" validate:"required,max=100"`
	URL      string   `json:"url" validate:"required,http_url"`
	Property string   `json:"ga4_property_id" validate:"omitempty,ga4_property"`
	GSC      string   `json:"gsc_site_url" validate:"omitempty,gsc_site"`
	Events   []string `json:"conversion_events" validate:"max=3,dive,required,max=40"`
}

type reportRequest struct {
	PageType string `json:"page_type" validate:"required,page_type"`
	Start    string `json:"start" validate:"required,date"`
	Role     string `json:"role" validate:"omitempty,role"`
	Plan     string `json:"plan" validate:"omitempty,plan_id"`
	Limit    int    `json:"limit" validate:"gte=0,lte=100"`
}

func TestGetValidatorSingleton(t *testing.T) {
	t.Parallel()
	if GetValidator() != GetValidator() {
		t.Fatal("GetValidator returned different instances")
	}
}

func TestValidateStructValid(t *testing.T) {
	t.Parallel()
	tests := []any{
		&siteRequest{Name: "Shop", URL: "https://shop.example.com", Property: "123456789", GSC: "sc-domain:example.com"},
		&siteRequest{Name: "Blog", URL: "http://blog.example.com/", Property: "properties/987654", GSC: "https://blog.example.com/"},
		&reportRequest{PageType: "summary", Start: "2026-02-28", Role: "editor", Plan: "standard", Limit: 100},
	}
	for _, tt := range tests {
		if err := ValidateStruct(tt); err != nil {
			t.Errorf("ValidateStruct(%+v) = %v", tt, err)
		}
	}
}

func TestValidateStructInvalid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		input     any
		wantField string
		wantTag   string
		wantMsg   string
	}{
		{"missing name", &siteRequest{URL: "https://x.example"}, "name", "required", "name is required"},
		{"bad url", &siteRequest{Name: "x", URL: "ftp://x"}, "url", "http_url", "valid http(s) URL"},
		{"bad property", &siteRequest{Name: "x", URL: "https://x.example", Property: "G-ABC123"}, "ga4_property_id", "ga4_property", "numeric GA4 property"},
		{"gsc without slash", &siteRequest{Name: "x", URL: "https://x.example", GSC: "https://x.example"}, "gsc_site_url", "gsc_site", "sc-domain"},
		{"gsc domain with path", &siteRequest{Name: "x", URL: "https://x.example", GSC: "sc-domain:x.example/a"}, "gsc_site_url", "gsc_site", "sc-domain"},
		{"too many events", &siteRequest{Name: "x", URL: "https://x.example", Events: []string{"a", "b", "c", "d"}}, "conversion_events", "max", "at most 3 items"},
		{"empty event", &siteRequest{Name: "x", URL: "https://x.example", Events: []string{""}}, "conversion_events[0]", "required", "is required"},
		{"bad page type", &reportRequest{PageType: "nope", Start: "2026-01-01"}, "page_type", "page_type", "known page type"},
		{"bad date", &reportRequest{PageType: "day", Start: "2026-02-30"}, "start", "date", "YYYY-MM-DD"},
		{"bad role", &reportRequest{PageType: "day", Start: "2026-01-01", Role: "root"}, "role", "role", "user, viewer, editor, admin"},
		{"bad plan", &reportRequest{PageType: "day", Start: "2026-01-01", Plan: "Gold Plan"}, "plan", "plan_id", "plan identifier"},
		{"limit", &reportRequest{PageType: "day", Start: "2026-01-01", Limit: 101}, "limit", "lte", "less than or equal to 100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateStruct(tt.input)
			if err == nil {
				t.Fatal("expected validation error")
			}
			first := err.Errors()[0]
			if first.Field() != tt.wantField || first.Tag() != tt.wantTag {
				t.Errorf("field/tag = %s/%s, want %s/%s", first.Field(), first.Tag(), tt.wantField, tt.wantTag)
			}
			if !strings.Contains(first.Error(), tt.wantMsg) {
				t.Errorf("message %q does not contain %q", first.Error(), tt.wantMsg)
			}
		})
	}
}

func TestToAPIError(t *testing.T) {
	t.Parallel()
	single := ValidateStruct(&siteRequest{URL: "https://x.example"}).ToAPIError()
	if single.Code != "VALIDATION_ERROR" || single.Details["field"] != "name" {
		t.Fatalf("single = %+v", single)
	}

	multi := ValidateStruct(&siteRequest{}).ToAPIError()
	fields, ok := multi.Details["fields"].([]map[string]any)
	if !ok || len(fields) != 2 {
		t.Fatalf("multi details = %+v", multi.Details)
	}
	if !strings.Contains(multi.Message, "name is required") || !strings.Contains(multi.Message, "url is required") {
		t.Fatalf("multi message = %q", multi.Message)
	}

	empty := (&RequestValidationError{}).ToAPIError()
	if empty.Message != "Validation failed" {
		t.Fatalf("empty = %+v", empty)
	}
}
