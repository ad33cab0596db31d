// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/growreporter/internal/enrich"
	"github.com/tomtom215/growreporter/internal/models"
)

const (
	// maxBodyBytes bounds JSON request bodies. Prompt templates are the
	// largest legitimate payload.
	maxBodyBytes = 256 << 10

	// defaultRangeDays is used when a report request names no dates.
	defaultRangeDays = 28
)

var errBadPaging = errors.New("limit and offset must be non-negative integers")

// decodeJSON reads a single JSON object into dst, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

func pageTypeParam(r *http.Request) (models.PageType, error) {
	raw := chi.URLParam(r, "pageType")
	pt, err := models.ParsePageType(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q", enrich.ErrUnknownPageType, raw)
	}
	return pt, nil
}

// dateRangeQuery reads start and end, defaulting to the last four weeks when
// both are absent.
func (h *Handler) dateRangeQuery(r *http.Request) (models.DateRange, error) {
	q := r.URL.Query()
	start, end := q.Get("start"), q.Get("end")
	if start == "" && end == "" {
		return models.LastNDays(h.d.Now(), h.d.Location, defaultRangeDays), nil
	}
	if start == "" || end == "" {
		return models.DateRange{}, fmt.Errorf("%w: start and end must be given together", models.ErrInvalidDate)
	}
	return models.ParseDateRange(start, end)
}

// paging reads limit and offset, clamping limit to max.
func paging(r *http.Request, defaultLimit, maxLimit int) (limit, offset int, err error) {
	limit, offset = defaultLimit, 0
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, 0, errBadPaging
		}
		if n > 0 {
			limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, 0, errBadPaging
		}
		offset = n
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit, offset, nil
}
