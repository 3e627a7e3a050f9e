// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// record fields, positions and revisions from form or JSON bodies.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"kakeibo/internal/core"
)

// maxBodyBytes bounds form and JSON bodies.
const maxBodyBytes = 64 << 10

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.body[0] == '{' {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// GetAll returns every value of key: repeated form fields, a JSON array, or
// a single value.
func (p *RequestBodyParser) GetAll(key string) []string {
	var out []string
	if p.jsonData != nil {
		switch val := p.jsonData[key].(type) {
		case nil:
		case []interface{}:
			for _, v := range val {
				out = append(out, sanitizeInput(stringValue(v)))
			}
		default:
			out = append(out, sanitizeInput(stringValue(val)))
		}
		return out
	}
	for _, v := range p.formData[key] {
		out = append(out, sanitizeInput(v))
	}
	return out
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts an interface{} to string.
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// ParseRecord builds a record from the date, kind, category and amount
// fields. An empty date means today and an empty kind means expense. Every
// problem is reported in one ValidationError.
func ParseRecord(p *RequestBodyParser, today core.Date) (core.Record, error) {
	var violations []string
	r := core.Record{Date: today, Kind: core.Expense}

	if v := p.Get("date"); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			violations = append(violations, fmt.Sprintf("date %q is not a valid date", v))
		} else {
			r.Date = d
		}
	}

	if v := p.Get("kind"); v != "" {
		k, err := core.ParseKind(v)
		if err != nil {
			violations = append(violations, fmt.Sprintf("kind %q must be expense or income", v))
		} else {
			r.Kind = k
		}
	}

	r.Category = p.Get("category")

	amount, err := core.ParseAmount(p.Get("amount"))
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		violations = append(violations, verr.Violations...)
	case err != nil:
		violations = append(violations, err.Error())
	default:
		r.Amount = amount
	}

	if err := r.Validate(); err != nil && errors.As(err, &verr) {
		for _, v := range verr.Violations {
			if !contains(violations, v) {
				violations = append(violations, v)
			}
		}
	}
	if len(violations) > 0 {
		return core.Record{}, &core.ValidationError{Violations: violations}
	}
	return r, nil
}

// ParsePositions accepts repeated values and comma-separated lists.
func ParsePositions(values []string) ([]int, error) {
	var out []int
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			n, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("invalid position %q", part)
			}
			out = append(out, n)
		}
	}
	return out, nil
}

// ParseRevision reads an optional view revision; empty means unchecked.
func ParseRevision(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	rev, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid revision %q", s)
	}
	return rev, nil
}

// ParseDays reads the window length from a query, falling back to def for
// missing or out of range values.
func ParseDays(query url.Values, def int) int {
	v := strings.TrimSpace(query.Get("days"))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > 366 {
		return def
	}
	return n
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
