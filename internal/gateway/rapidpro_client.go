// nook-open-infrastructure - RapidPro SMS to pub/sub bridge
// Copyright 2026 Lark Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/larksystems/nook-open-infrastructure

package gateway

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
)

// DefaultTimeout is the per-call timeout applied to every RapidPro API
// request. It is deliberately long: exporting runs on a busy workspace can
// legitimately take minutes.
const DefaultTimeout = 10 * time.Minute

// HTTPClient is the concrete Client implementation backed by RapidPro's
// REST API.
type HTTPClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewHTTPClient builds a Client pointed at baseURL (e.g.
// "https://rapidpro.example.org/api/v2"), authenticating with token.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: DefaultTimeout},
	}
}

// FetchRuns lists flow runs modified after the given time, paginating
// internally until RapidPro reports no further pages.
func (c *HTTPClient) FetchRuns(ctx context.Context, after time.Time) ([]Run, error) {
	endpoint := fmt.Sprintf("%s/runs.json?after=%s", c.baseURL, url.QueryEscape(after.UTC().Format(time.RFC3339)))

	var runs []Run
	for endpoint != "" {
		var page struct {
			Next    string `json:"next"`
			Results []Run  `json:"results"`
		}
		if err := c.do(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}
		runs = append(runs, page.Results...)
		endpoint = page.Next
	}
	return runs, nil
}

// SendMessageToURNs sends text to every urn in one broadcast call, flagged
// to interrupt any flow currently running for those contacts.
func (c *HTTPClient) SendMessageToURNs(ctx context.Context, text string, urns []string) error {
	body := struct {
		Text      string   `json:"text"`
		URNs      []string `json:"urns"`
		Interrupt bool     `json:"interrupt"`
	}{Text: text, URNs: urns, Interrupt: true}

	return c.do(ctx, http.MethodPost, c.baseURL+"/broadcasts.json", body, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, endpoint string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("gateway: marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("gateway: build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway: request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode == http.StatusBadRequest:
		return &ErrBadRequest{Detail: resp.Status}
	case resp.StatusCode >= 500:
		return fmt.Errorf("gateway: rapidpro server error: %s", resp.Status)
	case resp.StatusCode >= 400:
		return &ErrBadRequest{Detail: resp.Status}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("gateway: decode response: %w", err)
	}
	return nil
}
