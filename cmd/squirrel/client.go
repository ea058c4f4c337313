// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	sqerr "github.com/squirrel-notes/squirrel/pkg/errors"
)

// defaultHTTPClient is used to reach a running squirrel server.
// Overridden in tests.
var defaultHTTPClient = &http.Client{
	Timeout: 5 * time.Second,
}

// apiClient provides HTTP access to a running squirrel server.
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAPIClient(addr, token string) *apiClient {
	return &apiClient{
		baseURL: "http://" + addr,
		token:   token,
		http:    defaultHTTPClient,
	}
}

// getJSON performs a GET request and decodes the JSON response into dest.
// A refused connection fails with CodeCLIServerUnavailable.
func (c *apiClient) getJSON(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return sqerr.Wrap(err, sqerr.CodeCLIRequestFailure, "building request")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isDialError(err) {
			return sqerr.Errorf(sqerr.CodeCLIServerUnavailable, "server is not running at %s", c.baseURL)
		}
		return sqerr.Wrap(err, sqerr.CodeCLIRequestFailure, "request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return sqerr.Errorf(sqerr.CodeCLIRequestFailure, "server returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return sqerr.Wrap(err, sqerr.CodeCLIRequestFailure, "invalid response")
	}
	return nil
}

func isDialError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}
