package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"helix/internal/api"
	"helix/internal/daemon"
)

// apiClient talks to a running daemon over its HTTP API.
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(address string) *apiClient {
	base := strings.TrimRight(address, "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &apiClient{
		base: base,
		http: &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *apiClient) Status() (daemon.Status, error) {
	var status daemon.Status
	err := c.get("/api/status", nil, &status)
	return status, err
}

func (c *apiClient) ListEntities(kind string, statuses []string) (api.ListResponse, error) {
	query := url.Values{"kind": {kind}}
	for _, status := range statuses {
		query.Add("status", status)
	}
	var resp api.ListResponse
	err := c.get("/api/entities", query, &resp)
	return resp, err
}

func (c *apiClient) Describe(kind, id string) (api.EntityDetail, error) {
	var detail api.EntityDetail
	err := c.get("/api/entities/"+kind+"/"+url.PathEscape(id), nil, &detail)
	return detail, err
}

func (c *apiClient) History(kind, id string, limit, offset int) (api.HistoryResponse, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		query.Set("offset", strconv.Itoa(offset))
	}
	var resp api.HistoryResponse
	err := c.get("/api/entities/"+kind+"/"+url.PathEscape(id)+"/history", query, &resp)
	return resp, err
}

func (c *apiClient) Stats(kind string) (api.StatsResponse, error) {
	var resp api.StatsResponse
	err := c.get("/api/stats", url.Values{"kind": {kind}}, &resp)
	return resp, err
}

func (c *apiClient) Workers() (api.WorkersResponse, error) {
	var resp api.WorkersResponse
	err := c.get("/api/workers", nil, &resp)
	return resp, err
}

func (c *apiClient) get(path string, query url.Values, out any) error {
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	resp, err := c.http.Get(target)
	if err != nil {
		return fmt.Errorf("daemon api: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("daemon api: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var payload struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
			return fmt.Errorf("daemon api: %s", payload.Error)
		}
		return fmt.Errorf("daemon api: unexpected status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("daemon api: decode response: %w", err)
	}
	return nil
}
