package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ioclens/internal/scan"
)

// maxResponseBytes caps what we read back from a platform.
const maxResponseBytes = 4 << 20

// RESTConfig configures one threat-intel platform endpoint.
type RESTConfig struct {
	ID      string `yaml:"id"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Timeout string `yaml:"timeout"`
}

// RESTSource talks to a platform's indicator match endpoint:
// POST {base_url}/v1/indicators/match with a value/type batch.
type RESTSource struct {
	cfg    RESTConfig
	client *http.Client
}

// NewRESTSource builds a source from config.
func NewRESTSource(cfg RESTConfig) (*RESTSource, error) {
	if cfg.ID == "" || cfg.BaseURL == "" {
		return nil, fmt.Errorf("rest source requires id and base_url")
	}
	timeout := 15 * time.Second
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("parse timeout for source %s: %w", cfg.ID, err)
		}
		timeout = d
	}
	return &RESTSource{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// ID implements Source.
func (s *RESTSource) ID() string { return s.cfg.ID }

// Kind implements Source.
func (s *RESTSource) Kind() string { return "rest" }

type matchRequest struct {
	Values []string `json:"values"`
	Types  []string `json:"types"`
}

type matchResponse struct {
	Results []struct {
		Value      string         `json:"value"`
		Type       string         `json:"type"`
		Found      bool           `json:"found"`
		ExternalID string         `json:"id"`
		Payload    map[string]any `json:"payload"`
	} `json:"results"`
}

// MatchValues implements Source.
func (s *RESTSource) MatchValues(ctx context.Context, values []string, types []string) ([]scan.SourceEntry, error) {
	body, err := json.Marshal(matchRequest{Values: values, Types: types})
	if err != nil {
		return nil, err
	}

	url := strings.TrimRight(s.cfg.BaseURL, "/") + "/v1/indicators/match"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", s.cfg.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source %s: HTTP %d", s.cfg.ID, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("source %s: read body: %w", s.cfg.ID, err)
	}

	var decoded matchResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("source %s: decode: %w", s.cfg.ID, err)
	}

	entries := make([]scan.SourceEntry, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		if r.Value == "" || r.Type == "" {
			continue
		}
		entries = append(entries, scan.SourceEntry{
			Value:      r.Value,
			Type:       r.Type,
			Found:      r.Found,
			ExternalID: r.ExternalID,
			Payload:    r.Payload,
		})
	}
	return entries, nil
}
