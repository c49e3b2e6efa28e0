package discovery

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"ioclens/internal/scan"
)

const discoveryPrompt = `You are a threat-intelligence analyst. The text below is the visible content of a web page. Identify strings that are likely indicators of compromise or security entities: IP addresses, domains, URLs, file hashes, email addresses, CVE identifiers — including defanged forms like example[.]com or hxxp://.

Respond with ONLY a JSON array. Each element: {"type": "...", "value": "...", "reason": "...", "confidence": 0.0-1.0}. The value must be the exact string as it appears in the text. If nothing qualifies, respond with [].

PAGE TEXT:
`

// GeminiConfig configures the Gemini-backed discoverer.
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// GeminiDiscoverer proposes candidates with the Gemini API.
type GeminiDiscoverer struct {
	client *genai.Client
	model  string
	log    *zap.Logger
}

// NewGeminiDiscoverer creates the discoverer.
func NewGeminiDiscoverer(ctx context.Context, cfg GeminiConfig, log *zap.Logger) (*GeminiDiscoverer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if log == nil {
		log = zap.NewNop()
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiDiscoverer{client: client, model: cfg.Model, log: log}, nil
}

// Discover implements Discoverer.
func (g *GeminiDiscoverer) Discover(ctx context.Context, corpusExcerpt string) ([]scan.AICandidate, error) {
	prompt := discoveryPrompt + Truncate(corpusExcerpt)

	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			Temperature: genai.Ptr[float32](0.1),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("gemini discovery failed: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty discovery response")
	}

	cands, err := ParseCandidates(text)
	if err != nil {
		return nil, err
	}
	g.log.Debug("discovery round complete",
		zap.Int("candidates", len(cands)),
		zap.Int("excerpt_bytes", len(corpusExcerpt)))
	return cands, nil
}
