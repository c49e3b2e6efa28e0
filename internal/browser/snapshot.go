// Package browser captures a point-in-time snapshot of a live page as an
// HTML document the scanner can work on. Computed visibility (zero-size
// rects, display/visibility/opacity) is folded into marker attributes during
// serialization, and shadow roots are expanded into declarative templates so
// the scanner's attachment-point discovery finds them.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"ioclens/internal/dom"
)

// Config holds browser connection settings.
type Config struct {
	DebuggerURL         string `yaml:"debugger_url"`
	Headless            bool   `yaml:"headless"`
	NavigationTimeoutMs int    `yaml:"navigation_timeout_ms"`
	// ResourceWaitMs caps the wait for late-loading resources. On timeout
	// the snapshot proceeds without them; it never blocks the scan.
	ResourceWaitMs int `yaml:"resource_wait_ms"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Headless:            true,
		NavigationTimeoutMs: 30000,
		ResourceWaitMs:      3000,
	}
}

// NavigationTimeout returns the navigation timeout.
func (c Config) NavigationTimeout() time.Duration {
	if c.NavigationTimeoutMs == 0 {
		return 30 * time.Second
	}
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}

// ResourceWait returns the capped resource wait.
func (c Config) ResourceWait() time.Duration {
	if c.ResourceWaitMs == 0 {
		return 3 * time.Second
	}
	return time.Duration(c.ResourceWaitMs) * time.Millisecond
}

// Snapshotter owns the Chrome connection.
type Snapshotter struct {
	cfg     Config
	browser *rod.Browser
	log     *zap.Logger
}

// NewSnapshotter creates a snapshotter; the browser connects lazily.
func NewSnapshotter(cfg Config, log *zap.Logger) *Snapshotter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Snapshotter{cfg: cfg, log: log}
}

// connect attaches to an existing Chrome or launches one.
func (s *Snapshotter) connect(ctx context.Context) error {
	if s.browser != nil {
		if _, err := s.browser.Version(); err == nil {
			return nil
		}
		s.log.Warn("stale browser connection, reconnecting")
		_ = s.browser.Close()
		s.browser = nil
	}

	controlURL := s.cfg.DebuggerURL
	if controlURL == "" {
		url, err := launcher.New().Headless(s.cfg.Headless).Launch()
		if err != nil {
			return fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}
	s.browser = browser
	return nil
}

// Snapshot navigates to url and returns the serialized document.
func (s *Snapshotter) Snapshot(ctx context.Context, url string) (*dom.Document, error) {
	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	page, err := s.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	defer func() { _ = page.Close() }()

	if err := page.Context(ctx).Timeout(s.cfg.NavigationTimeout()).Navigate(url); err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}

	// Late resources get a bounded grace period and are then skipped.
	if err := page.Timeout(s.cfg.ResourceWait()).WaitLoad(); err != nil {
		s.log.Debug("load wait capped, proceeding with partial page", zap.String("url", url))
	}

	res, err := page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           serializerJS,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil || res == nil {
		return nil, fmt.Errorf("serialize page: %w", err)
	}

	htmlText := res.Value.Str()
	if htmlText == "" {
		return nil, fmt.Errorf("serialize page: empty result")
	}

	doc, err := dom.ParseString(htmlText)
	if err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	s.log.Info("page snapshot captured",
		zap.String("url", url), zap.Int("bytes", len(htmlText)))
	return doc, nil
}

// Close shuts the browser down.
func (s *Snapshotter) Close() error {
	if s.browser != nil {
		err := s.browser.Close()
		s.browser = nil
		return err
	}
	return nil
}

// serializerJS walks the live DOM and rebuilds it as markup: invisible
// elements gain the hidden marker attribute, and open shadow roots are
// emitted as declarative <template shadowrootmode> children of their host.
const serializerJS = `
() => {
	const HIDDEN_ATTR = 'data-ioclens-hidden';
	const VOID = new Set(['area','base','br','col','embed','hr','img','input','link','meta','param','source','track','wbr']);

	const esc = (s) => s.replace(/&/g, '&amp;').replace(/</g, '&lt;').replace(/>/g, '&gt;');
	const escAttr = (s) => esc(s).replace(/"/g, '&quot;');

	const isHidden = (el) => {
		try {
			const style = window.getComputedStyle(el);
			if (style.display === 'none' || style.visibility === 'hidden' || style.opacity === '0') return true;
			const rect = el.getBoundingClientRect();
			return rect.width === 0 && rect.height === 0;
		} catch (e) {
			return false;
		}
	};

	const serialize = (node) => {
		if (node.nodeType === Node.TEXT_NODE) return esc(node.data);
		if (node.nodeType !== Node.ELEMENT_NODE) return '';

		const tag = node.tagName.toLowerCase();
		let out = '<' + tag;
		for (const { name, value } of Array.from(node.attributes || [])) {
			out += ' ' + name + '="' + escAttr(value) + '"';
		}
		if (node.nodeType === Node.ELEMENT_NODE && tag !== 'html' && tag !== 'body' && tag !== 'head' && isHidden(node)) {
			out += ' ' + HIDDEN_ATTR + '="1"';
		}
		out += '>';
		if (VOID.has(tag)) return out;

		if (node.shadowRoot) {
			out += '<template shadowrootmode="open">';
			for (const child of Array.from(node.shadowRoot.childNodes)) {
				out += serialize(child);
			}
			out += '</template>';
		}
		for (const child of Array.from(node.childNodes)) {
			out += serialize(child);
		}
		return out + '</' + tag + '>';
	};

	return '<!DOCTYPE html>' + serialize(document.documentElement);
}
`
