// Package safety screens submitted URLs before a crawl is allowed to start.
package safety

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	safebrowsing "google.golang.org/api/safebrowsing/v4"
)

// Checker decides whether a URL may be crawled.
type Checker interface {
	Check(ctx context.Context, rawURL string) (bool, string, error)
}

var suspiciousKeywords = []string{
	"xxx", "porn", "adult", "nsfw", "sex",
	"gambling", "bet", "casino",
	"hack", "crack", "warez", "torrent",
	"drugs", "darknet", "blackmarket",
}

// HeuristicChecker applies local structural rules: https only, a resolvable
// host, no onion services, and no flagged keywords anywhere in the URL.
type HeuristicChecker struct{}

// NewHeuristicChecker creates a HeuristicChecker.
func NewHeuristicChecker() *HeuristicChecker {
	return &HeuristicChecker{}
}

// Check returns whether the URL passes, with a human-readable reason when it
// does not. It never returns an error.
func (c *HeuristicChecker) Check(_ context.Context, rawURL string) (bool, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false, "URL is malformed or missing scheme/host", nil
	}
	if u.Scheme != "https" {
		return false, "only https URLs are allowed", nil
	}
	if strings.HasSuffix(u.Hostname(), ".onion") {
		return false, "onion services are not allowed", nil
	}
	lower := strings.ToLower(rawURL)
	for _, kw := range suspiciousKeywords {
		if strings.Contains(lower, kw) {
			return false, fmt.Sprintf("URL contains suspicious keyword %q", kw), nil
		}
	}
	return true, "", nil
}

// SafeBrowsingChecker combines the heuristics with a Google Safe Browsing v4
// threat lookup. A lookup failure denies the URL rather than letting an
// unvetted site through.
type SafeBrowsingChecker struct {
	heuristics *HeuristicChecker
	service    *safebrowsing.Service
	logger     *zap.Logger
}

// NewSafeBrowsingChecker creates a checker backed by the Safe Browsing API.
func NewSafeBrowsingChecker(
	ctx context.Context,
	apiKey string,
	logger *zap.Logger,
) (*SafeBrowsingChecker, error) {
	svc, err := safebrowsing.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create safebrowsing service: %w", err)
	}
	return &SafeBrowsingChecker{
		heuristics: NewHeuristicChecker(),
		service:    svc,
		logger:     logger,
	}, nil
}

// Check runs the heuristics first, then asks Safe Browsing for known threats.
func (c *SafeBrowsingChecker) Check(ctx context.Context, rawURL string) (bool, string, error) {
	ok, reason, err := c.heuristics.Check(ctx, rawURL)
	if err != nil || !ok {
		return ok, reason, err
	}

	req := &safebrowsing.GoogleSecuritySafebrowsingV4FindThreatMatchesRequest{
		Client: &safebrowsing.GoogleSecuritySafebrowsingV4ClientInfo{
			ClientId:      "crawlchat",
			ClientVersion: "1.0.0",
		},
		ThreatInfo: &safebrowsing.GoogleSecuritySafebrowsingV4ThreatInfo{
			ThreatTypes: []string{
				"MALWARE",
				"SOCIAL_ENGINEERING",
				"UNWANTED_SOFTWARE",
				"POTENTIALLY_HARMFUL_APPLICATION",
			},
			PlatformTypes:    []string{"ANY_PLATFORM"},
			ThreatEntryTypes: []string{"URL"},
			ThreatEntries:    []*safebrowsing.GoogleSecuritySafebrowsingV4ThreatEntry{{Url: rawURL}},
		},
	}
	resp, err := c.service.ThreatMatches.Find(req).Context(ctx).Do()
	if err != nil {
		c.logger.Warn("safe browsing lookup failed, denying URL",
			zap.String("url", rawURL),
			zap.Error(err),
		)
		return false, "safety check unavailable", nil
	}
	if len(resp.Matches) > 0 {
		return false, fmt.Sprintf("URL flagged as %s", resp.Matches[0].ThreatType), nil
	}
	return true, "", nil
}
