// Package youtube implements source.Fetcher on the YouTube Data API v3
// search endpoint. Each search call costs 100 quota units.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"ytnotify/internal/source"
	logx "ytnotify/pkg/logx"
)

const defaultTimeout = 15 * time.Second

type Config struct {
	APIKey string
	// Endpoint overrides the API base URL (tests).
	Endpoint string
	Timeout  time.Duration
}

type Client struct {
	svc    *yt.Service
	apiKey string
	log    logx.Logger
}

func New(ctx context.Context, cfg Config, log logx.Logger) (*Client, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errors.New("youtube api key is empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	// The key travels as a per-call query parameter so the HTTP client (and
	// its timeout) stays under our control.
	opts := []option.ClientOption{
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if ep := strings.TrimSpace(cfg.Endpoint); ep != "" {
		opts = append(opts, option.WithEndpoint(ep))
	}
	svc, err := yt.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("youtube client: %w", err)
	}
	return &Client{svc: svc, apiKey: key, log: log}, nil
}

// Latest asks for the newest video of channelID: type=video, order=date, maxResults=1.
func (c *Client) Latest(ctx context.Context, channelID string) (source.Candidate, error) {
	resp, err := c.svc.Search.List([]string{"snippet"}).
		ChannelId(channelID).
		MaxResults(1).
		Order("date").
		Type("video").
		Context(ctx).
		Do(googleapi.QueryParameter("key", c.apiKey))
	if err != nil {
		return source.Candidate{}, classify(err)
	}
	if resp == nil || len(resp.Items) == 0 {
		return source.Candidate{}, source.ErrNoResult
	}

	it := resp.Items[0]
	if it == nil || it.Id == nil || strings.TrimSpace(it.Id.VideoId) == "" {
		return source.Candidate{}, fmt.Errorf("%w: item without id.videoId", source.ErrMalformed)
	}
	if it.Snippet == nil {
		return source.Candidate{}, fmt.Errorf("%w: item %s without snippet", source.ErrMalformed, it.Id.VideoId)
	}
	published, err := time.Parse(time.RFC3339, it.Snippet.PublishedAt)
	if err != nil {
		return source.Candidate{}, fmt.Errorf("%w: publishedAt %q: %v", source.ErrMalformed, it.Snippet.PublishedAt, err)
	}

	cand := source.Candidate{
		ID: it.Id.VideoId,
		// search snippets come HTML-entity encoded ("Tom &amp; Jerry").
		Title:       html.UnescapeString(it.Snippet.Title),
		PublishedAt: published.UTC(),
	}
	c.log.Debug("latest video",
		logx.String("channel", channelID),
		logx.String("video_id", cand.ID),
		logx.Time("published_at", cand.PublishedAt),
	)
	return cand, nil
}

func classify(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", source.ErrAuth, err)
		default:
			return fmt.Errorf("%w: %v", source.ErrTransport, err)
		}
	}
	return fmt.Errorf("%w: %v", source.ErrTransport, err)
}
