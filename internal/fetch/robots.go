package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/temoto/robotstxt"
)

// allowed checks pageURL against the host's robots.txt. Hosts whose
// robots.txt cannot be fetched or parsed are treated as allowing everything.
func (c *Client) allowed(ctx context.Context, pageURL string) bool {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return true
	}
	data := c.robotsFor(ctx, u)
	if data == nil {
		return true
	}
	return data.TestAgent(u.RequestURI(), c.userAgent)
}

func (c *Client) robotsFor(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	key := u.Scheme + "://" + u.Host

	c.mu.Lock()
	data, ok := c.robots[key]
	c.mu.Unlock()
	if ok {
		return data
	}

	data = c.loadRobots(ctx, key+"/robots.txt")

	c.mu.Lock()
	c.robots[key] = data
	c.mu.Unlock()
	return data
}

func (c *Client) loadRobots(ctx context.Context, robotsURL string) *robotstxt.RobotsData {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("robots.txt unavailable", "url", robotsURL, "err", err)
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	resp.Body = io.NopCloser(io.LimitReader(resp.Body, robotsFetchLimit))
	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		c.logger.Debug("robots.txt unparseable", "url", robotsURL, "err", err)
		return nil
	}
	return data
}
