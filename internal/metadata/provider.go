// Package metadata watches a radio stream for "now playing" information
// independently of the media backend, reading inline ICY blocks or an
// Icecast status-json endpoint.
package metadata

import (
	"context"
	"errors"
	"net/http"
)

// Info is a single metadata sample.
type Info struct {
	Title   string
	Station string
}

// Logger is the small logging surface used for non-fatal watcher errors.
type Logger interface {
	Printf(format string, args ...any)
}

// Watcher reports metadata for one stream until ctx is cancelled.
type Watcher interface {
	Watch(ctx context.Context, streamURL string, onUpdate func(Info)) error
}

var errNoICY = errors.New("icy metadata unavailable")

// NewWatcher returns a Watcher that reads inline ICY metadata first and falls
// back to polling the host's status-json.xsl endpoint.
func NewWatcher(client *http.Client, log Logger) Watcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &chain{
		logger: log,
		direct: newDirectStrategy(client, log),
		status: newStatusJSONStrategy(client, log),
	}
}

type chain struct {
	logger Logger
	direct *directStrategy
	status *statusJSONStrategy
}

// Watch blocks until ctx is done or every strategy has failed.
func (c *chain) Watch(ctx context.Context, streamURL string, onUpdate func(Info)) error {
	if streamURL == "" || onUpdate == nil {
		return errors.New("metadata: empty stream url or callback")
	}
	err := c.direct.Watch(ctx, streamURL, onUpdate)
	if err == nil || !errors.Is(err, errNoICY) {
		return err
	}
	if c.logger != nil {
		c.logger.Printf("no inline ICY metadata on %s, trying status-json", streamURL)
	}
	return c.status.Watch(ctx, streamURL, onUpdate)
}
