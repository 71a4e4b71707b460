package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"
	"time"
)

const statusPollInterval = 10 * time.Second

// statusJSONStrategy polls the Icecast /status-json.xsl endpoint next to the
// stream mount.
type statusJSONStrategy struct {
	client   *http.Client
	logger   Logger
	interval time.Duration
}

func newStatusJSONStrategy(client *http.Client, log Logger) *statusJSONStrategy {
	return &statusJSONStrategy{client: client, logger: log, interval: statusPollInterval}
}

// Watch fails fast when the first poll finds nothing, otherwise keeps polling
// until ctx is cancelled.
func (s *statusJSONStrategy) Watch(ctx context.Context, streamURL string, onUpdate func(Info)) error {
	apiURL, err := buildStatusURL(streamURL)
	if err != nil {
		return err
	}
	info, ok := s.pollOnce(ctx, apiURL)
	if !ok {
		return errors.New("status-json unavailable")
	}
	onUpdate(info)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if info, ok := s.pollOnce(ctx, apiURL); ok {
				onUpdate(info)
			}
		}
	}
}

func (s *statusJSONStrategy) pollOnce(ctx context.Context, apiURL string) (Info, bool) {
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(cctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return Info{}, false
	}
	req.Header.Set("User-Agent", defaultUA)
	resp, err := s.client.Do(req)
	if err != nil {
		if s.logger != nil {
			s.logger.Printf("status-json poll %s: %v", apiURL, err)
		}
		return Info{}, false
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Info{}, false
	}

	var st iceStats
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&st); err != nil {
		return Info{}, false
	}
	for _, src := range st.IceStats.Source {
		if strings.TrimSpace(src.Title) == "" {
			continue
		}
		station := src.Server
		if strings.TrimSpace(station) == "" {
			station = src.IcyName
		}
		return Info{Title: strings.TrimSpace(src.Title), Station: strings.TrimSpace(station)}, true
	}
	return Info{}, false
}

// buildStatusURL maps "/live/rock" to "/live/status-json.xsl" on the same host.
func buildStatusURL(streamURL string) (string, error) {
	u, err := statusBase(streamURL)
	if err != nil {
		return "", err
	}
	u.Path = path.Join("/", path.Dir(u.Path), "status-json.xsl")
	u.RawQuery = ""
	return u.String(), nil
}

type iceStats struct {
	IceStats struct {
		Source iceSources `json:"source"`
	} `json:"icestats"`
}

type iceSource struct {
	Title   string `json:"title"`
	Server  string `json:"server_name"`
	IcyName string `json:"icy-name"`
}

// iceSources accepts Icecast's "source" field, which is an object for a single
// mount and an array otherwise.
type iceSources []iceSource

func (s *iceSources) UnmarshalJSON(b []byte) error {
	b = []byte(strings.TrimSpace(string(b)))
	if len(b) == 0 || string(b) == "null" {
		*s = nil
		return nil
	}
	if b[0] == '[' {
		var list []iceSource
		if err := json.Unmarshal(b, &list); err != nil {
			return err
		}
		*s = list
		return nil
	}
	var one iceSource
	if err := json.Unmarshal(b, &one); err != nil {
		return err
	}
	*s = iceSources{one}
	return nil
}
