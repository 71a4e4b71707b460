package metadata

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"html"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	maxRedirects = 3
	// maxMetaInt is the largest icy-metaint the reader accepts.
	maxMetaInt     = 1 << 20
	audioChunkSize = 4096
)

// directStrategy requests the stream itself with Icy-MetaData enabled and
// decodes the metadata blocks interleaved with the audio payload.
type directStrategy struct {
	client *http.Client
	logger Logger
}

func newDirectStrategy(client *http.Client, log Logger) *directStrategy {
	return &directStrategy{client: client, logger: log}
}

// noRedirectClient copies client but stops at redirects so the icy headers of
// the final hop are visible.
func noRedirectClient(client *http.Client) *http.Client {
	if client == nil {
		return &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   7 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 7 * time.Second,
				TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
			},
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	cp := *client
	cp.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &cp
}

// Watch runs until ctx is cancelled or the stream fails. It returns errNoICY
// when the server does not interleave metadata.
func (s *directStrategy) Watch(ctx context.Context, streamURL string, onUpdate func(Info)) error {
	cli := noRedirectClient(s.client)
	target := streamURL
	for hop := 0; ; hop++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Icy-MetaData", "1")
		req.Header.Set("User-Agent", defaultUA)

		resp, err := cli.Do(req)
		if err != nil {
			return err
		}
		if resp.StatusCode >= 300 && resp.StatusCode < 400 {
			loc := resp.Header.Get("Location")
			resp.Body.Close()
			if loc == "" {
				return errors.New("redirect without location")
			}
			if hop >= maxRedirects {
				return errors.New("too many redirects")
			}
			next, err := req.URL.Parse(loc)
			if err != nil {
				return err
			}
			target = next.String()
			continue
		}
		defer resp.Body.Close()
		return s.readBlocks(ctx, resp, onUpdate)
	}
}

func (s *directStrategy) readBlocks(ctx context.Context, resp *http.Response, onUpdate func(Info)) error {
	metaInt, err := strconv.Atoi(resp.Header.Get("icy-metaint"))
	if err != nil || metaInt <= 0 {
		return errNoICY
	}
	if metaInt > maxMetaInt {
		if s.logger != nil {
			s.logger.Printf("ignoring icy-metaint %d from %s", metaInt, resp.Request.URL)
		}
		return errNoICY
	}

	station := html.UnescapeString(strings.TrimSpace(resp.Header.Get("icy-name")))
	if station != "" {
		onUpdate(Info{Station: station})
	}

	reader := bufio.NewReader(resp.Body)
	audio := make([]byte, audioChunkSize)
	for {
		if err := skipAudio(ctx, reader, audio, metaInt); err != nil {
			return err
		}
		length, err := reader.ReadByte()
		if err != nil {
			return err
		}
		if length == 0 {
			continue
		}
		block := make([]byte, int(length)*16)
		if _, err := ioReadFull(ctx, reader, block); err != nil {
			return err
		}
		if title := extractStreamTitle(string(block)); title != "" {
			onUpdate(Info{Title: title, Station: station})
		}
	}
}

// skipAudio discards n payload bytes, reading through buf one chunk at a time.
func skipAudio(ctx context.Context, r *bufio.Reader, buf []byte, n int) error {
	for n > 0 {
		chunk := buf
		if n < len(chunk) {
			chunk = chunk[:n]
		}
		read, err := ioReadFull(ctx, r, chunk)
		if err != nil {
			return err
		}
		n -= read
	}
	return nil
}

// statusBase returns scheme://host of a stream URL.
func statusBase(streamURL string) (*url.URL, error) {
	u, err := url.Parse(streamURL)
	if err != nil {
		return nil, err
	}
	if u.Host == "" {
		return nil, errors.New("stream url has no host")
	}
	return u, nil
}
