package metadata

import (
	"context"
	"html"
	"io"
	"strings"
)

var defaultUA = "RecRadio/1.0 (+https://local)"

// ioReadFull behaves like io.ReadFull but returns as soon as ctx is cancelled.
func ioReadFull(ctx context.Context, r io.Reader, buf []byte) (int, error) {
	type result struct {
		n   int
		err error
	}
	ch := make(chan result, 1)
	go func() {
		n, err := io.ReadFull(r, buf)
		ch <- result{n, err}
	}()
	select {
	case res := <-ch:
		return res.n, res.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// extractStreamTitle pulls the StreamTitle value out of an ICY metadata block.
// Quoted titles may contain the quote character itself; the value ends at a
// quote followed by ";" and another key, or at the last quote.
func extractStreamTitle(meta string) string {
	meta = strings.TrimRight(meta, "\x00")
	idx := strings.Index(meta, "StreamTitle=")
	if idx < 0 {
		return ""
	}
	meta = strings.TrimSpace(meta[idx+len("StreamTitle="):])
	if meta == "" {
		return ""
	}

	quote := byte(0)
	if meta[0] == '\'' || meta[0] == '"' {
		quote = meta[0]
		meta = meta[1:]
	}
	if quote == 0 {
		if end := strings.IndexByte(meta, ';'); end >= 0 {
			meta = meta[:end]
		}
		return html.UnescapeString(strings.TrimSpace(meta))
	}

	end := -1
	for i := 0; i < len(meta); i++ {
		if meta[i] != quote {
			continue
		}
		rest := strings.TrimLeft(meta[i+1:], " \t")
		if rest == "" || (rest[0] == ';' && (strings.TrimSpace(rest[1:]) == "" || strings.Contains(rest[1:], "="))) {
			end = i
			break
		}
	}
	if end < 0 {
		end = strings.LastIndexByte(meta, quote)
	}
	if end >= 0 {
		meta = meta[:end]
	}
	return html.UnescapeString(strings.TrimSpace(meta))
}
