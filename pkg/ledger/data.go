package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/zstd"
	"github.com/warpfork/go-errcat"
)

// FetchMode selects how a payload is handed back.
type FetchMode int

const (
	// ModeRaw returns the payload bytes untouched.
	ModeRaw FetchMode = iota
	// ModeText requires the payload to be UTF-8 text and strips a leading BOM.
	ModeText
)

func (m FetchMode) String() string {
	switch m {
	case ModeRaw:
		return "raw"
	case ModeText:
		return "text"
	default:
		return fmt.Sprintf("FetchMode(%d)", int(m))
	}
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Fetch downloads the payload of record id from the gateway.
//
// Transient failures are retried with backoff. A 404 is retried as well:
// payloads of freshly posted records take a while to reach the gateway.
// Once retries are exhausted the error carries ErrPayloadFetchFailed. A body
// that arrives but is over the size limit, or is not text in ModeText,
// carries ErrPayloadInvalid.
func (c *Client) Fetch(ctx context.Context, id string, mode FetchMode) ([]byte, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errcat.Errorf(ErrUsage, "fetch payload: record id is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept-Encoding", "zstd")

	policy := c.policy()
	policy.retryable = func(status int) bool {
		return status == http.StatusNotFound || isRetryableStatus(status)
	}
	resp, err := retryDo(c.httpClient, req, policy)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("fetch payload for record %s: %w", id, ctx.Err())
		}
		return nil, errcat.Errorf(ErrPayloadFetchFailed, "fetch payload for record %s: %v", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		msg := strings.TrimSpace(string(snippet))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, errcat.Errorf(ErrPayloadFetchFailed, "fetch payload for record %s: status %d: %s", id, resp.StatusCode, msg)
	}

	body, err := readLimited(resp.Body, c.maxPayload)
	if err != nil {
		if errors.Is(err, errTooLarge) {
			return nil, errcat.Errorf(ErrPayloadInvalid, "fetch payload for record %s: %v", id, err)
		}
		return nil, errcat.Errorf(ErrPayloadFetchFailed, "fetch payload for record %s: read: %v", id, err)
	}

	if isZstdEncoded(resp.Header.Get("Content-Encoding")) {
		body, err = decompressZstd(body, c.maxPayload)
		if err != nil {
			return nil, errcat.Errorf(ErrPayloadInvalid, "fetch payload for record %s: decompress: %v", id, err)
		}
	}

	if mode == ModeText {
		body = bytes.TrimPrefix(body, utf8BOM)
		if !utf8.Valid(body) {
			return nil, errcat.Errorf(ErrPayloadInvalid, "fetch payload for record %s: payload is not UTF-8 text", id)
		}
	}
	return body, nil
}

var errTooLarge = errors.New("payload exceeds size limit")

// readLimited reads r to the end, failing with errTooLarge past limit bytes.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w (%d bytes)", errTooLarge, limit)
	}
	return body, nil
}

// decompressZstd decompresses zstd-compressed data of at most limit bytes.
func decompressZstd(data []byte, limit int64) ([]byte, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(uint64(limit)), zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, err
	}
	if int64(len(out)) > limit {
		return nil, fmt.Errorf("%w (%d bytes)", errTooLarge, limit)
	}
	return out, nil
}

// isZstdEncoded checks if the content encoding includes zstd.
func isZstdEncoded(contentEncoding string) bool {
	return strings.Contains(contentEncoding, "zstd")
}
