package ledger

import (
	"bytes"
	"io"
	"net/http"
	"time"
)

// retryPolicy bounds how retryDo replays a request.
type retryPolicy struct {
	maxAttempts int
	delay       time.Duration
	// retryable overrides isRetryableStatus when set.
	retryable func(status int) bool
}

// retryDo executes an HTTP request with exponential backoff retry.
// Retries on network errors, HTTP 429, and HTTP 5xx responses.
// Does not retry 4xx client errors unless the policy says otherwise.
// For requests with a body, the body is buffered and replayed on retry.
// The wait between attempts starts at policy.delay and doubles; it is cut
// short when the request context is done.
func retryDo(client *http.Client, req *http.Request, policy retryPolicy) (*http.Response, error) {
	maxAttempts := policy.maxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	retryable := policy.retryable
	if retryable == nil {
		retryable = isRetryableStatus
	}

	// Buffer body for replay on retry.
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
	}

	var lastResp *http.Response
	var lastErr error
	backoff := policy.delay

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepContext(req, backoff); err != nil {
				return nil, err
			}
			backoff *= 2
		}

		// Reset body for each attempt.
		if bodyBytes != nil {
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			req.ContentLength = int64(len(bodyBytes))
		}

		resp, err := client.Do(req)
		if err != nil {
			if ctxErr := req.Context().Err(); ctxErr != nil {
				return nil, ctxErr
			}
			lastErr = err
			lastResp = nil
			continue
		}

		if !retryable(resp.StatusCode) {
			return resp, nil
		}

		// Retryable. Drain and close body unless this was the last attempt.
		if attempt < maxAttempts-1 {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		lastResp = resp
		lastErr = nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return lastResp, nil
}

func sleepContext(req *http.Request, d time.Duration) error {
	if d <= 0 {
		return req.Context().Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-req.Context().Done():
		return req.Context().Err()
	case <-t.C:
		return nil
	}
}

// isRetryableStatus returns true for HTTP status codes that should be retried.
func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}
