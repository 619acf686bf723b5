package ledger

import (
	"errors"

	"github.com/warpfork/go-errcat"
)

// ErrorCategory groups the failures surfaced by ledger-backed operations.
// Errors carrying one of these categories are built with errcat.Errorf.
type ErrorCategory string

const (
	// ErrQueryFailed: the indexing service was unreachable or answered with
	// a malformed response.
	ErrQueryFailed ErrorCategory = "gitweave-query-failed"
	// ErrPayloadFetchFailed: a record payload could not be fetched after the
	// fetcher exhausted its retries.
	ErrPayloadFetchFailed ErrorCategory = "gitweave-payload-fetch-failed"
	// ErrPayloadInvalid: a payload was downloaded but does not have the
	// requested shape, such as binary data fetched in text mode or a body
	// over the size limit.
	ErrPayloadInvalid ErrorCategory = "gitweave-payload-invalid"
	// ErrObjectNotFound: no git-object record matched an object id.
	ErrObjectNotFound ErrorCategory = "gitweave-object-not-found"
	// ErrBundleCorrupt: an envelope could not be unbundled.
	ErrBundleCorrupt ErrorCategory = "gitweave-bundle-corrupt"
	// ErrItemDecodeFailed: an item inside a readable envelope could not be decoded.
	ErrItemDecodeFailed ErrorCategory = "gitweave-item-decode-failed"
	// ErrUsage: the caller supplied an invalid argument.
	ErrUsage ErrorCategory = "gitweave-usage"
)

// CategoryOf returns the category of the first categorized error in err's
// chain, or "" if there is none.
func CategoryOf(err error) ErrorCategory {
	var ce errcat.Error
	if !errors.As(err, &ce) {
		return ""
	}
	c, _ := ce.Category().(ErrorCategory)
	return c
}
