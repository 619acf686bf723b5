package remote

import (
	"fmt"
	"path"
	"strings"

	"github.com/warpfork/go-errcat"

	"github.com/odvcencio/gitweave/pkg/ledger"
)

// Repository identifies a ledger-backed repository: the address of the
// wallet that owns it and the repository name.
type Repository struct {
	Raw   string
	Owner string
	Name  string
}

func (r Repository) String() string {
	return r.Owner + "/" + r.Name
}

// supportedSchemes are the remote URI schemes accepted by ParseRepository.
var supportedSchemes = map[string]bool{
	"gitopia":  true,
	"gitweave": true,
}

// ParseRepository parses a remote URI into a repository identity.
//
// Supported inputs include:
// - gitopia://<owner>/<repo>
// - gitweave://<owner>/<repo>
// - <owner>/<repo>
func ParseRepository(raw string) (Repository, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Repository{}, errcat.Errorf(ledger.ErrUsage, "remote URI is required")
	}

	rest := raw
	if i := strings.Index(raw, "://"); i >= 0 {
		scheme := strings.ToLower(raw[:i])
		if !supportedSchemes[scheme] {
			return Repository{}, errcat.Errorf(ledger.ErrUsage, "unsupported scheme %q in remote URI %q (valid options are 'gitopia' or 'gitweave')", scheme, raw)
		}
		rest = raw[i+3:]
	}

	segments := splitPathSegments(rest)
	if len(segments) != 2 {
		return Repository{}, errcat.Errorf(ledger.ErrUsage, "remote URI %q must be <owner>/<repo>", raw)
	}
	owner, name := segments[0], segments[1]
	if err := ValidateAddress(owner); err != nil {
		return Repository{}, errcat.Errorf(ledger.ErrUsage, "remote URI %q: %v", raw, err)
	}

	return Repository{
		Raw:   raw,
		Owner: owner,
		Name:  name,
	}, nil
}

// ValidateAddress checks that addr looks like a ledger wallet address:
// 43 characters of unpadded base64url.
func ValidateAddress(addr string) error {
	if len(addr) != 43 {
		return fmt.Errorf("owner address length %d, expected 43", len(addr))
	}
	for _, r := range addr {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return fmt.Errorf("owner address contains invalid character %q", r)
		}
	}
	return nil
}

func splitPathSegments(p string) []string {
	p = strings.TrimSpace(path.Clean("/" + p))
	p = strings.TrimPrefix(p, "/")
	if p == "" || p == "." {
		return nil
	}
	parts := strings.Split(p, "/")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" && part != "." {
			out = append(out, part)
		}
	}
	return out
}
