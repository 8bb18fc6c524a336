package auth

import (
	"strings"

	"github.com/dmitrijs2005/ecomarket/internal/common"
)

// Identity is implemented by every account shape the resolver can turn into
// a Principal.
type Identity interface {
	// Identifier is the preferred login name, or "" if the record has none.
	Identifier() string
	PasswordHash() string
	// Authorities returns raw role names; prefixes are normalized later.
	Authorities() []string
}

// NoAuthorities can be embedded by account shapes that carry no roles.
type NoAuthorities struct{}

func (NoAuthorities) Authorities() []string { return []string{} }

// Principal is the normalized, in-memory view of an authenticated account.
type Principal struct {
	Identifier   string
	PasswordHash string
	Authorities  []string
}

// HasAuthority reports whether the principal was granted the given authority.
func (p *Principal) HasAuthority(name string) bool {
	name = NormalizeAuthority(name)
	for _, a := range p.Authorities {
		if a == name {
			return true
		}
	}
	return false
}

// NewPrincipal builds a Principal from id. fallback is used as the
// identifier when id has none. An identity without a usable password hash
// yields common.ErrInvalidAccount.
func NewPrincipal(id Identity, fallback string) (*Principal, error) {
	hash := id.PasswordHash()
	if strings.TrimSpace(hash) == "" {
		return nil, common.ErrInvalidAccount
	}

	identifier := id.Identifier()
	if identifier == "" {
		identifier = fallback
	}

	return &Principal{
		Identifier:   identifier,
		PasswordHash: hash,
		Authorities:  NormalizeAuthorities(id.Authorities()),
	}, nil
}

// NormalizeAuthority trims name and adds the ROLE_ prefix when missing.
// A blank name stays blank.
func NormalizeAuthority(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || strings.HasPrefix(name, common.AuthorityPrefix) {
		return name
	}
	return common.AuthorityPrefix + name
}

// NormalizeAuthorities prefixes every role name, dropping blanks and
// duplicates while keeping the first-seen order. The result is never nil.
func NormalizeAuthorities(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = NormalizeAuthority(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
