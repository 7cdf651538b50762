package registry

import "strings"

// ValidateKey performs a cheap local format check of a credential against a
// provider's known prefix. Advisory only: passing says nothing about whether
// the upstream will accept the key, it just catches obviously-wrong input
// before any network call.
func (r *Registry) ValidateKey(providerID, apiKey string) bool {
	if strings.TrimSpace(apiKey) == "" {
		return false
	}
	p, ok := r.Get(providerID)
	if !ok {
		return false
	}
	if p.KeyPrefix == "" {
		return true
	}
	return strings.HasPrefix(apiKey, p.KeyPrefix)
}
