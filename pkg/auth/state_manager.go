package auth

import (
	"net/http"
	"sync"
)

// StateManager holds the token managers for every mounted endpoint. Reload
// swaps the whole set at once so a reload never leaves an endpoint with a
// half-updated credential.
type StateManager struct {
	managers map[string]*TokenManager
	mutex    sync.RWMutex
}

func NewStateManager() *StateManager {
	return &StateManager{
		managers: make(map[string]*TokenManager),
	}
}

// UpdateManagers replaces the endpoint → manager mapping. Endpoints whose
// configuration did not change keep their existing manager, and with it any
// cached token.
func (sm *StateManager) UpdateManagers(configs map[string]*OAuthConfig, client *http.Client) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	next := make(map[string]*TokenManager, len(configs))
	for endpoint, cfg := range configs {
		if existing, ok := sm.managers[endpoint]; ok && sameConfig(existing.cfg, cfg) {
			next[endpoint] = existing
			continue
		}
		next[endpoint] = NewTokenManager(cfg, client)
	}
	sm.managers = next
}

// GetManager returns the token manager for an endpoint.
func (sm *StateManager) GetManager(endpoint string) (*TokenManager, bool) {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()

	tm, exists := sm.managers[endpoint]
	return tm, exists
}

func sameConfig(a, b *OAuthConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ClientID == b.ClientID &&
		a.ClientSecret == b.ClientSecret &&
		a.TokenURL == b.TokenURL &&
		a.Scope == b.Scope &&
		a.Scheme == b.Scheme
}
