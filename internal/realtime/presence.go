package realtime

import (
	"sort"
	"sync"
)

// PresenceRegistry tracks which users are online per tenant. A user counts
// as online in a tenant while at least one of their connections is joined
// to that tenant's room, so entries are reference counts, not booleans.
//
// All methods are synchronous and mutate under one mutex; callers must not
// perform I/O while assuming the set is frozen.
type PresenceRegistry struct {
	mu      sync.Mutex
	tenants map[string]map[string]int // tenant id -> user id -> live connection count
}

// NewPresenceRegistry creates an empty registry.
func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{tenants: make(map[string]map[string]int)}
}

// Add records one more connection for the user in the tenant. It returns
// true if the user just came online in that tenant.
func (p *PresenceRegistry) Add(tenantID, userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	users := p.tenants[tenantID]
	if users == nil {
		users = make(map[string]int)
		p.tenants[tenantID] = users
	}
	users[userID]++
	return users[userID] == 1
}

// Remove records one fewer connection for the user in the tenant. The user
// leaves the online set only when their last connection goes. It returns
// true if the user just went offline in that tenant. Removing a user that
// was never added is a no-op.
func (p *PresenceRegistry) Remove(tenantID, userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	users := p.tenants[tenantID]
	if users == nil {
		return false
	}
	count, ok := users[userID]
	if !ok {
		return false
	}
	if count <= 1 {
		delete(users, userID)
		if len(users) == 0 {
			delete(p.tenants, tenantID)
		}
		return true
	}
	users[userID] = count - 1
	return false
}

// OnlineUsers returns the sorted user ids currently online in the tenant.
func (p *PresenceRegistry) OnlineUsers(tenantID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	users := p.tenants[tenantID]
	ids := make([]string, 0, len(users))
	for id := range users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsOnline reports whether the user has at least one live connection
// joined to the tenant.
func (p *PresenceRegistry) IsOnline(tenantID, userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tenants[tenantID][userID] > 0
}
