package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// ==================== ADMIN SYSTEM ====================

const adminRedisKey = "bot_admins"

// AdminRegistry is the process-wide set of authorized users. The main
// admin is fixed at startup, is always a member and can never be
// removed; only the main admin may add or remove delegated admins.
// Delegated admins survive restarts through redis, same as the bot
// settings. If redis is down the set lives in memory only.
type AdminRegistry struct {
	mu        sync.RWMutex
	mainAdmin int64
	delegated map[int64]bool
}

func NewAdminRegistry(mainAdmin int64) *AdminRegistry {
	return &AdminRegistry{
		mainAdmin: mainAdmin,
		delegated: make(map[int64]bool),
	}
}

func (r *AdminRegistry) MainAdmin() int64 {
	return r.mainAdmin
}

// IsAuthorized reports whether a user may trigger transfers.
func (r *AdminRegistry) IsAuthorized(userID int64) bool {
	if userID == r.mainAdmin {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.delegated[userID]
}

func (r *AdminRegistry) Contains(userID int64) bool {
	return r.IsAuthorized(userID)
}

// List returns every admin, main admin first, delegated sorted.
func (r *AdminRegistry) List() []int64 {
	r.mu.RLock()
	ids := make([]int64, 0, len(r.delegated))
	for id := range r.delegated {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return append([]int64{r.mainAdmin}, ids...)
}

// Delegated returns only the delegated admins, sorted.
func (r *AdminRegistry) Delegated() []int64 {
	r.mu.RLock()
	ids := make([]int64, 0, len(r.delegated))
	for id := range r.delegated {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Add registers a delegated admin. Main admin only.
func (r *AdminRegistry) Add(requesterID, newAdminID int64) error {
	if requesterID != r.mainAdmin {
		return fmt.Errorf("%w: only the main admin can add admins", ErrPermissionDenied)
	}
	if newAdminID == r.mainAdmin {
		return fmt.Errorf("%w: user %d is already the main admin", ErrInvalidOperation, newAdminID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.delegated[newAdminID] {
		return fmt.Errorf("%w: user %d is already an admin", ErrInvalidOperation, newAdminID)
	}
	r.delegated[newAdminID] = true
	r.persistLocked()
	return nil
}

// Remove drops a delegated admin. Main admin only, and the main admin
// itself can never be the target.
func (r *AdminRegistry) Remove(requesterID, targetID int64) error {
	if requesterID != r.mainAdmin {
		return fmt.Errorf("%w: only the main admin can remove admins", ErrPermissionDenied)
	}
	if targetID == r.mainAdmin {
		return fmt.Errorf("%w: the main admin cannot be removed", ErrInvalidOperation)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.delegated[targetID] {
		return fmt.Errorf("%w: user %d is not an admin", ErrInvalidOperation, targetID)
	}
	delete(r.delegated, targetID)
	r.persistLocked()
	return nil
}

// persistLocked mirrors the delegated set into redis. Caller holds r.mu.
func (r *AdminRegistry) persistLocked() {
	if rdb == nil {
		return
	}
	ids := make([]int64, 0, len(r.delegated))
	for id := range r.delegated {
		ids = append(ids, id)
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return
	}
	if err := rdb.Set(ctx, adminRedisKey, raw, 0).Err(); err != nil {
		fmt.Printf("⚠️ [REDIS ERROR] Failed to save admins: %v\n", err)
	}
}

// loadAdmins restores the delegated set from redis at startup.
func (r *AdminRegistry) loadAdmins() {
	if rdb == nil {
		return
	}
	val, err := rdb.Get(ctx, adminRedisKey).Result()
	if err != nil {
		return
	}
	var ids []int64
	if json.Unmarshal([]byte(val), &ids) != nil {
		return
	}
	r.mu.Lock()
	for _, id := range ids {
		if id != r.mainAdmin {
			r.delegated[id] = true
		}
	}
	r.mu.Unlock()
	fmt.Printf("✅ [ADMINS] Restored %d delegated admins from Redis\n", len(ids))
}
