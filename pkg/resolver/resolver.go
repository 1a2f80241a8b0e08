/*
 * Copyright 2026 Gridwatch Systems, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package resolver maps discovered network addresses to stable device
// identities. A mutex-guarded in-process cache short-circuits repeated store
// lookups; misses are not cached so a device registered later is still
// discoverable.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gridwatch/otmap/pkg/logger"
	"github.com/gridwatch/otmap/pkg/models"
	"github.com/gridwatch/otmap/pkg/store"
)

// Resolver resolves IP/MAC addresses to device ids. Safe for concurrent use.
type Resolver struct {
	mu      sync.RWMutex
	cache   map[string]string
	devices store.DeviceStore
	log     logger.Logger
}

// New creates a resolver over the given device store.
func New(devices store.DeviceStore, log logger.Logger) *Resolver {
	return &Resolver{
		cache:   make(map[string]string),
		devices: devices,
		log:     log.WithComponent("resolver"),
	}
}

// Resolve returns the device id for an address. The second return value is
// false when no device is known for it; that is a normal outcome, not an
// error. Only store failures surface as errors.
func (r *Resolver) Resolve(ctx context.Context, address string) (string, bool, error) {
	if address == "" {
		return "", false, nil
	}

	r.mu.RLock()
	id, ok := r.cache[address]
	r.mu.RUnlock()

	if ok {
		return id, true, nil
	}

	device, err := r.devices.FindByIPAddress(ctx, address)
	if err != nil {
		if errors.Is(err, store.ErrDeviceNotFound) {
			return "", false, nil
		}

		return "", false, fmt.Errorf("address lookup failed: %w", err)
	}

	r.Put(address, device.ID)

	return device.ID, true, nil
}

// Put records an address-to-device association. Last writer wins.
func (r *Resolver) Put(address, deviceID string) {
	if address == "" || deviceID == "" {
		return
	}

	r.mu.Lock()
	r.cache[address] = deviceID
	r.mu.Unlock()
}

// PutDevice primes the cache with every interface address of a device.
func (r *Resolver) PutDevice(device *models.Device) {
	for _, addr := range device.IPAddresses() {
		r.Put(addr, device.ID)
	}
}

// CacheSize reports how many addresses are cached.
func (r *Resolver) CacheSize() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.cache)
}
