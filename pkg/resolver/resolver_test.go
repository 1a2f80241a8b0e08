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

package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridwatch/otmap/pkg/logger"
	"github.com/gridwatch/otmap/pkg/models"
	"github.com/gridwatch/otmap/pkg/store"
)

// countingStore wraps DeviceStore and counts address lookups.
type countingStore struct {
	store.DeviceStore

	mu      sync.Mutex
	lookups int
	failWith error
}

func (c *countingStore) FindByIPAddress(ctx context.Context, ip string) (*models.Device, error) {
	c.mu.Lock()
	c.lookups++
	err := c.failWith
	c.mu.Unlock()

	if err != nil {
		return nil, err
	}

	return c.DeviceStore.FindByIPAddress(ctx, ip)
}

func (c *countingStore) lookupCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lookups
}

func newFixture(t *testing.T) (*Resolver, *countingStore, *models.Device) {
	t.Helper()

	mem := store.NewMemoryStore()

	device, err := mem.Create(context.Background(), &models.Device{
		Name: "PLC-1",
		Type: models.DeviceTypePLC,
		Interfaces: []models.NetworkInterface{
			{Index: 1, IPAddress: "10.0.3.12"},
		},
		LastSeen: time.Now(),
	})
	require.NoError(t, err)

	counting := &countingStore{DeviceStore: mem}

	return New(counting, logger.NewTestLogger()), counting, device
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("hit is cached and short-circuits the store", func(t *testing.T) {
		r, counting, device := newFixture(t)

		id, ok, err := r.Resolve(ctx, "10.0.3.12")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, device.ID, id)
		assert.Equal(t, 1, counting.lookupCount())

		id, ok, err = r.Resolve(ctx, "10.0.3.12")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, device.ID, id)
		assert.Equal(t, 1, counting.lookupCount(), "second resolve must not hit the store")
	})

	t.Run("miss is not an error and not cached", func(t *testing.T) {
		r, counting, _ := newFixture(t)

		_, ok, err := r.Resolve(ctx, "10.9.9.9")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Zero(t, r.CacheSize())

		// A later registration must become resolvable.
		r.Put("10.9.9.9", "dev-late")

		id, ok, err := r.Resolve(ctx, "10.9.9.9")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "dev-late", id)
		assert.Equal(t, 1, counting.lookupCount())
	})

	t.Run("store failure surfaces as error", func(t *testing.T) {
		r, counting, _ := newFixture(t)
		counting.failWith = errors.New("connection reset")

		_, _, err := r.Resolve(ctx, "10.0.3.12")
		require.Error(t, err)
	})

	t.Run("empty address resolves to nothing", func(t *testing.T) {
		r, _, _ := newFixture(t)

		_, ok, err := r.Resolve(ctx, "")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestPutDevice(t *testing.T) {
	r, _, _ := newFixture(t)

	device := &models.Device{
		ID: "dev-2",
		Interfaces: []models.NetworkInterface{
			{IPAddress: "10.0.3.20"},
			{IPAddress: "10.0.3.21"},
			{Index: 3}, // no address
		},
	}

	r.PutDevice(device)
	assert.Equal(t, 2, r.CacheSize())
}

func TestResolveConcurrent(t *testing.T) {
	r, _, device := newFixture(t)

	ctx := context.Background()

	var wg sync.WaitGroup

	for i := 0; i < 32; i++ {
		wg.Add(1)

		go func(n int) {
			defer wg.Done()

			if n%2 == 0 {
				id, ok, err := r.Resolve(ctx, "10.0.3.12")
				assert.NoError(t, err)
				assert.True(t, ok)
				assert.Equal(t, device.ID, id)
			} else {
				r.Put(fmt.Sprintf("10.0.4.%d", n), device.ID)
			}
		}(i)
	}

	wg.Wait()
}
