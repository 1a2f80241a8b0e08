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

package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLoader(t *testing.T) {
	type conf struct {
		Name     string   `json:"name"`
		Interval Duration `json:"interval"`
	}

	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "conf.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"name":"otmap","interval":"45s"}`), 0o600))

		var cfg conf

		loader := &FileLoader{}
		require.NoError(t, loader.Load(context.Background(), path, &cfg))
		assert.Equal(t, "otmap", cfg.Name)
		assert.Equal(t, 45*time.Second, cfg.Interval.AsDuration())
	})

	t.Run("missing file", func(t *testing.T) {
		var cfg conf

		loader := &FileLoader{}
		require.Error(t, loader.Load(context.Background(), "/nonexistent/conf.json", &cfg))
	})

	t.Run("malformed json", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "conf.json")
		require.NoError(t, os.WriteFile(path, []byte(`{name}`), 0o600))

		var cfg conf

		loader := &FileLoader{}
		require.Error(t, loader.Load(context.Background(), path, &cfg))
	})
}

func TestDuration(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{name: "string form", input: `"1m30s"`, want: 90 * time.Second},
		{name: "numeric nanoseconds", input: `5000000000`, want: 5 * time.Second},
		{name: "bad string", input: `"fast"`, wantErr: true},
		{name: "wrong type", input: `true`, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var d Duration

			err := json.Unmarshal([]byte(tc.input), &d)
			if tc.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, d.AsDuration())
		})
	}

	t.Run("round trip", func(t *testing.T) {
		out, err := json.Marshal(Duration(30 * time.Second))
		require.NoError(t, err)
		assert.Equal(t, `"30s"`, string(out))
	})
}
