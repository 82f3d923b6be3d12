// Copyright 2026 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"crypto/subtle"
	"net/http"

	"github.com/kraklabs/recall/internal/config"
)

// requireAccessKey gates a route group behind the configured access keys.
// Either key is accepted, so keys can be rotated one at a time. A missing
// credential yields 401; a wrong one yields 403.
func requireAccessKey(cfg config.AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled {
				next.ServeHTTP(w, r)
				return
			}
			presented := r.Header.Get(cfg.Header)
			if presented == "" {
				writeError(w, http.StatusUnauthorized, "missing access key")
				return
			}
			if !keyMatches(presented, cfg.AccessKey1) && !keyMatches(presented, cfg.AccessKey2) {
				writeError(w, http.StatusForbidden, "invalid access key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func keyMatches(presented, expected string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) == 1
}
