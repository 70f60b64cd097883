/*
 * Copyright 2019 The Sugarkube Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package argocd

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sugarkube/platformctl/internal/pkg/gitops"
	"github.com/sugarkube/platformctl/internal/pkg/log"
)

// Exchanges credentials for a bearer token
type LoginFunc func(ctx context.Context) (string, error)

// Lazily established credential cache. The first call to Token logs in and
// later calls reuse the token until it's invalidated.
type Session struct {
	login LoginFunc

	mu    sync.Mutex
	token string
}

func NewSession(login LoginFunc) *Session {
	return &Session{login: login}
}

// Returns the cached token, logging in first if there isn't one. Errors wrap
// gitops.ErrSession.
func (s *Session) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" {
		return s.token, nil
	}

	log.Logger.Debug("Establishing a new Argo CD session")

	token, err := s.login(ctx)
	if err != nil {
		return "", sessionError(err)
	}

	if token == "" {
		return "", errors.Wrap(gitops.ErrSession, "Argo CD returned an empty token")
	}

	s.token = token
	return token, nil
}

// Drops the cached token so the next call logs in again, e.g. after it's
// been rejected
func (s *Session) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""
}

// Wraps gitops.ErrSession with the reason a session couldn't be established
func sessionError(cause error) error {
	return errors.Wrapf(gitops.ErrSession, "%v", cause)
}
