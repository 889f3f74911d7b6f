/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestIssueAndVerifyToken(t *testing.T) {
	tok, exp, err := IssueToken("s3cret", "alice", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatalf("expiry %v is not in the future", exp)
	}
	sub, err := VerifyToken("s3cret", tok)
	if err != nil || sub != "alice" {
		t.Fatalf("VerifyToken = %q, %v", sub, err)
	}
}

func TestVerifyTokenRejectsWrongSecretAndTampering(t *testing.T) {
	tok, _, err := IssueToken("s3cret", "alice", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := VerifyToken("other", tok); !errors.Is(err, ErrTokenSig) {
		t.Fatalf("wrong secret: got %v, want ErrTokenSig", err)
	}
	parts := strings.SplitN(tok, ".", 2)
	forged, _, _ := IssueToken("s3cret", "mallory", time.Hour)
	mixed := strings.SplitN(forged, ".", 2)[0] + "." + parts[1]
	if _, err := VerifyToken("s3cret", mixed); !errors.Is(err, ErrTokenSig) {
		t.Fatalf("tampered payload: got %v, want ErrTokenSig", err)
	}
	for _, bad := range []string{"", "nodot", "a.b.c", "!!.??"} {
		if _, err := VerifyToken("s3cret", bad); err == nil {
			t.Fatalf("VerifyToken(%q) succeeded", bad)
		}
	}
}

func TestVerifyTokenExpired(t *testing.T) {
	tok, err := signToken("s3cret", "alice", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := VerifyToken("s3cret", tok); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("got %v, want ErrTokenExpired", err)
	}
}
