// Copyright (c) 2025 ToeiRei
// sshm - SSH identity and config manager
// This source code is licensed under the MIT license found in the LICENSE file.

package probe

import "testing"

func TestClassifySuccessWithUsername(t *testing.T) {
	out := "Hi octocat! You've successfully authenticated, but GitHub does not provide shell access.\n"
	res := Classify(1, out)
	if res.Status != StatusOK {
		t.Fatalf("status = %v, want ok", res.Status)
	}
	if res.User != "octocat" {
		t.Errorf("user = %q, want octocat", res.User)
	}
}

func TestClassifyGitLabWelcome(t *testing.T) {
	res := Classify(0, "Welcome to GitLab, @dev!\n")
	if res.Status != StatusOK {
		t.Errorf("status = %v, want ok", res.Status)
	}
}

func TestClassifyPermissionDenied(t *testing.T) {
	res := Classify(255, "git@github.com: Permission denied (publickey).\n")
	if res.Status != StatusAuthRejected {
		t.Errorf("status = %v, want auth-rejected", res.Status)
	}
	if res.Output == "" {
		t.Error("diagnostic output must be preserved verbatim")
	}
}

func TestClassifyUnreachable(t *testing.T) {
	cases := []string{
		"ssh: Could not resolve hostname github-nope: Name or service not known\n",
		"ssh: connect to host github.com port 22: Connection refused\n",
		"ssh: connect to host 10.0.0.1 port 22: No route to host\n",
	}
	for _, out := range cases {
		if res := Classify(255, out); res.Status != StatusUnreachable {
			t.Errorf("Classify(%q) = %v, want unreachable", out, res.Status)
		}
	}
}

func TestClassifyTimedOutConnection(t *testing.T) {
	res := Classify(255, "ssh: connect to host github.com port 22: Connection timed out\n")
	if res.Status != StatusTimeout {
		t.Errorf("status = %v, want timeout", res.Status)
	}
}

func TestClassifyExitOneWithoutDenialIsOK(t *testing.T) {
	res := Classify(1, "shell request failed on channel 0\n")
	if res.Status != StatusOK {
		t.Errorf("status = %v, want ok", res.Status)
	}
}

func TestClassifyUnknownFailure(t *testing.T) {
	res := Classify(255, "something exploded\n")
	if res.Status != StatusUnreachable {
		t.Errorf("status = %v, want unreachable", res.Status)
	}
}
