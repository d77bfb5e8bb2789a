package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestCurrent(t *testing.T) {
	origVersion, origCommit, origBuild := AppVersion, GitCommit, BuildTime
	t.Cleanup(func() {
		AppVersion, GitCommit, BuildTime = origVersion, origCommit, origBuild
	})

	AppVersion, GitCommit, BuildTime = " v1.4.0 ", "", "2026-01-02T03:04:05Z"
	info := Current("movieship")

	if info.Version != "v1.4.0" {
		t.Errorf("expected trimmed version, got %q", info.Version)
	}
	if info.Commit != Unknown {
		t.Errorf("expected unknown commit, got %q", info.Commit)
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("unexpected go version %q", info.GoVersion)
	}
	if info.UserAgent() != "movieship/v1.4.0" {
		t.Errorf("unexpected user agent %q", info.UserAgent())
	}
	if !strings.HasPrefix(info.String(), "movieship@v1.4.0 (commit=unknown") {
		t.Errorf("unexpected string %q", info.String())
	}
}

func TestCurrent_Defaults(t *testing.T) {
	origVersion := AppVersion
	t.Cleanup(func() { AppVersion = origVersion })

	AppVersion = ""
	info := Current("  ")
	if info.Service != Unknown || info.Version != DevelopmentVersion {
		t.Errorf("unexpected defaults %+v", info)
	}
}
