package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestResolve(t *testing.T) {
	vcs := func(rev, modified, when string) []debug.BuildSetting {
		return []debug.BuildSetting{
			{Key: "vcs.revision", Value: rev},
			{Key: "vcs.modified", Value: modified},
			{Key: "vcs.time", Value: when},
		}
	}

	tests := []struct {
		name        string
		version     string
		commit      string
		bi          *debug.BuildInfo
		wantVersion string
		wantCommit  string
		wantDirty   bool
	}{
		{
			name:        "no build info",
			wantVersion: "dev",
			wantCommit:  "unknown",
		},
		{
			name:        "ldflags win",
			version:     "v0.3.0",
			commit:      "abc1234",
			bi:          &debug.BuildInfo{Settings: vcs("ffffffffffff", "true", "2026-01-02T03:04:05Z")},
			wantVersion: "v0.3.0",
			wantCommit:  "abc1234",
		},
		{
			name: "go install version",
			bi: &debug.BuildInfo{
				Main:     debug.Module{Version: "v0.2.1"},
				Settings: vcs("0123456789ab", "false", "2026-01-02T03:04:05Z"),
			},
			wantVersion: "v0.2.1",
			wantCommit:  "0123456",
		},
		{
			name: "devel build uses commit date",
			bi: &debug.BuildInfo{
				Main:     debug.Module{Version: "(devel)"},
				Settings: vcs("0123456789ab", "true", "2026-10-16T08:00:00Z"),
			},
			wantVersion: "dev-20261016",
			wantCommit:  "0123456",
			wantDirty:   true,
		},
		{
			name:        "short revision",
			bi:          &debug.BuildInfo{Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "abc"}}},
			wantVersion: "dev",
			wantCommit:  "abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolve(tt.version, tt.commit, tt.bi)
			if got.Version != tt.wantVersion {
				t.Errorf("Version = %q, want %q", got.Version, tt.wantVersion)
			}
			if got.Commit != tt.wantCommit {
				t.Errorf("Commit = %q, want %q", got.Commit, tt.wantCommit)
			}
			if got.Dirty != tt.wantDirty {
				t.Errorf("Dirty = %v, want %v", got.Dirty, tt.wantDirty)
			}
		})
	}
}

func TestBanner(t *testing.T) {
	b := Banner("lanprobe")
	if !strings.HasPrefix(b, "lanprobe "+Version) {
		t.Errorf("Banner() = %q, want prefix %q", b, "lanprobe "+Version)
	}
	if !strings.Contains(b, Commit) {
		t.Errorf("Banner() = %q, missing commit %q", b, Commit)
	}
}
