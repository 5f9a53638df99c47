package version

import "testing"

func TestGetVersion(t *testing.T) {
	defer func(v, c string) { Version, GitCommit = v, c }(Version, GitCommit)

	tests := []struct {
		version, commit, want string
	}{
		{"", "", "dev"},
		{"v1.2.0", "", "v1.2.0"},
		{"v1.2.0", "0123456789abcdef", "v1.2.0-0123456"},
		{"", "abc", "dev-abc"},
	}
	for _, tt := range tests {
		Version, GitCommit = tt.version, tt.commit
		if got := GetVersion(); got != tt.want {
			t.Errorf("GetVersion() with %q, %q: wanted %q, got %q", tt.version, tt.commit, tt.want, got)
		}
	}
}
