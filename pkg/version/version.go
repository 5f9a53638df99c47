// Copyright © 2024 Niko Carpenter <niko@nikocarpenter.com>
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

// Package version holds build information injected with ldflags.
package version

// Version is set by the build, such as v1.2.0.
var Version string

// GitCommit is the commit the binary was built from.
var GitCommit string

// GetVersion returns Version, falling back to "dev",
// followed by the short commit hash if one was injected.
func GetVersion() string {
	v := Version
	if v == "" {
		v = "dev"
	}
	commit := GitCommit
	if commit == "" {
		return v
	}
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return v + "-" + commit
}
