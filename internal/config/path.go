// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"regexp"
)

// tildePrefix matches a leading "~" only when followed by "/" or the end
// of the string. Anything else ("~foo", "a~/b") is left untouched.
var tildePrefix = regexp.MustCompile(`^~(/|$)`)

// ExpandPath replaces a leading "~/" or bare "~" with the user's home
// directory. It never touches a "~" that isn't at the very start of the
// string, or one not immediately followed by "/" or end-of-string.
func ExpandPath(path string) string {
	loc := tildePrefix.FindStringIndex(path)
	if loc == nil {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	return home + path[1:]
}
