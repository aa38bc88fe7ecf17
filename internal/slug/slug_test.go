// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package slug

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMake(t *testing.T) {
	assert.Equal(t, "fix-the-bug", Make("Fix The Bug!!", "task", 32))
	assert.Equal(t, "task", Make("***", "task", 32))
	assert.Equal(t, "abcde", Make("abcdefgh", "task", 5))
}

func TestMake_CollapsesSeparatorRuns(t *testing.T) {
	assert.Equal(t, "a-b", Make("a___b", "x", 32))
	assert.Equal(t, "a-b", Make("--a--b--", "x", 32))
}

func TestLastN(t *testing.T) {
	assert.Equal(t, "5678", LastN("12345678", 4))
	assert.Equal(t, "abc", LastN("abc", 10))
}
