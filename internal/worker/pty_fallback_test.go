// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPtyExecutor_StartHasKill(t *testing.T) {
	p := NewPtyExecutor()
	ctx := context.Background()

	require.NoError(t, p.NewSession(ctx, "s1", t.TempDir(), []string{"sleep", "5"}))
	assert.True(t, p.HasSession(ctx, "s1"))

	pid, err := p.PanePID(ctx, "s1")
	require.NoError(t, err)
	assert.Greater(t, pid, 0)

	names, err := p.ListSessions(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, "s1")

	require.NoError(t, p.KillSession(ctx, "s1"))
	time.Sleep(50 * time.Millisecond)
	assert.False(t, p.HasSession(ctx, "s1"))
}

func TestPtyExecutor_KillSession_TolerantOfMissing(t *testing.T) {
	p := NewPtyExecutor()
	assert.NoError(t, p.KillSession(context.Background(), "never-existed"))
}
