package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowplane/flowplane/pkg/types"
	"github.com/flowplane/flowplane/pkg/xds/scope"
)

func TestTable_OpenGetClose(t *testing.T) {
	tbl := NewTable()
	sc := scope.Scope{Kind: scope.Team, Team: "payments"}

	s := tbl.Open("stream-1", "node-a", sc)
	assert.Equal(t, "stream-1", s.ID)
	assert.Equal(t, 1, tbl.Len())

	got, ok := tbl.Get("stream-1")
	require.True(t, ok)
	assert.Same(t, s, got)

	tbl.Close("stream-1")
	assert.Equal(t, 0, tbl.Len())
	_, ok = tbl.Get("stream-1")
	assert.False(t, ok)
}

func TestSession_StateCreatesOnFirstAccess(t *testing.T) {
	s := newSession("stream-1", "node-a", scope.Scope{Kind: scope.All})
	ts := s.State(types.TypeURLCluster)
	ts.LastSentVersion = 7

	again := s.State(types.TypeURLCluster)
	assert.Equal(t, uint64(7), again.LastSentVersion, "State must return the same TypeState on repeat calls")
}

func TestTable_SweepIdleEvictsOnlyStaleSessions(t *testing.T) {
	tbl := NewTable()
	fresh := tbl.Open("fresh", "node-a", scope.Scope{Kind: scope.All})
	stale := tbl.Open("stale", "node-b", scope.Scope{Kind: scope.All})

	stale.mu.Lock()
	stale.LastSeen = time.Now().Add(-time.Hour)
	stale.mu.Unlock()

	evicted := tbl.SweepIdle(time.Minute)
	assert.Equal(t, []string{"stale"}, evicted)
	assert.Equal(t, 1, tbl.Len())

	_, ok := tbl.Get("fresh")
	assert.True(t, ok)
	assert.NotNil(t, fresh)
}
