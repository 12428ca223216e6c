package status

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sidkik/reposync/pkg/config"
)

func TestIconKey(t *testing.T) {
	tests := []struct {
		state SyncState
		exp   string
	}{
		{SyncState{Kind: NotARepo}, config.IconNotInit},
		{SyncState{Kind: LocalCommitted}, config.IconCommit},
		{SyncState{Kind: LocalUntracked}, config.IconUntracked},
		{SyncState{Kind: NoUpstreamUnresolved, Reason: "no remote"}, config.IconNoRemote},
		{SyncState{Kind: NoUpstreamUnresolved, Reason: "no candidate branch"}, config.IconNoRemote},
		{SyncState{Kind: NoUpstreamMatched}, config.IconSynced},
		{SyncState{Kind: NoUpstreamMatched, Behind: 1}, config.IconPendingSync},
		{SyncState{Kind: UpToDate}, config.IconSynced},
		{SyncState{Kind: Diverged, Ahead: 1}, config.IconPendingSync},
		{SyncState{Kind: Diverged, Reason: "count failed"}, config.IconPendingSync},
	}

	for _, test := range tests {
		assert.Equal(t, test.exp, test.state.IconKey(), test.state.String())
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "UpToDate(+0 -0)", SyncState{Kind: UpToDate}.String())
	assert.Equal(t, "NoUpstreamMatched(origin/master +1 -2)", SyncState{
		Kind: NoUpstreamMatched, Remote: "origin", Branch: "master",
		Ahead: 1, Behind: 2}.String())
	assert.Equal(t, "NoUpstreamUnresolved(no remote)", SyncState{
		Kind: NoUpstreamUnresolved, Reason: "no remote"}.String())
	assert.Equal(t, "LocalCommitted", SyncState{Kind: LocalCommitted}.String())
	assert.Equal(t, "Kind(42)", Kind(42).String())
}
