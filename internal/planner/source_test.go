package planner

import (
	"testing"

	"github.com/doublecapcrimpin/openpilot/internal/ptypes"
	"github.com/stretchr/testify/require"
)

func TestChannelSourcePollReturnsOrderedLatest(t *testing.T) {
	src := NewChannelSource()

	src.Model <- ModelMsg{LaneWidth: 3.0}
	src.Model <- ModelMsg{LaneWidth: 3.7} // latest should win
	src.Live20 <- Live20Msg{Lead1: ptypes.LeadTrack{Status: true}}
	src.MapData <- ptypes.MapSnapshot{Valid: true}

	msgs := src.Poll()
	require.Len(t, msgs, 3)
	require.Equal(t, ChModel, msgs[0].Channel)
	require.Equal(t, ChMapData, msgs[1].Channel)
	require.Equal(t, ChLive20, msgs[2].Channel)
	require.Equal(t, 3.7, msgs[0].Payload.(ModelMsg).LaneWidth)
}

func TestChannelSourcePollEmptyWhenIdle(t *testing.T) {
	src := NewChannelSource()
	require.Empty(t, src.Poll())
}
