package chatsession

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/agentcore/pkg/gateway"
)

func TestHistory_AppendAndRecent(t *testing.T) {
	h := New("session-1")
	h.Append(gateway.Message{Role: gateway.RoleUser, Content: "hi"})
	h.Append(gateway.Message{Role: gateway.RoleAssistant, Content: "hello"})

	recent := h.Recent(1)
	require.Len(t, recent, 1)
	assert.Equal(t, "hello", recent[0].Content)

	assert.Len(t, h.Recent(10), 2)
	assert.Len(t, h.Recent(0), 0)
}

func TestHistory_TrimsToMaxMessages(t *testing.T) {
	h, err := NewWithMax("session-1", 2)
	require.NoError(t, err)

	h.Append(gateway.Message{Role: gateway.RoleUser, Content: "one"})
	h.Append(gateway.Message{Role: gateway.RoleUser, Content: "two"})
	h.Append(gateway.Message{Role: gateway.RoleUser, Content: "three"})

	all := h.All()
	require.Len(t, all, 2)
	assert.Equal(t, "two", all[0].Content)
	assert.Equal(t, "three", all[1].Content)
}

func TestNewWithMax_RejectsOutOfRange(t *testing.T) {
	_, err := NewWithMax("s", 0)
	assert.Error(t, err)

	_, err = NewWithMax("s", MaxMaxMessages+1)
	assert.Error(t, err)
}

func TestHistory_SetMaxMessagesTrimsImmediately(t *testing.T) {
	h := New("session-1")
	for i := 0; i < 5; i++ {
		h.Append(gateway.Message{Role: gateway.RoleUser, Content: "m"})
	}

	require.NoError(t, h.SetMaxMessages(2))
	assert.Len(t, h.All(), 2)

	assert.Error(t, h.SetMaxMessages(MinMaxMessages-1))
}

func TestHistory_StatsCountsByRole(t *testing.T) {
	h := New("session-1")
	h.Append(gateway.Message{Role: gateway.RoleUser, Content: "a"})
	h.Append(gateway.Message{Role: gateway.RoleUser, Content: "b"})
	h.Append(gateway.Message{Role: gateway.RoleAssistant, Content: "c"})

	stats := h.Stats()
	assert.Equal(t, 3, stats.MessageCount)
	assert.Equal(t, 2, stats.RoleCounts[gateway.RoleUser])
	assert.Equal(t, 1, stats.RoleCounts[gateway.RoleAssistant])
}

func TestHistory_Clear(t *testing.T) {
	h := New("session-1")
	h.Append(gateway.Message{Role: gateway.RoleUser, Content: "a"})
	h.Clear()
	assert.Len(t, h.All(), 0)
}
