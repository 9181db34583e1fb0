package session_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localchat/internal/session"
)

func TestGetOrCreate(t *testing.T) {
	store := session.NewStore("llama3:latest", 0)

	sess := store.GetOrCreate("s1")
	require.NotNil(t, sess)
	assert.Equal(t, "s1", sess.ID)
	assert.Equal(t, "llama3:latest", sess.Model)
	assert.Empty(t, sess.Messages)

	// Second lookup returns the same session, not a fresh one.
	again := store.GetOrCreate("s1")
	assert.Same(t, sess, again)
}

func TestAppendPreservesOrder(t *testing.T) {
	store := session.NewStore("llama3:latest", 0)

	for i := 0; i < 5; i++ {
		store.Append("s1", session.Message{Role: session.RoleUser, Content: fmt.Sprintf("msg-%d", i)})
	}

	history := store.History("s1")
	require.Len(t, history, 5)
	for i, msg := range history {
		assert.Equal(t, fmt.Sprintf("msg-%d", i), msg.Content)
		assert.False(t, msg.Timestamp.IsZero())
	}
}

func TestAppendCreatesSessionImplicitly(t *testing.T) {
	store := session.NewStore("llama3:latest", 0)

	store.Append("fresh", session.Message{Role: session.RoleUser, Content: "hi"})
	assert.Equal(t, 1, store.Len("fresh"))
}

func TestSessionIsolation(t *testing.T) {
	store := session.NewStore("llama3:latest", 0)

	store.Append("a", session.Message{Role: session.RoleUser, Content: "for a"})
	store.Append("b", session.Message{Role: session.RoleUser, Content: "for b"})
	store.Append("a", session.Message{Role: session.RoleAssistant, Content: "reply to a"})

	assert.Equal(t, 2, store.Len("a"))
	require.Equal(t, 1, store.Len("b"))
	assert.Equal(t, "for b", store.History("b")[0].Content)
}

func TestHistoryReturnsCopy(t *testing.T) {
	store := session.NewStore("llama3:latest", 0)
	store.Append("s1", session.Message{Role: session.RoleUser, Content: "one"})

	snapshot := store.History("s1")
	store.Append("s1", session.Message{Role: session.RoleAssistant, Content: "two"})

	assert.Len(t, snapshot, 1)
	assert.Len(t, store.History("s1"), 2)
}

func TestHistoryUnknownSession(t *testing.T) {
	store := session.NewStore("llama3:latest", 0)
	assert.Nil(t, store.History("nope"))
	assert.Equal(t, 0, store.Len("nope"))
}

func TestMaxTurnsDropsOldest(t *testing.T) {
	store := session.NewStore("llama3:latest", 2)

	for i := 0; i < 3; i++ {
		store.Append("s1", session.Message{Role: session.RoleUser, Content: fmt.Sprintf("u%d", i)})
		store.Append("s1", session.Message{Role: session.RoleAssistant, Content: fmt.Sprintf("a%d", i)})
	}

	history := store.History("s1")
	require.Len(t, history, 4)
	assert.Equal(t, "u1", history[0].Content)
	assert.Equal(t, "a2", history[3].Content)
}

func TestConcurrentSessions(t *testing.T) {
	store := session.NewStore("llama3:latest", 0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", n)
			for j := 0; j < 50; j++ {
				store.Append(id, session.Message{Role: session.RoleUser, Content: fmt.Sprintf("%d", j)})
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("s%d", i)
		history := store.History(id)
		require.Len(t, history, 50)
		for j, msg := range history {
			assert.Equal(t, fmt.Sprintf("%d", j), msg.Content)
		}
	}
}
