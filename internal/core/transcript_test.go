package core

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wellness-chat/pkg"
)

func msg(id string, role pkg.Role, content string) pkg.Message {
	return pkg.Message{ID: id, Role: role, Content: content, Timestamp: time.Unix(0, 0).UTC()}
}

func TestTranscript_InitializeCopiesSeed(t *testing.T) {
	seed := []pkg.Message{msg("1", pkg.RoleAssistant, "hi")}
	tr := NewTranscript()
	tr.Initialize(seed)

	seed[0].Content = "mutated"
	assert.Equal(t, "hi", tr.All()[0].Content)
}

func TestTranscript_AppendReturnsSnapshot(t *testing.T) {
	tr := NewTranscript()
	tr.Initialize([]pkg.Message{msg("1", pkg.RoleAssistant, "hi")})

	snap := tr.Append(msg("2", pkg.RoleUser, "hello"))
	require.Len(t, snap, 2)

	snap[0].Content = "mutated"
	tr.Append(msg("3", pkg.RoleAssistant, "namaste"))
	all := tr.All()
	assert.Equal(t, "hi", all[0].Content, "snapshots never alias the log")
	assert.Equal(t, []string{"1", "2", "3"}, ids(all))
}

func TestTranscript_ConcurrentReadsDuringAppend(t *testing.T) {
	tr := NewTranscript()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			tr.Append(msg(fmt.Sprintf("%03d", i), pkg.RoleUser, "x"))
		}(i)
		go func() {
			defer wg.Done()
			prev := -1
			for j := 0; j < 10; j++ {
				n := len(tr.All())
				assert.GreaterOrEqual(t, n, prev, "length never decreases")
				prev = n
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, tr.Len())
}

func TestTranscript_UnsyncedInOrder(t *testing.T) {
	tr := NewTranscript()
	tr.Initialize([]pkg.Message{
		msg("1", pkg.RoleAssistant, "a"),
		msg("2", pkg.RoleUser, "b"),
		msg("3", pkg.RoleAssistant, "c"),
	})
	tr.MarkUnsynced("3")
	tr.MarkUnsynced("1")
	assert.Equal(t, []string{"1", "3"}, ids(tr.Unsynced()))

	tr.MarkSynced("1")
	assert.Equal(t, []string{"3"}, ids(tr.Unsynced()))
}

func TestTranscript_Reset(t *testing.T) {
	tr := NewTranscript()
	tr.Initialize([]pkg.Message{msg("1", pkg.RoleAssistant, "a")})
	tr.MarkUnsynced("1")
	tr.Reset()
	assert.Zero(t, tr.Len())
	assert.Empty(t, tr.Unsynced())
}

func ids(msgs []pkg.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}
