package store

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/supportmesh/core"
)

func TestStore_CreateSession(t *testing.T) {
	s := New()

	ctx, err := s.CreateSession("s-1", Attrs{CustomerEmail: "jane@example.com"})
	assert.NoError(t, err)
	assert.Equal(t, "s-1", ctx.SessionID)
	assert.Equal(t, "jane@example.com", ctx.CustomerEmail)
	assert.Equal(t, core.StatusActive, ctx.Status)

	_, err = s.CreateSession("s-1", Attrs{})
	assert.ErrorIs(t, err, ErrSessionExists)
	assert.Equal(t, 1, s.Count())
}

func TestStore_GetOrCreate(t *testing.T) {
	s := New()

	first := s.GetOrCreate("s-1", Attrs{CustomerID: "c-9"})
	second := s.GetOrCreate("s-1", Attrs{CustomerID: "other"})

	assert.Same(t, first, second)
	assert.Equal(t, "c-9", second.CustomerID, "existing attrs are never overwritten")
	assert.Equal(t, int64(1), s.Stats().SessionsCreated)
}

func TestStore_AddMessageKeepsOrder(t *testing.T) {
	s := New()
	s.GetOrCreate("s-1", Attrs{})

	const n = 25
	for i := 0; i < n; i++ {
		_, ok := s.AddMessage("s-1", core.SenderUser, fmt.Sprintf("message %d", i))
		assert.True(t, ok)
	}

	snap, ok := s.Snapshot("s-1")
	assert.True(t, ok)
	assert.Len(t, snap.Messages, n)
	for i, m := range snap.Messages {
		assert.Equal(t, fmt.Sprintf("message %d", i), m.Text)
	}
}

func TestStore_AddMessageUnknownSession(t *testing.T) {
	s := New()

	_, ok := s.AddMessage("nope", core.SenderUser, "hello")
	assert.False(t, ok)
}

func TestStore_LabelsAttachToLastUserMessage(t *testing.T) {
	s := New()
	s.GetOrCreate("s-1", Attrs{})
	s.AddMessage("s-1", core.SenderUser, "first")
	s.AddMessage("s-1", core.SenderAgent, "agent reply")
	s.AddMessage("s-1", core.SenderUser, "second")

	assert.True(t, s.UpdateSentiment("s-1", core.SentimentNegative))
	assert.True(t, s.UpdateIntent("s-1", "track_order", 0.9))

	snap, _ := s.Snapshot("s-1")
	assert.Equal(t, core.SentimentNegative, snap.CurrentSentiment)
	assert.Equal(t, "track_order", snap.CurrentIntent)
	assert.InDelta(t, 0.9, snap.IntentConfidence, 1e-9)

	// Labels land on the most recent USER message, skipping the agent turn.
	assert.Equal(t, core.SentimentNegative, snap.Messages[2].SentimentLabel)
	assert.Equal(t, "track_order", snap.Messages[2].IntentLabel)
	assert.Empty(t, snap.Messages[0].SentimentLabel)
	assert.Empty(t, snap.Messages[1].SentimentLabel)
}

func TestStore_MergeEntitiesLastWriteWins(t *testing.T) {
	s := New()
	s.GetOrCreate("s-1", Attrs{})
	s.AddMessage("s-1", core.SenderUser, "hello")

	assert.True(t, s.MergeEntities("s-1", map[string]any{"order_id": "ORD-1", "email": "a@b.c"}))
	assert.True(t, s.MergeEntities("s-1", map[string]any{"order_id": "ORD-2"}))

	snap, _ := s.Snapshot("s-1")
	assert.Equal(t, "ORD-2", snap.Entities["order_id"])
	assert.Equal(t, "a@b.c", snap.Entities["email"])
}

func TestStore_SnapshotIsDeepCopy(t *testing.T) {
	s := New()
	s.GetOrCreate("s-1", Attrs{})
	s.AddMessage("s-1", core.SenderUser, "hello")
	s.MergeEntities("s-1", map[string]any{"order_id": "ORD-1"})

	snap, _ := s.Snapshot("s-1")
	snap.Entities["order_id"] = "tampered"
	snap.Messages[0].Text = "tampered"

	fresh, _ := s.Snapshot("s-1")
	assert.Equal(t, "ORD-1", fresh.Entities["order_id"])
	assert.Equal(t, "hello", fresh.Messages[0].Text)
}

func TestStore_Delete(t *testing.T) {
	s := New()
	s.GetOrCreate("s-1", Attrs{})

	ctx, ok := s.Delete("s-1")
	assert.True(t, ok)
	assert.Equal(t, "s-1", ctx.SessionID)
	assert.Equal(t, 0, s.Count())

	_, ok = s.Delete("s-1")
	assert.False(t, ok)

	stats := s.Stats()
	assert.Equal(t, int64(1), stats.SessionsEnded)
	assert.Equal(t, 0, stats.SessionsActive)
}

func TestStore_EscalateAndStatus(t *testing.T) {
	s := New()
	s.GetOrCreate("s-1", Attrs{})

	assert.True(t, s.Escalate("s-1", "NEGATIVE_SENTIMENT_ANGRY"))
	snap, _ := s.Snapshot("s-1")
	assert.Equal(t, core.StatusEscalated, snap.Status)
	assert.Equal(t, "NEGATIVE_SENTIMENT_ANGRY", snap.EscalationReason)

	assert.True(t, s.SetOperator("s-1", "op-1"))
	assert.True(t, s.SetStatus("s-1", core.StatusResolved))
	snap, _ = s.Snapshot("s-1")
	assert.Equal(t, "op-1", snap.OperatorID)
	assert.Equal(t, core.StatusResolved, snap.Status)

	assert.False(t, s.Escalate("nope", "reason"))
	assert.False(t, s.SetStatus("nope", core.StatusResolved))
	assert.False(t, s.SetOperator("nope", "op-1"))
}

func TestStore_ConcurrentCreateSingleWinner(t *testing.T) {
	s := New()

	const goroutines = 16
	var wg sync.WaitGroup
	errs := make(chan error, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.CreateSession("s-1", Attrs{}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	failures := 0
	for err := range errs {
		assert.ErrorIs(t, err, ErrSessionExists)
		failures++
	}
	assert.Equal(t, goroutines-1, failures, "exactly one create wins")
	assert.Equal(t, 1, s.Count())
}
