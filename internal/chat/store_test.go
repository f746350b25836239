package chat

import (
	"testing"
	"time"

	"github.com/soyeahso/matchchat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	me   = "u1"
	them = "u2"
)

func confirmed(id, sender, body string) domain.Message {
	receiver := them
	if sender == them {
		receiver = me
	}
	return domain.Message{ID: id, SenderID: sender, ReceiverID: receiver, Body: body, CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func identities(msgs []domain.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Identity()
	}
	return out
}

func sentEvent(tempID, id string) domain.MessageSentEvent {
	return domain.MessageSentEvent{Message: domain.Message{ID: id, TempID: tempID, SenderID: me, ReceiverID: them}}
}

func TestStore_ConfirmationMutatesInPlace(t *testing.T) {
	s := NewStore(me, them, 0)

	pending, err := s.AddPending("  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "hello", pending.Body)
	assert.NotEmpty(t, pending.TempID)
	assert.Empty(t, pending.ID)
	assert.True(t, pending.IsPending())

	got, ok := s.Confirm(sentEvent(pending.TempID, "X"))
	require.True(t, ok)
	assert.Equal(t, "X", got.ID)

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "X", msgs[0].ID)
	assert.Empty(t, msgs[0].TempID)
	assert.True(t, msgs[0].IsConfirmed())
	assert.Equal(t, "hello", msgs[0].Body)
}

func TestStore_ConfirmTwiceIsNoop(t *testing.T) {
	s := NewStore(me, them, 0)
	pending, _ := s.AddPending("hello")

	_, ok := s.Confirm(sentEvent(pending.TempID, "X"))
	require.True(t, ok)
	_, ok = s.Confirm(sentEvent(pending.TempID, "X"))
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len())
}

func TestStore_ConfirmUsesServerTimestamp(t *testing.T) {
	s := NewStore(me, them, 0)
	pending, _ := s.AddPending("hello")

	serverTime := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	evt := sentEvent(pending.TempID, "X")
	evt.CreatedAt = serverTime
	got, ok := s.Confirm(evt)
	require.True(t, ok)
	assert.Equal(t, serverTime, got.CreatedAt)
}

func TestStore_OrphanConfirmation(t *testing.T) {
	s := NewStore(me, them, 0)
	s.AddPending("hello")

	_, ok := s.Confirm(sentEvent("unknown-token", "X"))
	assert.False(t, ok)
	_, ok = s.Confirm(sentEvent("", "X"))
	assert.False(t, ok)

	assert.Equal(t, 1, s.Len())
	_, found := s.Find("X")
	assert.False(t, found)
}

func TestStore_ConfirmationWithoutIDKeepsPending(t *testing.T) {
	s := NewStore(me, them, 0)
	pending, _ := s.AddPending("hello")

	_, ok := s.Confirm(sentEvent(pending.TempID, ""))
	assert.False(t, ok)

	got, found := s.Find(pending.TempID)
	require.True(t, found)
	assert.True(t, got.IsPending())
	assert.Empty(t, got.ID)

	// the real confirmation still lands afterwards
	got, ok = s.Confirm(sentEvent(pending.TempID, "X"))
	require.True(t, ok)
	assert.Equal(t, "X", got.ID)
	assert.True(t, got.IsConfirmed())
}

func TestStore_SelfEchoDiscarded(t *testing.T) {
	s := NewStore(me, them, 0)
	pending, _ := s.AddPending("hello")

	echo := domain.Message{ID: "X", TempID: pending.TempID, SenderID: me, ReceiverID: them, Body: "hello"}
	assert.Equal(t, Discarded, s.ApplyRemote(echo))
	assert.Equal(t, 1, s.Len())

	assert.Equal(t, Discarded, s.ApplyRemote(domain.Message{ID: "Y", SenderID: me, Body: "from another device"}))
	assert.Equal(t, 1, s.Len())
}

func TestStore_ApplyRemote(t *testing.T) {
	s := NewStore(me, them, 0)

	assert.Equal(t, Inserted, s.ApplyRemote(confirmed("r1", them, "hi")))
	assert.Equal(t, Duplicate, s.ApplyRemote(confirmed("r1", them, "hi")))
	assert.Equal(t, Ignored, s.ApplyRemote(confirmed("r2", "u9", "wrong chat")))

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].IsConfirmed())
	assert.Equal(t, domain.KindText, msgs[0].Kind)
}

func TestStore_ApplyRemoteRejectsMissingID(t *testing.T) {
	s := NewStore(me, them, 0)

	assert.Equal(t, Rejected, s.ApplyRemote(confirmed("", them, "first")))
	assert.Equal(t, Rejected, s.ApplyRemote(confirmed("", them, "second")))
	assert.Zero(t, s.Len())
	assert.Equal(t, "rejected", Rejected.String())

	_, found := s.Find("")
	assert.False(t, found)
}

func TestStore_EmptyBodyRejected(t *testing.T) {
	s := NewStore(me, them, 0)

	_, err := s.AddPending("   \n\t")
	assert.ErrorIs(t, err, ErrEmptyBody)
	assert.Zero(t, s.Len())
}

func TestStore_HistoryThenSendPreservesOrder(t *testing.T) {
	s := NewStore(me, them, 0)
	s.LoadHistory([]domain.Message{
		confirmed("m1", them, "one"),
		confirmed("m2", me, "two"),
		confirmed("m3", them, "three"),
	})

	m4, err := s.AddPending("four")
	require.NoError(t, err)

	assert.Equal(t, []string{"m1", "m2", "m3", m4.TempID}, identities(s.Messages()))
	for _, m := range s.Messages()[:3] {
		assert.True(t, m.IsConfirmed())
	}
}

func TestStore_HistoryIsNotResorted(t *testing.T) {
	s := NewStore(me, them, 0)
	late := confirmed("late", them, "b")
	early := confirmed("early", them, "a")
	early.CreatedAt = late.CreatedAt.Add(time.Hour)

	s.LoadHistory([]domain.Message{late, early})
	assert.Equal(t, []string{"late", "early"}, identities(s.Messages()))
}

func TestStore_LiveBeforeHistory(t *testing.T) {
	t.Run("history contains the live message", func(t *testing.T) {
		s := NewStore(me, them, 0)
		s.ApplyRemote(confirmed("r1", them, "hi"))

		s.LoadHistory([]domain.Message{confirmed("m1", them, "old"), confirmed("r1", them, "hi")})
		assert.Equal(t, []string{"m1", "r1"}, identities(s.Messages()))
	})

	t.Run("history predates the live message", func(t *testing.T) {
		s := NewStore(me, them, 0)
		s.ApplyRemote(confirmed("r1", them, "hi"))
		pending, _ := s.AddPending("reply")

		s.LoadHistory([]domain.Message{confirmed("m1", them, "old")})
		assert.Equal(t, []string{"m1", "r1", pending.TempID}, identities(s.Messages()))
	})

	t.Run("history already has the pending send", func(t *testing.T) {
		s := NewStore(me, them, 0)
		pending, _ := s.AddPending("reply")

		persisted := confirmed("X", me, "reply")
		persisted.TempID = pending.TempID
		s.LoadHistory([]domain.Message{persisted})
		assert.Equal(t, []string{"X"}, identities(s.Messages()))

		_, ok := s.Confirm(sentEvent(pending.TempID, "X"))
		assert.False(t, ok)
		assert.Equal(t, 1, s.Len())
	})
}

func TestStore_ReloadDropsPreviousHistory(t *testing.T) {
	s := NewStore(me, them, 0)
	s.LoadHistory([]domain.Message{confirmed("m1", them, "a"), confirmed("m2", them, "b")})
	s.LoadHistory([]domain.Message{confirmed("m2", them, "b"), confirmed("m3", them, "c")})

	assert.Equal(t, []string{"m2", "m3"}, identities(s.Messages()))
}

func TestStore_HistoryDeduplicates(t *testing.T) {
	s := NewStore(me, them, 0)
	s.LoadHistory([]domain.Message{confirmed("m1", them, "a"), confirmed("m1", them, "a")})
	assert.Equal(t, 1, s.Len())
}

func TestStore_ConfirmFoldsIntoHistoryCopy(t *testing.T) {
	s := NewStore(me, them, 0)
	pending, _ := s.AddPending("hello")
	s.LoadHistory([]domain.Message{confirmed("m1", them, "hi"), confirmed("X", me, "hello")})
	require.Equal(t, []string{"m1", "X", pending.TempID}, identities(s.Messages()))

	got, ok := s.Confirm(sentEvent(pending.TempID, "X"))
	require.True(t, ok)
	assert.Equal(t, "X", got.ID)
	assert.Equal(t, []string{"m1", "X"}, identities(s.Messages()))
}

func TestStore_ExpirePendingThenLateConfirm(t *testing.T) {
	s := NewStore(me, them, 30*time.Second)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	first, _ := s.AddPending("first")
	s.now = func() time.Time { return base.Add(20 * time.Second) }
	second, _ := s.AddPending("second")

	failed := s.ExpirePending(base.Add(30 * time.Second))
	require.Len(t, failed, 1)
	assert.Equal(t, first.TempID, failed[0].TempID)
	assert.Equal(t, domain.StatusFailed, failed[0].Status)

	m, _ := s.Find(second.TempID)
	assert.True(t, m.IsPending())
	assert.Empty(t, s.ExpirePending(base.Add(31*time.Second)))

	got, ok := s.Confirm(sentEvent(first.TempID, "X"))
	require.True(t, ok)
	assert.True(t, got.IsConfirmed())
	assert.Equal(t, []string{"X", second.TempID}, identities(s.Messages()))
}

func TestStore_ExpireDisabled(t *testing.T) {
	s := NewStore(me, them, 0)
	s.AddPending("hello")
	assert.Empty(t, s.ExpirePending(time.Now().Add(24*time.Hour)))
}

func TestStore_Find(t *testing.T) {
	s := NewStore(me, them, 0)
	s.LoadHistory([]domain.Message{confirmed("m1", them, "a")})
	pending, _ := s.AddPending("b")

	m, ok := s.Find("m1")
	require.True(t, ok)
	assert.Equal(t, "a", m.Body)

	m, ok = s.Find(pending.TempID)
	require.True(t, ok)
	assert.Equal(t, "b", m.Body)

	_, ok = s.Find("")
	assert.False(t, ok)
}

func TestStore_MessagesIsACopy(t *testing.T) {
	s := NewStore(me, them, 0)
	s.AddPending("hello")

	msgs := s.Messages()
	msgs[0].Body = "changed"
	assert.Equal(t, "hello", s.Messages()[0].Body)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "discarded", Discarded.String())
	assert.Equal(t, "ignored", Ignored.String())
	assert.Equal(t, "duplicate", Duplicate.String())
	assert.Equal(t, "inserted", Inserted.String())
}
