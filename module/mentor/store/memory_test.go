package store_test

import (
	"context"
	"testing"
	"time"

	"PMentor/module/mentor/model"
	"PMentor/module/mentor/store"
	"PMentor/tools/errs"

	"github.com/stretchr/testify/require"
)

func TestMemoryMessages(t *testing.T) {
	ctx := context.Background()

	t.Run("should mark read only for the receiver", func(t *testing.T) {
		req := require.New(t)
		s := store.NewMemory()
		_, err := s.Save(ctx, &model.Message{ID: "m-1", SenderID: "a", ReceiverID: "b", Content: "hello"})
		req.NoError(err)

		_, err = s.MarkRead(ctx, "m-1", "a")
		req.True(errs.ErrRecordNotFound.Is(err))

		got, err := s.MarkRead(ctx, "m-1", "b")
		req.NoError(err)
		req.True(got.IsRead)

		again, err := s.MarkRead(ctx, "m-1", "b")
		req.NoError(err)
		req.True(again.IsRead)
	})

	t.Run("should return the conversation in both directions oldest first", func(t *testing.T) {
		req := require.New(t)
		s := store.NewMemory()
		base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
		_, _ = s.Save(ctx, &model.Message{ID: "2", SenderID: "b", ReceiverID: "a", SentAt: base.Add(time.Minute)})
		_, _ = s.Save(ctx, &model.Message{ID: "1", SenderID: "a", ReceiverID: "b", SentAt: base})
		_, _ = s.Save(ctx, &model.Message{ID: "3", SenderID: "a", ReceiverID: "c", SentAt: base})

		conv, err := s.Conversation(ctx, "a", "b")
		req.NoError(err)
		req.Len(conv, 2)
		req.Equal("1", conv[0].ID)
		req.Equal("2", conv[1].ID)
	})

	t.Run("should not share state with callers", func(t *testing.T) {
		req := require.New(t)
		s := store.NewMemory()
		m := &model.Message{ID: "m-1", ReceiverID: "b", Content: "hello"}
		saved, err := s.Save(ctx, m)
		req.NoError(err)
		saved.Content = "mutated"
		m.Content = "mutated too"

		conv, err := s.Conversation(ctx, "", "b")
		req.NoError(err)
		req.Equal("hello", conv[0].Content)
	})
}

func TestMemoryConnections(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("should reject a duplicate triple", func(t *testing.T) {
		req := require.New(t)
		conns := store.NewMemory().Connections()
		_, err := conns.Save(ctx, &model.Connection{ID: "c-1", RequesterID: "a", TargetID: "b", Type: model.ConnectionConnect, Status: model.StatusPending, RequestedAt: now})
		req.NoError(err)

		_, err = conns.Save(ctx, &model.Connection{ID: "c-2", RequesterID: "a", TargetID: "b", Type: model.ConnectionConnect, Status: model.StatusPending, RequestedAt: now})
		req.True(errs.ErrDuplicateKey.Is(err))

		_, err = conns.Save(ctx, &model.Connection{ID: "c-3", RequesterID: "a", TargetID: "b", Type: model.ConnectionMentorship, Status: model.StatusPending, RequestedAt: now})
		req.NoError(err)

		ok, err := conns.Exists(ctx, "a", "b", model.ConnectionConnect)
		req.NoError(err)
		req.True(ok)
	})

	t.Run("should update in place and filter listings", func(t *testing.T) {
		req := require.New(t)
		conns := store.NewMemory().Connections()
		c, err := conns.Save(ctx, &model.Connection{ID: "c-1", RequesterID: "a", TargetID: "b", Type: model.ConnectionConnect, Status: model.StatusPending, RequestedAt: now})
		req.NoError(err)

		pending, err := conns.ListByTarget(ctx, "b", model.StatusPending)
		req.NoError(err)
		req.Len(pending, 1)

		responded := now.Add(time.Hour)
		c.Status = model.StatusAccepted
		c.RespondedAt = &responded
		_, err = conns.Save(ctx, c)
		req.NoError(err)

		pending, err = conns.ListByTarget(ctx, "b", model.StatusPending)
		req.NoError(err)
		req.Empty(pending)

		for _, user := range []string{"a", "b"} {
			accepted, err := conns.ListAccepted(ctx, user)
			req.NoError(err)
			req.Len(accepted, 1)
			req.Equal(responded, *accepted[0].RespondedAt)
		}

		_, err = conns.Get(ctx, "missing")
		req.True(errs.ErrRecordNotFound.Is(err))
	})
}

func TestMemoryDirectory(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := store.NewMemory()
	s.PutProfile(model.Profile{UserID: "a", Email: "ada@example.org", Name: "Ada", Role: model.RoleMentor})
	s.PutProfile(model.Profile{UserID: "b", Email: "bo@example.org", Role: model.RoleParticipant})

	name, err := s.DisplayName(ctx, "a")
	req.NoError(err)
	req.Equal("Ada", name)

	_, err = s.DisplayName(ctx, "b")
	req.True(errs.ErrRecordNotFound.Is(err))

	_, err = s.Lookup(ctx, "nobody")
	req.True(errs.ErrRecordNotFound.Is(err))
}
