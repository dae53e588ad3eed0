package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archielabs/archie/domain/conversation"
	"github.com/archielabs/archie/domain/event"
	"github.com/archielabs/archie/domain/repository"
	"github.com/archielabs/archie/internal/errs"
)

func newConversationService(store *fakeConversationStore, bus *fakeBus, repos ...repository.Repository) *Conversation {
	return NewConversation(store, newFakeRepositoryStore(repos...), bus, testLogger())
}

func TestConversation_StartResolvesNamesAndPublishes(t *testing.T) {
	engine := indexedRepository("https://github.com/acme/engine")
	console := indexedRepository("https://github.com/acme/console")
	store := newFakeConversationStore()
	bus := &fakeBus{}
	svc := newConversationService(store, bus, engine, console)

	conv, err := svc.Start(context.Background(), "alice", []uuid.UUID{engine.ID(), console.ID()}, "")

	require.NoError(t, err)
	assert.Equal(t, conversation.StatusActive, conv.Status())
	assert.Equal(t, "acme/engine and acme/console", conv.Title())
	assert.True(t, conv.Context().Includes(engine.ID()))
	assert.True(t, conv.Context().Includes(console.ID()))
	assert.Equal(t, []string{"acme/engine", "acme/console"}, conv.Context().RepositoryNames())

	stored, err := store.Get(context.Background(), conv.ID())
	require.NoError(t, err)
	assert.Equal(t, "alice", stored.UserID())

	assert.Contains(t, bus.kinds(), event.KindConversationStarted)
}

func TestConversation_StartKeepsExplicitTitle(t *testing.T) {
	repo := indexedRepository("https://github.com/acme/engine")
	svc := newConversationService(newFakeConversationStore(), &fakeBus{}, repo)

	conv, err := svc.Start(context.Background(), "alice", []uuid.UUID{repo.ID()}, "Debugging the scheduler")

	require.NoError(t, err)
	assert.Equal(t, "Debugging the scheduler", conv.Title())
}

func TestConversation_StartRequiresUser(t *testing.T) {
	repo := indexedRepository("https://github.com/acme/engine")
	svc := newConversationService(newFakeConversationStore(), &fakeBus{}, repo)

	_, err := svc.Start(context.Background(), "", []uuid.UUID{repo.ID()}, "")

	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindUnauthorized))
}

func TestConversation_StartRequiresRepositories(t *testing.T) {
	svc := newConversationService(newFakeConversationStore(), &fakeBus{})

	_, err := svc.Start(context.Background(), "alice", nil, "")

	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindInvalidInput))
}

func TestConversation_StartRejectsUnindexedRepository(t *testing.T) {
	repo := connectedRepository("https://github.com/acme/engine")
	svc := newConversationService(newFakeConversationStore(), &fakeBus{}, repo)

	_, err := svc.Start(context.Background(), "alice", []uuid.UUID{repo.ID()}, "")

	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindInvalidState))
}

func TestConversation_GetEnforcesOwnership(t *testing.T) {
	repo := indexedRepository("https://github.com/acme/engine")
	store := newFakeConversationStore()
	svc := newConversationService(store, &fakeBus{}, repo)

	conv, err := svc.Start(context.Background(), "alice", []uuid.UUID{repo.ID()}, "")
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), conv.ID(), "mallory")

	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindUnauthorized))

	owned, err := svc.Get(context.Background(), conv.ID(), "alice")
	require.NoError(t, err)
	assert.Equal(t, conv.ID(), owned.ID())
}

func TestConversation_ListScopedToUser(t *testing.T) {
	repo := indexedRepository("https://github.com/acme/engine")
	store := newFakeConversationStore()
	svc := newConversationService(store, &fakeBus{}, repo)

	_, err := svc.Start(context.Background(), "alice", []uuid.UUID{repo.ID()}, "first")
	require.NoError(t, err)
	_, err = svc.Start(context.Background(), "alice", []uuid.UUID{repo.ID()}, "second")
	require.NoError(t, err)
	_, err = svc.Start(context.Background(), "bob", []uuid.UUID{repo.ID()}, "other")
	require.NoError(t, err)

	mine, err := svc.List(context.Background(), "alice", nil)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	_, err = svc.List(context.Background(), "", nil)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindUnauthorized))
}

func TestConversation_SearchRequiresTerm(t *testing.T) {
	svc := newConversationService(newFakeConversationStore(), &fakeBus{})

	_, err := svc.Search(context.Background(), "alice", "   ", nil)

	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindInvalidInput))
}

func TestConversation_ArchiveStopsMessages(t *testing.T) {
	repo := indexedRepository("https://github.com/acme/engine")
	store := newFakeConversationStore()
	svc := newConversationService(store, &fakeBus{}, repo)

	conv, err := svc.Start(context.Background(), "alice", []uuid.UUID{repo.ID()}, "")
	require.NoError(t, err)

	archived, err := svc.Archive(context.Background(), conv.ID(), "alice")

	require.NoError(t, err)
	assert.Equal(t, conversation.StatusArchived, archived.Status())
	assert.False(t, archived.CanAcceptMessages())
}

func TestConversation_DeleteRemovesConversation(t *testing.T) {
	repo := indexedRepository("https://github.com/acme/engine")
	store := newFakeConversationStore()
	svc := newConversationService(store, &fakeBus{}, repo)

	conv, err := svc.Start(context.Background(), "alice", []uuid.UUID{repo.ID()}, "")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), conv.ID(), "alice"))

	_, err = svc.Get(context.Background(), conv.ID(), "alice")
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindNotFound))
}

func TestDefaultTitle(t *testing.T) {
	assert.Equal(t, "New conversation", defaultTitle(nil))
	assert.Equal(t, "acme/engine", defaultTitle([]string{"acme/engine"}))
	assert.Equal(t, "a/b and c/d", defaultTitle([]string{"a/b", "c/d"}))
	assert.Equal(t, "a/b and 2 more", defaultTitle([]string{"a/b", "c/d", "e/f"}))
}
