package service

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/archielabs/archie/domain/conversation"
	"github.com/archielabs/archie/domain/document"
	"github.com/archielabs/archie/domain/event"
	"github.com/archielabs/archie/domain/githost"
	"github.com/archielabs/archie/domain/graph"
	"github.com/archielabs/archie/domain/llm"
	"github.com/archielabs/archie/domain/repository"
	"github.com/archielabs/archie/domain/search"
	"github.com/archielabs/archie/domain/task"
	"github.com/archielabs/archie/internal/errs"
	"github.com/google/uuid"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// connectedRepository returns a repository in the Connected state, as it
// would be right after a successful add.
func connectedRepository(url string) repository.Repository {
	remote, err := repository.ParseRemote(url)
	if err != nil {
		panic(err)
	}
	repo := repository.NewRepository(remote)
	repo, _ = repo.TransitionTo(repository.StatusConnected)
	return repo
}

// indexedRepository returns a Ready repository with a recorded indexed
// commit.
func indexedRepository(url string) repository.Repository {
	repo := connectedRepository(url)
	repo, _ = repo.TransitionTo(repository.StatusAnalyzing)
	repo, _ = repo.TransitionTo(repository.StatusReady)
	return repo.WithIndexedCommit("abc123", time.Now().UTC())
}

type fakeRepositoryStore struct {
	mu    sync.Mutex
	repos map[uuid.UUID]repository.Repository
}

func newFakeRepositoryStore(repos ...repository.Repository) *fakeRepositoryStore {
	s := &fakeRepositoryStore{repos: make(map[uuid.UUID]repository.Repository)}
	for _, r := range repos {
		s.repos[r.ID()] = r
	}
	return s
}

func (f *fakeRepositoryStore) Save(_ context.Context, repo repository.Repository) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repos[repo.ID()] = repo
	return nil
}

func (f *fakeRepositoryStore) Get(_ context.Context, id uuid.UUID) (repository.Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	repo, ok := f.repos[id]
	if !ok {
		return repository.Repository{}, errs.Newf(errs.KindNotFound, "repository %s not found", id)
	}
	return repo, nil
}

func (f *fakeRepositoryStore) GetByURL(_ context.Context, url string) (repository.Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, repo := range f.repos {
		if repo.URL() == url {
			return repo, nil
		}
	}
	return repository.Repository{}, errs.Newf(errs.KindNotFound, "repository %s not found", url)
}

func (f *fakeRepositoryStore) Find(_ context.Context, _ ...repository.Option) ([]repository.Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]repository.Repository, 0, len(f.repos))
	for _, repo := range f.repos {
		result = append(result, repo)
	}
	return result, nil
}

func (f *fakeRepositoryStore) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.repos[id]
	return ok, nil
}

func (f *fakeRepositoryStore) Count(_ context.Context, _ ...repository.Option) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.repos)), nil
}

func (f *fakeRepositoryStore) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.repos, id)
	return nil
}

func (f *fakeRepositoryStore) get(id uuid.UUID) repository.Repository {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.repos[id]
}

type fakeTaskStore struct {
	mu     sync.Mutex
	nextID int64
	tasks  []task.Task
}

func (f *fakeTaskStore) Get(_ context.Context, id int64) (task.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tasks {
		if t.ID() == id {
			return t, nil
		}
	}
	return task.Task{}, errs.Newf(errs.KindNotFound, "task %d not found", id)
}

func (f *fakeTaskStore) FindAll(_ context.Context) ([]task.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]task.Task, len(f.tasks))
	copy(result, f.tasks)
	return result, nil
}

func (f *fakeTaskStore) FindPending(_ context.Context, _ ...repository.Option) ([]task.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]task.Task, len(f.tasks))
	copy(result, f.tasks)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Priority() > result[j].Priority()
	})
	return result, nil
}

func (f *fakeTaskStore) Save(_ context.Context, t task.Task) (task.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.tasks {
		if existing.DedupKey() == t.DedupKey() {
			return existing, nil
		}
	}
	f.nextID++
	saved := t.WithID(f.nextID).WithTimestamps(time.Now(), time.Now())
	f.tasks = append(f.tasks, saved)
	return saved, nil
}

func (f *fakeTaskStore) SaveBulk(ctx context.Context, tasks []task.Task) ([]task.Task, error) {
	saved := make([]task.Task, 0, len(tasks))
	for _, t := range tasks {
		s, err := f.Save(ctx, t)
		if err != nil {
			return nil, err
		}
		saved = append(saved, s)
	}
	return saved, nil
}

func (f *fakeTaskStore) Delete(_ context.Context, t task.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.tasks {
		if existing.ID() == t.ID() {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeTaskStore) DeleteAll(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = nil
	return nil
}

func (f *fakeTaskStore) CountPending(_ context.Context, _ ...repository.Option) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.tasks)), nil
}

func (f *fakeTaskStore) Exists(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tasks {
		if t.ID() == id {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeTaskStore) Dequeue(_ context.Context) (task.Task, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.tasks) == 0 {
		return task.Task{}, false, nil
	}
	best := 0
	for i, t := range f.tasks {
		if t.Priority() > f.tasks[best].Priority() {
			best = i
		}
	}
	dequeued := f.tasks[best]
	f.tasks = append(f.tasks[:best], f.tasks[best+1:]...)
	return dequeued, true, nil
}

func (f *fakeTaskStore) DequeueByOperation(_ context.Context, operation task.Operation) (task.Task, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.tasks {
		if t.Operation() == operation {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return t, true, nil
		}
	}
	return task.Task{}, false, nil
}

func (f *fakeTaskStore) savedTasks() []task.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]task.Task, len(f.tasks))
	copy(result, f.tasks)
	return result
}

type fakeTaskStatusStore struct {
	mu       sync.Mutex
	statuses map[string]task.Status
}

func newFakeTaskStatusStore() *fakeTaskStatusStore {
	return &fakeTaskStatusStore{statuses: make(map[string]task.Status)}
}

func (f *fakeTaskStatusStore) Get(_ context.Context, id string) (task.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.statuses[id]
	if !ok {
		return task.Status{}, errs.Newf(errs.KindNotFound, "status %s not found", id)
	}
	return s, nil
}

func (f *fakeTaskStatusStore) FindByTrackable(_ context.Context, trackableType task.TrackableType, trackableID string) ([]task.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []task.Status
	for _, s := range f.statuses {
		if s.TrackableType() == trackableType && s.TrackableID() == trackableID {
			result = append(result, s)
		}
	}
	return result, nil
}

func (f *fakeTaskStatusStore) Save(_ context.Context, status task.Status) (task.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[status.ID()] = status
	return status, nil
}

func (f *fakeTaskStatusStore) SaveBulk(ctx context.Context, statuses []task.Status) ([]task.Status, error) {
	saved := make([]task.Status, 0, len(statuses))
	for _, s := range statuses {
		stored, err := f.Save(ctx, s)
		if err != nil {
			return nil, err
		}
		saved = append(saved, stored)
	}
	return saved, nil
}

func (f *fakeTaskStatusStore) Delete(_ context.Context, status task.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.statuses, status.ID())
	return nil
}

func (f *fakeTaskStatusStore) DeleteByTrackable(_ context.Context, trackableType task.TrackableType, trackableID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, s := range f.statuses {
		if s.TrackableType() == trackableType && s.TrackableID() == trackableID {
			delete(f.statuses, id)
		}
	}
	return nil
}

func (f *fakeTaskStatusStore) Count(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.statuses)), nil
}

func (f *fakeTaskStatusStore) LoadWithHierarchy(ctx context.Context, trackableType task.TrackableType, trackableID string) ([]task.Status, error) {
	return f.FindByTrackable(ctx, trackableType, trackableID)
}

func (f *fakeTaskStatusStore) byTrackable(trackableType task.TrackableType, trackableID string) []task.Status {
	statuses, _ := f.FindByTrackable(context.Background(), trackableType, trackableID)
	return statuses
}

type fakeDocumentStore struct {
	mu   sync.Mutex
	docs map[uuid.UUID]document.Document
}

func newFakeDocumentStore(docs ...document.Document) *fakeDocumentStore {
	s := &fakeDocumentStore{docs: make(map[uuid.UUID]document.Document)}
	for _, d := range docs {
		s.docs[d.ID()] = d
	}
	return s
}

func (f *fakeDocumentStore) Upsert(_ context.Context, docs []document.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range docs {
		f.docs[d.ID()] = d
	}
	return nil
}

func (f *fakeDocumentStore) Get(_ context.Context, id uuid.UUID) (document.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return document.Document{}, errs.Newf(errs.KindNotFound, "document %s not found", id)
	}
	return d, nil
}

func (f *fakeDocumentStore) Find(_ context.Context, options ...repository.Option) ([]document.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	q := repository.Build(options...)
	ids, hasIDFilter := queryConditionIn(q, "id")
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	var result []document.Document
	for _, d := range f.docs {
		if hasIDFilter {
			if _, ok := wanted[d.ID().String()]; !ok {
				continue
			}
		}
		result = append(result, d)
	}
	return result, nil
}

func (f *fakeDocumentStore) Count(_ context.Context, _ ...repository.Option) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.docs)), nil
}

func (f *fakeDocumentStore) PathSHAs(_ context.Context, repositoryID uuid.UUID, branch string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	shas := make(map[string]string)
	for _, d := range f.docs {
		if d.RepositoryID() == repositoryID && d.Branch() == branch {
			shas[d.Path()] = d.BlobSHA()
		}
	}
	return shas, nil
}

func (f *fakeDocumentStore) DeleteByPath(_ context.Context, repositoryID uuid.UUID, branch, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, d := range f.docs {
		if d.RepositoryID() == repositoryID && d.Branch() == branch && d.Path() == path {
			delete(f.docs, id)
		}
	}
	return nil
}

func (f *fakeDocumentStore) DeleteChunksFrom(_ context.Context, repositoryID uuid.UUID, branch, path string, firstStale int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, d := range f.docs {
		if d.RepositoryID() == repositoryID && d.Branch() == branch && d.Path() == path && d.ChunkIndex() >= firstStale {
			delete(f.docs, id)
		}
	}
	return nil
}

func (f *fakeDocumentStore) DeleteByRepository(_ context.Context, repositoryID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, d := range f.docs {
		if d.RepositoryID() == repositoryID {
			delete(f.docs, id)
		}
	}
	return nil
}

func (f *fakeDocumentStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.docs)
}

type fakeDocumentStatusStore struct {
	mu       sync.Mutex
	statuses map[uuid.UUID]document.IndexStatus
}

func newFakeDocumentStatusStore() *fakeDocumentStatusStore {
	return &fakeDocumentStatusStore{statuses: make(map[uuid.UUID]document.IndexStatus)}
}

func (f *fakeDocumentStatusStore) Get(_ context.Context, repositoryID uuid.UUID) (document.IndexStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.statuses[repositoryID]
	if !ok {
		return document.NewIndexStatus(repositoryID), nil
	}
	return s, nil
}

func (f *fakeDocumentStatusStore) Save(_ context.Context, status document.IndexStatus) (document.IndexStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[status.RepositoryID()] = status
	return status, nil
}

func (f *fakeDocumentStatusStore) Delete(_ context.Context, repositoryID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.statuses, repositoryID)
	return nil
}

type fakeKeywordStore struct {
	mu      sync.Mutex
	results []search.Result
	indexed int
	deletes int
	findErr error
}

func (f *fakeKeywordStore) Index(_ context.Context, request search.IndexRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed += len(request.Documents())
	return nil
}

func (f *fakeKeywordStore) Find(_ context.Context, _ ...repository.Option) ([]search.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	result := make([]search.Result, len(f.results))
	copy(result, f.results)
	return result, nil
}

func (f *fakeKeywordStore) DeleteBy(_ context.Context, _ ...repository.Option) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	return nil
}

type fakeVectorStore struct {
	mu      sync.Mutex
	results []search.Result
	saved   []search.Embedding
	deletes int
}

func (f *fakeVectorStore) SaveAll(_ context.Context, embeddings []search.Embedding) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, embeddings...)
	return nil
}

func (f *fakeVectorStore) Search(_ context.Context, _ ...repository.Option) ([]search.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]search.Result, len(f.results))
	copy(result, f.results)
	return result, nil
}

func (f *fakeVectorStore) HasEmbeddings(_ context.Context, documentIDs []string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	have := make(map[string]bool, len(documentIDs))
	for _, id := range documentIDs {
		have[id] = false
	}
	for _, e := range f.saved {
		if _, ok := have[e.DocumentID()]; ok {
			have[e.DocumentID()] = true
		}
	}
	return have, nil
}

func (f *fakeVectorStore) DeleteBy(_ context.Context, _ ...repository.Option) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	return nil
}

type fakeEmbedder struct {
	mu     sync.Mutex
	vector []float64
	calls  int
	err    error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.calls++
	vectors := make([][]float64, len(texts))
	for i := range texts {
		vectors[i] = append([]float64(nil), f.vector...)
	}
	return vectors, nil
}

type fakeGraphStore struct {
	mu            sync.Mutex
	builds        map[uuid.UUID]graph.Build
	entities      []graph.Entity
	relationships []graph.Relationship
	patterns      []graph.Pattern
}

func newFakeGraphStore() *fakeGraphStore {
	return &fakeGraphStore{builds: make(map[uuid.UUID]graph.Build)}
}

func (f *fakeGraphStore) ReplaceBuild(_ context.Context, build graph.Build, entities []graph.Entity, relationships []graph.Relationship, patterns []graph.Pattern) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builds[build.RepositoryID()] = build
	f.entities = append([]graph.Entity(nil), entities...)
	f.relationships = append([]graph.Relationship(nil), relationships...)
	f.patterns = append([]graph.Pattern(nil), patterns...)
	return nil
}

func (f *fakeGraphStore) CurrentBuild(_ context.Context, repositoryID uuid.UUID) (graph.Build, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.builds[repositoryID]
	if !ok {
		return graph.Build{}, errs.Newf(errs.KindNotFound, "no graph build for repository %s", repositoryID)
	}
	return b, nil
}

func (f *fakeGraphStore) Entities(_ context.Context, _ ...repository.Option) ([]graph.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]graph.Entity(nil), f.entities...), nil
}

func (f *fakeGraphStore) Entity(_ context.Context, entityID string) (graph.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entities {
		if e.EntityID() == entityID {
			return e, nil
		}
	}
	return graph.Entity{}, errs.Newf(errs.KindNotFound, "entity %s not found", entityID)
}

func (f *fakeGraphStore) Relationships(_ context.Context, _ ...repository.Option) ([]graph.Relationship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]graph.Relationship(nil), f.relationships...), nil
}

func (f *fakeGraphStore) Patterns(_ context.Context, _ ...repository.Option) ([]graph.Pattern, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]graph.Pattern(nil), f.patterns...), nil
}

func (f *fakeGraphStore) CountEntities(_ context.Context, _ ...repository.Option) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entities), nil
}

func (f *fakeGraphStore) DeleteByRepository(_ context.Context, repositoryID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.builds, repositoryID)
	f.entities = nil
	f.relationships = nil
	f.patterns = nil
	return nil
}

type fakeConversationStore struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]conversation.Conversation
	messages      map[uuid.UUID][]conversation.Message
	appendErrs    int
}

func newFakeConversationStore() *fakeConversationStore {
	return &fakeConversationStore{
		conversations: make(map[uuid.UUID]conversation.Conversation),
		messages:      make(map[uuid.UUID][]conversation.Message),
	}
}

func (f *fakeConversationStore) Save(_ context.Context, conv conversation.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conversations[conv.ID()] = conv
	return nil
}

func (f *fakeConversationStore) Get(_ context.Context, id uuid.UUID) (conversation.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.conversations[id]
	if !ok {
		return conversation.Conversation{}, errs.Newf(errs.KindNotFound, "conversation %s not found", id)
	}
	return conv, nil
}

func (f *fakeConversationStore) Find(_ context.Context, options ...repository.Option) ([]conversation.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	q := repository.Build(options...)
	userID, filterUser := queryCondition(q, "user_id")

	var result []conversation.Conversation
	for _, conv := range f.conversations {
		if filterUser && conv.UserID() != userID {
			continue
		}
		result = append(result, conv)
	}
	return result, nil
}

func (f *fakeConversationStore) Count(_ context.Context, _ ...repository.Option) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conversations), nil
}

func (f *fakeConversationStore) AppendMessages(_ context.Context, conversationID uuid.UUID, messages []conversation.Message) ([]conversation.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.appendErrs > 0 {
		f.appendErrs--
		return nil, errs.New(errs.KindInternal, "append failed")
	}

	conv, ok := f.conversations[conversationID]
	if !ok {
		return nil, errs.Newf(errs.KindNotFound, "conversation %s not found", conversationID)
	}

	existing := f.messages[conversationID]
	appended := make([]conversation.Message, 0, len(messages))
	for i, msg := range messages {
		appended = append(appended, msg.WithPosition(len(existing)+i))
	}
	f.messages[conversationID] = append(existing, appended...)
	f.conversations[conversationID] = conv.WithAppended(len(appended))
	return appended, nil
}

func (f *fakeConversationStore) Messages(_ context.Context, conversationID uuid.UUID, _ ...repository.Option) ([]conversation.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]conversation.Message(nil), f.messages[conversationID]...), nil
}

func (f *fakeConversationStore) LastMessages(_ context.Context, conversationID uuid.UUID, limit int) ([]conversation.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.messages[conversationID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]conversation.Message(nil), msgs...), nil
}

func (f *fakeConversationStore) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.conversations, id)
	delete(f.messages, id)
	return nil
}

func (f *fakeConversationStore) storedMessages(conversationID uuid.UUID) []conversation.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]conversation.Message(nil), f.messages[conversationID]...)
}

type fakeGitProvider struct {
	mu          sync.Mutex
	info        githost.RepositoryInfo
	branches    []githost.BranchInfo
	tree        githost.Tree
	files       map[string]string
	commits     []repository.Commit
	accessErr   error
	accessCalls int
}

func (f *fakeGitProvider) ValidateAccess(_ context.Context, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accessCalls++
	return f.accessErr
}

func (f *fakeGitProvider) GetRepository(_ context.Context, _, _ string) (githost.RepositoryInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.info, nil
}

func (f *fakeGitProvider) GetBranches(_ context.Context, _, _ string) ([]githost.BranchInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]githost.BranchInfo(nil), f.branches...), nil
}

func (f *fakeGitProvider) GetTree(_ context.Context, _, _, _ string, _ bool) (githost.Tree, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tree, nil
}

func (f *fakeGitProvider) GetFileContent(_ context.Context, _, _, path, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.files[path], nil
}

func (f *fakeGitProvider) GetCommitHistory(_ context.Context, _, _, _ string, limit int) ([]repository.Commit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	commits := f.commits
	if len(commits) > limit {
		commits = commits[:limit]
	}
	return append([]repository.Commit(nil), commits...), nil
}

type fakeLLMProvider struct {
	mu          sync.Mutex
	intent      llm.Intent
	intentErr   error
	completion  llm.Completion
	completeErr error
	followUps   []string
	followErr   error
	completions int
}

func (f *fakeLLMProvider) ClassifyIntent(_ context.Context, _, _ string) (llm.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.intentErr != nil {
		return llm.Intent{}, f.intentErr
	}
	return f.intent, nil
}

func (f *fakeLLMProvider) Complete(_ context.Context, _ string, _ []llm.ContextDocument, _ []llm.Turn, _ map[string]string) (llm.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completeErr != nil {
		return llm.Completion{}, f.completeErr
	}
	f.completions++
	return f.completion, nil
}

func (f *fakeLLMProvider) SuggestFollowUps(_ context.Context, _, _, _ string, n int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.followErr != nil {
		return nil, f.followErr
	}
	followUps := f.followUps
	if len(followUps) > n {
		followUps = followUps[:n]
	}
	return append([]string(nil), followUps...), nil
}

type fakeBus struct {
	mu     sync.Mutex
	events []event.Event
}

func (f *fakeBus) Publish(_ context.Context, e event.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

func (f *fakeBus) PublishBatch(ctx context.Context, events []event.Event) error {
	for _, e := range events {
		if err := f.Publish(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeBus) Subscribe(_ event.Kind, _ event.Handler) {}

func (f *fakeBus) published() []event.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]event.Event(nil), f.events...)
}

func (f *fakeBus) kinds() []event.Kind {
	f.mu.Lock()
	defer f.mu.Unlock()
	kinds := make([]event.Kind, 0, len(f.events))
	for _, e := range f.events {
		kinds = append(kinds, e.Kind())
	}
	return kinds
}

func containsKind(kinds []event.Kind, kind event.Kind) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// queryCondition extracts an equality condition value from a built query.
func queryCondition(q repository.Query, field string) (any, bool) {
	for _, c := range q.Conditions() {
		if !c.In() && !c.IsRaw() && c.Field() == field {
			return c.Value(), true
		}
	}
	return nil, false
}

// queryConditionIn extracts an IN condition's values from a built query.
func queryConditionIn(q repository.Query, field string) ([]string, bool) {
	for _, c := range q.Conditions() {
		if c.In() && c.Field() == field {
			values, ok := c.Value().([]string)
			return values, ok
		}
	}
	return nil, false
}

func repoURL(name string) string {
	return "https://github.com/acme/" + strings.ToLower(name)
}
