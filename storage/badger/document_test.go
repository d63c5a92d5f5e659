package badger

import (
	"context"
	"testing"

	"github.com/poiesic/answerit/core"
	"github.com/poiesic/answerit/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDocumentRepo(t *testing.T) storage.DocumentRepository {
	backend, err := OpenBackend(t.TempDir(), false)
	require.NoError(t, err)

	repo, err := NewDocumentRepository(backend)
	require.NoError(t, err)

	t.Cleanup(func() {
		repo.Close()
		backend.Close()
	})
	return repo
}

func newPendingDocument(payload string) *core.Document {
	return &core.Document{
		Id:          core.IDFromContent([]byte(payload)),
		Name:        "test.txt",
		ContentType: "text/plain",
		State:       core.DocumentPending,
	}
}

func TestDocumentRepository_CreateAndGet(t *testing.T) {
	repo := setupDocumentRepo(t)
	ctx := context.Background()

	doc := newPendingDocument("payload one")
	created, err := repo.CreateDocument(ctx, doc)
	require.NoError(t, err)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := repo.GetDocument(ctx, doc.Id)
	require.NoError(t, err)
	assert.Equal(t, core.DocumentPending, got.State)
	assert.Equal(t, "test.txt", got.Name)
}

func TestDocumentRepository_CreateDuplicate(t *testing.T) {
	repo := setupDocumentRepo(t)
	ctx := context.Background()

	_, err := repo.CreateDocument(ctx, newPendingDocument("payload"))
	require.NoError(t, err)

	_, err = repo.CreateDocument(ctx, newPendingDocument("payload"))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestDocumentRepository_GetMissing(t *testing.T) {
	repo := setupDocumentRepo(t)

	_, err := repo.GetDocument(context.Background(), core.ID(12345))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDocumentRepository_StateTransitions(t *testing.T) {
	repo := setupDocumentRepo(t)
	ctx := context.Background()

	doc := newPendingDocument("lifecycle")
	_, err := repo.CreateDocument(ctx, doc)
	require.NoError(t, err)

	// Pending -> Processing -> Ready
	updated, err := repo.SetDocumentState(ctx, doc.Id, core.DocumentProcessing, "")
	require.NoError(t, err)
	assert.Equal(t, core.DocumentProcessing, updated.State)

	updated, err = repo.SetDocumentState(ctx, doc.Id, core.DocumentReady, "")
	require.NoError(t, err)
	assert.Equal(t, core.DocumentReady, updated.State)

	// Ready is terminal
	_, err = repo.SetDocumentState(ctx, doc.Id, core.DocumentProcessing, "")
	assert.ErrorIs(t, err, core.ErrInvalidTransition)
}

func TestDocumentRepository_FailedKeepsError(t *testing.T) {
	repo := setupDocumentRepo(t)
	ctx := context.Background()

	doc := newPendingDocument("failing")
	_, err := repo.CreateDocument(ctx, doc)
	require.NoError(t, err)

	_, err = repo.SetDocumentState(ctx, doc.Id, core.DocumentProcessing, "")
	require.NoError(t, err)

	failed, err := repo.SetDocumentState(ctx, doc.Id, core.DocumentFailed, "embedding backend unavailable")
	require.NoError(t, err)
	assert.Equal(t, "embedding backend unavailable", failed.Error)

	// Failed documents stay queryable and may be retried
	got, err := repo.GetDocument(ctx, doc.Id)
	require.NoError(t, err)
	assert.Equal(t, core.DocumentFailed, got.State)

	retried, err := repo.SetDocumentState(ctx, doc.Id, core.DocumentProcessing, "")
	require.NoError(t, err)
	assert.Equal(t, core.DocumentProcessing, retried.State)
	assert.Empty(t, retried.Error, "error detail cleared on retry")
}

func TestDocumentRepository_SetStateMissing(t *testing.T) {
	repo := setupDocumentRepo(t)

	_, err := repo.SetDocumentState(context.Background(), core.ID(999), core.DocumentProcessing, "")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDocumentRepository_ChunkCountAndList(t *testing.T) {
	repo := setupDocumentRepo(t)
	ctx := context.Background()

	first := newPendingDocument("first")
	second := newPendingDocument("second")
	_, err := repo.CreateDocument(ctx, first)
	require.NoError(t, err)
	_, err = repo.CreateDocument(ctx, second)
	require.NoError(t, err)

	require.NoError(t, repo.SetDocumentChunkCount(ctx, first.Id, 3))

	got, err := repo.GetDocument(ctx, first.Id)
	require.NoError(t, err)
	assert.Equal(t, 3, got.ChunkCount)

	docs, err := repo.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestDocumentRepository_Delete(t *testing.T) {
	repo := setupDocumentRepo(t)
	ctx := context.Background()

	doc := newPendingDocument("to delete")
	_, err := repo.CreateDocument(ctx, doc)
	require.NoError(t, err)

	require.NoError(t, repo.DeleteDocument(ctx, doc.Id))

	_, err = repo.GetDocument(ctx, doc.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, repo.DeleteDocument(ctx, doc.Id), storage.ErrNotFound)
}
