package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"khoomi-api-io/catalog/pkg/errs"
	"khoomi-api-io/catalog/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	admin   = models.Actor{UserID: "admin-1", Role: models.RoleAdmin}
	regular = models.Actor{UserID: "user-1", Role: models.RoleRegular}
)

func newTestService(t *testing.T, opts ...CategoryServiceOption) (*CategoryService, *MemoryCategoryStore) {
	t.Helper()
	store := NewMemoryCategoryStore()
	return NewCategoryService(store, NewRoleGate(models.RoleAdmin), opts...), store
}

func mustCreate(t *testing.T, svc *CategoryService, name string, parent *models.Category) *models.Category {
	t.Helper()
	req := models.CreateCategoryRequest{Name: name}
	if parent != nil {
		req.Parent = parent.ID.Hex()
	}
	created, err := svc.CreateCategory(context.Background(), admin, req)
	require.NoError(t, err)
	return created
}

type recordingPublisher struct {
	messages []string
	err      error
}

func (p *recordingPublisher) Publish(_ context.Context, messageType string, payload string) error {
	p.messages = append(p.messages, messageType+":"+payload)
	return p.err
}

// hookedStore lets a test intercept store calls. Delete honours ctx the way
// the Mongo driver does.
type hookedStore struct {
	*MemoryCategoryStore
	deletes     int
	afterDelete func()
	appendChild func(ctx context.Context, parent, child primitive.ObjectID) error
}

func (s *hookedStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	s.deletes++
	if err := ctx.Err(); err != nil {
		return errs.Store(err, "delete category")
	}
	err := s.MemoryCategoryStore.Delete(ctx, id)
	if s.afterDelete != nil {
		s.afterDelete()
	}
	return err
}

func (s *hookedStore) AppendChild(ctx context.Context, parent, child primitive.ObjectID) error {
	if s.appendChild != nil {
		return s.appendChild(ctx, parent, child)
	}
	return s.MemoryCategoryStore.AppendChild(ctx, parent, child)
}

type fakeUploader struct {
	uploads int
	err     error
}

func (u *fakeUploader) Upload(_ context.Context, file io.Reader) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	u.uploads++
	data, _ := io.ReadAll(file)
	return "https://cdn.example.com/" + string(data), nil
}

func TestCreateCategory_RootDefaults(t *testing.T) {
	svc, store := newTestService(t)

	created, err := svc.CreateCategory(context.Background(), admin, models.CreateCategoryRequest{
		Name:        "  Home & Garden  ",
		Description: "things for the house",
	})
	require.NoError(t, err)

	assert.False(t, created.ID.IsZero())
	assert.Equal(t, "Home & Garden", created.Name)
	assert.Equal(t, "home-and-garden", created.Slug)
	assert.True(t, created.Status)
	assert.True(t, created.IsRoot())
	assert.NotNil(t, created.Children)
	assert.Empty(t, created.Children)
	assert.Equal(t, 1, store.Len())
}

func TestCreateCategory_ExplicitInactiveStatus(t *testing.T) {
	svc, _ := newTestService(t)
	inactive := false

	created, err := svc.CreateCategory(context.Background(), admin, models.CreateCategoryRequest{Name: "Drafts", Status: &inactive})
	require.NoError(t, err)
	assert.False(t, created.Status)
}

func TestCreateCategory_ChildRegisteredWithParent(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	electronics := mustCreate(t, svc, "Electronics", nil)
	phones := mustCreate(t, svc, "Phones", electronics)

	require.NotNil(t, phones.Parent)
	assert.Equal(t, electronics.ID, *phones.Parent)

	parent, err := store.FindByID(ctx, electronics.ID)
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{phones.ID}, parent.Children)
}

func TestCreateCategory_Validation(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  models.CreateCategoryRequest
	}{
		{name: "empty name", req: models.CreateCategoryRequest{Name: ""}},
		{name: "whitespace name", req: models.CreateCategoryRequest{Name: "   "}},
		{name: "leading punctuation", req: models.CreateCategoryRequest{Name: "-Phones"}},
		{name: "malformed parent", req: models.CreateCategoryRequest{Name: "Phones", Parent: "not-an-id"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateCategory(ctx, admin, tt.req)
			require.Error(t, err)
			assert.True(t, errs.Is(err, errs.Validation), "got %v", err)
		})
	}
	assert.Equal(t, 0, store.Len())
}

func TestCreateCategory_DuplicateNameLeavesStoreUntouched(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	mustCreate(t, svc, "Books", nil)
	_, err := svc.CreateCategory(ctx, admin, models.CreateCategoryRequest{Name: "Books"})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.DuplicateName))

	all, err := store.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Books", all[0].Name)
}

func TestCreateCategory_MissingParentLeavesNoOrphan(t *testing.T) {
	svc, store := newTestService(t)

	_, err := svc.CreateCategory(context.Background(), admin, models.CreateCategoryRequest{
		Name:   "Toys",
		Parent: primitive.NewObjectID().Hex(),
	})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ParentNotFound))
	assert.Equal(t, 0, store.Len())
}

func TestCreateCategory_ParentUpdateFailureSurfacesStoreError(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	electronics := mustCreate(t, svc, "Electronics", nil)

	store.FailOn("AppendChild", errors.New("connection reset"))
	_, err := svc.CreateCategory(ctx, admin, models.CreateCategoryRequest{Name: "Phones", Parent: electronics.ID.Hex()})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.StoreUnavailable))

	// the child is kept; Repair restores the missing back-reference
	store.FailOn("AppendChild", nil)
	children, err := store.FindByParent(ctx, &electronics.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)

	report, err := svc.Repair(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{children[0].ID}, report.RestoredBackRefs)

	parent, err := store.FindByID(ctx, electronics.ID)
	require.NoError(t, err)
	assert.True(t, parent.HasChild(children[0].ID))
}

func TestCreateCategory_RollbackOutlivesRequestContext(t *testing.T) {
	store := &hookedStore{MemoryCategoryStore: NewMemoryCategoryStore()}
	svc := NewCategoryService(store, NewRoleGate(models.RoleAdmin))
	parent := mustCreate(t, svc, "Electronics", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// the parent disappears and the request deadline passes at the same moment
	store.appendChild = func(context.Context, primitive.ObjectID, primitive.ObjectID) error {
		cancel()
		return errs.E(errs.NotFound, "parent gone")
	}

	_, err := svc.CreateCategory(ctx, admin, models.CreateCategoryRequest{Name: "Phones", Parent: parent.ID.Hex()})
	assert.True(t, errs.Is(err, errs.ParentNotFound))
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, 1, store.deletes)
}

func TestCreateCategory_StoreUnavailable(t *testing.T) {
	svc, store := newTestService(t)
	store.FailOn("CountByName", errors.New("timeout"))

	_, err := svc.CreateCategory(context.Background(), admin, models.CreateCategoryRequest{Name: "Books"})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.StoreUnavailable))
	assert.Equal(t, 0, store.Len())
}

func TestMutations_RequireAdmin(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	books := mustCreate(t, svc, "Books", nil)
	name := "Novels"

	for _, actor := range []models.Actor{regular, models.Anonymous} {
		_, err := svc.CreateCategory(ctx, actor, models.CreateCategoryRequest{Name: "Music"})
		assert.True(t, errs.Is(err, errs.AuthorizationDenied))

		_, err = svc.UpdateCategory(ctx, actor, books.ID, models.UpdateCategoryRequest{Name: &name})
		assert.True(t, errs.Is(err, errs.AuthorizationDenied))

		_, err = svc.DeleteCategory(ctx, actor, books.ID)
		assert.True(t, errs.Is(err, errs.AuthorizationDenied))

		_, err = svc.MoveCategory(ctx, actor, books.ID, models.MoveCategoryRequest{})
		assert.True(t, errs.Is(err, errs.AuthorizationDenied))

		_, err = svc.Repair(ctx, actor)
		assert.True(t, errs.Is(err, errs.AuthorizationDenied))
	}

	current, err := store.FindByID(ctx, books.ID)
	require.NoError(t, err)
	assert.Equal(t, "Books", current.Name)
	assert.Equal(t, 1, store.Len())

	// reads are open to every caller
	got, err := svc.GetCategory(ctx, books.ID)
	require.NoError(t, err)
	assert.Equal(t, books.ID, got.ID)
	tree, err := svc.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, tree, 1)
}

func TestUpdateCategory(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	books := mustCreate(t, svc, "Books", nil)
	mustCreate(t, svc, "Music", nil)

	t.Run("renames and re-slugs", func(t *testing.T) {
		name, desc, status := "Rare Books", "first editions", false
		updated, err := svc.UpdateCategory(ctx, admin, books.ID, models.UpdateCategoryRequest{
			Name: &name, Description: &desc, Status: &status,
		})
		require.NoError(t, err)
		assert.Equal(t, "Rare Books", updated.Name)
		assert.Equal(t, "rare-books", updated.Slug)
		assert.Equal(t, "first editions", updated.Description)
		assert.False(t, updated.Status)
	})

	t.Run("keeping the same name is allowed", func(t *testing.T) {
		name := "Rare Books"
		_, err := svc.UpdateCategory(ctx, admin, books.ID, models.UpdateCategoryRequest{Name: &name})
		require.NoError(t, err)
	})

	t.Run("duplicate name", func(t *testing.T) {
		name := "Music"
		_, err := svc.UpdateCategory(ctx, admin, books.ID, models.UpdateCategoryRequest{Name: &name})
		assert.True(t, errs.Is(err, errs.DuplicateName))
	})

	t.Run("empty name", func(t *testing.T) {
		name := "  "
		_, err := svc.UpdateCategory(ctx, admin, books.ID, models.UpdateCategoryRequest{Name: &name})
		assert.True(t, errs.Is(err, errs.Validation))
	})

	t.Run("unknown id", func(t *testing.T) {
		name := "X"
		_, err := svc.UpdateCategory(ctx, admin, primitive.NewObjectID(), models.UpdateCategoryRequest{Name: &name})
		assert.True(t, errs.Is(err, errs.NotFound))
	})
}

func TestUpdateCategory_LeavesStructureAlone(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	electronics := mustCreate(t, svc, "Electronics", nil)
	phones := mustCreate(t, svc, "Phones", electronics)

	desc := "mobile"
	_, err := svc.UpdateCategory(ctx, admin, phones.ID, models.UpdateCategoryRequest{Description: &desc})
	require.NoError(t, err)

	got, err := store.FindByID(ctx, phones.ID)
	require.NoError(t, err)
	assert.Equal(t, electronics.ID, *got.Parent)
}

func TestDeleteCategory_RemovesSubtreeAndBackReference(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	electronics := mustCreate(t, svc, "Electronics", nil)
	phones := mustCreate(t, svc, "Phones", electronics)
	android := mustCreate(t, svc, "Android", phones)
	ios := mustCreate(t, svc, "iOS", phones)
	laptops := mustCreate(t, svc, "Laptops", electronics)

	result, err := svc.DeleteCategory(ctx, admin, phones.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Removed)

	for _, id := range []primitive.ObjectID{phones.ID, android.ID, ios.ID} {
		_, err := store.FindByID(ctx, id)
		assert.True(t, errs.Is(err, errs.NotFound))
		children, err := store.FindByParent(ctx, &id)
		require.NoError(t, err)
		assert.Empty(t, children)
	}

	parent, err := store.FindByID(ctx, electronics.ID)
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{laptops.ID}, parent.Children)
}

func TestDeleteCategory_RootCascade(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	electronics := mustCreate(t, svc, "Electronics", nil)
	mustCreate(t, svc, "Phones", electronics)

	_, err := svc.DeleteCategory(ctx, admin, electronics.ID)
	require.NoError(t, err)

	roots, err := store.FindByParent(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, roots)
	assert.Equal(t, 0, store.Len())
}

func TestDeleteCategory_Idempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	books := mustCreate(t, svc, "Books", nil)

	first, err := svc.DeleteCategory(ctx, admin, books.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Removed)

	second, err := svc.DeleteCategory(ctx, admin, books.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Removed)
}

func TestDeleteCategory_RetryAfterPartialFailure(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	electronics := mustCreate(t, svc, "Electronics", nil)
	phones := mustCreate(t, svc, "Phones", electronics)
	mustCreate(t, svc, "Android", phones)

	store.FailOn("Delete", errors.New("primary stepped down"))
	_, err := svc.DeleteCategory(ctx, admin, electronics.ID)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.StoreUnavailable))

	store.FailOn("Delete", nil)
	_, err = svc.DeleteCategory(ctx, admin, electronics.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, store.Len())
}

func TestDeleteCategory_CancelledMidway(t *testing.T) {
	store := &hookedStore{MemoryCategoryStore: NewMemoryCategoryStore()}
	svc := NewCategoryService(store, NewRoleGate(models.RoleAdmin))
	electronics := mustCreate(t, svc, "Electronics", nil)
	mustCreate(t, svc, "Phones", electronics)
	mustCreate(t, svc, "Laptops", electronics)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store.afterDelete = cancel

	_, err := svc.DeleteCategory(ctx, admin, electronics.ID)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.StoreUnavailable))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, store.deletes)
	// the finished delete stays done, the root and the other child survive
	assert.Equal(t, 2, store.Len())
	_, err = store.FindByID(context.Background(), electronics.ID)
	require.NoError(t, err)

	store.afterDelete = nil
	result, err := svc.DeleteCategory(context.Background(), admin, electronics.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Removed)
	assert.Equal(t, 0, store.Len())
}

func TestMoveCategory(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	electronics := mustCreate(t, svc, "Electronics", nil)
	phones := mustCreate(t, svc, "Phones", electronics)
	android := mustCreate(t, svc, "Android", phones)
	gadgets := mustCreate(t, svc, "Gadgets", nil)

	t.Run("reparents and keeps both lists in step", func(t *testing.T) {
		moved, err := svc.MoveCategory(ctx, admin, phones.ID, models.MoveCategoryRequest{Parent: gadgets.ID.Hex()})
		require.NoError(t, err)
		assert.Equal(t, gadgets.ID, *moved.Parent)

		oldParent, err := store.FindByID(ctx, electronics.ID)
		require.NoError(t, err)
		assert.False(t, oldParent.HasChild(phones.ID))

		newParent, err := store.FindByID(ctx, gadgets.ID)
		require.NoError(t, err)
		assert.True(t, newParent.HasChild(phones.ID))
	})

	t.Run("below itself", func(t *testing.T) {
		_, err := svc.MoveCategory(ctx, admin, phones.ID, models.MoveCategoryRequest{Parent: phones.ID.Hex()})
		assert.True(t, errs.Is(err, errs.Validation))
	})

	t.Run("below a descendant", func(t *testing.T) {
		_, err := svc.MoveCategory(ctx, admin, phones.ID, models.MoveCategoryRequest{Parent: android.ID.Hex()})
		assert.True(t, errs.Is(err, errs.Validation))
	})

	t.Run("missing parent", func(t *testing.T) {
		_, err := svc.MoveCategory(ctx, admin, phones.ID, models.MoveCategoryRequest{Parent: primitive.NewObjectID().Hex()})
		assert.True(t, errs.Is(err, errs.ParentNotFound))
	})

	t.Run("to root", func(t *testing.T) {
		moved, err := svc.MoveCategory(ctx, admin, phones.ID, models.MoveCategoryRequest{})
		require.NoError(t, err)
		assert.True(t, moved.IsRoot())

		formerParent, err := store.FindByID(ctx, gadgets.ID)
		require.NoError(t, err)
		assert.Empty(t, formerParent.Children)
	})
}

func TestSetCategoryImages(t *testing.T) {
	uploader := &fakeUploader{}
	svc, _ := newTestService(t, WithMediaUploader(uploader))
	ctx := context.Background()
	books := mustCreate(t, svc, "Books", nil)

	updated, err := svc.SetCategoryImages(ctx, admin, books.ID, bytes.NewBufferString("cover.png"), nil)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/cover.png", updated.ImageURL)
	assert.Empty(t, updated.BannerURL)

	updated, err = svc.SetCategoryImages(ctx, admin, books.ID, nil, bytes.NewBufferString("banner.png"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/cover.png", updated.ImageURL)
	assert.Equal(t, "https://cdn.example.com/banner.png", updated.BannerURL)
	assert.Equal(t, 2, uploader.uploads)

	_, err = svc.SetCategoryImages(ctx, admin, books.ID, nil, nil)
	assert.True(t, errs.Is(err, errs.Validation))

	_, err = svc.SetCategoryImages(ctx, admin, primitive.NewObjectID(), bytes.NewBufferString("x"), nil)
	assert.True(t, errs.Is(err, errs.NotFound))
}

func TestSetCategoryImages_WithoutUploader(t *testing.T) {
	svc, _ := newTestService(t)
	books := mustCreate(t, svc, "Books", nil)

	_, err := svc.SetCategoryImages(context.Background(), admin, books.ID, bytes.NewBufferString("x"), nil)
	assert.True(t, errs.Is(err, errs.Internal))
}

func TestReads(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	electronics := mustCreate(t, svc, "Electronics", nil)
	phones := mustCreate(t, svc, "Phones", electronics)
	android := mustCreate(t, svc, "Android Phones", phones)
	mustCreate(t, svc, "Laptops", electronics)

	t.Run("by slug", func(t *testing.T) {
		got, err := svc.GetCategoryBySlug(ctx, "android-phones")
		require.NoError(t, err)
		assert.Equal(t, android.ID, got.ID)

		_, err = svc.GetCategoryBySlug(ctx, "missing")
		assert.True(t, errs.Is(err, errs.NotFound))
	})

	t.Run("children", func(t *testing.T) {
		children, err := svc.GetCategoryChildren(ctx, electronics.ID)
		require.NoError(t, err)
		require.Len(t, children, 2)
		assert.Equal(t, "Phones", children[0].Name)
		assert.Equal(t, "Laptops", children[1].Name)

		_, err = svc.GetCategoryChildren(ctx, primitive.NewObjectID())
		assert.True(t, errs.Is(err, errs.NotFound))
	})

	t.Run("ancestors root first", func(t *testing.T) {
		ancestors, err := svc.GetCategoryAncestors(ctx, android.ID)
		require.NoError(t, err)
		require.Len(t, ancestors, 2)
		assert.Equal(t, electronics.ID, ancestors[0].ID)
		assert.Equal(t, phones.ID, ancestors[1].ID)

		rootAncestors, err := svc.GetCategoryAncestors(ctx, electronics.ID)
		require.NoError(t, err)
		assert.Empty(t, rootAncestors)
	})

	t.Run("subtree", func(t *testing.T) {
		tree, err := svc.GetSubtree(ctx, phones.ID)
		require.NoError(t, err)
		require.Len(t, tree, 1)
		assert.Equal(t, android.ID, tree[0].ID)
		assert.Empty(t, tree[0].Children)

		_, err = svc.GetSubtree(ctx, primitive.NewObjectID())
		assert.True(t, errs.Is(err, errs.NotFound))
	})

	t.Run("search", func(t *testing.T) {
		found, err := svc.SearchCategories(ctx, "PHONE")
		require.NoError(t, err)
		require.Len(t, found, 2)

		_, err = svc.SearchCategories(ctx, " ")
		assert.True(t, errs.Is(err, errs.Validation))
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := svc.GetCategory(ctx, primitive.NewObjectID())
		assert.True(t, errs.Is(err, errs.NotFound))
	})
}

func TestListCategories_Scenario(t *testing.T) {
	for _, strategy := range []TreeStrategy{TreeBulk, TreeWalk} {
		t.Run(string(strategy), func(t *testing.T) {
			svc, _ := newTestService(t, WithTreeStrategy(strategy))
			electronics := mustCreate(t, svc, "Electronics", nil)
			mustCreate(t, svc, "Phones", electronics)

			tree, err := svc.ListCategories(context.Background())
			require.NoError(t, err)
			require.Len(t, tree, 1)
			assert.Equal(t, "Electronics", tree[0].Name)
			require.Len(t, tree[0].Children, 1)
			assert.Equal(t, "Phones", tree[0].Children[0].Name)
			assert.NotNil(t, tree[0].Children[0].Children)
			assert.Empty(t, tree[0].Children[0].Children)
		})
	}
}

func TestListCategories_EmptyStore(t *testing.T) {
	svc, _ := newTestService(t)

	tree, err := svc.ListCategories(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, tree)
	assert.Empty(t, tree)
}

func TestRepair(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	electronics := mustCreate(t, svc, "Electronics", nil)
	phones := mustCreate(t, svc, "Phones", electronics)
	stray := primitive.NewObjectID()
	ghostParent := primitive.NewObjectID()

	// damage: a children entry for a missing record, a lost back-reference
	// and a record whose parent no longer exists
	require.NoError(t, store.AppendChild(ctx, electronics.ID, stray))
	require.NoError(t, store.RemoveChild(ctx, electronics.ID, phones.ID))
	orphan, err := store.Insert(ctx, &models.Category{Name: "Orphan", Parent: &ghostParent})
	require.NoError(t, err)

	report, err := svc.Repair(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Scanned)
	assert.Equal(t, []primitive.ObjectID{phones.ID}, report.RestoredBackRefs)
	assert.Equal(t, []primitive.ObjectID{stray}, report.DroppedChildRefs)
	assert.Equal(t, []primitive.ObjectID{orphan.ID}, report.DetachedFromMissing)

	parent, err := store.FindByID(ctx, electronics.ID)
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{phones.ID}, parent.Children)

	detached, err := store.FindByID(ctx, orphan.ID)
	require.NoError(t, err)
	assert.True(t, detached.IsRoot())

	again, err := svc.Repair(ctx, admin)
	require.NoError(t, err)
	assert.False(t, again.Changed())
}

func TestRepair_CollapsesDuplicateChildren(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	parentID, childID := primitive.NewObjectID(), primitive.NewObjectID()
	_, err := store.Insert(ctx, &models.Category{ID: childID, Name: "Phones", Parent: &parentID})
	require.NoError(t, err)
	_, err = store.Insert(ctx, &models.Category{
		ID:       parentID,
		Name:     "Electronics",
		Children: []primitive.ObjectID{childID, childID},
	})
	require.NoError(t, err)

	report, err := svc.Repair(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{childID}, report.DedupedChildRefs)
	assert.Empty(t, report.DroppedChildRefs)
	assert.Empty(t, report.RestoredBackRefs)

	parent, err := store.FindByID(ctx, parentID)
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{childID}, parent.Children)

	again, err := svc.Repair(ctx, admin)
	require.NoError(t, err)
	assert.False(t, again.Changed())
}

func TestCacheInvalidation(t *testing.T) {
	publisher := &recordingPublisher{}
	svc, _ := newTestService(t, WithCachePublisher(publisher))
	ctx := context.Background()

	books := mustCreate(t, svc, "Books", nil)
	desc := "paper"
	_, err := svc.UpdateCategory(ctx, admin, books.ID, models.UpdateCategoryRequest{Description: &desc})
	require.NoError(t, err)
	_, err = svc.DeleteCategory(ctx, admin, books.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{
		CacheInvalidateCategoryTree + ":" + books.ID.Hex(),
		CacheInvalidateCategory + ":" + books.ID.Hex(),
		CacheInvalidateCategoryTree + ":" + books.ID.Hex(),
	}, publisher.messages)
}

func TestCacheInvalidation_FailureDoesNotFailWrite(t *testing.T) {
	publisher := &recordingPublisher{err: errors.New("redis down")}
	svc, store := newTestService(t, WithCachePublisher(publisher))

	mustCreate(t, svc, "Books", nil)
	assert.Equal(t, 1, store.Len())
	assert.Len(t, publisher.messages, 1)
}
