package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jhgaldino/socialsynchub/internal/model"
)

func TestMemoryUserRepo_CreateAndFind(t *testing.T) {
	repo := NewMemoryUserRepo()
	ctx := context.Background()

	user := &model.User{ID: "u1", Name: "Alice", Email: "Alice@Example.com", PasswordHash: "h", CreatedAt: time.Now()}
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.FindByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if got == nil || got.ID != "u1" {
		t.Fatalf("FindByEmail returned %+v, want u1", got)
	}

	exists, _ := repo.ExistsByEmail(ctx, "ALICE@EXAMPLE.COM")
	if !exists {
		t.Error("ExistsByEmail should match case-insensitively")
	}
	exists, _ = repo.ExistsByID(ctx, "missing")
	if exists {
		t.Error("ExistsByID(missing) should be false")
	}

	missing, err := repo.FindByID(ctx, "missing")
	if err != nil || missing != nil {
		t.Errorf("FindByID(missing) = %v, %v; want nil, nil", missing, err)
	}
}

func TestMemoryUserRepo_Create_DuplicateEmail(t *testing.T) {
	repo := NewMemoryUserRepo()
	ctx := context.Background()

	_ = repo.Create(ctx, &model.User{ID: "u1", Email: "a@example.com"})
	err := repo.Create(ctx, &model.User{ID: "u2", Email: "A@EXAMPLE.COM"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

// 同時登録でも同一メールアドレスのユーザーは1件のみ作成される
func TestMemoryUserRepo_Create_ConcurrentDuplicates(t *testing.T) {
	repo := NewMemoryUserRepo()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := repo.Create(ctx, &model.User{ID: string(rune('a' + i)), Email: "race@example.com"})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("successes = %d, want 1", successes)
	}
}

func TestMemoryUserRepo_ReturnsCopies(t *testing.T) {
	repo := NewMemoryUserRepo()
	ctx := context.Background()
	_ = repo.Create(ctx, &model.User{ID: "u1", Name: "Alice", Email: "a@example.com"})

	got, _ := repo.FindByID(ctx, "u1")
	got.Name = "Mallory"

	again, _ := repo.FindByID(ctx, "u1")
	if again.Name != "Alice" {
		t.Errorf("stored user mutated through returned pointer: %q", again.Name)
	}
}

func TestMemoryUserRepo_Update(t *testing.T) {
	repo := NewMemoryUserRepo()
	ctx := context.Background()
	_ = repo.Create(ctx, &model.User{ID: "u1", Name: "Alice", Email: "a@example.com"})

	now := time.Now()
	if err := repo.Update(ctx, &model.User{ID: "u1", Name: "Alice", Email: "ignored@example.com", LastLoginAt: &now}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ := repo.FindByID(ctx, "u1")
	if got.LastLoginAt == nil || !got.LastLoginAt.Equal(now) {
		t.Errorf("LastLoginAt = %v, want %v", got.LastLoginAt, now)
	}
	if got.Email != "a@example.com" {
		t.Errorf("Update must not change email, got %q", got.Email)
	}

	if err := repo.Update(ctx, &model.User{ID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing user, got %v", err)
	}
}

func TestMemoryUserRepo_List_OrderedByCreatedAt(t *testing.T) {
	repo := NewMemoryUserRepo()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_ = repo.Create(ctx, &model.User{ID: "late", Email: "l@example.com", CreatedAt: base.Add(time.Hour)})
	_ = repo.Create(ctx, &model.User{ID: "early", Email: "e@example.com", CreatedAt: base})

	users, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(users) != 2 || users[0].ID != "early" || users[1].ID != "late" {
		t.Errorf("unexpected order: %v, %v", users[0].ID, users[1].ID)
	}
}

func TestMemorySocialAccountRepo_UniquePerUserAndNetwork(t *testing.T) {
	repo := NewMemorySocialAccountRepo()
	ctx := context.Background()

	if err := repo.Create(ctx, &model.SocialAccount{ID: "s1", UserID: "u1", NetworkType: model.NetworkInstagram, AccessToken: "t"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	err := repo.Create(ctx, &model.SocialAccount{ID: "s2", UserID: "u1", NetworkType: model.NetworkInstagram, AccessToken: "t2"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	// 別ネットワーク、別ユーザーなら作成できる
	if err := repo.Create(ctx, &model.SocialAccount{ID: "s3", UserID: "u1", NetworkType: model.NetworkX}); err != nil {
		t.Errorf("Create other network: %v", err)
	}
	if err := repo.Create(ctx, &model.SocialAccount{ID: "s4", UserID: "u2", NetworkType: model.NetworkInstagram}); err != nil {
		t.Errorf("Create other user: %v", err)
	}

	accounts, _ := repo.ListByUserID(ctx, "u1")
	if len(accounts) != 2 {
		t.Errorf("ListByUserID len = %d, want 2", len(accounts))
	}
	insta, _ := repo.ListByNetwork(ctx, model.NetworkInstagram)
	if len(insta) != 2 {
		t.Errorf("ListByNetwork len = %d, want 2", len(insta))
	}

	found, _ := repo.FindByUserAndNetwork(ctx, "u1", model.NetworkInstagram)
	if found == nil || found.ID != "s1" {
		t.Fatalf("FindByUserAndNetwork = %+v, want s1", found)
	}

	if err := repo.Delete(ctx, "s1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	found, _ = repo.FindByUserAndNetwork(ctx, "u1", model.NetworkInstagram)
	if found != nil {
		t.Error("account should be gone after Delete")
	}
	if err := repo.Delete(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting missing account, got %v", err)
	}
}

func TestMemorySocialAccountRepo_ListEmptyIsNonNil(t *testing.T) {
	repo := NewMemorySocialAccountRepo()
	accounts, err := repo.ListByUserID(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("ListByUserID: %v", err)
	}
	if accounts == nil || len(accounts) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", accounts)
	}
}

func TestMemoryMediaRepo_UpsertIsIdempotent(t *testing.T) {
	repo := NewMemoryMediaRepo()
	ctx := context.Background()
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	caption := "first"

	item := &model.MediaItem{UserID: "u1", ExternalMediaID: "m1", MediaType: "IMAGE", MediaURL: "https://cdn/1", Caption: &caption, Timestamp: ts}
	inserted, err := repo.Upsert(ctx, item)
	if err != nil || !inserted {
		t.Fatalf("first Upsert = %v, %v; want true, nil", inserted, err)
	}
	firstID := item.ID

	updatedCaption := "second"
	again := &model.MediaItem{UserID: "u1", ExternalMediaID: "m1", MediaType: "VIDEO", MediaURL: "https://cdn/2", Caption: &updatedCaption, Timestamp: ts}
	inserted, err = repo.Upsert(ctx, again)
	if err != nil || inserted {
		t.Fatalf("second Upsert = %v, %v; want false, nil", inserted, err)
	}
	if again.ID != firstID {
		t.Errorf("ID changed on update: %q -> %q", firstID, again.ID)
	}

	items, _ := repo.ListByUserID(ctx, "u1")
	if len(items) != 1 {
		t.Fatalf("len = %d, want 1", len(items))
	}
	if items[0].MediaType != "VIDEO" || items[0].MediaURL != "https://cdn/2" || *items[0].Caption != "second" {
		t.Errorf("item not overwritten: %+v", items[0])
	}
}

func TestMemoryMediaRepo_ListOrderedByTimestampDesc(t *testing.T) {
	repo := NewMemoryMediaRepo()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	_, _ = repo.Upsert(ctx, &model.MediaItem{UserID: "u1", ExternalMediaID: "old", Timestamp: base})
	_, _ = repo.Upsert(ctx, &model.MediaItem{UserID: "u1", ExternalMediaID: "new", Timestamp: base.Add(time.Hour)})
	_, _ = repo.Upsert(ctx, &model.MediaItem{UserID: "u2", ExternalMediaID: "other", Timestamp: base})

	items, _ := repo.ListByUserID(ctx, "u1")
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	if items[0].ExternalMediaID != "new" || items[1].ExternalMediaID != "old" {
		t.Errorf("unexpected order: %s, %s", items[0].ExternalMediaID, items[1].ExternalMediaID)
	}
}
