package user

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jhgaldino/socialsynchub/internal/cache"
	"github.com/jhgaldino/socialsynchub/internal/model"
	"github.com/jhgaldino/socialsynchub/internal/repository"
)

// --- モック ---

type mockUserRepo struct {
	findByIDFn   func(ctx context.Context, id string) (*model.User, error)
	existsByIDFn func(ctx context.Context, id string) (bool, error)
	listFn       func(ctx context.Context) ([]*model.User, error)
	findCalls    int
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	m.findCalls++
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}
func (m *mockUserRepo) FindByEmail(context.Context, string) (*model.User, error) { return nil, nil }
func (m *mockUserRepo) ExistsByID(ctx context.Context, id string) (bool, error) {
	if m.existsByIDFn != nil {
		return m.existsByIDFn(ctx, id)
	}
	return false, nil
}
func (m *mockUserRepo) ExistsByEmail(context.Context, string) (bool, error) { return false, nil }
func (m *mockUserRepo) List(ctx context.Context) ([]*model.User, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}
func (m *mockUserRepo) Create(context.Context, *model.User) error { return nil }
func (m *mockUserRepo) Update(context.Context, *model.User) error { return nil }

type mockCache struct {
	getFn func(ctx context.Context, key string) ([]byte, bool, error)
	setFn func(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, false, nil
}
func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value, ttl)
	}
	return nil
}
func (m *mockCache) Delete(context.Context, string) error { return nil }

type mockRecorder struct {
	results map[string]int
}

func (m *mockRecorder) RecordCacheRequest(result string) {
	m.results[result]++
}

var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ cache.Cache = (*mockCache)(nil)

var alice = &model.User{ID: "u1", Name: "Alice", Email: "alice@example.com", PasswordHash: "secret-hash", CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}

// --- テスト ---

func TestGetByID_MissThenHit(t *testing.T) {
	repo := &mockUserRepo{findByIDFn: func(_ context.Context, id string) (*model.User, error) {
		if id == "u1" {
			return alice, nil
		}
		return nil, nil
	}}
	rec := &mockRecorder{results: map[string]int{}}
	svc := NewService(repo, cache.NewMemoryCache(0), time.Minute, rec)
	ctx := context.Background()

	first, err := svc.GetByID(ctx, "u1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	second, err := svc.GetByID(ctx, "u1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}

	if repo.findCalls != 1 {
		t.Errorf("store calls = %d, want 1", repo.findCalls)
	}
	if first.Email != second.Email || second.Name != "Alice" || !second.CreatedAt.Equal(alice.CreatedAt) {
		t.Errorf("cached summary differs: %+v vs %+v", first, second)
	}
	if rec.results["miss"] != 1 || rec.results["hit"] != 1 {
		t.Errorf("cache metrics = %v", rec.results)
	}
}

// キャッシュにはuser:{id}キーでパスワードハッシュを含まないJSONが保存される
func TestGetByID_CachesSummaryJSON(t *testing.T) {
	var gotKey string
	var gotValue []byte
	var gotTTL time.Duration
	c := &mockCache{setFn: func(_ context.Context, key string, value []byte, ttl time.Duration) error {
		gotKey, gotValue, gotTTL = key, value, ttl
		return nil
	}}
	repo := &mockUserRepo{findByIDFn: func(context.Context, string) (*model.User, error) { return alice, nil }}
	svc := NewService(repo, c, 0, nil)

	if _, err := svc.GetByID(context.Background(), "u1"); err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if gotKey != "user:u1" {
		t.Errorf("key = %q, want user:u1", gotKey)
	}
	if gotTTL != DefaultCacheTTL {
		t.Errorf("ttl = %v, want %v", gotTTL, DefaultCacheTTL)
	}
	var decoded map[string]any
	if err := json.Unmarshal(gotValue, &decoded); err != nil {
		t.Fatalf("value is not JSON: %v", err)
	}
	if _, ok := decoded["password_hash"]; ok {
		t.Error("cached value must not contain password hash")
	}
	if decoded["email"] != "alice@example.com" {
		t.Errorf("email = %v", decoded["email"])
	}
}

func TestGetByID_NotFound_DoesNotCache(t *testing.T) {
	setCalled := false
	c := &mockCache{setFn: func(context.Context, string, []byte, time.Duration) error {
		setCalled = true
		return nil
	}}
	svc := NewService(&mockUserRepo{}, c, time.Minute, nil)

	_, err := svc.GetByID(context.Background(), "missing")
	if !model.IsKind(err, model.KindNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if setCalled {
		t.Error("not-found result must not be cached")
	}
}

// キャッシュ障害時もストアの結果を返す
func TestGetByID_CacheFailureFallsBackToStore(t *testing.T) {
	c := &mockCache{
		getFn: func(context.Context, string) ([]byte, bool, error) { return nil, false, errors.New("redis down") },
		setFn: func(context.Context, string, []byte, time.Duration) error { return errors.New("redis down") },
	}
	repo := &mockUserRepo{findByIDFn: func(context.Context, string) (*model.User, error) { return alice, nil }}
	rec := &mockRecorder{results: map[string]int{}}
	svc := NewService(repo, c, time.Minute, rec)

	got, err := svc.GetByID(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.ID != "u1" {
		t.Errorf("ID = %q", got.ID)
	}
	if rec.results["error"] != 1 {
		t.Errorf("cache error count = %d, want 1", rec.results["error"])
	}
}

func TestGetByID_CorruptCacheValueFallsBackToStore(t *testing.T) {
	c := &mockCache{getFn: func(context.Context, string) ([]byte, bool, error) { return []byte("{not json"), true, nil }}
	repo := &mockUserRepo{findByIDFn: func(context.Context, string) (*model.User, error) { return alice, nil }}
	svc := NewService(repo, c, time.Minute, nil)

	got, err := svc.GetByID(context.Background(), "u1")
	if err != nil || got.Name != "Alice" {
		t.Fatalf("GetByID = %+v, %v", got, err)
	}
	if repo.findCalls != 1 {
		t.Errorf("store calls = %d, want 1", repo.findCalls)
	}
}

func TestGetByID_StoreError(t *testing.T) {
	boom := errors.New("db down")
	repo := &mockUserRepo{findByIDFn: func(context.Context, string) (*model.User, error) { return nil, boom }}
	svc := NewService(repo, nil, time.Minute, nil)

	if _, err := svc.GetByID(context.Background(), "u1"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestList_ReturnsSummaries(t *testing.T) {
	repo := repository.NewMemoryUserRepo()
	ctx := context.Background()
	_ = repo.Create(ctx, alice)
	_ = repo.Create(ctx, &model.User{ID: "u2", Name: "Bob", Email: "bob@example.com", CreatedAt: alice.CreatedAt.Add(time.Hour)})

	svc := NewService(repo, nil, 0, nil)
	users, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(users) != 2 || users[0].ID != "u1" || users[1].ID != "u2" {
		t.Errorf("unexpected list: %+v", users)
	}
}

func TestList_EmptyIsNonNil(t *testing.T) {
	svc := NewService(&mockUserRepo{}, nil, 0, nil)
	users, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if users == nil {
		t.Error("expected non-nil empty slice")
	}
}

func TestExists(t *testing.T) {
	repo := &mockUserRepo{existsByIDFn: func(_ context.Context, id string) (bool, error) { return id == "u1", nil }}
	svc := NewService(repo, nil, 0, nil)
	ctx := context.Background()

	if ok, _ := svc.Exists(ctx, "u1"); !ok {
		t.Error("Exists(u1) = false")
	}
	if ok, _ := svc.Exists(ctx, "u2"); ok {
		t.Error("Exists(u2) = true")
	}
}
