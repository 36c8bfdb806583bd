package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jhgaldino/socialsynchub/internal/cache"
	"github.com/jhgaldino/socialsynchub/internal/model"
	"github.com/jhgaldino/socialsynchub/internal/repository"
)

// --- モック定義 ---

type mockRecorder struct {
	mu            sync.Mutex
	logins        map[string]int
	registrations map[string]int
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{logins: map[string]int{}, registrations: map[string]int{}}
}

func (m *mockRecorder) RecordLogin(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logins[result]++
}

func (m *mockRecorder) RecordRegistration(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registrations[result]++
}

// mockUserRepo はエラー経路の検証用。未設定の関数はMemoryUserRepoに委譲する。
type mockUserRepo struct {
	*repository.MemoryUserRepo
	findByEmailFn   func(ctx context.Context, email string) (*model.User, error)
	existsByEmailFn func(ctx context.Context, email string) (bool, error)
	createFn        func(ctx context.Context, user *model.User) error
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return m.MemoryUserRepo.FindByEmail(ctx, email)
}

func (m *mockUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	if m.existsByEmailFn != nil {
		return m.existsByEmailFn(ctx, email)
	}
	return m.MemoryUserRepo.ExistsByEmail(ctx, email)
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return m.MemoryUserRepo.Create(ctx, user)
}

var _ Recorder = (*mockRecorder)(nil)
var _ repository.UserRepository = (*mockUserRepo)(nil)

func newTestService(t *testing.T, repo repository.UserRepository) (*Service, *mockRecorder) {
	t.Helper()
	codec, err := NewTokenCodec(testTokenConfig)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	rec := newMockRecorder()
	return NewService(repo, codec, nil, rec), rec
}

var anaInput = RegisterInput{Name: "Ana", Email: "ana@ex.com", Password: "Abc12345!", ConfirmPassword: "Abc12345!"}

// --- テスト ---

func TestRegister_ThenLogin_IssuesValidToken(t *testing.T) {
	repo := repository.NewMemoryUserRepo()
	svc, rec := newTestService(t, repo)
	ctx := context.Background()

	reg, err := svc.Register(ctx, anaInput)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if reg.User.Email != "ana@ex.com" || reg.User.Name != "Ana" {
		t.Errorf("unexpected user summary: %+v", reg.User)
	}
	if reg.User.ID == "" {
		t.Error("user id should be generated")
	}
	if reg.Token == "" || reg.RefreshToken == "" {
		t.Error("tokens should be issued")
	}
	if !svc.ValidateToken(reg.Token) {
		t.Error("registration token should validate")
	}

	login, err := svc.Login(ctx, "ana@ex.com", "Abc12345!")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !svc.ValidateToken(login.Token) {
		t.Error("login token should validate")
	}
	if login.User.LastLoginAt == nil {
		t.Error("LastLoginAt should be set after login")
	}

	stored, _ := repo.FindByID(ctx, reg.User.ID)
	if stored.LastLoginAt == nil {
		t.Error("LastLoginAt should be persisted")
	}
	if stored.PasswordHash != HashPassword("Abc12345!") {
		t.Error("password hash should be stored")
	}

	if rec.registrations["success"] != 1 || rec.logins["success"] != 1 {
		t.Errorf("unexpected metrics: %+v %+v", rec.registrations, rec.logins)
	}
}

func TestLogin_EmailIsCaseInsensitive(t *testing.T) {
	svc, _ := newTestService(t, repository.NewMemoryUserRepo())
	ctx := context.Background()

	if _, err := svc.Register(ctx, anaInput); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Login(ctx, "ANA@EX.COM", "Abc12345!"); err != nil {
		t.Errorf("Login with upper-case email: %v", err)
	}
}

func TestLogin_WrongPassword_ReturnsValidation(t *testing.T) {
	svc, rec := newTestService(t, repository.NewMemoryUserRepo())
	ctx := context.Background()
	_, _ = svc.Register(ctx, anaInput)

	_, err := svc.Login(ctx, "ana@ex.com", "wrong")
	if !model.IsKind(err, model.KindValidation) {
		t.Fatalf("expected Validation error, got %v", err)
	}
	if rec.logins["failure"] != 1 {
		t.Errorf("login failure count = %d, want 1", rec.logins["failure"])
	}
}

func TestLogin_UnknownEmail_ReturnsNotFound(t *testing.T) {
	svc, _ := newTestService(t, repository.NewMemoryUserRepo())

	_, err := svc.Login(context.Background(), "nobody@ex.com", "Abc12345!")
	if !model.IsKind(err, model.KindNotFound) {
		t.Fatalf("expected NotFound error, got %v", err)
	}
}

// 未登録とパスワード不一致で同じメッセージを返す
func TestLogin_FailureMessagesAreIdentical(t *testing.T) {
	svc, _ := newTestService(t, repository.NewMemoryUserRepo())
	ctx := context.Background()
	_, _ = svc.Register(ctx, anaInput)

	_, unknown := svc.Login(ctx, "nobody@ex.com", "x")
	_, mismatch := svc.Login(ctx, "ana@ex.com", "x")

	var a, b *model.APIError
	if !errors.As(unknown, &a) || !errors.As(mismatch, &b) {
		t.Fatalf("expected APIErrors, got %v / %v", unknown, mismatch)
	}
	if a.Message != b.Message || a.Code != b.Code {
		t.Errorf("messages differ: %q vs %q", a.Message, b.Message)
	}
}

func TestRegister_DuplicateEmail_ReturnsConflictAndKeepsUser(t *testing.T) {
	repo := repository.NewMemoryUserRepo()
	svc, rec := newTestService(t, repo)
	ctx := context.Background()

	first, err := svc.Register(ctx, anaInput)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	again := anaInput
	again.Email = "ANA@ex.com"
	again.Password = "Other999?"
	_, err = svc.Register(ctx, again)
	if !model.IsKind(err, model.KindConflict) {
		t.Fatalf("expected Conflict, got %v", err)
	}

	stored, _ := repo.FindByID(ctx, first.User.ID)
	if stored.PasswordHash != HashPassword("Abc12345!") {
		t.Error("existing password hash must not change")
	}
	if rec.registrations["failure"] != 1 {
		t.Errorf("registration failure count = %d, want 1", rec.registrations["failure"])
	}
}

// 事前チェックをすり抜けた重複はストアのErrDuplicateからConflictに変換する
func TestRegister_StoreDuplicate_ReturnsConflict(t *testing.T) {
	repo := &mockUserRepo{
		MemoryUserRepo: repository.NewMemoryUserRepo(),
		createFn: func(_ context.Context, _ *model.User) error {
			return repository.ErrDuplicate
		},
	}
	svc, _ := newTestService(t, repo)

	_, err := svc.Register(context.Background(), anaInput)
	if !model.IsKind(err, model.KindConflict) {
		t.Fatalf("expected Conflict, got %v", err)
	}
}

func TestRegister_StoreFailure_ReturnsWrappedError(t *testing.T) {
	storeErr := errors.New("connection refused")
	repo := &mockUserRepo{
		MemoryUserRepo: repository.NewMemoryUserRepo(),
		existsByEmailFn: func(_ context.Context, _ string) (bool, error) {
			return false, storeErr
		},
	}
	svc, rec := newTestService(t, repo)

	_, err := svc.Register(context.Background(), anaInput)
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		t.Error("infrastructure failure must not be an APIError")
	}
	if rec.registrations["error"] != 1 {
		t.Errorf("registration error count = %d, want 1", rec.registrations["error"])
	}
}

func TestLogin_StoreFailure_ReturnsWrappedError(t *testing.T) {
	storeErr := errors.New("timeout")
	repo := &mockUserRepo{
		MemoryUserRepo: repository.NewMemoryUserRepo(),
		findByEmailFn: func(_ context.Context, _ string) (*model.User, error) {
			return nil, storeErr
		},
	}
	svc, _ := newTestService(t, repo)

	if _, err := svc.Login(context.Background(), "ana@ex.com", "x"); !errors.Is(err, storeErr) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

type mockCache struct {
	cache.Cache
	deleted  []string
	deleteFn func(ctx context.Context, key string) error
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.deleted = append(m.deleted, key)
	if m.deleteFn != nil {
		return m.deleteFn(ctx, key)
	}
	return m.Cache.Delete(ctx, key)
}

func TestLogin_InvalidatesCachedUserSummary(t *testing.T) {
	repo := repository.NewMemoryUserRepo()
	userCache := cache.NewMemoryCache(10)
	codec, err := NewTokenCodec(testTokenConfig)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	svc := NewService(repo, codec, userCache, nil)
	ctx := context.Background()

	reg, err := svc.Register(ctx, anaInput)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	key := cache.UserKey(reg.User.ID)
	if err := userCache.Set(ctx, key, []byte(`{"id":"stale"}`), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if _, err := svc.Login(ctx, "ana@ex.com", anaInput.Password); err != nil {
		t.Fatalf("Login: %v", err)
	}

	if _, ok, _ := userCache.Get(ctx, key); ok {
		t.Error("cached user summary should be removed after login")
	}
}

func TestLogin_CacheDeleteFailureDoesNotFailLogin(t *testing.T) {
	repo := repository.NewMemoryUserRepo()
	mc := &mockCache{
		Cache: cache.NewMemoryCache(10),
		deleteFn: func(context.Context, string) error {
			return errors.New("redis down")
		},
	}
	codec, err := NewTokenCodec(testTokenConfig)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	svc := NewService(repo, codec, mc, nil)
	ctx := context.Background()

	reg, err := svc.Register(ctx, anaInput)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	resp, err := svc.Login(ctx, "ana@ex.com", anaInput.Password)
	if err != nil {
		t.Fatalf("Login should succeed despite cache failure: %v", err)
	}
	if resp.Token == "" {
		t.Error("token should be issued")
	}
	if len(mc.deleted) != 1 || mc.deleted[0] != cache.UserKey(reg.User.ID) {
		t.Errorf("deleted keys = %v, want [%s]", mc.deleted, cache.UserKey(reg.User.ID))
	}
}

func TestRefreshToken_NotImplemented(t *testing.T) {
	svc, _ := newTestService(t, repository.NewMemoryUserRepo())

	resp, err := svc.RefreshToken(context.Background(), "anything")
	if resp != nil {
		t.Error("expected nil response")
	}
	if !model.IsKind(err, model.KindNotImplemented) {
		t.Fatalf("expected NotImplemented, got %v", err)
	}
}

func TestValidateToken_RejectsGarbage(t *testing.T) {
	svc, _ := newTestService(t, repository.NewMemoryUserRepo())
	if svc.ValidateToken("garbage") {
		t.Error("garbage token should not validate")
	}
}

func TestNewService_NilRecorder(t *testing.T) {
	codec, _ := NewTokenCodec(testTokenConfig)
	svc := NewService(repository.NewMemoryUserRepo(), codec, nil, nil)
	svc.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

	if _, err := svc.Register(context.Background(), anaInput); err != nil {
		t.Fatalf("Register with nil recorder: %v", err)
	}
}
