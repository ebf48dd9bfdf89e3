package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"

	domain "github.com/orchidcart/api/internal/domain"
)

type memUserRepo struct {
	profiles map[string]domain.UserProfile
}

func (m *memUserRepo) FindByID(_ context.Context, userID string) (domain.UserProfile, error) {
	profile, ok := m.profiles[userID]
	if !ok {
		return domain.UserProfile{}, fmt.Errorf("users.get: %w", notFoundRepoErr{})
	}
	return profile, nil
}

func (m *memUserRepo) Upsert(_ context.Context, profile domain.UserProfile) (domain.UserProfile, error) {
	m.profiles[profile.ID] = profile
	return profile, nil
}

type stubUserGetter struct {
	getFn func(context.Context, string) (*firebaseauth.UserRecord, error)
}

func (s *stubUserGetter) GetUser(ctx context.Context, uid string) (*firebaseauth.UserRecord, error) {
	if s.getFn != nil {
		return s.getFn(ctx, uid)
	}
	return nil, errors.New("not implemented")
}

func newUserService(t *testing.T, repo *memUserRepo, firebase *stubUserGetter) UserService {
	t.Helper()
	deps := UserServiceDeps{
		Users: repo,
		Clock: func() time.Time { return time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC) },
	}
	if firebase != nil {
		deps.Firebase = firebase
	}
	svc, err := NewUserService(deps)
	if err != nil {
		t.Fatalf("NewUserService: %v", err)
	}
	return svc
}

func TestGetProfileReturnsStoredProjection(t *testing.T) {
	ctx := context.Background()
	repo := &memUserRepo{profiles: map[string]domain.UserProfile{
		"user-1": {ID: "user-1", DisplayName: "Asha", Roles: []string{"admin"}},
	}}
	svc := newUserService(t, repo, nil)

	profile, err := svc.GetProfile(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if profile.DisplayName != "Asha" || !profile.HasRole("admin") {
		t.Fatalf("profile = %+v", profile)
	}
}

func TestGetProfileHydratesFromIdentityProvider(t *testing.T) {
	ctx := context.Background()
	repo := &memUserRepo{profiles: map[string]domain.UserProfile{}}
	firebase := &stubUserGetter{getFn: func(_ context.Context, uid string) (*firebaseauth.UserRecord, error) {
		return &firebaseauth.UserRecord{
			UserInfo: &firebaseauth.UserInfo{
				UID:         uid,
				DisplayName: "Ravi",
				Email:       "ravi@example.com",
				PhoneNumber: "+91 9876543210",
			},
		}, nil
	}}
	svc := newUserService(t, repo, firebase)

	profile, err := svc.GetProfile(ctx, "user-2")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if profile.Email != "ravi@example.com" {
		t.Fatalf("email = %q", profile.Email)
	}
	if _, ok := repo.profiles["user-2"]; !ok {
		t.Fatal("hydrated profile not persisted")
	}
}

func TestGetProfileUnknownUser(t *testing.T) {
	ctx := context.Background()
	repo := &memUserRepo{profiles: map[string]domain.UserProfile{}}
	svc := newUserService(t, repo, nil)

	if _, err := svc.GetProfile(ctx, "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("error = %v, want ErrUserNotFound", err)
	}
	if _, err := svc.GetProfile(ctx, "  "); !errors.Is(err, ErrUserInvalidInput) {
		t.Fatalf("blank id error = %v, want ErrUserInvalidInput", err)
	}
}

func TestSyncProfilePreservesCreationAndRoles(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := &memUserRepo{profiles: map[string]domain.UserProfile{
		"user-1": {ID: "user-1", Roles: []string{"admin"}, IsActive: true, CreatedAt: created},
	}}
	svc := newUserService(t, repo, nil)

	profile, err := svc.SyncProfile(ctx, SyncProfileCommand{
		UserID:      "user-1",
		DisplayName: " Asha Pillai ",
		Email:       "asha@example.com",
	})
	if err != nil {
		t.Fatalf("SyncProfile: %v", err)
	}
	if !profile.CreatedAt.Equal(created) {
		t.Fatalf("createdAt = %v, want preserved %v", profile.CreatedAt, created)
	}
	if !profile.HasRole("admin") {
		t.Fatalf("roles dropped: %+v", profile.Roles)
	}
	if profile.DisplayName != "Asha Pillai" {
		t.Fatalf("display name = %q", profile.DisplayName)
	}
}

func TestSyncProfileNormalizesRoles(t *testing.T) {
	ctx := context.Background()
	repo := &memUserRepo{profiles: map[string]domain.UserProfile{}}
	svc := newUserService(t, repo, nil)

	profile, err := svc.SyncProfile(ctx, SyncProfileCommand{
		UserID: "user-3",
		Roles:  []string{" Admin ", "admin", "", "support"},
	})
	if err != nil {
		t.Fatalf("SyncProfile: %v", err)
	}
	if len(profile.Roles) != 2 || profile.Roles[0] != "admin" || profile.Roles[1] != "support" {
		t.Fatalf("roles = %v", profile.Roles)
	}
}

func TestSyncProfileGrantsBootstrapAdminRole(t *testing.T) {
	ctx := context.Background()
	repo := &memUserRepo{profiles: map[string]domain.UserProfile{}}
	svc, err := NewUserService(UserServiceDeps{
		Users:       repo,
		Clock:       func() time.Time { return time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC) },
		AdminEmails: []string{" Ops@Example.com "},
	})
	if err != nil {
		t.Fatalf("NewUserService: %v", err)
	}

	profile, err := svc.SyncProfile(ctx, SyncProfileCommand{
		UserID: "user-9",
		Email:  "ops@example.com",
	})
	if err != nil {
		t.Fatalf("SyncProfile: %v", err)
	}
	if !profile.HasRole("admin") {
		t.Fatalf("bootstrap admin not granted: %+v", profile.Roles)
	}

	again, err := svc.SyncProfile(ctx, SyncProfileCommand{
		UserID: "user-9",
		Email:  "ops@example.com",
		Roles:  []string{"admin"},
	})
	if err != nil {
		t.Fatalf("SyncProfile: %v", err)
	}
	if len(again.Roles) != 1 {
		t.Fatalf("admin role duplicated: %v", again.Roles)
	}

	other, err := svc.SyncProfile(ctx, SyncProfileCommand{
		UserID: "user-10",
		Email:  "shopper@example.com",
	})
	if err != nil {
		t.Fatalf("SyncProfile: %v", err)
	}
	if other.HasRole("admin") {
		t.Fatalf("unexpected admin grant: %v", other.Roles)
	}
}
