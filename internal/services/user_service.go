package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	domain "github.com/orchidcart/api/internal/domain"
	"github.com/orchidcart/api/internal/platform/auth"
	"github.com/orchidcart/api/internal/repositories"
)

var (
	// ErrUserInvalidInput indicates the caller supplied malformed profile input.
	ErrUserInvalidInput = errors.New("user: invalid input")
	// ErrUserNotFound indicates the profile does not exist locally or upstream.
	ErrUserNotFound = errors.New("user: not found")
)

const maxDisplayNameLength = 120

// UserServiceDeps bundles the dependencies required to construct a user service instance.
type UserServiceDeps struct {
	Users    repositories.UserRepository
	Firebase auth.UserGetter
	Clock    func() time.Time
	// AdminEmails are granted the admin role whenever their profile syncs.
	AdminEmails []string
}

type userService struct {
	users       repositories.UserRepository
	firebase    auth.UserGetter
	clock       func() time.Time
	adminEmails map[string]struct{}
}

var _ UserService = (*userService)(nil)

// NewUserService wires dependencies into a concrete UserService implementation.
func NewUserService(deps UserServiceDeps) (UserService, error) {
	if deps.Users == nil {
		return nil, errors.New("user service: user repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	adminEmails := make(map[string]struct{}, len(deps.AdminEmails))
	for _, email := range deps.AdminEmails {
		trimmed := strings.ToLower(strings.TrimSpace(email))
		if trimmed != "" {
			adminEmails[trimmed] = struct{}{}
		}
	}

	return &userService{
		users:       deps.Users,
		firebase:    deps.Firebase,
		clock:       func() time.Time { return clock().UTC() },
		adminEmails: adminEmails,
	}, nil
}

// GetProfile loads the stored profile projection. When no projection exists
// yet and a Firebase client is configured, the profile is hydrated from the
// identity provider and persisted on first read.
func (s *userService) GetProfile(ctx context.Context, userID string) (UserProfile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return UserProfile{}, fmt.Errorf("%w: user id is required", ErrUserInvalidInput)
	}

	profile, err := s.users.FindByID(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if !isRepositoryNotFound(err) {
		return UserProfile{}, err
	}
	if s.firebase == nil {
		return UserProfile{}, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}

	record, err := s.firebase.GetUser(ctx, userID)
	if err != nil || record == nil {
		return UserProfile{}, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}

	now := s.clock()
	hydrated := domain.UserProfile{
		ID:          userID,
		DisplayName: strings.TrimSpace(record.DisplayName),
		Email:       strings.TrimSpace(record.Email),
		PhoneNumber: strings.TrimSpace(record.PhoneNumber),
		IsActive:    !record.Disabled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return s.users.Upsert(ctx, hydrated)
}

// SyncProfile upserts the projection from a verified identity. Existing
// creation timestamps and roles are preserved unless the command supplies
// replacements.
func (s *userService) SyncProfile(ctx context.Context, cmd SyncProfileCommand) (UserProfile, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return UserProfile{}, fmt.Errorf("%w: user id is required", ErrUserInvalidInput)
	}
	displayName := strings.TrimSpace(cmd.DisplayName)
	if utf8.RuneCountInString(displayName) > maxDisplayNameLength {
		return UserProfile{}, fmt.Errorf("%w: display name too long", ErrUserInvalidInput)
	}

	now := s.clock()
	profile := domain.UserProfile{
		ID:          userID,
		DisplayName: displayName,
		Email:       strings.TrimSpace(cmd.Email),
		PhoneNumber: strings.TrimSpace(cmd.PhoneNumber),
		Roles:       normalizeRoles(cmd.Roles),
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if existing, err := s.users.FindByID(ctx, userID); err == nil {
		if !existing.CreatedAt.IsZero() {
			profile.CreatedAt = existing.CreatedAt
		}
		if len(profile.Roles) == 0 {
			profile.Roles = existing.Roles
		}
		profile.IsActive = existing.IsActive
	} else if !isRepositoryNotFound(err) {
		return UserProfile{}, err
	}

	if s.isBootstrapAdmin(profile.Email) {
		profile.Roles = appendRole(profile.Roles, auth.RoleAdmin)
	}

	return s.users.Upsert(ctx, profile)
}

func (s *userService) isBootstrapAdmin(email string) bool {
	if len(s.adminEmails) == 0 {
		return false
	}
	_, ok := s.adminEmails[strings.ToLower(strings.TrimSpace(email))]
	return ok
}

func appendRole(roles []string, role string) []string {
	for _, existing := range roles {
		if existing == role {
			return roles
		}
	}
	return append(roles, role)
}

func normalizeRoles(roles []string) []string {
	if len(roles) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(roles))
	result := make([]string, 0, len(roles))
	for _, role := range roles {
		trimmed := strings.ToLower(strings.TrimSpace(role))
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
