package users

import (
	"context"
	"errors"
	"testing"

	"github.com/minglehq/mingle/internal/models"
)

// fake in-memory user repo
type fakeUserRepo struct {
	byID map[string]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byID: map[string]*models.User{}}
}

func (f *fakeUserRepo) Create(ctx context.Context, u *models.User) error {
	f.byID[u.ID] = u
	return nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	return f.byID[id], nil
}

func (f *fakeUserRepo) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	for _, u := range f.byID {
		if u.Username == login || u.Email == login {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeUserRepo) UpdateAvatar(ctx context.Context, id, url, key string) error {
	if u := f.byID[id]; u != nil {
		u.AvatarURL, u.AvatarKey = url, key
	}
	return nil
}

func (f *fakeUserRepo) Follow(ctx context.Context, followerID, followeeID string) error {
	return nil
}

func (f *fakeUserRepo) Unfollow(ctx context.Context, followerID, followeeID string) error {
	return nil
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc := NewService(newFakeUserRepo())
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterInput{
		Username: "Alice",
		Email:    "alice@example.com",
		FullName: "Alice A",
		Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if u.Username != "alice" {
		t.Fatalf("username should be lowercased, got %q", u.Username)
	}
	if u.PasswordHash == "correct horse" {
		t.Fatalf("password stored in plaintext")
	}

	// login by username
	got, err := svc.Authenticate(ctx, "alice", "correct horse")
	if err != nil || got.ID != u.ID {
		t.Fatalf("authenticate by username failed: %v", err)
	}
	// login by email
	if _, err := svc.Authenticate(ctx, "alice@example.com", "correct horse"); err != nil {
		t.Fatalf("authenticate by email failed: %v", err)
	}
	// wrong password
	if _, err := svc.Authenticate(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	// unknown user
	if _, err := svc.Authenticate(ctx, "nobody", "whatever"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestRegister_DuplicateRejected(t *testing.T) {
	svc := NewService(newFakeUserRepo())
	ctx := context.Background()

	in := RegisterInput{Username: "bob", Email: "bob@example.com", FullName: "Bob B", Password: "long enough"}
	if _, err := svc.Register(ctx, in); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	if _, err := svc.Register(ctx, in); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestRegister_Validation(t *testing.T) {
	svc := NewService(newFakeUserRepo())
	ctx := context.Background()

	cases := []RegisterInput{
		{Username: "", Email: "a@b.c", FullName: "A", Password: "12345678"},
		{Username: "a", Email: "not-an-email", FullName: "A", Password: "12345678"},
		{Username: "a", Email: "a@b.c", FullName: "A", Password: "short"},
	}
	for i, in := range cases {
		if _, err := svc.Register(ctx, in); !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d: expected ErrValidation, got %v", i, err)
		}
	}
}

func TestFollow_SelfRejected(t *testing.T) {
	svc := NewService(newFakeUserRepo())
	if err := svc.Follow(context.Background(), "u1", "u1"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for self-follow, got %v", err)
	}
}
