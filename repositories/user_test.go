package repositories

import (
	"chat-presence/errors"
	"context"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func openDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func Test_Create_And_Find_User(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewUserRepository(openDB(t))

	// Given a new account
	user, err := repository.CreateUser(ctx, "Alice Martin", " Alice@Example.com ", "$argon2id$hash")
	req.NoError(err)
	req.NotEmpty(user.ID)
	req.Equal("alice@example.com", user.Email)

	// Then it can be found by id, without its password hash
	identity, err := repository.FindByID(ctx, user.ID)
	req.NoError(err)
	req.Equal(user.Identity(), identity)

	// Then it can be found by email, whatever the case
	byEmail, err := repository.GetUserByEmail(ctx, "ALICE@example.com")
	req.NoError(err)
	req.Equal(user.ID, byEmail.ID)
	req.Equal("$argon2id$hash", byEmail.PasswordHash)
}

func Test_Create_User_Twice(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewUserRepository(openDB(t))

	_, err := repository.CreateUser(ctx, "Alice", "alice@example.com", "hash")
	req.NoError(err)

	_, err = repository.CreateUser(ctx, "Other Alice", "alice@example.com", "hash")
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func Test_Unknown_User(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewUserRepository(openDB(t))

	_, err := repository.FindByID(ctx, "missing")
	req.ErrorIs(err, errors.ErrIdentityNotFound)

	_, err = repository.GetUserByEmail(ctx, "missing@example.com")
	req.ErrorIs(err, errors.ErrIdentityNotFound)

	_, err = repository.UpdateProfilePic(ctx, "missing", "https://cdn/pic.png")
	req.ErrorIs(err, errors.ErrIdentityNotFound)
}

func Test_Update_Profile_Pic(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewUserRepository(openDB(t))
	user, err := repository.CreateUser(ctx, "Alice", "alice@example.com", "hash")
	req.NoError(err)

	identity, err := repository.UpdateProfilePic(ctx, user.ID, "https://cdn/alice.png")
	req.NoError(err)
	req.Equal("https://cdn/alice.png", identity.ProfilePic)

	stored, err := repository.FindByID(ctx, user.ID)
	req.NoError(err)
	req.Equal("https://cdn/alice.png", stored.ProfilePic)
}

func Test_List_Except(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewUserRepository(openDB(t))
	carol, _ := repository.CreateUser(ctx, "Carol", "carol@example.com", "hash")
	alice, _ := repository.CreateUser(ctx, "Alice", "alice@example.com", "hash")
	bob, _ := repository.CreateUser(ctx, "Bob", "bob@example.com", "hash")

	identities, err := repository.ListExcept(ctx, bob.ID)

	req.NoError(err)
	req.Len(identities, 2)
	req.Equal(alice.ID, identities[0].ID)
	req.Equal(carol.ID, identities[1].ID)
}
