package services

import (
	"context"
	"testing"

	"github.com/control-eventos/apiserver/internal/store"
	"github.com/control-eventos/apiserver/types"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestUserService(users ...types.User) (*UserService, *fakeUsers) {
	repo := newFakeUsers(users...)
	svc := NewUserService(repo)
	svc.cost = bcrypt.MinCost
	return svc, repo
}

func TestRegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestUserService()

	user, err := svc.Register(ctx, NewUser{Email: "  Ana@Example.com ", Password: "secret123"})
	require.NoError(t, err)
	require.Equal(t, "ana@example.com", user.Email)
	require.Equal(t, "ana", user.Name)
	require.Equal(t, types.RoleUser, user.Role)
	require.Equal(t, types.AuthProviderPassword, user.AuthProvider)
	require.NotEqual(t, "secret123", user.PasswordHash)

	got, err := svc.Authenticate(ctx, "ANA@example.com", "secret123")
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)

	_, err = svc.Authenticate(ctx, "ana@example.com", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody@example.com", "secret123")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Register(ctx, NewUser{Email: "ana@example.com", Password: "other"})
	require.ErrorIs(t, err, store.ErrConflict)
}

func TestCreateByAdminRoleRules(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestUserService()

	admin := types.User{ID: 10, Email: "admin@example.com", Role: types.RoleAdmin}
	global := types.User{ID: 11, Email: "root@example.com", Role: types.RoleGlobalAdmin}
	plain := types.User{ID: 12, Email: "user@example.com", Role: types.RoleUser}

	_, err := svc.CreateByAdmin(ctx, plain, NewUser{Email: "x@example.com", Password: "pw"})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.CreateByAdmin(ctx, admin, NewUser{Email: "x@example.com", Password: "pw", Role: types.RoleGlobalAdmin})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.CreateByAdmin(ctx, admin, NewUser{Email: "x@example.com", Password: "pw", Role: "owner"})
	require.ErrorIs(t, err, ErrInvalidRole)

	created, err := svc.CreateByAdmin(ctx, admin, NewUser{Email: "x@example.com", Password: "pw", Name: "Equis"})
	require.NoError(t, err)
	require.Equal(t, types.RoleUser, created.Role)
	require.Equal(t, "Equis", created.Name)

	promoted, err := svc.CreateByAdmin(ctx, global, NewUser{Email: "y@example.com", Password: "pw", Role: types.RoleGlobalAdmin})
	require.NoError(t, err)
	require.Equal(t, types.RoleGlobalAdmin, promoted.Role)
}

func TestDeleteRoleRules(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestUserService(
		types.User{ID: 1, Email: "root@example.com", Role: types.RoleGlobalAdmin},
		types.User{ID: 2, Email: "admin@example.com", Role: types.RoleAdmin},
		types.User{ID: 3, Email: "user@example.com", Role: types.RoleUser},
	)
	root := repo.byID[1]
	admin := repo.byID[2]

	require.ErrorIs(t, svc.Delete(ctx, admin, 2), ErrForbidden)
	require.ErrorIs(t, svc.Delete(ctx, admin, 1), ErrForbidden)
	require.ErrorIs(t, svc.Delete(ctx, repo.byID[3], 2), ErrForbidden)
	require.ErrorIs(t, svc.Delete(ctx, admin, 99), store.ErrNotFound)

	require.NoError(t, svc.Delete(ctx, admin, 3))
	require.NoError(t, svc.Delete(ctx, root, 2))

	users, err := svc.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, 1, users[0].ID)
}

func TestFindOrCreateExternal(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestUserService(types.User{ID: 1, Email: "ana@example.com", Role: types.RoleAdmin})

	existing, err := svc.FindOrCreateExternal(ctx, "Ana@Example.com", "Ana G", types.AuthProviderGoogle)
	require.NoError(t, err)
	require.Equal(t, 1, existing.ID)
	require.Equal(t, types.RoleAdmin, existing.Role)

	created, err := svc.FindOrCreateExternal(ctx, "luis@example.com", "", types.AuthProviderGoogle)
	require.NoError(t, err)
	require.Equal(t, "luis", created.Name)
	require.Equal(t, types.RoleUser, created.Role)
	require.Equal(t, types.AuthProviderGoogle, created.AuthProvider)
	require.Empty(t, created.PasswordHash)

	_, err = svc.Authenticate(ctx, "luis@example.com", "")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestBootstrapAndListFilter(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestUserService()

	root, err := svc.Bootstrap(ctx, NewUser{Email: "root@example.com", Password: "pw"})
	require.NoError(t, err)
	require.Equal(t, types.RoleGlobalAdmin, root.Role)

	_, err = svc.Register(ctx, NewUser{Email: "u@example.com", Password: "pw"})
	require.NoError(t, err)

	admins, err := svc.List(ctx, types.RoleGlobalAdmin)
	require.NoError(t, err)
	require.Len(t, admins, 1)

	_, err = svc.List(ctx, "superuser")
	require.ErrorIs(t, err, ErrInvalidRole)
}
