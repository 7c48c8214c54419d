package access

import (
	"context"
	"net/netip"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/credportal/credportal/engine/core"
	"github.com/credportal/credportal/engine/infra/postgres"
	"github.com/jackc/pgx/v5"
)

var userTable = postgres.NewTable[User](postgres.Meta{
	Table: "users",
	Alias: "u",
	Columns: []string{
		"id", "username", "password_hash", "email", "full_name", "otp_secret",
		"is_active", "is_staff", "is_superuser", "last_login_ip", "last_login",
		"created_at", "updated_at",
	},
	Searchable: []string{"username", "email", "full_name"},
})

// UserInput creates an account. PasswordHash and OTPSecret are produced by the
// authentication layer and stored as given.
type UserInput struct {
	Username     string  `json:"username"      validate:"required,min=3,max=60"`
	Email        string  `json:"email"         validate:"required,email,max=254"`
	FullName     string  `json:"full_name"     validate:"max=200"`
	PasswordHash string  `json:"-"             validate:"required"`
	OTPSecret    *string `json:"-"`
	IsStaff      bool    `json:"is_staff"`
	IsSuperuser  bool    `json:"is_superuser"`
}

type UserPatch struct {
	Email        *string `json:"email,omitempty"        validate:"omitempty,email,max=254"`
	FullName     *string `json:"full_name,omitempty"    validate:"omitempty,max=200"`
	PasswordHash *string `json:"-"                      validate:"omitempty,min=1"`
	IsActive     *bool   `json:"is_active,omitempty"`
	IsStaff      *bool   `json:"is_staff,omitempty"`
	IsSuperuser  *bool   `json:"is_superuser,omitempty"`
}

type UserRepository struct {
	postgres.Repository[User, int64]
}

func NewUserRepository(db postgres.DB) *UserRepository {
	return &UserRepository{Repository: postgres.NewRepository[User, int64](db, userTable)}
}

func (r *UserRepository) WithTx(tx pgx.Tx) *UserRepository {
	return &UserRepository{Repository: r.WithDB(tx)}
}

// GetByUsername looks an account up by its login name.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	rows, err := userTable.List(ctx, r.DB(), squirrel.Expr("u.username = ?", username))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, core.ErrNotFound
	}
	return &rows[0], nil
}

// Create inserts an active account. A taken username or email yields
// core.ErrConflict.
func (r *UserRepository) Create(ctx context.Context, in *UserInput) (*User, error) {
	if err := core.Validate(in); err != nil {
		return nil, err
	}
	return r.InsertFields(ctx, map[string]any{
		"username":      in.Username,
		"email":         in.Email,
		"full_name":     in.FullName,
		"password_hash": in.PasswordHash,
		"otp_secret":    in.OTPSecret,
		"is_active":     true,
		"is_staff":      in.IsStaff,
		"is_superuser":  in.IsSuperuser,
	})
}

func (r *UserRepository) Update(ctx context.Context, id int64, in *UserPatch) (*User, error) {
	if err := core.Validate(in); err != nil {
		return nil, err
	}
	fields := make(map[string]any)
	postgres.SetIfPresent(fields, "email", in.Email)
	postgres.SetIfPresent(fields, "full_name", in.FullName)
	postgres.SetIfPresent(fields, "password_hash", in.PasswordHash)
	postgres.SetIfPresent(fields, "is_active", in.IsActive)
	postgres.SetIfPresent(fields, "is_staff", in.IsStaff)
	postgres.SetIfPresent(fields, "is_superuser", in.IsSuperuser)
	if len(fields) > 0 {
		fields["updated_at"] = squirrel.Expr("now()")
	}
	return r.UpdateFields(ctx, id, fields)
}

// RecordLogin stores the time and client address of a successful login.
func (r *UserRepository) RecordLogin(ctx context.Context, id int64, ip string, at time.Time) (*User, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return nil, core.Invalid("invalid client address %q", ip)
	}
	return r.UpdateFields(ctx, id, map[string]any{
		"last_login":    at,
		"last_login_ip": addr.Unmap().String(),
	})
}

// SetRoles replaces the roles of a user.
func (r *UserRepository) SetRoles(ctx context.Context, userID int64, roleIDs []int32) error {
	return replaceLinks(ctx, r.DB(), "user_roles", "user_id", "role_id", userID, roleIDs)
}

// ListRoles returns the roles assigned to a user.
func (r *UserRepository) ListRoles(ctx context.Context, userID int64) ([]Role, error) {
	return roleTable.List(ctx, r.DB(), squirrel.Expr(
		"EXISTS (SELECT 1 FROM user_roles ur WHERE ur.role_id = ro.id AND ur.user_id = ?)",
		userID,
	))
}
