package access

import "time"

// Module groups permissions by application area.
type Module struct {
	ID        int32     `db:"id"         json:"id"`
	Title     string    `db:"title"      json:"title"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Permission is a named capability owned by a module. ModuleTitle is only
// filled by read queries.
type Permission struct {
	ID          int32     `db:"id"           json:"id"`
	Name        string    `db:"name"         json:"name"`
	Description *string   `db:"description"  json:"description,omitempty"`
	ModuleID    int32     `db:"module_id"    json:"module_id"`
	ModuleTitle *string   `db:"module_title" json:"module_title,omitempty"`
	CreatedAt   time.Time `db:"created_at"   json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"   json:"updated_at"`
}

type Role struct {
	ID   int32  `db:"id"   json:"id"`
	Name string `db:"name" json:"name"`
}

// User is a staff account. Credentials are stored but never serialized.
type User struct {
	ID           int64      `db:"id"            json:"id"`
	Username     string     `db:"username"      json:"username"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Email        string     `db:"email"         json:"email"`
	FullName     string     `db:"full_name"     json:"full_name"`
	OTPSecret    *string    `db:"otp_secret"    json:"-"`
	IsActive     bool       `db:"is_active"     json:"is_active"`
	IsStaff      bool       `db:"is_staff"      json:"is_staff"`
	IsSuperuser  bool       `db:"is_superuser"  json:"is_superuser"`
	LastLoginIP  *string    `db:"last_login_ip" json:"last_login_ip,omitempty"`
	LastLogin    *time.Time `db:"last_login"    json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"    json:"updated_at"`
}
