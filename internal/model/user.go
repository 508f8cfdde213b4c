package model

import "time"

// Role values stored in users.role.  The column is an ENUM so the database
// rejects anything outside this set, but handlers normalize before writing.
const (
	RoleEmployee = "employee"
	RoleAdmin    = "admin"
)

// User represents an application user record as stored in the `users`
// table.  Each field corresponds to a column in the database.  PasswordHash
// and TokenVersion are internal authentication fields and must never be
// serialized to clients; use Public() for anything that leaves the server.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Name         – display name (2–50 characters).
//  Email        – unique email address, stored lowercase.
//  PasswordHash – bcrypt hashed password.
//  Role         – "employee" or "admin".
//  Active       – whether the account may authenticate.
//  TokenVersion – monotonic counter embedded in issued tokens; bumping it
//                 invalidates every outstanding token for the user.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Name         string    // users.name
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	Active       bool      // users.active
	TokenVersion uint32    // users.token_version
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// PublicUser is the client-facing projection of a User.  It deliberately
// omits the password hash and the token version.
type PublicUser struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Public returns the serializable view of the user.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
