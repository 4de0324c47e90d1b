package models

import (
	"database/sql"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
	"golang.org/x/crypto/bcrypt"
)

// User is a hub account. PasswordHash uses bcrypt and is never exposed in
// JSON; hand UserOutput to API responses instead.
type User struct {
	ID           int64
	GUID         string
	Username     string
	Email        sql.NullString
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLoginAt  sql.NullTime
	IsActive     bool
}

// UserOutput is the JSON-safe view of a user.
type UserOutput struct {
	GUID     string `json:"guid"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// ToOutput converts a User to its API representation.
func (u *User) ToOutput() UserOutput {
	out := UserOutput{GUID: u.GUID, Username: u.Username}
	if u.Email.Valid {
		out.Email = u.Email.String
	}
	return out
}

// UserRegisterInput is the registration request body.
type UserRegisterInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
}

// UserLoginInput is the login request body.
type UserLoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

const bcryptCost = 12

// usernamePattern allows letters, digits, underscore, hyphen; 3-64 chars.
// Colons are excluded so usernames can appear in storage keys.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,64}$`)

// HashPassword creates a bcrypt hash of the plaintext password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", serr.Wrap(err, "failed to hash password")
	}
	return string(hash), nil
}

// CheckPassword verifies a plaintext password against a stored hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// CreateUser validates input and inserts a new account.
func CreateUser(input UserRegisterInput) (*User, error) {
	if !usernamePattern.MatchString(input.Username) {
		return nil, serr.New("username must be 3-64 characters of letters, digits, underscore, or hyphen")
	}
	if len(input.Password) < 8 {
		return nil, serr.New("password must be at least 8 characters")
	}

	existing, err := GetUserByUsername(input.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, serr.New("username already exists")
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := &User{
		GUID:         uuid.New().String(),
		Username:     input.Username,
		PasswordHash: hash,
		IsActive:     true,
	}
	if input.Email != "" {
		user.Email = sql.NullString{String: input.Email, Valid: true}
	}

	_, err = db.Exec(
		`INSERT INTO users (guid, username, email, password_hash) VALUES (?, ?, ?, ?)`,
		user.GUID, user.Username, user.Email, user.PasswordHash,
	)
	if err != nil {
		return nil, serr.Wrap(err, "failed to insert user")
	}

	logger.Info("User created", "username", user.Username, "guid", user.GUID)
	return user, nil
}

// GetUserByUsername returns the user or nil when not found.
func GetUserByUsername(username string) (*User, error) {
	return scanUser(db.QueryRow(
		`SELECT id, guid, username, email, password_hash, created_at, updated_at, last_login_at, is_active
		 FROM users WHERE username = ?`, username))
}

// GetUserByGUID returns the user or nil when not found.
func GetUserByGUID(guid string) (*User, error) {
	return scanUser(db.QueryRow(
		`SELECT id, guid, username, email, password_hash, created_at, updated_at, last_login_at, is_active
		 FROM users WHERE guid = ?`, guid))
}

func scanUser(row *sql.Row) (*User, error) {
	user := &User{}
	err := row.Scan(&user.ID, &user.GUID, &user.Username, &user.Email, &user.PasswordHash,
		&user.CreatedAt, &user.UpdatedAt, &user.LastLoginAt, &user.IsActive)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, serr.Wrap(err, "failed to query user")
	}
	return user, nil
}

// AuthenticateUser checks credentials. Returns nil (no error) for unknown
// user or wrong password so callers can't distinguish the two; returns an
// error for disabled accounts and backend failures.
func AuthenticateUser(input UserLoginInput) (*User, error) {
	user, err := GetUserByUsername(input.Username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}
	if !user.IsActive {
		return nil, serr.New("account is disabled")
	}
	if !CheckPassword(user.PasswordHash, input.Password) {
		return nil, nil
	}

	if _, err := db.Exec(`UPDATE users SET last_login_at = CURRENT_TIMESTAMP WHERE guid = ?`, user.GUID); err != nil {
		logger.LogErr(serr.Wrap(err, "failed to record last login"), "user", user.Username)
	}
	return user, nil
}
