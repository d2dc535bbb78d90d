package auth

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"

	"github.com/evcraddock/propdesk/internal/validate"
	"github.com/evcraddock/propdesk/internal/workflow"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrUserInUse          = errors.New("user is referenced by handovers or requests")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// User is an admin or a unit owner.
type User struct {
	ID        string        `json:"id"`
	Email     string        `json:"email"`
	Name      string        `json:"name"`
	Role      workflow.Role `json:"role"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Actor returns the user as the caller of a server-side operation.
func (u *User) Actor() workflow.Actor {
	return workflow.Actor{ID: u.ID, Email: u.Email, Role: u.Role}
}

// UserInput is the payload for creating a user.
type UserInput struct {
	Email    string        `json:"email" validate:"required,email"`
	Name     string        `json:"name" validate:"max=200"`
	Role     workflow.Role `json:"role" validate:"required,oneof=ADMIN OWNER"`
	Password string        `json:"password,omitempty" validate:"omitempty,min=8"`
}

// UserUpdate is a partial update; nil fields are left unchanged.
type UserUpdate struct {
	Name     *string        `json:"name,omitempty" validate:"omitempty,max=200"`
	Role     *workflow.Role `json:"role,omitempty" validate:"omitempty,oneof=ADMIN OWNER"`
	Password *string        `json:"password,omitempty" validate:"omitempty,min=8"`
}

// UserStore manages users in SQLite.
type UserStore struct {
	db   *sql.DB
	cost int
}

// NewUserStore creates a user store.
func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db, cost: bcrypt.DefaultCost}
}

const userColumns = "id, email, name, role, created_at"

// Create adds a user. Owners may be created without a password and log in
// with a passkey registered later.
func (s *UserStore) Create(in UserInput) (*User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	u := &User{
		ID:        uuid.NewString(),
		Email:     in.Email,
		Name:      in.Name,
		Role:      in.Role,
		CreatedAt: time.Now().UTC(),
	}
	_, err = s.db.Exec(
		"INSERT INTO users (id, email, name, role, password_hash, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		u.ID, u.Email, u.Name, string(u.Role), hash, u.CreatedAt,
	)
	if err != nil {
		if isConstraint(err, sqlite3.ErrConstraintUnique) {
			return nil, fmt.Errorf("%s: %w", u.Email, ErrUserExists)
		}
		return nil, fmt.Errorf("adding user: %w", err)
	}
	return u, nil
}

// Authenticate checks an email and password pair.
func (s *UserStore) Authenticate(email, password string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var hash string
	err := s.db.QueryRow("SELECT password_hash FROM users WHERE email = ?", email).Scan(&hash)
	if err == sql.ErrNoRows {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	if hash == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return s.GetByEmail(email)
}

// GetByID returns a user by ID.
func (s *UserStore) GetByID(id string) (*User, error) {
	return s.getOne("id = ?", id)
}

// GetByEmail returns a user by email, case-insensitively.
func (s *UserStore) GetByEmail(email string) (*User, error) {
	return s.getOne("email = ?", strings.ToLower(strings.TrimSpace(email)))
}

func (s *UserStore) getOne(where string, arg string) (*User, error) {
	var u User
	var role string
	err := s.db.QueryRow("SELECT "+userColumns+" FROM users WHERE "+where, arg).
		Scan(&u.ID, &u.Email, &u.Name, &role, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%s: %w", arg, ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	u.Role = workflow.Role(role)
	return &u, nil
}

// List returns users ordered by email. An empty role returns everyone.
func (s *UserStore) List(role workflow.Role) (users []*User, err error) {
	query := "SELECT " + userColumns + " FROM users"
	var args []interface{}
	if role != "" {
		query += " WHERE role = ?"
		args = append(args, string(role))
	}
	query += " ORDER BY email"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	for rows.Next() {
		var u User
		var r string
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &r, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		u.Role = workflow.Role(r)
		users = append(users, &u)
	}
	return users, rows.Err()
}

// Update applies a partial update.
func (s *UserStore) Update(id string, in UserUpdate) (*User, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	var sets []string
	var args []interface{}
	if in.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, strings.TrimSpace(*in.Name))
	}
	if in.Role != nil {
		sets = append(sets, "role = ?")
		args = append(args, string(*in.Role))
	}
	if in.Password != nil {
		hash, err := s.hashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		sets = append(sets, "password_hash = ?")
		args = append(args, hash)
	}
	if len(sets) == 0 {
		return s.GetByID(id)
	}

	args = append(args, id)
	result, err := s.db.Exec("UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return nil, fmt.Errorf("updating user: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return nil, fmt.Errorf("checking affected rows: %w", err)
	} else if n == 0 {
		return nil, fmt.Errorf("%s: %w", id, ErrUserNotFound)
	}
	return s.GetByID(id)
}

// Delete removes a user. Units they own become unowned.
func (s *UserStore) Delete(id string) error {
	result, err := s.db.Exec("DELETE FROM users WHERE id = ?", id)
	if err != nil {
		if isConstraint(err, sqlite3.ErrConstraintForeignKey) {
			return fmt.Errorf("%s: %w", id, ErrUserInUse)
		}
		return fmt.Errorf("deleting user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", id, ErrUserNotFound)
	}
	return nil
}

// EnsureAdmin creates the bootstrap admin if no user has that email yet.
// An existing account is left alone.
func (s *UserStore) EnsureAdmin(email, password string) (*User, error) {
	u, err := s.GetByEmail(email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}
	return s.Create(UserInput{Email: email, Name: "Administrator", Role: workflow.RoleAdmin, Password: password})
}

func (s *UserStore) hashPassword(password string) (string, error) {
	if password == "" {
		return "", nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

func isConstraint(err error, code sqlite3.ErrNoExtended) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == code
}
