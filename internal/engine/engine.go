package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"reactango/internal/domain"
	"reactango/internal/events"
	"reactango/internal/repo"
)

const maxFieldLength = 100

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ErrEmailTaken is returned when another user already owns the email.
var ErrEmailTaken = errors.New("email already exists")

// ValidationError reports a rejected field value.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Now    func() time.Time
}

func New(db *sql.DB) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{},
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) writer() events.Writer {
	w := e.Events
	if w.Now == nil {
		w.Now = e.now
	}
	return w
}

type UserCreateOptions struct {
	Name         string
	Email        string
	FavoriteFood string
}

// UserUpdateOptions changes only the fields that are set. An empty
// FavoriteFood clears it.
type UserUpdateOptions struct {
	ID           int64
	Name         *string
	Email        *string
	FavoriteFood *string
}

func (e Engine) ListUsers(ctx context.Context) ([]domain.User, error) {
	return e.Repo.ListUsers(ctx)
}

func (e Engine) GetUser(ctx context.Context, id int64) (domain.User, error) {
	u, err := e.Repo.GetUser(ctx, id)
	if err != nil {
		return domain.User{}, fmt.Errorf("user %d: %w", id, err)
	}
	return u, nil
}

// CreateUser validates and stores a new user. Emails are unique regardless of case.
func (e Engine) CreateUser(ctx context.Context, opts UserCreateOptions) (domain.User, error) {
	name, err := validateName(opts.Name)
	if err != nil {
		return domain.User{}, err
	}
	email, err := validateEmail(opts.Email)
	if err != nil {
		return domain.User{}, err
	}
	food, err := validateFood(opts.FavoriteFood)
	if err != nil {
		return domain.User{}, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()

	if err := e.ensureEmailFree(ctx, tx, email, 0); err != nil {
		return domain.User{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	u := domain.User{
		Name:         name,
		Email:        email,
		FavoriteFood: food,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	id, err := e.Repo.InsertUser(ctx, tx, u)
	if err != nil {
		return domain.User{}, err
	}
	u.ID = id
	if err := e.writer().Append(ctx, tx, domain.EventUserCreated, "user", strconv.FormatInt(id, 10), events.Payload{
		"name":  u.Name,
		"email": u.Email,
	}); err != nil {
		return domain.User{}, fmt.Errorf("append event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (e Engine) UpdateUser(ctx context.Context, opts UserUpdateOptions) (domain.User, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()

	u, err := e.Repo.GetUserTx(ctx, tx, opts.ID)
	if err != nil {
		return domain.User{}, fmt.Errorf("user %d: %w", opts.ID, err)
	}
	changed := []string{}
	if opts.Name != nil {
		name, err := validateName(*opts.Name)
		if err != nil {
			return domain.User{}, err
		}
		if name != u.Name {
			u.Name = name
			changed = append(changed, "name")
		}
	}
	if opts.Email != nil {
		email, err := validateEmail(*opts.Email)
		if err != nil {
			return domain.User{}, err
		}
		if email != u.Email {
			if err := e.ensureEmailFree(ctx, tx, email, u.ID); err != nil {
				return domain.User{}, err
			}
			u.Email = email
			changed = append(changed, "email")
		}
	}
	if opts.FavoriteFood != nil {
		food, err := validateFood(*opts.FavoriteFood)
		if err != nil {
			return domain.User{}, err
		}
		if stringOrEmpty(food) != stringOrEmpty(u.FavoriteFood) {
			u.FavoriteFood = food
			changed = append(changed, "favorite_food")
		}
	}
	if len(changed) == 0 {
		return u, nil
	}
	u.UpdatedAt = e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.UpdateUser(ctx, tx, u); err != nil {
		return domain.User{}, err
	}
	if err := e.writer().Append(ctx, tx, domain.EventUserUpdated, "user", strconv.FormatInt(u.ID, 10), events.Payload{
		"fields": changed,
	}); err != nil {
		return domain.User{}, fmt.Errorf("append event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (e Engine) DeleteUser(ctx context.Context, id int64) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	u, err := e.Repo.GetUserTx(ctx, tx, id)
	if err != nil {
		return fmt.Errorf("user %d: %w", id, err)
	}
	if err := e.Repo.DeleteUser(ctx, tx, id); err != nil {
		return err
	}
	if err := e.writer().Append(ctx, tx, domain.EventUserDeleted, "user", strconv.FormatInt(id, 10), events.Payload{
		"email": u.Email,
	}); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return tx.Commit()
}

func (e Engine) ensureEmailFree(ctx context.Context, tx *sql.Tx, email string, selfID int64) error {
	existing, err := e.Repo.FindUserByEmail(ctx, tx, email)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID == selfID:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrEmailTaken, email)
	}
}

func validateName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", &ValidationError{Field: "name", Message: "name is required"}
	}
	if utf8.RuneCountInString(name) > maxFieldLength {
		return "", &ValidationError{Field: "name", Message: fmt.Sprintf("name must be at most %d characters", maxFieldLength)}
	}
	return name, nil
}

func validateEmail(raw string) (string, error) {
	email := strings.TrimSpace(raw)
	if email == "" {
		return "", &ValidationError{Field: "email", Message: "email is required"}
	}
	if !emailPattern.MatchString(email) {
		return "", &ValidationError{Field: "email", Message: fmt.Sprintf("invalid email format: %s", email)}
	}
	return email, nil
}

func validateFood(raw string) (*string, error) {
	food := strings.TrimSpace(raw)
	if food == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(food) > maxFieldLength {
		return nil, &ValidationError{Field: "favorite_food", Message: fmt.Sprintf("favorite_food must be at most %d characters", maxFieldLength)}
	}
	return &food, nil
}

func stringOrEmpty(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
