package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/msomdec/realty/internal/domain"
	"github.com/msomdec/realty/internal/validation"
	"golang.org/x/crypto/bcrypt"
)

const resetTokenTTL = time.Hour

// AuthService handles user registration, login, password resets and JWT
// token operations.
type AuthService struct {
	users      domain.UserRepository
	resets     domain.PasswordResetRepository
	mailer     Mailer
	jwtSecret  []byte
	bcryptCost int
	baseURL    string
}

// NewAuthService creates a new AuthService. baseURL is the public origin used
// in emailed links.
func NewAuthService(users domain.UserRepository, resets domain.PasswordResetRepository, mailer Mailer, jwtSecret string, bcryptCost int, baseURL string) *AuthService {
	return &AuthService{
		users:      users,
		resets:     resets,
		mailer:     mailer,
		jwtSecret:  []byte(jwtSecret),
		bcryptCost: bcryptCost,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}
}

// Register creates a new user account after validating the sign-up form.
func (s *AuthService) Register(ctx context.Context, form validation.SignUpForm) (*domain.User, error) {
	form.Name = strings.TrimSpace(form.Name)
	form.Email = strings.TrimSpace(form.Email)
	if err := validation.Validate(form); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(form.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Email:        form.Email,
		DisplayName:  form.Name,
		PasswordHash: string(hash),
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

// Login verifies credentials and returns a signed JWT token string.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.ErrUnauthorized
		}
		return "", fmt.Errorf("get user: %w", err)
	}

	// Provider-only accounts have no password to compare against.
	if user.PasswordHash == "" {
		return "", domain.ErrUnauthorized
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", domain.ErrUnauthorized
	}

	return s.IssueToken(user)
}

// IssueToken signs a session token for the user.
func (s *AuthService) IssueToken(user *domain.User) (string, error) {
	token, err := s.generateJWT(user)
	if err != nil {
		return "", fmt.Errorf("generate jwt: %w", err)
	}
	return token, nil
}

// ValidateToken parses and validates a JWT token string.
// Returns the user ID from the sub claim.
func (s *AuthService) ValidateToken(tokenString string) (int64, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return 0, domain.ErrUnauthorized
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, domain.ErrUnauthorized
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return 0, domain.ErrUnauthorized
	}

	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return 0, domain.ErrUnauthorized
	}

	return userID, nil
}

// GetUserByID retrieves a user by their ID.
func (s *AuthService) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

// UpdateProfile changes the signed-in user's display name.
func (s *AuthService) UpdateProfile(ctx context.Context, userID int64, form validation.ProfileForm) (*domain.User, error) {
	form.Name = strings.TrimSpace(form.Name)
	if err := validation.Validate(form); err != nil {
		return nil, err
	}
	if err := s.users.UpdateDisplayName(ctx, userID, form.Name); err != nil {
		return nil, fmt.Errorf("update display name: %w", err)
	}
	return s.users.GetByID(ctx, userID)
}

// ProviderIdentity is the verified identity returned by a third-party
// sign-in.
type ProviderIdentity struct {
	Provider string
	Subject  string
	Email    string
	Name     string
}

// SignInWithProvider finds or creates the user for a verified provider
// identity. An existing email/password account with the same email is linked
// to the provider rather than duplicated.
func (s *AuthService) SignInWithProvider(ctx context.Context, id ProviderIdentity) (*domain.User, error) {
	if id.Provider == "" || id.Subject == "" || id.Email == "" {
		return nil, fmt.Errorf("%w: incomplete provider identity", domain.ErrInvalidInput)
	}

	user, err := s.users.GetByProvider(ctx, id.Provider, id.Subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get user by provider: %w", err)
	}

	user, err = s.users.GetByEmail(ctx, id.Email)
	switch {
	case err == nil:
		if err := s.users.LinkProvider(ctx, user.ID, id.Provider, id.Subject); err != nil {
			return nil, fmt.Errorf("link provider: %w", err)
		}
		user.Provider, user.ProviderSubject = id.Provider, id.Subject
		return user, nil
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	user = &domain.User{
		Email:           id.Email,
		DisplayName:     providerDisplayName(id.Name, id.Email),
		Provider:        id.Provider,
		ProviderSubject: id.Subject,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Display names follow the sign-up form's length rule.
const (
	minDisplayName = 3
	maxDisplayName = 15
)

// fallbackDisplayName is used when neither the provider's name nor the email
// local part can be made to fit.
const fallbackDisplayName = "Realty user"

// providerDisplayName fits a provider's name into the display name rule,
// truncating long names and falling back to the email local part.
func providerDisplayName(name, email string) string {
	local, _, _ := strings.Cut(email, "@")
	for _, candidate := range []string{name, local} {
		candidate = strings.TrimSpace(candidate)
		if r := []rune(candidate); len(r) > maxDisplayName {
			candidate = strings.TrimSpace(string(r[:maxDisplayName]))
		}
		if utf8.RuneCountInString(candidate) >= minDisplayName {
			return candidate
		}
	}
	return fallbackDisplayName
}

// RequestPasswordReset emails a single-use reset link. Unknown emails are not
// reported so the response does not reveal which accounts exist.
func (s *AuthService) RequestPasswordReset(ctx context.Context, form validation.ForgotPasswordForm) error {
	if err := validation.Validate(form); err != nil {
		return err
	}

	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(form.Email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			slog.Info("password reset for unknown email")
			return nil
		}
		return fmt.Errorf("get user: %w", err)
	}

	token, err := generateToken()
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}

	reset := &domain.PasswordReset{
		TokenHash: hashToken(token),
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(resetTokenTTL),
	}
	if err := s.resets.Create(ctx, reset); err != nil {
		return fmt.Errorf("create password reset: %w", err)
	}

	link := s.baseURL + "/reset-password/" + token
	msg := Message{
		ToName:    user.DisplayName,
		ToEmail:   user.Email,
		Subject:   "Reset your password",
		PlainText: "Follow this link to choose a new password. It expires in one hour.\n\n" + link,
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}
	return nil
}

// CheckResetToken reports whether a reset token can still be used.
func (s *AuthService) CheckResetToken(ctx context.Context, token string) error {
	_, err := s.activeReset(ctx, token)
	return err
}

// ResetPassword consumes a reset token and sets a new password.
func (s *AuthService) ResetPassword(ctx context.Context, token string, form validation.ResetPasswordForm) error {
	reset, err := s.activeReset(ctx, token)
	if err != nil {
		return err
	}
	if err := validation.Validate(form); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(form.Password), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	// Mark the token first so a concurrent submit cannot use it twice.
	if err := s.resets.MarkUsed(ctx, reset.TokenHash); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrTokenExpired
		}
		return fmt.Errorf("mark reset used: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, reset.UserID, string(hash)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *AuthService) activeReset(ctx context.Context, token string) (*domain.PasswordReset, error) {
	if token == "" {
		return nil, domain.ErrTokenExpired
	}
	reset, err := s.resets.GetByTokenHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrTokenExpired
		}
		return nil, fmt.Errorf("get password reset: %w", err)
	}
	if reset.UsedAt != nil || time.Now().After(reset.ExpiresAt) {
		return nil, domain.ErrTokenExpired
	}
	return reset, nil
}

func (s *AuthService) generateJWT(user *domain.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":          strconv.FormatInt(user.ID, 10),
		"email":        user.Email,
		"display_name": user.DisplayName,
		"iat":          now.Unix(),
		"exp":          now.Add(24 * time.Hour).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
