package accounts

import (
	"context"
	"errors"
	"strings"
	"time"

	pkgAuth "github.com/angelmondragon/storefront/pkg/auth"
	"github.com/angelmondragon/storefront/pkg/auth/session"
	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/db"
	"github.com/angelmondragon/storefront/pkg/db/models"
	"github.com/angelmondragon/storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/security"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	invalidCredentialsMessage = "invalid credentials"
	tokenTypeBearer           = "bearer"
)

// Service defines the behavior needed by the auth and role-row controllers.
type Service interface {
	SignUp(ctx context.Context, req SignUpRequest) (*UserDTO, error)
	SignIn(ctx context.Context, req TokenRequest) (*SessionResponse, error)
	Refresh(ctx context.Context, req RefreshRequest) (*SessionResponse, error)
	SignOut(ctx context.Context, accessID string) error
	CurrentUser(ctx context.Context, userID uuid.UUID) (*UserDTO, error)
	RoleRows(ctx context.Context, requester, target uuid.UUID) ([]RoleRowDTO, error)
	HasRole(ctx context.Context, userID uuid.UUID, role enums.Role) (bool, error)
}

type sessionManager interface {
	Issue(ctx context.Context, userID string) (session.Grant, error)
	Rotate(ctx context.Context, refreshToken string) (session.Grant, error)
	Revoke(ctx context.Context, accessID string) error
}

// ServiceParams bundles the dependencies required to build an accounts service.
type ServiceParams struct {
	DB             *db.Client
	SessionManager sessionManager
	JWTConfig      config.JWTConfig
	PasswordConfig config.PasswordConfig
	AuthConfig     config.AuthConfig
	Logger         *logger.Logger
	Now            func() time.Time
}

type service struct {
	db          *db.Client
	repo        *Repository
	session     sessionManager
	jwtCfg      config.JWTConfig
	passwordCfg config.PasswordConfig
	authCfg     config.AuthConfig
	logg        *logger.Logger
	now         func() time.Time
}

// NewService constructs the accounts service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database client required")
	}
	if params.SessionManager == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "session manager required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		db:          params.DB,
		repo:        NewRepository(params.DB.DB()),
		session:     params.SessionManager,
		jwtCfg:      params.JWTConfig,
		passwordCfg: params.PasswordConfig,
		authCfg:     params.AuthConfig,
		logg:        logg,
		now:         now,
	}, nil
}

func (s *service) SignUp(ctx context.Context, req SignUpRequest) (*UserDTO, error) {
	email := normalizeEmail(req.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid password")
	}

	redirect := strings.TrimSpace(req.EmailRedirectTo)
	if redirect == "" {
		redirect = s.authCfg.EmailRedirectURL
	}

	user := &models.User{
		Email:            email,
		PasswordHash:     passwordHash,
		EmailRedirectURL: redirect,
	}
	roles := s.initialRoles(email)

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		if _, err := repo.FindByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "user already registered")
		} else if !db.IsNotFound(err) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
		}
		if err := repo.CreateWithRoles(ctx, user, roles); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "user already registered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{"user_id": user.ID.String(), "roles": roles})
	s.logg.Info(ctx, "accounts.signed_up")
	return FromModel(user), nil
}

func (s *service) SignIn(ctx context.Context, req TokenRequest) (*SessionResponse, error) {
	user, err := s.authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	now, err := s.recordLogin(ctx, user)
	if err != nil {
		return nil, err
	}
	grant, err := s.session.Issue(ctx, user.ID.String())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store refresh token")
	}
	return s.mint(user, grant, now)
}

func (s *service) Refresh(ctx context.Context, req RefreshRequest) (*SessionResponse, error) {
	grant, err := s.session.Rotate(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate refresh token")
	}
	userID, err := uuid.Parse(grant.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "session user id")
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	return s.mint(user, grant, s.now().UTC())
}

func (s *service) SignOut(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session")
	}
	if err := s.session.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	return nil
}

func (s *service) CurrentUser(ctx context.Context, userID uuid.UUID) (*UserDTO, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	return FromModel(user), nil
}

func (s *service) RoleRows(ctx context.Context, requester, target uuid.UUID) ([]RoleRowDTO, error) {
	if target == uuid.Nil {
		target = requester
	}
	if requester != target {
		admin, err := s.HasRole(ctx, requester, enums.RoleAdmin)
		if err != nil {
			return nil, err
		}
		if !admin {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "role rows of other users are not visible")
		}
	}
	rows, err := s.repo.ListRoles(ctx, target)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list roles")
	}
	return roleRowsFromModels(rows), nil
}

func (s *service) HasRole(ctx context.Context, userID uuid.UUID, role enums.Role) (bool, error) {
	ok, err := s.repo.HasRole(ctx, userID, role.String())
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check role")
	}
	return ok, nil
}

func (s *service) authenticate(ctx context.Context, email, password string) (*models.User, error) {
	input := normalizeEmail(email)
	if input == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	user, err := s.repo.FindByEmail(ctx, input)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	valid, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	if security.NeedsRehash(user.PasswordHash, s.passwordCfg) {
		if hash, err := security.HashPassword(password, s.passwordCfg); err == nil {
			if err := s.repo.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
				s.logg.Warn(s.logg.WithField(ctx, "user_id", user.ID.String()), "accounts.rehash_failed")
			} else {
				user.PasswordHash = hash
			}
		}
	}
	return user, nil
}

func (s *service) recordLogin(ctx context.Context, user *models.User) (time.Time, error) {
	now := s.now().UTC()
	if err := s.repo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return time.Time{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update last login")
	}
	user.LastLoginAt = &now
	return now, nil
}

func (s *service) mint(user *models.User, grant session.Grant, now time.Time) (*SessionResponse, error) {
	accessToken, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{
		UserID: user.ID,
		Email:  user.Email,
		JTI:    grant.AccessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	ttl := pkgAuth.AccessTokenTTL(s.jwtCfg)
	return &SessionResponse{
		AccessToken:  accessToken,
		RefreshToken: grant.RefreshToken,
		TokenType:    tokenTypeBearer,
		ExpiresIn:    int64(ttl.Seconds()),
		ExpiresAt:    now.Add(ttl).Unix(),
		User:         FromModel(user),
	}, nil
}

func (s *service) initialRoles(email string) []string {
	roles := []string{enums.RoleUser.String()}
	for _, admin := range s.authCfg.AdminEmails {
		if normalizeEmail(admin) == email {
			roles = append(roles, enums.RoleAdmin.String())
			break
		}
	}
	return roles
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
