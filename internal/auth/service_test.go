package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/frahmantamala/barangay-procurement/internal"
	"github.com/frahmantamala/barangay-procurement/internal/transport"
	"github.com/frahmantamala/barangay-procurement/internal/user"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
)

func TestAuth(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Auth Module Suite")
}

// Mock UserRepository for testing
type mockUserRepository struct {
	byEmail       map[string]*user.User
	byID          map[int64]*user.User
	errorToReturn error
}

func newMockUserRepository() *mockUserRepository {
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("correct_password"), bcrypt.MinCost)
	users := []*user.User{
		{ID: 1, Email: "official@brgy.ph", Name: "Juan Dela Cruz", Role: internal.RoleOfficial, Status: user.StatusActive, PasswordHash: string(hashedPassword)},
		{ID: 2, Email: "captain@brgy.ph", Name: "Kap Reyes", Role: internal.RoleCaptain, Status: user.StatusActive, PasswordHash: string(hashedPassword)},
		{ID: 3, Email: "former@brgy.ph", Name: "Old Kagawad", Role: internal.RoleOfficial, Status: user.StatusInactive, PasswordHash: string(hashedPassword)},
	}
	m := &mockUserRepository{byEmail: map[string]*user.User{}, byID: map[int64]*user.User{}}
	for _, u := range users {
		m.byEmail[u.Email] = u
		m.byID[u.ID] = u
	}
	return m
}

func (m *mockUserRepository) GetByEmail(_ context.Context, email string) (*user.User, error) {
	if m.errorToReturn != nil {
		return nil, m.errorToReturn
	}
	if u, ok := m.byEmail[email]; ok {
		return u, nil
	}
	return nil, internal.ErrUserNotFound
}

func (m *mockUserRepository) GetByID(_ context.Context, id int64) (*user.User, error) {
	if m.errorToReturn != nil {
		return nil, m.errorToReturn
	}
	if u, ok := m.byID[id]; ok {
		return u, nil
	}
	return nil, internal.ErrUserNotFound
}

var _ = ginkgo.Describe("AuthService", func() {
	var (
		ctx           context.Context
		service       *Service
		mockRepo      *mockUserRepository
		tokenGen      *JWTTokenGenerator
		accessSecret  = "test-access-secret-that-is-long-enough"
		refreshSecret = "test-refresh-secret-that-is-long-enough"
		accessTTL     = 15 * time.Minute
		refreshTTL    = 24 * time.Hour
	)

	ginkgo.BeforeEach(func() {
		ctx = context.Background()
		mockRepo = newMockUserRepository()
		tokenGen = NewJWTTokenGenerator(accessSecret, refreshSecret, accessTTL, refreshTTL)
		lg := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = NewService(mockRepo, tokenGen, lg)
	})

	ginkgo.Describe("Authenticate", func() {
		ginkgo.It("returns an access and refresh pair carrying the role", func() {
			// When
			tokens, err := service.Authenticate(ctx, LoginDTO{Email: "captain@brgy.ph", Password: "correct_password"})

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(tokens.AccessToken).ToNot(gomega.Equal(tokens.RefreshToken))
			gomega.Expect(tokens.TokenType).To(gomega.Equal("Bearer"))
			gomega.Expect(tokens.ExpiresIn).To(gomega.Equal(int64(900)))

			claims, err := service.ValidateAccessToken(tokens.AccessToken)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(claims.UserID).To(gomega.Equal(int64(2)))
			gomega.Expect(claims.Role).To(gomega.Equal(internal.RoleCaptain))
			gomega.Expect(claims.Subject).To(gomega.Equal("2"))
		})

		ginkgo.It("answers unknown emails and wrong passwords alike", func() {
			_, err := service.Authenticate(ctx, LoginDTO{Email: "nobody@brgy.ph", Password: "correct_password"})
			gomega.Expect(err).To(gomega.MatchError(internal.ErrInvalidCredentials))

			_, err = service.Authenticate(ctx, LoginDTO{Email: "official@brgy.ph", Password: "wrong"})
			gomega.Expect(err).To(gomega.MatchError(internal.ErrInvalidCredentials))
		})

		ginkgo.It("rejects inactive users", func() {
			_, err := service.Authenticate(ctx, LoginDTO{Email: "former@brgy.ph", Password: "correct_password"})
			gomega.Expect(err).To(gomega.MatchError(internal.ErrUserInactive))
		})

		ginkgo.It("validates the request", func() {
			_, err := service.Authenticate(ctx, LoginDTO{Email: "", Password: "x"})
			appErr, ok := internal.IsAppError(err)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(appErr.Type).To(gomega.Equal(internal.ErrorTypeValidation))
		})

		ginkgo.It("surfaces repository failures", func() {
			mockRepo.errorToReturn = errors.New("connection refused")
			_, err := service.Authenticate(ctx, LoginDTO{Email: "official@brgy.ph", Password: "correct_password"})
			gomega.Expect(err).To(gomega.MatchError("connection refused"))
		})
	})

	ginkgo.Describe("RefreshTokens", func() {
		ginkgo.It("issues a new pair from a refresh token", func() {
			tokens, err := service.Authenticate(ctx, LoginDTO{Email: "official@brgy.ph", Password: "correct_password"})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			refreshed, err := service.RefreshTokens(ctx, tokens.RefreshToken)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			claims, err := service.ValidateAccessToken(refreshed.AccessToken)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(claims.Email).To(gomega.Equal("official@brgy.ph"))
		})

		ginkgo.It("does not accept an access token", func() {
			tokens, err := service.Authenticate(ctx, LoginDTO{Email: "official@brgy.ph", Password: "correct_password"})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			_, err = service.RefreshTokens(ctx, tokens.AccessToken)
			gomega.Expect(err).To(gomega.MatchError(internal.ErrInvalidToken))
		})

		ginkgo.It("picks up deactivation", func() {
			tokens, err := service.Authenticate(ctx, LoginDTO{Email: "official@brgy.ph", Password: "correct_password"})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			mockRepo.byID[1].Status = user.StatusInactive

			_, err = service.RefreshTokens(ctx, tokens.RefreshToken)
			gomega.Expect(err).To(gomega.MatchError(internal.ErrUserInactive))
		})
	})

	ginkgo.Describe("ValidateAccessToken", func() {
		ginkgo.It("rejects malformed and refresh tokens", func() {
			_, err := service.ValidateAccessToken("not.a.token")
			gomega.Expect(err).To(gomega.MatchError(internal.ErrInvalidToken))

			refresh, err := tokenGen.GenerateRefreshToken(1, "official@brgy.ph", internal.RoleOfficial)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			_, err = service.ValidateAccessToken(refresh)
			gomega.Expect(err).To(gomega.MatchError(internal.ErrInvalidToken))
		})

		ginkgo.It("reports expiry", func() {
			issuedAt := time.Now().Add(-time.Hour)
			tokenGen.now = func() time.Time { return issuedAt }
			token, err := tokenGen.GenerateAccessToken(1, "official@brgy.ph", internal.RoleOfficial)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			tokenGen.now = time.Now
			_, err = service.ValidateAccessToken(token)
			gomega.Expect(err).To(gomega.MatchError(internal.ErrTokenExpired))
		})
	})

	ginkgo.Describe("HTTP middleware", func() {
		var (
			handler *Handler
			roles   *RoleAuthorization
		)

		ginkgo.BeforeEach(func() {
			lg := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
			handler = NewHandler(transport.NewBaseHandler(lg), service)
			roles = NewRoleAuthorization(lg)
		})

		serve := func(token string, allowed ...internal.Role) *httptest.ResponseRecorder {
			var seen *internal.Actor
			final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen, _ = internal.ActorFromContext(r.Context())
				w.Header().Set("X-Actor", seen.Name)
				w.WriteHeader(http.StatusOK)
			})
			chain := handler.AuthMiddleware(roles.RequireRoles(allowed...)(final))
			req := httptest.NewRequest(http.MethodGet, "/api/v1/settings", nil)
			if token != "" {
				req.Header.Set("Authorization", "Bearer "+token)
			}
			rec := httptest.NewRecorder()
			chain.ServeHTTP(rec, req)
			return rec
		}

		login := func(email string) string {
			tokens, err := service.Authenticate(ctx, LoginDTO{Email: email, Password: "correct_password"})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			return tokens.AccessToken
		}

		ginkgo.It("puts the actor into the context", func() {
			rec := serve(login("captain@brgy.ph"), internal.RoleCaptain)
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(rec.Header().Get("X-Actor")).To(gomega.Equal("Kap Reyes"))
		})

		ginkgo.It("returns 401 without a token and 403 for other roles", func() {
			gomega.Expect(serve("", internal.RoleCaptain).Code).To(gomega.Equal(http.StatusUnauthorized))
			gomega.Expect(serve(login("official@brgy.ph"), internal.RoleCaptain).Code).To(gomega.Equal(http.StatusForbidden))
		})

		ginkgo.It("logs in over HTTP", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
				strings.NewReader(`{"email":"official@brgy.ph","password":"wrong"}`))
			rec := httptest.NewRecorder()
			handler.Login(rec, req)
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))

			req = httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
				strings.NewReader(`{"email":"official@brgy.ph","password":"correct_password"}`))
			rec = httptest.NewRecorder()
			handler.Login(rec, req)
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(rec.Body.String()).To(gomega.ContainSubstring("access_token"))
		})
	})
})
