package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/openride/openride/internal/auth"
	"github.com/openride/openride/internal/db/repositories"
)

var userCols = []string{
	"id", "email", "name", "phone", "password_hash", "role", "status",
	"is_verified", "rating", "suspension_reason", "suspension_expires_at",
	"created_at", "updated_at",
}

func userRowWith(role, status string) *sqlmock.Rows {
	return sqlmock.NewRows(userCols).
		AddRow("user-1", "rider@example.com", "Ada", "", "$2a$12$hash",
			role, status, true, 4.8, nil, nil, time.Now(), time.Now())
}

func authTestRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	r := gin.New()
	r.Use(AuthMiddleware(repositories.NewUserRepository(db)))
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id": c.GetString(UserIDKey),
			"role":    c.GetString(UserRoleKey),
		})
	})
	return r, mock
}

func doAuth(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	r, _ := authTestRouter(t)
	if w := doAuth(r, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongScheme(t *testing.T) {
	r, _ := authTestRouter(t)
	if w := doAuth(r, "Basic abc"); w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	r, _ := authTestRouter(t)
	if w := doAuth(r, "Bearer not.a.token"); w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	r, mock := authTestRouter(t)
	mock.ExpectQuery("SELECT id.*FROM users.*WHERE id").
		WillReturnRows(userRowWith("rider", "active"))

	token, err := auth.GenerateJWT("user-1", "rider@example.com", "rider", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	w := doAuth(r, "Bearer "+token)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
}

func TestAuthMiddleware_SuspendedUser(t *testing.T) {
	r, mock := authTestRouter(t)
	mock.ExpectQuery("SELECT id.*FROM users.*WHERE id").
		WillReturnRows(userRowWith("rider", "suspended"))

	token, err := auth.GenerateJWT("user-1", "rider@example.com", "rider", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	if w := doAuth(r, "Bearer "+token); w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestAuthMiddleware_UnknownUser(t *testing.T) {
	r, mock := authTestRouter(t)
	mock.ExpectQuery("SELECT id.*FROM users.*WHERE id").
		WillReturnRows(sqlmock.NewRows(userCols))

	token, err := auth.GenerateJWT("ghost", "ghost@example.com", "rider", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	if w := doAuth(r, "Bearer "+token); w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}
