package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken(42, "driver")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ValidateToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != 42 {
		t.Fatalf("user_id = %d, want 42", claims.UserID)
	}
	if claims.Role != "driver" {
		t.Fatalf("role = %q, want driver", claims.Role)
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	if _, err := ValidateToken("not.a.token"); err == nil {
		t.Fatal("garbage token accepted")
	}
}

func TestRequireAuthWithRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/drivers-only", RequireAuthWithRole("driver"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	do := func(authorization string) int {
		req := httptest.NewRequest(http.MethodGet, "/drivers-only", nil)
		if authorization != "" {
			req.Header.Set("Authorization", authorization)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	if code := do(""); code != http.StatusUnauthorized {
		t.Fatalf("missing header: status = %d, want 401", code)
	}

	guardianToken, err := GenerateToken(7, "guardian")
	if err != nil {
		t.Fatalf("generate guardian token: %v", err)
	}
	if code := do("Bearer " + guardianToken); code != http.StatusForbidden {
		t.Fatalf("wrong role: status = %d, want 403", code)
	}

	driverToken, err := GenerateToken(8, "driver")
	if err != nil {
		t.Fatalf("generate driver token: %v", err)
	}
	if code := do("Bearer " + driverToken); code != http.StatusNoContent {
		t.Fatalf("driver token: status = %d, want 204", code)
	}
}
