package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"wishbot/internal/service"

	"github.com/gin-gonic/gin"
)

func TestAdminAuth(t *testing.T) {
	service.InitJWT("secret")
	defer service.InitJWT("")

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", AdminAuth([]int64{7}), func(c *gin.Context) {
		c.JSON(200, gin.H{"admin_id": AdminID(c)})
	})

	adminToken, err := service.GenerateAdminJWT(7)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	formerAdmin, _ := service.GenerateAdminJWT(8)

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
		{"not in admin list", "Bearer " + formerAdmin, http.StatusForbidden},
		{"ok", "Bearer " + adminToken, http.StatusOK},
	}

	for _, tc := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		r.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Fatalf("%s: status %d; want %d", tc.name, w.Code, tc.want)
		}
	}
}
