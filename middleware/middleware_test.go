package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"PMentor/middleware"
	midsec "PMentor/middleware/security"
	"PMentor/module/mentor/model"
	"PMentor/tools/errs"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type oneToken struct{}

func (oneToken) Verify(token string) (model.Identity, error) {
	if token != "ok" {
		return model.Identity{}, errs.ErrAuthentication.Wrap()
	}
	return model.Identity{UserID: "u-1", Role: model.RoleApplicant}, nil
}

func serve(r http.Handler, method, path, auth, origin string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	midsec.Configure(oneToken{})
	t.Cleanup(func() { midsec.Configure(nil) })

	r := gin.New()
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	middleware.GET(r, "/open", ok, middleware.RouteOpt{})
	middleware.GET(r, "/closed", ok, middleware.RouteOpt{IsAuth: true})
	middleware.PUT(r, "/mentors", ok, middleware.RouteOpt{IsAuth: true, Roles: []model.Role{model.RoleMentor}})
	middleware.POST(r, "/post", ok, middleware.RouteOpt{IsAuth: true})

	t.Run("should leave open routes alone", func(t *testing.T) {
		require.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/open", "", "").Code)
	})

	t.Run("should guard auth routes", func(t *testing.T) {
		req := require.New(t)
		req.Equal(http.StatusUnauthorized, serve(r, http.MethodGet, "/closed", "", "").Code)
		req.Equal(http.StatusOK, serve(r, http.MethodGet, "/closed", "Bearer ok", "").Code)
		req.Equal(http.StatusOK, serve(r, http.MethodPost, "/post", "Bearer ok", "").Code)
	})

	t.Run("should apply role lists", func(t *testing.T) {
		require.Equal(t, http.StatusForbidden, serve(r, http.MethodPut, "/mentors", "Bearer ok", "").Code)
	})
}

func TestOrigin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Origin([]string{"https://app.example.org"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	t.Run("should echo an allowed origin", func(t *testing.T) {
		req := require.New(t)
		w := serve(r, http.MethodGet, "/x", "", "https://app.example.org")
		req.Equal(http.StatusOK, w.Code)
		req.Equal("https://app.example.org", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("should answer and filter preflight", func(t *testing.T) {
		req := require.New(t)
		req.Equal(http.StatusNoContent, serve(r, http.MethodOptions, "/x", "", "https://app.example.org").Code)
		req.Equal(http.StatusForbidden, serve(r, http.MethodOptions, "/x", "", "https://evil.example.com").Code)
	})

	t.Run("should match wildcards", func(t *testing.T) {
		req := require.New(t)
		req.True(middleware.AllowOrigin([]string{"*"}, "https://anything"))
		req.False(middleware.AllowOrigin([]string{"https://a"}, "https://b"))
		req.True(middleware.AllowOrigin(nil, ""))
	})
}

func TestManager(t *testing.T) {
	req := require.New(t)
	gin.SetMode(gin.TestMode)
	m := middleware.NewManager()
	var order []string
	m.Add(func(c *gin.Context) { order = append(order, "first"); c.Next() })
	m.Add(func(c *gin.Context) { order = append(order, "second"); c.Next() })

	r := gin.New()
	m.Mount(r)
	r.GET("/x", func(c *gin.Context) { order = append(order, "route"); c.Status(http.StatusOK) })

	req.Equal(http.StatusOK, serve(r, http.MethodGet, "/x", "", "").Code)
	req.Equal([]string{"first", "second", "route"}, order)

	m.Clear()
	req.Empty(m.Handlers())
}
