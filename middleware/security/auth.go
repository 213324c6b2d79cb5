package security

import (
	"strings"
	"sync"

	"PMentor/global"
	"PMentor/module/mentor/model"
	"PMentor/tools/errs"
	sec "PMentor/tools/security"

	"github.com/gin-gonic/gin"
)

// ===== context key =====
// 后续模块统一用这个 key 读取身份
const PPCtxIdentityKey = "identity" // model.Identity

type Options struct {
	// 读取哪个请求头（默认 Authorization，值为 Bearer xxx）
	HeaderToken string
	Verifier    sec.Verifier
	// 非空时要求身份角色属于其中之一
	Roles []model.Role
}

var (
	mu              sync.RWMutex
	defaultVerifier sec.Verifier
)

// Configure sets the verifier used by DefaultOptions. Call once at startup.
func Configure(v sec.Verifier) {
	mu.Lock()
	defaultVerifier = v
	mu.Unlock()
}

func DefaultOptions() *Options {
	mu.RLock()
	defer mu.RUnlock()
	return &Options{
		HeaderToken: "Authorization",
		Verifier:    defaultVerifier,
	}
}

// Middleware verifies the bearer token and binds the identity into the gin
// context. Requests without a valid token are aborted with 401.
func Middleware(opts *Options) gin.HandlerFunc {
	if opts == nil {
		opts = DefaultOptions()
	}
	return func(c *gin.Context) {
		if opts.Verifier == nil {
			abort(c, errs.ErrInternalServer.WrapMsg("auth verifier not configured"))
			return
		}
		token, ok := sec.BearerToken(c.GetHeader(opts.HeaderToken))
		if !ok {
			// 兼容直接放裸 token 的客户端
			token = strings.TrimSpace(c.GetHeader(opts.HeaderToken))
		}
		if token == "" {
			abort(c, errs.ErrAuthentication.WrapMsg("missing bearer token"))
			return
		}
		id, err := opts.Verifier.Verify(token)
		if err != nil {
			abort(c, err)
			return
		}
		if len(opts.Roles) > 0 && !id.HasRole(opts.Roles...) {
			abort(c, errs.ErrForbidden.WrapMsg("role not allowed", "role", id.Role))
			return
		}
		c.Set(PPCtxIdentityKey, id)
		c.Next()
	}
}

// IdentityFrom reads the identity bound by Middleware.
func IdentityFrom(c *gin.Context) (model.Identity, bool) {
	v, ok := c.Get(PPCtxIdentityKey)
	if !ok {
		return model.Identity{}, false
	}
	id, ok := v.(model.Identity)
	return id, ok
}

func abort(c *gin.Context, err error) {
	status, body := global.Fail(err)
	c.AbortWithStatusJSON(status, body)
}
