package middleware

import (
	midsec "PMentor/middleware/security"
	"PMentor/module/mentor/model"

	"github.com/gin-gonic/gin"
)

// 配置选项
type RouteOpt struct {
	IsAuth bool
	Roles  []model.Role // 仅 IsAuth 时生效
}

func (o RouteOpt) chain(handler gin.HandlerFunc) []gin.HandlerFunc {
	if !o.IsAuth {
		return []gin.HandlerFunc{handler}
	}
	opts := midsec.DefaultOptions()
	opts.Roles = o.Roles
	return []gin.HandlerFunc{midsec.Middleware(opts), handler}
}

// 封装 POST
func POST(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	r.POST(path, opt.chain(handler)...)
}

// 封装 PUT
func PUT(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	r.PUT(path, opt.chain(handler)...)
}

// 封装 GET
func GET(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	r.GET(path, opt.chain(handler)...)
}
