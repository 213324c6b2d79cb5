package presence

import (
	"net/http"

	"PMentor/global"
	"PMentor/middleware"
	"PMentor/module/mentor/model"
	"PMentor/tools/errs"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler serves presence reads over REST.
type Handler struct {
	q *Query
}

func NewHandler(q *Query) *Handler { return &Handler{q: q} }

// Register mounts the endpoints under r. Only community members may read presence.
func (h *Handler) Register(r gin.IRoutes) {
	opt := middleware.RouteOpt{
		IsAuth: true,
		Roles:  []model.Role{model.RoleParticipant, model.RoleAlumna, model.RoleMentor},
	}
	middleware.GET(r, "/online-users", h.OnlineUsers, opt)
	middleware.GET(r, "/user-status/:userId", h.UserStatus, opt)
}

func (h *Handler) OnlineUsers(c *gin.Context) {
	c.JSON(http.StatusOK, global.Success(h.q.OnlineUsers()))
}

func (h *Handler) UserStatus(c *gin.Context) {
	userID := c.Param("userId")
	if _, err := uuid.Parse(userID); err != nil {
		status, body := global.Fail(errs.ErrArgs.WrapMsg("userId is not a uuid", "userId", userID))
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, global.Success(h.q.UserStatus(userID)))
}
