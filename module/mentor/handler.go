package mentor

import (
	"net/http"

	"PMentor/global"
	"PMentor/logger"
	"PMentor/middleware"
	midsec "PMentor/middleware/security"
	"PMentor/module/mentor/model"
	"PMentor/module/mentor/service"
	"PMentor/tools/errs"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler exposes the command layer over REST. Every route requires a bearer token.
type Handler struct {
	Messages    *service.MessageService
	Connections *service.ConnectionService
}

func NewHandler(messages *service.MessageService, connections *service.ConnectionService) *Handler {
	return &Handler{Messages: messages, Connections: connections}
}

// Register mounts the routes under api (normally /api).
func (h *Handler) Register(api gin.IRoutes) {
	auth := middleware.RouteOpt{IsAuth: true}
	middleware.POST(api, "/messages", h.SendMessage, auth)
	middleware.PUT(api, "/messages/:messageId/read", h.MarkRead, auth)
	middleware.GET(api, "/messages/thread/:otherUserId", h.Conversation, auth)

	middleware.POST(api, "/connections", h.CreateConnection, auth)
	middleware.PUT(api, "/connections/:connectionId", h.UpdateConnection, auth)
	middleware.GET(api, "/connections/pending", h.PendingConnections, auth)
	middleware.GET(api, "/connections/accepted", h.AcceptedConnections, auth)
}

// ===== messages =====

func (h *Handler) SendMessage(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req service.SendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errs.ErrArgs.WrapMsg("bad body", "err", err))
		return
	}
	m, err := h.Messages.Send(c.Request.Context(), id, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, global.Success(m.View()))
}

func (h *Handler) MarkRead(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	m, err := h.Messages.MarkRead(c.Request.Context(), id, c.Param("messageId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, global.Success(m.View()))
}

func (h *Handler) Conversation(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	views, err := h.Messages.Conversation(c.Request.Context(), id, c.Param("otherUserId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, global.Success(views))
}

// ===== connections =====

func (h *Handler) CreateConnection(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req service.CreateConnectionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errs.ErrArgs.WrapMsg("bad body", "err", err))
		return
	}
	v, err := h.Connections.Create(c.Request.Context(), id, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, global.Success(v))
}

func (h *Handler) UpdateConnection(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req service.UpdateConnectionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errs.ErrArgs.WrapMsg("bad body", "err", err))
		return
	}
	v, err := h.Connections.Update(c.Request.Context(), id, c.Param("connectionId"), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, global.Success(v))
}

func (h *Handler) PendingConnections(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	list, err := h.Connections.Pending(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, global.Success(list))
}

func (h *Handler) AcceptedConnections(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	list, err := h.Connections.Accepted(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, global.Success(list))
}

func identity(c *gin.Context) (model.Identity, bool) {
	id, ok := midsec.IdentityFrom(c)
	if !ok {
		fail(c, errs.ErrAuthorization.WrapMsg("no identity bound"))
	}
	return id, ok
}

func fail(c *gin.Context, err error) {
	status, body := global.Fail(err)
	if status >= http.StatusInternalServerError {
		logger.Error("[api] request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, body)
}
