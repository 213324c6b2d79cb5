package chat

import (
	"PMentor/logger"
	"PMentor/module/mentor/model"
	"PMentor/tools/security"

	"go.uber.org/zap"
)

const (
	payloadPreview = 100
	tokenPreview   = 20
)

// Gate authenticates the CONNECT frame and binds the identity for the rest of
// the connection. Later frames reuse that binding and are only observed.
type Gate struct {
	verifier security.Verifier
	mgr      *ConnManager
	log      *zap.Logger
}

func NewGate(verifier security.Verifier, mgr *ConnManager) *Gate {
	return &Gate{verifier: verifier, mgr: mgr, log: logger.Named("gate")}
}

// Open handles a CONNECT frame. It reports whether an identity was bound.
// Failures never close the transport; the connection just stays anonymous.
func (g *Gate) Open(w *WsConn, f *Frame) (model.Identity, bool) {
	fields := []zap.Field{zap.String("snowID", w.SnowID), zap.String("remote", w.Remote)}
	g.log.Info("connection attempted", fields...)

	if id, ok := w.Identity(); ok {
		g.log.Warn("repeated CONNECT ignored", append(fields, zap.String("userId", id.UserID))...)
		return id, false
	}

	header := f.Header(HdrAuthorization)
	token, ok := security.BearerToken(header)
	if !ok {
		if header != "" {
			g.log.Warn("malformed authorization header", append(fields, zap.String("header", logger.Preview(header, tokenPreview)))...)
		} else {
			g.log.Info("no credential, connection stays anonymous", fields...)
		}
		return model.Identity{}, false
	}
	if g.verifier == nil {
		g.log.Error("no identity verifier configured", fields...)
		return model.Identity{}, false
	}

	fields = append(fields, zap.String("token", security.HashToken(token)[:tokenPreview]))
	id, err := g.verifier.Verify(token)
	if err != nil {
		g.log.Warn("authentication failed", append(fields, zap.Error(err))...)
		return model.Identity{}, false
	}
	if !w.bind(id) {
		g.log.Warn("identity already bound", fields...)
		return model.Identity{}, false
	}
	if err := g.mgr.BindUser(w.SnowID, id.UserID); err != nil {
		// 连接已从管理器移除（并发关闭），身份保留但不会再收到消息
		g.log.Warn("bind user failed", append(fields, zap.Error(err))...)
	}
	g.log.Info("authenticated", append(fields, zap.String("userId", id.UserID), zap.String("role", string(id.Role)))...)
	return id, true
}

// Observe records a non-CONNECT frame. No credential check happens here.
func (g *Gate) Observe(w *WsConn, f *Frame) {
	user := w.UserID()
	if user == "" {
		user = "anonymous"
	}
	fields := []zap.Field{
		zap.String("snowID", w.SnowID),
		zap.String("userId", user),
	}
	switch f.Command {
	case CmdSubscribe:
		g.log.Info("subscribed", append(fields, zap.String("destination", f.Destination()), zap.String("id", f.Header(HdrID)))...)
	case CmdSend:
		g.log.Info("published", append(fields,
			zap.String("destination", f.Destination()),
			zap.String("payload", logger.Preview(string(f.Body), payloadPreview)))...)
	case CmdUnsubscribe:
		g.log.Info("unsubscribed", append(fields, zap.String("id", f.Header(HdrID)))...)
	case CmdDisconnect:
		g.log.Info("disconnected", fields...)
	default:
		g.log.Debug("frame", append(fields, zap.String("command", f.Command))...)
	}
}
