package chat

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"PMentor/logger"
	"PMentor/middleware"
	"PMentor/service/relay"
	"PMentor/tools/errs"
	"PMentor/tools/ids"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ---- 常量参数（默认值） ----
const (
	defaultPingInterval = 25 * time.Second
	defaultPongWait     = 60 * time.Second
	defaultWriteWait    = 10 * time.Second
	defaultReadLimit    = 64 << 10
)

type Options struct {
	SendBuffer     int
	WriteWait      time.Duration
	PingInterval   time.Duration
	PongWait       time.Duration
	ReadLimit      int64
	AllowedOrigins []string
}

func (o *Options) norm() {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	if o.WriteWait <= 0 {
		o.WriteWait = defaultWriteWait
	}
	if o.PingInterval <= 0 {
		o.PingInterval = defaultPingInterval
	}
	// pong 等待必须长于 ping 周期
	if o.PongWait <= o.PingInterval {
		o.PongWait = max(defaultPongWait, 2*o.PingInterval)
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = defaultReadLimit
	}
}

// Server owns the /ws endpoint: one read goroutine and one write goroutine
// per connection.
type Server struct {
	opts     Options
	mgr      *ConnManager
	gate     *Gate
	life     *Lifecycle
	disp     *Dispatcher
	upgrader websocket.Upgrader
}

func NewServer(opts Options, mgr *ConnManager, gate *Gate, life *Lifecycle, disp *Dispatcher) *Server {
	opts.norm()
	s := &Server{opts: opts, mgr: mgr, gate: gate, life: life, disp: disp}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return middleware.AllowOrigin(opts.AllowedOrigins, r.Header.Get("Origin"))
		},
	}
	return s
}

// HandleWS ===== WebSocket 处理 =====
func (s *Server) HandleWS(c *gin.Context) { s.Serve(c.Writer, c.Request) }

func (s *Server) Serve(rw http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		// 常见：非 WebSocket 请求/握手失败，Upgrader 已写回错误响应
		logger.Infof("[HandleWS] upgrade websocket error: %v", err)
		return
	}

	w := NewWsConn(ids.GenerateString(), ws, s.opts.SendBuffer)
	if err := s.mgr.Add(w); err != nil {
		logger.Warnf("[HandleWS] register conn error: %v", err)
		_ = ws.Close()
		return
	}

	ws.SetReadLimit(s.opts.ReadLimit)
	_ = ws.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	})

	writerDone := make(chan struct{})
	go s.writePump(w, writerDone)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	s.readPump(ctx, w)

	// ---- 退出阶段：下线、注销、等待写协程收尾 ----
	w.Close()
	s.mgr.Remove(w.SnowID)
	s.life.Closed(context.WithoutCancel(ctx), w)
	<-writerDone
	logger.Info("[WS] closed", zap.String("snowID", w.SnowID), zap.String("userId", w.UserID()))
}

// ---- 读循环：只读，不写；出错即退出 ----
func (s *Server) readPump(ctx context.Context, w *WsConn) {
	for {
		mt, data, rerr := w.Conn.ReadMessage()
		if rerr != nil {
			if websocket.IsCloseError(rerr,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[WS] peer closed snowID=%s err=%v", w.SnowID, rerr)
			} else if ne, ok := rerr.(net.Error); ok && ne.Timeout() {
				logger.Infof("[WS] read timeout snowID=%s err=%v", w.SnowID, rerr)
			} else {
				logger.Infof("[WS] read err snowID=%s err=%v", w.SnowID, rerr)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		if !s.HandleFrame(ctx, w, data) {
			return
		}
	}
}

// HandleFrame processes one inbound frame and reports whether the connection
// should stay open.
func (s *Server) HandleFrame(ctx context.Context, w *WsConn, data []byte) bool {
	f, perr := ParseFrame(data)
	if perr != nil {
		logger.Warn("[WS] bad frame", zap.String("snowID", w.SnowID), zap.Error(perr),
			zap.String("sample", logger.Preview(string(data), payloadPreview)))
		s.reply(w, ErrorFrame("malformed frame"))
		return true
	}

	switch f.Command {
	case CmdConnect, CmdStomp:
		if !w.connected.CompareAndSwap(false, true) {
			// 一个连接只处理一次 CONNECT
			s.gate.Observe(w, f)
			return true
		}
		id, ok := s.gate.Open(w, f)
		s.reply(w, ConnectedFrame(w.SnowID, id.Name()))
		if ok {
			s.life.Connected(ctx, w)
		}
		return true

	case CmdSubscribe:
		s.gate.Observe(w, f)
		subID, dest := f.Header(HdrID), f.Destination()
		if subID == "" || dest == "" {
			s.reply(w, ErrorFrame("SUBSCRIBE requires id and destination"))
			return true
		}
		w.Subscribe(subID, dest)

	case CmdUnsubscribe:
		s.gate.Observe(w, f)
		w.Unsubscribe(f.Header(HdrID))

	case CmdSend:
		s.gate.Observe(w, f)
		s.dispatch(ctx, w, f)

	case CmdDisconnect:
		s.gate.Observe(w, f)
		s.receipt(w, f)
		return false

	default:
		s.reply(w, ErrorFrame("unknown command "+f.Command))
		return true
	}
	s.receipt(w, f)
	return true
}

func (s *Server) dispatch(ctx context.Context, w *WsConn, f *Frame) {
	dest := f.Destination()
	if !strings.HasPrefix(dest, relay.AppPrefix+"/") {
		// 客户端不能直接发往 /topic 或 /user
		logger.Warn("[WS] SEND outside application prefix dropped", zap.String("snowID", w.SnowID), zap.String("destination", dest))
		return
	}
	if err := s.disp.Dispatch(ctx, w, f); err != nil {
		if errs.ErrAuthorization.Is(err) {
			logger.Warn("[WS] unauthenticated SEND refused", zap.String("snowID", w.SnowID), zap.String("destination", dest), zap.Error(err))
			return
		}
		logger.Warn("[WS] handler failed", zap.String("snowID", w.SnowID), zap.String("destination", dest), zap.Error(err))
	}
}

func (s *Server) receipt(w *WsConn, f *Frame) {
	if id := f.Header(HdrReceipt); id != "" {
		s.reply(w, ReceiptFrame(id))
	}
}

func (s *Server) reply(w *WsConn, f *Frame) {
	data, err := f.Encode()
	if err != nil {
		logger.Errorf("[WS] encode %s frame: %v", f.Command, err)
		return
	}
	if err := w.Enqueue(data); err != nil {
		logger.Warn("[WS] reply dropped", zap.String("snowID", w.SnowID), zap.String("command", f.Command), zap.Error(err))
	}
}

// ---- 写循环：业务帧优先，其次 ping ----
func (s *Server) writePump(w *WsConn, done chan<- struct{}) {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer func() {
		ticker.Stop()
		// 统一由写协程发 Close 并关闭底层连接
		_ = w.Conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(s.opts.WriteWait))
		_ = w.Conn.Close()
		close(done)
	}()

	write := func(payload []byte) bool {
		_ = w.Conn.SetWriteDeadline(time.Now().Add(s.opts.WriteWait))
		if err := w.Conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			logger.Infof("[WS] write payload err snowID=%s user=%s err=%v", w.SnowID, w.UserID(), err)
			return false
		}
		return true
	}

	for {
		select {
		case payload := <-w.SendChan:
			if !write(payload) {
				w.Close()
				return
			}

		case <-w.Done():
			// 关闭前把已排队的帧（如 DISCONNECT 回执）写完
			for {
				select {
				case payload := <-w.SendChan:
					if !write(payload) {
						return
					}
				default:
					return
				}
			}

		case <-ticker.C:
			if err := w.Conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(s.opts.WriteWait)); err != nil {
				logger.Infof("[WS] ping err snowID=%s user=%s err=%v", w.SnowID, w.UserID(), err)
				w.Close()
				return
			}
		}
	}
}

// Shutdown closes every open connection.
func (s *Server) Shutdown() { s.mgr.Close() }
