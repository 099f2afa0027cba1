// =============================================================================
// 🌐 WebSocket 驱动网关
// =============================================================================
// 外部对话驱动（语音管线、调试客户端）经 WebSocket 接入：
// 一条连接对应一路会话。入站帧为 utterance / tool_call，
// 出站帧为 speak / error。核心逻辑不感知传输层。
// =============================================================================
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/BaSui01/intake/config"
	"github.com/BaSui01/intake/session"
	"github.com/BaSui01/intake/tools"
)

// =============================================================================
// 📨 帧格式
// =============================================================================

// inboundFrame 入站帧
type inboundFrame struct {
	// 帧类型: utterance | tool_call
	Type string `json:"type"`
	// 话语文本（utterance）
	Text string `json:"text,omitempty"`
	// 调用 ID（tool_call，可选）
	ID string `json:"id,omitempty"`
	// 工具名（tool_call）
	Name string `json:"name,omitempty"`
	// 工具参数（tool_call）
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// outboundFrame 出站帧
type outboundFrame struct {
	// 帧类型: session | speak | error
	Type string `json:"type"`
	// 会话 ID（session）
	SessionID string `json:"session_id,omitempty"`
	// 待播报文本（speak）
	Text string `json:"text,omitempty"`
	// 失败调用 ID（error）
	InvocationID string `json:"invocation_id,omitempty"`
	// 失败的工具名（error）
	Tool string `json:"tool,omitempty"`
	// 错误消息（error）
	Message string `json:"message,omitempty"`
}

// =============================================================================
// 🚪 网关
// =============================================================================

// Gateway WebSocket 驱动网关
type Gateway struct {
	cfg     config.ServerConfig
	manager *session.Manager
	logger  *zap.Logger

	server   *http.Server
	listener net.Listener
}

// New 创建网关
func New(cfg config.ServerConfig, manager *session.Manager, logger *zap.Logger) *Gateway {
	return &Gateway{
		cfg:     cfg,
		manager: manager,
		logger:  logger.With(zap.String("component", "gateway")),
	}
}

// Start 开始监听。端口为 0 时由系统分配，实际地址见 Addr。
func (g *Gateway) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", g.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", g.cfg.GatewayPort))
	if err != nil {
		return fmt.Errorf("gateway listen: %w", err)
	}
	g.listener = listener

	g.server = &http.Server{
		Handler: mux,
		// websocket 连接长期存活，只限制握手阶段
		ReadHeaderTimeout: g.cfg.ReadTimeout,
	}

	go func() {
		g.logger.Info("gateway listening", zap.String("addr", listener.Addr().String()))
		if err := g.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			g.logger.Error("gateway server error", zap.Error(err))
		}
	}()

	return nil
}

// Addr 返回实际监听地址，未启动时为空
func (g *Gateway) Addr() string {
	if g.listener == nil {
		return ""
	}
	return g.listener.Addr().String()
}

// Shutdown 优雅关闭网关
func (g *Gateway) Shutdown(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	if err := g.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("gateway shutdown: %w", err)
	}
	g.logger.Info("gateway stopped")
	return nil
}

// =============================================================================
// 🔌 连接处理
// =============================================================================

// personaFor 按名称解析人格，默认咖啡师
func personaFor(name string) session.Persona {
	if name == "coach" {
		return session.Coach()
	}
	return session.Barista()
}

func (g *Gateway) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		g.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	persona := personaFor(r.URL.Query().Get("persona"))
	sink := &wsSink{conn: conn}

	sess, err := g.manager.Open(r.URL.Query().Get("session"), persona, sink)
	if err != nil {
		g.logger.Warn("session open failed", zap.Error(err))
		_ = sink.write(r.Context(), outboundFrame{Type: "error", Message: err.Error()})
		conn.Close(websocket.StatusTryAgainLater, "session unavailable")
		return
	}
	defer g.manager.CloseSession(sess.ID())

	logger := g.logger.With(zap.String("session_id", sess.ID()))
	logger.Info("driver connected", zap.String("persona", persona.Name))
	defer logger.Info("driver disconnected")

	// 握手完成后先告知会话 ID，便于断线重连时恢复槽位
	if err := sink.write(r.Context(), outboundFrame{
		Type:      "session",
		SessionID: sess.ID(),
	}); err != nil {
		return
	}

	for {
		_, data, err := conn.Read(r.Context())
		if err != nil {
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			_ = sink.write(r.Context(), outboundFrame{
				Type:    "error",
				Message: "malformed frame",
			})
			continue
		}

		turn, ok := turnOf(frame)
		if !ok {
			_ = sink.write(r.Context(), outboundFrame{
				Type:    "error",
				Message: fmt.Sprintf("unknown frame type %q", frame.Type),
			})
			continue
		}

		if err := sess.Submit(turn); err != nil {
			logger.Warn("turn rejected", zap.Error(err))
			_ = sink.write(r.Context(), outboundFrame{
				Type:    "error",
				Message: err.Error(),
			})
		}
	}
}

// turnOf 把入站帧转换为会话回合
func turnOf(frame inboundFrame) (session.Turn, bool) {
	switch frame.Type {
	case "utterance":
		return session.Turn{Utterance: frame.Text}, true
	case "tool_call":
		return session.Turn{Invocation: &tools.Invocation{
			ID:        frame.ID,
			Name:      frame.Name,
			Arguments: frame.Arguments,
		}}, true
	default:
		return session.Turn{}, false
	}
}

// =============================================================================
// 📤 会话输出端
// =============================================================================

// wsSink 把会话输出写回 WebSocket 连接。
// 会话 goroutine 和读循环都会写出站帧，用互斥锁保证单写者。
type wsSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSink) Speak(ctx context.Context, text string) error {
	return s.write(ctx, outboundFrame{Type: "speak", Text: text})
}

func (s *wsSink) Reject(ctx context.Context, res tools.Result) error {
	return s.write(ctx, outboundFrame{
		Type:         "error",
		InvocationID: res.InvocationID,
		Tool:         res.Name,
		Message:      res.Err,
	})
}

func (s *wsSink) write(ctx context.Context, frame outboundFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.conn.Write(wctx, websocket.MessageText, data)
}
