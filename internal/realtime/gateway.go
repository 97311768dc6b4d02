package realtime

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// wsChannel adapts a websocket connection to Channel. Writes are serialized
// because websocket.Conn allows one concurrent writer.
type wsChannel struct {
	conn         *websocket.Conn
	credential   string
	writeTimeout time.Duration

	mu sync.Mutex
}

func (c *wsChannel) Credential() string { return c.credential }

func (c *wsChannel) Send(ctx context.Context, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.writeTimeout)
		defer cancel()
	}
	return c.conn.Write(ctx, websocket.MessageText, []byte(message))
}

// Gateway upgrades HTTP requests to websocket channels and registers them.
type Gateway struct {
	registry       *Registry
	logger         *zap.Logger
	originPatterns []string
	writeTimeout   time.Duration
}

// NewGateway builds the upgrade handler.
func NewGateway(registry *Registry, logger *zap.Logger, originPatterns []string, writeTimeout time.Duration) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		registry:       registry,
		logger:         logger,
		originPatterns: originPatterns,
		writeTimeout:   writeTimeout,
	}
}

// Handler returns the mux serving the realtime endpoint at /ws.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", g.ServeHTTP)
	return mux
}

// ServeHTTP accepts the connection whatever its token; a missing or invalid
// token simply never matches a broadcast.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: g.originPatterns,
	})
	if err != nil {
		g.logger.Info("ws.accept.fail", zap.Error(err))
		return
	}

	ch := &wsChannel{
		conn:         conn,
		credential:   r.URL.Query().Get("token"),
		writeTimeout: g.writeTimeout,
	}
	registered := g.registry.Accept(ch)
	defer func() {
		g.registry.Remove(ch)
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
		g.logger.Debug("ws.closed", zap.String("conn_id", registered.ID))
	}()

	// Inbound frames carry no meaning; reading keeps control frames flowing
	// and surfaces the disconnect.
	ctx := r.Context()
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				g.logger.Debug("ws.read.fail", zap.String("conn_id", registered.ID), zap.Error(err))
			}
			return
		}
	}
}
