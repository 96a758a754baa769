package server

import (
	"context"
	"evlink/internal"
	"evlink/internal/config"
	"evlink/utility"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

const (
	wsEndpoint = "/ocpp/:id"
	writeWait  = 10 * time.Second
)

// ConnectionHandler receives the lifecycle of every charge point socket
type ConnectionHandler interface {
	OnConnect(ws *WebSocket) error
	OnMessage(ws *WebSocket, data []byte) error
	OnDisconnect(ws *WebSocket)
}

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	router     *httprouter.Router
	upgrader   websocket.Upgrader
	handler    ConnectionHandler
	logger     internal.LogHandler
}

// WebSocket is one charge point connection; writes are serialized, it implements ocpp.Sender
type WebSocket struct {
	conn       *websocket.Conn
	id         string
	writeMutex sync.Mutex
	closeOnce  sync.Once
}

func (ws *WebSocket) ID() string {
	return ws.id
}

func (ws *WebSocket) Write(data []byte) error {
	ws.writeMutex.Lock()
	defer ws.writeMutex.Unlock()
	_ = ws.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.conn.WriteMessage(websocket.TextMessage, data)
}

func (ws *WebSocket) Close() {
	ws.closeOnce.Do(func() {
		ws.writeMutex.Lock()
		_ = ws.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		ws.writeMutex.Unlock()
		_ = ws.conn.Close()
	})
}

func NewServer(conf *config.Config, logger internal.LogHandler) *Server {
	server := Server{
		conf:     conf,
		logger:   logger,
		upgrader: websocket.Upgrader{Subprotocols: []string{}},
	}
	server.upgrader.CheckOrigin = func(r *http.Request) bool {
		return true
	}
	// register itself as a router for httpServer handler
	server.router = httprouter.New()
	server.Register(server.router)
	server.httpServer = &http.Server{
		Handler: server.router,
	}
	return &server
}

func (s *Server) AddSupportedSupProtocol(proto string) {
	if utility.Contains(s.upgrader.Subprotocols, proto) {
		return
	}
	s.upgrader.Subprotocols = append(s.upgrader.Subprotocols, proto)
}

func (s *Server) SetConnectionHandler(handler ConnectionHandler) {
	s.handler = handler
}

func (s *Server) Register(router *httprouter.Router) {
	router.GET(wsEndpoint, s.handleWsRequest)
}

// Handler exposes the websocket routes, used to mount the server in tests
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleWsRequest(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	id := params.ByName("id")
	s.logger.Debug(fmt.Sprintf("connection initiated from remote %s", r.RemoteAddr))
	if id == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	clientSubProto := websocket.Subprotocols(r)
	requestedProto := ""
	for _, proto := range clientSubProto {
		if len(s.upgrader.Subprotocols) == 0 {
			// supporting all protocols
			requestedProto = proto
			break
		}
		if utility.Contains(s.upgrader.Subprotocols, proto) {
			requestedProto = proto
			break
		}
	}
	if len(clientSubProto) > 0 && requestedProto == "" {
		s.logger.Warn(fmt.Sprintf("unsupported sub protocols %v from %s", clientSubProto, id))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	// upgrader selects the matching sub protocol itself
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("upgrade failed: ", err)
		return
	}

	s.logger.Debug(fmt.Sprintf("upgraded socket for %s and ready to receive data", id))
	ws := &WebSocket{
		conn: conn,
		id:   id,
	}
	if s.handler != nil {
		if err = s.handler.OnConnect(ws); err != nil {
			s.logger.Error(fmt.Sprintf("connect %s", id), err)
			ws.Close()
			return
		}
	}

	go s.messageReader(ws)
}

func (s *Server) messageReader(ws *WebSocket) {
	conn := ws.conn
	defer func() {
		ws.Close()
		if s.handler != nil {
			s.handler.OnDisconnect(ws)
		}
	}()
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, 3001) {
				s.logger.Debug(fmt.Sprintf("id %s leaving session", ws.id))
			} else {
				s.logger.Debug(fmt.Sprintf("id %s is closing session %s", ws.id, err))
			}
			return
		}
		if s.handler != nil {
			if err = s.handler.OnMessage(ws, message); err != nil {
				s.logger.Error(fmt.Sprintf("closing connection of %s", ws.id), err)
				return
			}
		}
	}
}

func (s *Server) Start() error {
	if s.conf == nil {
		return utility.Err("configuration not loaded")
	}
	serverAddress := fmt.Sprintf("%s:%s", s.conf.Listen.BindIP, s.conf.Listen.Port)
	s.logger.Debug(fmt.Sprintf("starting server on %s", serverAddress))
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}
	if s.conf.Listen.TLS {
		s.logger.Debug("starting https TLS server")
		err = s.httpServer.ServeTLS(listener, s.conf.Listen.CertFile, s.conf.Listen.KeyFile)
	} else {
		s.logger.Debug("starting http server")
		err = s.httpServer.Serve(listener)
	}
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
