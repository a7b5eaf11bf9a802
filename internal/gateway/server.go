package gateway

import (
	"encoding/json"
	"net/http"
	"strings"

	"admin-realtime-service/internal/domain/event"
	"admin-realtime-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Dev gateway only, all origins allowed.
		return true
	},
}

// Server exposes the auth endpoints and the websocket push channel the bridge
// consumes. It implements only that surface: no retail CRUD lives here.
type Server struct {
	engine *gin.Engine
	auth   *AuthService
	hub    *Hub
	logger *zap.Logger
	addr   string
}

func NewServer(addr string, auth *AuthService, hub *Hub, logger *zap.Logger) *Server {
	s := &Server{
		engine: gin.New(),
		auth:   auth,
		hub:    hub,
		logger: logger,
		addr:   addr,
	}
	s.engine.Use(gin.Recovery())
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.engine.Group("/api")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/login", s.handleLogin)
			authGroup.POST("/refresh", s.handleRefresh)
			authGroup.POST("/logout", s.handleLogout)
		}
		api.POST("/internal/events", s.handleInjectEvent)
	}
	s.engine.GET("/ws", s.handleWebSocket)
	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "clients": s.hub.ClientCount()})
	})
}

// Engine exposes the gin engine for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) Start() error {
	s.logger.Info("gateway listening", zap.String("addr", s.addr))
	return s.engine.Run(s.addr)
}

func (s *Server) handleLogin(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "email and password are required", err)
		return
	}

	result, err := s.auth.Login(req.Email, req.Password)
	if err != nil {
		s.logger.Warn("login rejected", zap.String("email", req.Email), zap.Error(err))
		response.Unauthorized(c, "invalid credentials")
		return
	}

	response.Success(c, http.StatusOK, "login successful", result)
}

func (s *Server) handleRefresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "refreshToken is required", err)
		return
	}

	result, err := s.auth.Refresh(req.RefreshToken)
	if err != nil {
		s.logger.Warn("refresh rejected", zap.Error(err))
		response.Unauthorized(c, "invalid refresh token")
		return
	}

	response.Success(c, http.StatusOK, "token refreshed", result)
}

func (s *Server) handleLogout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	// Logout always succeeds, even with a missing or garbage token.
	_ = c.ShouldBindJSON(&req)
	if req.RefreshToken != "" {
		s.auth.Logout(req.RefreshToken)
	}

	response.Success(c, http.StatusOK, "logged out", nil)
}

// handleInjectEvent broadcasts a domain event to all connected clients. Used
// to drive the bridge manually during development.
func (s *Server) handleInjectEvent(c *gin.Context) {
	if _, err := s.auth.VerifyAccess(s.extractToken(c)); err != nil {
		response.Unauthorized(c, "missing or invalid access token")
		return
	}

	var req struct {
		Type string          `json:"type" binding:"required"`
		Data json.RawMessage `json:"data"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "type is required", err)
		return
	}

	env, err := event.NewEnvelope(event.Type(req.Type), nil)
	if err != nil {
		response.ValidationError(c, "invalid event", err)
		return
	}
	env.Data = req.Data

	s.hub.Broadcast(env)
	response.Success(c, http.StatusAccepted, "event broadcast", gin.H{"id": env.ID})
}

// handleWebSocket authenticates the bearer token and upgrades the connection.
func (s *Server) handleWebSocket(c *gin.Context) {
	token := s.extractToken(c)
	if token == "" {
		response.Unauthorized(c, "missing authentication token")
		return
	}

	claims, err := s.auth.VerifyAccess(token)
	if err != nil {
		s.logger.Warn("websocket authentication failed",
			zap.Error(err),
			zap.String("ip", c.ClientIP()),
		)
		response.Unauthorized(c, "authentication failed")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed",
			zap.Error(err),
			zap.String("ip", c.ClientIP()),
		)
		return
	}

	s.hub.register(conn)
	s.logger.Info("websocket client authenticated",
		zap.String("subject", claims.Subject),
		zap.String("email", claims.Email),
	)

	if env, err := event.NewEnvelope(event.TypeConnected, gin.H{"subject": claims.Subject}); err == nil {
		data, _ := env.ToJSON()
		conn.WriteMessage(websocket.TextMessage, data)
	}

	// Read loop keeps control frames flowing and detects disconnects.
	// Inbound data frames are logged and dropped: the dev gateway pushes only.
	go func() {
		defer s.hub.unregister(conn)
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				return
			}
			s.logger.Debug("inbound client message ignored", zap.ByteString("message", message))
		}
	}()
}

// extractToken pulls the bearer token from the Authorization header or the
// token query parameter.
func (s *Server) extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return c.Query("token")
}
