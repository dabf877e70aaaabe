package ws

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"github.com/mander92/syuso-chat/internal/models"
	"github.com/mander92/syuso-chat/internal/observability"
)

// TokenVerifier authenticates the connection token. Session issuance lives in
// the scheduling app; this side only verifies.
type TokenVerifier interface {
	Verify(token string) (models.Principal, error)
}

// Handler upgrades the single per-client connection and hands it to the
// protocol server. Rooms are joined over the protocol, not per-endpoint.
type Handler struct {
	server   *Server
	verifier TokenVerifier
}

// NewHandler constructs a Handler.
func NewHandler(server *Server, verifier TokenVerifier) *Handler {
	return &Handler{server: server, verifier: verifier}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle is the GET /ws endpoint.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("syuso-chat/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	principal, err := h.verifier.Verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	session := newSession(conn, principal, h.server)
	observability.IncWSActive("session")
	observability.IncWSEvent("session", "ws_connect")
	log.Printf("websocket connected: session=%s user=%d ip=%s", session.ID, principal.ID, observability.IPFromRequest(c.Request))

	session.run()
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return ""
	}
	return c.Query("token")
}
