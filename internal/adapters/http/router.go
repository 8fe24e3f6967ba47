package http

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/partyhub/internal/adapters/signal"
	"github.com/dkeye/partyhub/internal/app"
	"github.com/dkeye/partyhub/internal/config"
	"github.com/dkeye/partyhub/internal/domain"
)

func genClientToken() string {
	idStr := uuid.NewString()
	return idStr
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

type partyHandlers struct {
	reg               *app.Registry
	sessions          *app.Sessions
	defaultGameFinder string
}

type userPayload struct {
	Name     string `json:"name"`
	Platform string `json:"platform"`
}

func SetupRouter(ctx context.Context, cfg *config.Config, reg *app.Registry, ctl *signal.Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("PartyHubSessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	h := &partyHandlers{reg: reg, sessions: ctl.Orch.Sessions, defaultGameFinder: cfg.Party.DefaultGameFinder}
	api := r.Group("/api")
	api.POST("/parties", h.create)
	api.GET("/parties", h.list)
	api.GET("/parties/:id", h.get)
	api.DELETE("/parties/:id", h.remove)
	api.GET("/codes/:code", h.resolveCode)
	api.PUT("/users/:id", h.registerUser)

	api.GET("/ws", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("sid", c.GetString("client_token")).Msg("ws signal endpoint hit")
		ctl.HandleSignal(ctx, c)
	})

	return r
}

func (h *partyHandlers) create(c *gin.Context) {
	var settings domain.PartySettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if settings.GameFinderName == "" {
		settings.GameFinderName = h.defaultGameFinder
	}
	p, err := h.reg.CreateParty(c.Request.Context(), settings)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("create party")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"partyId": p.ID()})
}

func (h *partyHandlers) list(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"parties": h.reg.List()})
}

func (h *partyHandlers) get(c *gin.Context) {
	p, ok := h.reg.Get(domain.PartyID(c.Param("id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "party not found"})
		return
	}
	c.JSON(http.StatusOK, p.View())
}

func (h *partyHandlers) remove(c *gin.Context) {
	id := domain.PartyID(c.Param("id"))
	if _, ok := h.reg.Get(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "party not found"})
		return
	}
	h.reg.Remove(id)
	c.Status(http.StatusNoContent)
}

func (h *partyHandlers) resolveCode(c *gin.Context) {
	id, ok := h.reg.ResolveInvitationCode(c.Param("code"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown code"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"partyId": id})
}

// registerUser records a user in the directory so invitations can find
// them before they connect.
func (h *partyHandlers) registerUser(c *gin.Context) {
	var body userPayload
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if body.Platform == "" {
		body.Platform = signal.DefaultPlatform
	}
	id := c.Param("id")
	u, err := domain.NewUser(domain.UserID(id), body.Name, domain.PlatformID{Platform: body.Platform, OnlineID: id})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.sessions.Register(*u)
	log.Info().Str("module", "adapters.http").Str("user", id).Str("platform", body.Platform).Msg("user registered")
	c.JSON(http.StatusOK, u)
}
