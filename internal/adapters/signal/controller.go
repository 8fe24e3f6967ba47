package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/partyhub/internal/app/orch"
	"github.com/dkeye/partyhub/internal/app/party"
	"github.com/dkeye/partyhub/internal/core"
	"github.com/dkeye/partyhub/internal/domain"
)

// Client to server routes.
const (
	RouteJoin              = "party.join"
	RouteJoinByCode        = "party.join.code"
	RouteLeave             = "party.leave"
	RouteUpdateSettings    = "party.settings.update"
	RouteUpdateStatus      = "party.status.update"
	RouteUpdateUserData    = "party.userdata.update"
	RoutePromoteLeader     = "party.leader.promote"
	RouteKick              = "party.kick"
	RouteGetState          = "party.state.get"
	RoutePushState         = "party.state.push"
	RouteSendInvitation    = "party.invitation.send"
	RouteDeclineInvitation = "party.invitation.decline"
	RouteCreateCode        = "party.code.create"
	RouteCancelCode        = "party.code.cancel"
	RoutePing              = "ping"
	RouteWhoAmI            = "whoami"
	RouteRename            = "rename"
)

const DefaultPlatform = "web"

var errBadPayload = errors.New("bad payload")

type routeFunc func(ctx context.Context, sid core.SessionID, payload json.RawMessage) (any, error)

// Controller turns client requests into orchestrator and party calls.
type Controller struct {
	Orch           *orch.Orchestrator
	Hub            *Hub
	RequestTimeout time.Duration

	routes map[string]routeFunc
}

func NewController(o *orch.Orchestrator, hub *Hub, requestTimeout time.Duration) *Controller {
	ctl := &Controller{Orch: o, Hub: hub, RequestTimeout: requestTimeout}
	ctl.routes = map[string]routeFunc{
		RouteJoin:              ctl.handleJoin,
		RouteJoinByCode:        ctl.handleJoinByCode,
		RouteLeave:             ctl.handleLeave,
		RouteUpdateSettings:    ctl.inParty(ctl.handleUpdateSettings),
		RouteUpdateStatus:      ctl.inParty(ctl.handleUpdateStatus),
		RouteUpdateUserData:    ctl.inParty(ctl.handleUpdateUserData),
		RoutePromoteLeader:     ctl.inParty(ctl.handlePromote),
		RouteKick:              ctl.inParty(ctl.handleKick),
		RouteGetState:          ctl.inParty(ctl.handleGetState),
		RoutePushState:         ctl.inParty(ctl.handlePushState),
		RouteSendInvitation:    ctl.inParty(ctl.handleSendInvitation),
		RouteDeclineInvitation: ctl.handleDeclineInvitation,
		RouteCreateCode:        ctl.inParty(ctl.handleCreateCode),
		RouteCancelCode:        ctl.inParty(ctl.handleCancelCode),
		RoutePing:              ctl.handlePing,
		RouteWhoAmI:            ctl.handleWhoAmI,
		RouteRename:            ctl.handleRename,
	}
	return ctl
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and opens a session for the caller.
// The session id is the client token set by the HTTP middleware; identity
// comes from the user, name and platform query parameters.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := core.SessionID(c.GetString("client_token"))
	if sid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing client token"})
		return
	}
	uid := c.DefaultQuery("user", string(sid))
	platform := c.DefaultQuery("platform", DefaultPlatform)
	user, err := domain.NewUser(domain.UserID(uid), c.Query("name"), domain.PlatformID{Platform: platform, OnlineID: uid})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("user", uid).Msg("new WS connection")

	if _, replaced := ctl.Orch.Sessions.Open(sid, *user); replaced != "" {
		// Same user on a new session: the old one goes away.
		_ = ctl.Hub.Disconnect(replaced, ReasonReplaced)
	}
	ctl.Hub.Serve(ctx, sid, ws, ctl)
}

func (ctl *Controller) HandleRequest(ctx context.Context, sid core.SessionID, route string, payload json.RawMessage) (any, error) {
	fn, ok := ctl.routes[route]
	if !ok {
		return nil, &core.WireError{Code: "unknownRoute", Message: route}
	}
	if ctl.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ctl.RequestTimeout)
		defer cancel()
	}
	res, err := fn(ctx, sid, payload)
	if err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("route", route).Msg("request rejected")
		return nil, toWireError(err)
	}
	return res, nil
}

func (ctl *Controller) OnClose(sid core.SessionID, reason string) {
	ctl.Orch.OnDisconnect(context.Background(), sid, reason)
}

func (ctl *Controller) inParty(fn func(ctx context.Context, p *party.Party, sid core.SessionID, payload json.RawMessage) (any, error)) routeFunc {
	return func(ctx context.Context, sid core.SessionID, payload json.RawMessage) (any, error) {
		p, err := ctl.Orch.PartyOf(sid)
		if err != nil {
			return nil, err
		}
		return fn(ctx, p, sid, payload)
	}
}

func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("%w: %v", errBadPayload, err)
	}
	return v, nil
}

func toWireError(err error) *core.WireError {
	var we *core.WireError
	if errors.As(err, &we) {
		return we
	}
	var pe *party.Error
	if errors.As(err, &pe) {
		return &core.WireError{Code: pe.Code, Message: pe.Message}
	}
	code := "internal"
	switch {
	case errors.Is(err, errBadPayload):
		code = "badPayload"
	case errors.Is(err, orch.ErrNotInParty):
		code = "party.notInParty"
	case errors.Is(err, orch.ErrPartyNotFound):
		code = "party.notFound"
	case errors.Is(err, orch.ErrUnknownCode):
		code = "party.unknownCode"
	case errors.Is(err, core.ErrSessionNotFound):
		code = "session.notFound"
	case errors.Is(err, core.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		code = "timeout"
	case errors.Is(err, domain.ErrUsernameTooLong):
		code = "invalidName"
	}
	return &core.WireError{Code: code, Message: err.Error()}
}
