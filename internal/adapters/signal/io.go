package signal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/partyhub/internal/core"
)

func (h *Hub) writePump(ctx context.Context, c *Conn) {
	ticker := time.NewTicker(h.opts.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("sid", string(c.sid)).Msg("writePump ctx done")
			return
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(c.sid)).Msg("writePump ping")
				c.closeWith("")
				return
			}
		case data := <-c.send:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				c.closeWith("")
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("sid", string(c.sid)).Msg("writePump write error")
				c.closeWith("")
				return
			}
		}
	}
}

func (h *Hub) readPump(ctx context.Context, cancel context.CancelFunc, c *Conn, handler Handler) {
	defer func() {
		cancel()
		reason := c.closeReason()
		log.Info().Str("module", "signal").Str("sid", string(c.sid)).Str("reason", reason).Msg("readPump closing")
		if h.remove(c) {
			handler.OnClose(c.sid, reason)
		}
	}()

	pongWait := h.opts.PingPeriod * 10 / 9
	if h.opts.ReadLimit > 0 {
		c.ws.SetReadLimit(h.opts.ReadLimit)
	}
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				c.closeWith(ce.Text)
			} else {
				log.Debug().Err(err).Str("module", "signal").Str("sid", string(c.sid)).Msg("readPump read error")
				c.closeWith("")
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		h.dispatch(ctx, c, handler, data)
	}
}

func (h *Hub) dispatch(ctx context.Context, c *Conn, handler Handler, data []byte) {
	var env core.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(c.sid)).Msg("bad json")
		return
	}
	switch env.Type {
	case core.EnvelopeResponse:
		c.resolve(env)
	case core.EnvelopeRequest:
		// Requests may block on party work; the read loop must keep
		// draining responses meanwhile.
		go h.serveRequest(ctx, c, handler, env)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown envelope")
	}
}

func (h *Hub) serveRequest(ctx context.Context, c *Conn, handler Handler, req core.Envelope) {
	resp := core.Envelope{Type: core.EnvelopeResponse, ID: req.ID}
	result, err := handler.HandleRequest(ctx, c.sid, req.Route, req.Payload)
	if err != nil {
		var we *core.WireError
		if !errors.As(err, &we) {
			log.Error().Err(err).Str("module", "signal").Str("route", req.Route).Msg("request failed")
			we = &core.WireError{Code: "internal", Message: err.Error()}
		}
		resp.Error = we
	} else if result != nil {
		body, err := json.Marshal(result)
		if err != nil {
			log.Error().Err(err).Str("module", "signal").Str("route", req.Route).Msg("marshal response")
			resp.Error = &core.WireError{Code: "internal"}
		} else {
			resp.Payload = body
		}
	}

	frame, err := json.Marshal(resp)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("marshal envelope")
		return
	}
	if err := c.TrySend(frame); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(c.sid)).Str("route", req.Route).Msg("response dropped")
	}
}
