package signal

import (
	"context"
	"encoding/json"

	"github.com/dkeye/partyhub/internal/core"
)

func (ctl *Controller) handlePing(context.Context, core.SessionID, json.RawMessage) (any, error) {
	return struct {
		Type string `json:"type"`
	}{
		Type: "pong",
	}, nil
}
