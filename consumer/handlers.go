package consumer

import (
	"context"

	log "github.com/freundallein/commonmq/chassis/logging"
	"github.com/freundallein/commonmq/chassis/protocol"
)

// HandleLog writes the request to the log and succeeds.
func HandleLog(ctx context.Context, request *protocol.Request) error {
	log.WithFields(log.Fields{
		"event":     "request_logged",
		"requestID": request.ID,
	}).Info(request.Params)
	return nil
}
