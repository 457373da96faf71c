// Package processor consumes inbound-message events and runs the routing
// pipeline.
package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/formcoach/server/pkg/bootstrap"
	"github.com/formcoach/server/pkg/domain/routing"
	"github.com/formcoach/server/pkg/framework"
	"github.com/formcoach/server/pkg/types"
)

var (
	svc     *bootstrap.Service
	svcOnce sync.Once
	svcErr  error
)

func init() {
	functions.CloudEvent("ProcessMessage", ProcessMessage)
}

func initService(ctx context.Context) (*bootstrap.Service, error) {
	if svc != nil {
		return svc, nil
	}
	svcOnce.Do(func() {
		svc, svcErr = bootstrap.NewService(ctx)
	})
	return svc, svcErr
}

// ProcessMessage is the entry point
func ProcessMessage(ctx context.Context, e cloudevents.Event) error {
	svc, err := initService(ctx)
	if err != nil {
		return fmt.Errorf("service init failed: %v", err)
	}
	return framework.WrapCloudEvent("message-processor", svc, processHandler)(ctx, e)
}

// processHandler contains the business logic
func processHandler(ctx context.Context, e cloudevents.Event, fwCtx *framework.FrameworkContext) (interface{}, error) {
	svc := fwCtx.Service

	var msg types.InboundMessage
	if err := json.Unmarshal(e.Data(), &msg); err != nil {
		return nil, fmt.Errorf("unmarshal inbound message: %w", err)
	}
	if msg.From == "" {
		return nil, fmt.Errorf("inbound message missing sender")
	}

	if svc.Vision == nil || svc.Transcriber == nil {
		return nil, fmt.Errorf("analysis collaborators not configured")
	}

	router := routing.NewRouter(svc.DB, svc.Store, svc.Config.MediaBucket,
		svc.Assistant, svc.Vision, svc.Transcriber, svc.Messenger, svc.Media)

	return router.Dispatch(ctx, fwCtx.Logger, &msg)
}
