// authorizer runs the gate as an AWS API Gateway TOKEN custom authorizer.
package main

import (
	"context"
	"flag"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/rtx"

	v1 "github.com/m-lab/authgate/api/v1"
	"github.com/m-lab/authgate/authorizer"
	"github.com/m-lab/authgate/secrets"
)

var (
	cfg  authorizer.Config
	gate handler

	// Overridden in tests.
	startLambda = func(h interface{}) { lambda.Start(h) }
)

func init() {
	cfg.RegisterFlags(flag.CommandLine)
}

// decider is the part of *authorizer.Authorizer used by the entrypoint.
type decider interface {
	Authorize(header string) *v1.Decision
}

type handler struct {
	decider
}

// handle answers one custom authorizer invocation. A Deny is a successful
// invocation, so the error is always nil.
func (h *handler) handle(ctx context.Context, req events.APIGatewayCustomAuthorizerRequest) (*v1.Decision, error) {
	return h.Authorize(req.AuthorizationToken), nil
}

var mainCtx, mainCancel = context.WithCancel(context.Background())

func main() {
	defer mainCancel()
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnvWithLog(flag.CommandLine, false), "Failed to read args from env")

	a, err := cfg.Load(mainCtx, secrets.NewBackOff())
	rtx.Must(err, "Failed to load authorizer")
	gate = handler{decider: a}
	startLambda(gate.handle)
}
