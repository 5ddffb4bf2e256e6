package observers

import (
	"context"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/prompt"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"

	logx "github.com/intentcore/server/pkg/logger"
)

// newPromptHandler logs prompt rendering around each template format.
func newPromptHandler() *callbackHelper.PromptCallbackHandler {
	return &callbackHelper.PromptCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *prompt.CallbackInput) context.Context {
			vars := 0
			if input != nil {
				vars = len(input.Variables)
			}
			logx.Debug().
				Str("component", info.Type).
				Str("node", info.Name).
				Int("variables", vars).
				Msg("Prompt render start")
			return ctx
		},
		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *prompt.CallbackOutput) context.Context {
			msgs := 0
			if output != nil {
				msgs = len(output.Result)
			}
			logx.Debug().
				Str("component", info.Type).
				Str("node", info.Name).
				Int("messages", msgs).
				Msg("Prompt render end")
			return ctx
		},
		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			logx.Error().
				Str("component", info.Type).
				Str("node", info.Name).
				Err(err).
				Msg("Prompt render failed")
			return ctx
		},
	}
}
