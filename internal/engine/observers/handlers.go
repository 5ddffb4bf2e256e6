package observers

import (
	einocb "github.com/cloudwego/eino/callbacks"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"
)

// NewAllCallbacks aggregates the observer handlers into one
// callbacks.Handler attached at graph invocation time.
func NewAllCallbacks() einocb.Handler {
	modelHandler := newModelHandler()
	promptHandler := newPromptHandler()

	return callbackHelper.NewHandlerHelper().
		ChatModel(modelHandler).
		Prompt(promptHandler).
		Handler()
}
