package prompts

import (
	"context"
	"strings"

	"github.com/SaiNageswarS/chat-boot/llm"
	"github.com/SaiNageswarS/go-collection-boot/async"
)

// GenerateReply runs one completion call for an assembled payload and yields
// the full reply text.
func GenerateReply(ctx context.Context, client llm.LLMClient, payload []llm.Message, opts ...llm.LLMOption) <-chan async.Result[string] {
	return async.Go(func() (string, error) {
		var response strings.Builder
		err := client.GenerateInference(ctx, payload, func(chunk string) error {
			response.WriteString(chunk)
			return nil
		}, opts...)

		return response.String(), err
	})
}
