package api

import (
	"net/http"

	"github.com/dgallion1/quickfill/internal/completion"
)

// llmStatsContent is the response content of the LLM stats endpoint.
type llmStatsContent struct {
	Model string                   `json:"model"`
	Stats completion.StatsSnapshot `json:"stats"`
}

func (s *Server) handleLLMStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		jsonError(w, "llm stats unavailable", http.StatusServiceUnavailable)
		return
	}
	respond(w, http.StatusOK, "", llmStatsContent{
		Model: s.cfg.AnthropicModel,
		Stats: s.stats.Snapshot(),
	})
}
