package llm

import (
	"time"

	"github.com/nkratz/pagepilot/internal/config"
)

func clientConfigWithoutKey() config.LLMConfig {
	return config.LLMConfig{
		Model:             "gemini-2.5-flash",
		APITimeout:        time.Second,
		RequestsPerMinute: 30,
	}
}
