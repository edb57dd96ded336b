package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ComponentLogger derives a logger from the global one tagged with the
// component and the endpoint it serves.
func ComponentLogger(component, endpoint string) zerolog.Logger {
	return log.Logger.With().
		Str("component", component).
		Str("endpoint", endpoint).
		Logger()
}
