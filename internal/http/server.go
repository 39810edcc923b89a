// README: API gateway; holds module services and the admin token verifier.
package http

import (
	"log/slog"
	"net/http"

	"tourstay/internal/http/handlers"
	"tourstay/internal/infra"
)

type ServerDeps struct {
	Departures handlers.DepartureService
	Calendar   handlers.CalendarService
	Pricing    handlers.PricingService
	Verifier   infra.TokenVerifier
	Logger     *slog.Logger
}

type Server struct {
	departures *handlers.DepartureHandler
	calendar   *handlers.CalendarHandler
	pricing    *handlers.PricingHandler
	verifier   infra.TokenVerifier
	logger     *slog.Logger
}

func NewServer(deps ServerDeps) *Server {
	verifier := deps.Verifier
	if verifier == nil {
		verifier = infra.DenyAllVerifier{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		departures: handlers.NewDepartureHandler(deps.Departures),
		calendar:   handlers.NewCalendarHandler(deps.Calendar),
		pricing:    handlers.NewPricingHandler(deps.Pricing),
		verifier:   verifier,
		logger:     logger,
	}
}

// HTTPServer wraps Routes in a net/http server bound to addr.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{Addr: addr, Handler: s.Routes()}
}
