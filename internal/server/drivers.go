package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/mesh-intelligence/apexdraft/pkg/types"
)

func (s *Server) listDrivers(w http.ResponseWriter, r *http.Request) {
	drivers, err := s.drivers.Drivers(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ok(w, drivers)
}

func (s *Server) driverStats(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(r.PathValue("driverId"))
	if err != nil || n < 1 {
		s.writeError(w, r, fmt.Errorf("%w: driverId must be a positive integer", types.ErrValidation))
		return
	}
	stats, err := s.drivers.DriverStats(r.Context(), n)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ok(w, stats)
}
