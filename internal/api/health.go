package api

import "net/http"

type healthResponse struct {
	Status         string `json:"status"`
	PoolSize       int    `json:"pool_size"`
	QueueDepth     int    `json:"queue_depth"`
	ActiveTasks    int    `json:"active_tasks"`
	Targets        int    `json:"targets"`
	RunningTargets int    `json:"running_targets"`
}

// handleHealthz reports liveness along with pool and registry occupancy.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	counts := s.engine.Counts()
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:         "ok",
		PoolSize:       s.engine.PoolSize(),
		QueueDepth:     s.engine.QueueDepth(),
		ActiveTasks:    counts.Active,
		Targets:        len(s.registry.List("")),
		RunningTargets: len(s.registry.Services()),
	})
}
