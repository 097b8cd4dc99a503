package api

import (
	"net/http"
)

// statsResponse is the JSON response for GET /v1/stats.
type statsResponse struct {
	Source           string         `json:"source"`
	Total            int            `json:"total"`
	Active           int            `json:"active"`
	Detached         int            `json:"detached"`
	QueueDepth       int            `json:"queue_depth"`
	ByStatus         map[string]int `json:"by_status"`
	ByTarget         map[string]int `json:"by_target"`
	AvgExecutionTime float64        `json:"avg_execution_time"`
}

// handleGetStats reports result statistics from the archive when one is
// configured and from the in-memory ledger otherwise. Active, detached and
// queue figures always come from the engine.
func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	counts := s.engine.Counts()
	resp := statsResponse{
		Source:           "ledger",
		Total:            counts.Completed,
		Active:           counts.Active,
		Detached:         counts.Detached,
		QueueDepth:       s.engine.QueueDepth(),
		ByStatus:         counts.ByStatus,
		ByTarget:         counts.ByTarget,
		AvgExecutionTime: counts.AvgExecS,
	}

	if s.archive != nil {
		stats, err := s.archive.GetResultStats(r.Context())
		if err != nil {
			s.logger.Error("get result stats", "error", err)
			s.writeError(w, http.StatusInternalServerError, "failed to get stats")
			return
		}
		resp.Source = "archive"
		resp.Total = stats.Total
		resp.ByStatus = stats.CountByStatus
		resp.ByTarget = stats.CountByTarget
		resp.AvgExecutionTime = stats.AvgExecutionTime
	}

	s.writeJSON(w, http.StatusOK, resp)
}
