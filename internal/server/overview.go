package server

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"uptimeledger/internal/metrics"
	"uptimeledger/internal/models"
)

const (
	overviewPushInterval = 60 * time.Second
	overviewWriteTimeout = 5 * time.Second
)

var overviewUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := strings.ToLower(strings.TrimSpace(r.Host))
		originHost := strings.ToLower(strings.TrimSpace(u.Host))
		return host == originHost
	},
}

type overviewSnapshot struct {
	GeneratedAt     time.Time               `json:"generated_at"`
	MonitoringSince *time.Time              `json:"monitoring_since,omitempty"`
	LastCheck       *time.Time              `json:"last_check,omitempty"`
	Services        []metrics.ServiceUptime `json:"services"`
	OpenIncidents   []models.Incident       `json:"open_incidents"`
}

func (s *Server) handleOverviewWS(w http.ResponseWriter, r *http.Request) {
	conn, err := overviewUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.serveOverviewConnection(conn)
}

func (s *Server) serveOverviewConnection(conn *websocket.Conn) {
	defer conn.Close()

	if err := writeOverviewPayload(conn, s.buildOverviewSnapshot()); err != nil {
		return
	}

	ticker := time.NewTicker(overviewPushInterval)
	defer ticker.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ticker.C:
			if err := writeOverviewPayload(conn, s.buildOverviewSnapshot()); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func writeOverviewPayload(conn *websocket.Conn, payload overviewSnapshot) error {
	_ = conn.SetWriteDeadline(time.Now().Add(overviewWriteTimeout))
	return conn.WriteJSON(payload)
}

func (s *Server) buildOverviewSnapshot() overviewSnapshot {
	snap := overviewSnapshot{
		GeneratedAt:   time.Now().UTC(),
		Services:      []metrics.ServiceUptime{},
		OpenIncidents: []models.Incident{},
	}
	l, ok := s.ledger.Get()
	if !ok {
		return snap
	}
	since, last := l.MonitoringSince, l.LastCheck
	snap.MonitoringSince = &since
	snap.LastCheck = &last
	if uptime := metrics.SortedUptime(l.Services); uptime != nil {
		snap.Services = uptime
	}
	for _, inc := range l.Incidents {
		if inc.Open() {
			snap.OpenIncidents = append(snap.OpenIncidents, inc)
		}
	}
	return snap
}
