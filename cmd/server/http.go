package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"replenisher/internal/command"
	"replenisher/internal/host"
	"replenisher/internal/settings"
	"replenisher/internal/transport/ws"
)

const (
	adminTimeout   = 30 * time.Second
	defaultRunsTop = 20
	maxRunsTop     = 500
)

type serverAPI struct {
	host     *host.Host
	settings *settings.Provider
	idx      runtimeIndex
	log      *log.Logger

	// consoleToken, when set, opens /v1/ws to remote peers that present it.
	consoleToken string
}

func (a *serverAPI) register(mux *http.ServeMux, enableAdmin bool) {
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", a.handleMetrics)
	if enableAdmin {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/state", loopbackOnly(a.handleState))
		mux.HandleFunc("/admin/v1/replen", loopbackOnly(a.handleReplen))
		mux.HandleFunc("/admin/v1/reload", loopbackOnly(a.handleReload))
		mux.HandleFunc("/admin/v1/settings", loopbackOnly(a.handleSettings))
		mux.HandleFunc("/admin/v1/snapshot", loopbackOnly(a.handleSnapshot))
		mux.HandleFunc("/admin/v1/runs", loopbackOnly(a.handleRuns))
	}

	console := ws.NewServer(a.host, a.log, a.consoleToken).Handler()
	switch {
	case strings.TrimSpace(a.consoleToken) != "":
		mux.HandleFunc("/v1/ws", console)
	case enableAdmin:
		mux.HandleFunc("/v1/ws", loopbackOnly(console))
	}
}

func loopbackOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		next(rw, r)
	}
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func (a *serverAPI) handleState(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), adminTimeout)
	defer cancel()
	st, err := a.host.State(ctx)
	if err != nil {
		writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	writeJSON(rw, http.StatusOK, st)
}

type replenRequest struct {
	Kind    string `json:"kind"`
	Amount  int    `json:"amount"`
	Subtype string `json:"subtype,omitempty"`
}

func (q replenRequest) line() (string, error) {
	kind := strings.TrimSpace(q.Kind)
	sub := strings.TrimSpace(q.Subtype)
	if kind == "" || strings.ContainsAny(kind, " \t") || strings.ContainsAny(sub, " \t") {
		return "", fmt.Errorf("kind and subtype must be single words")
	}
	line := fmt.Sprintf("/%s %s %d", command.CmdReplen, kind, q.Amount)
	if sub != "" {
		line += " " + sub
	}
	return line, nil
}

func (a *serverAPI) handleReplen(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req replenRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&req); err != nil {
		writeJSON(rw, http.StatusBadRequest, map[string]any{"ok": false, "error": "invalid json"})
		return
	}
	line, err := req.line()
	if err != nil {
		writeJSON(rw, http.StatusBadRequest, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	a.exec(rw, r, line)
}

func (a *serverAPI) handleReload(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	a.exec(rw, r, "/"+command.CmdReload)
}

func (a *serverAPI) exec(rw http.ResponseWriter, r *http.Request, line string) {
	ctx, cancel := context.WithTimeout(r.Context(), adminTimeout)
	defer cancel()
	reply, err := a.host.Exec(ctx, line)
	if err != nil {
		writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	status := http.StatusOK
	if !reply.OK {
		status = http.StatusBadRequest
	}
	writeJSON(rw, status, reply)
}

// handleSettings reads (GET) or replaces (PUT) the whole settings document.
func (a *serverAPI) handleSettings(rw http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(rw, http.StatusOK, a.settings.Current())
	case http.MethodPut:
		var s settings.Settings
		if err := json.NewDecoder(io.LimitReader(r.Body, 64*1024)).Decode(&s); err != nil {
			writeJSON(rw, http.StatusBadRequest, map[string]any{"ok": false, "error": "invalid json"})
			return
		}
		if err := a.settings.Replace(s); err != nil {
			writeJSON(rw, http.StatusBadRequest, map[string]any{"ok": false, "error": err.Error()})
			return
		}
		a.log.Printf("settings replaced via admin api")
		writeJSON(rw, http.StatusOK, a.settings.Current())
	default:
		rw.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (a *serverAPI) handleSnapshot(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	runs, err := a.host.RequestSnapshot(ctx)
	if err != nil {
		writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "runs": runs, "error": err.Error()})
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "runs": runs})
}

func (a *serverAPI) handleRuns(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if a.idx == nil {
		writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": "run index disabled"})
		return
	}
	limit := defaultRunsTop
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(rw, http.StatusBadRequest, map[string]any{"ok": false, "error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxRunsTop)
	}
	rows, err := a.idx.RecentRuns(r.Context(), limit)
	if err != nil {
		writeJSON(rw, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "runs": rows})
}

func (a *serverAPI) handleMetrics(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
	worldID := a.host.WorldID()
	m := a.host.Metrics()

	// Minimal Prometheus exposition format.
	fmt.Fprintf(rw, "# HELP replenisher_runs_total Replenish runs by trigger.\n")
	fmt.Fprintf(rw, "# TYPE replenisher_runs_total counter\n")
	fmt.Fprintf(rw, "replenisher_runs_total{world=%q,trigger=%q} %d\n", worldID, "schedule", m.ScheduleRunsTotal)
	fmt.Fprintf(rw, "replenisher_runs_total{world=%q,trigger=%q} %d\n", worldID, "command", m.CommandRunsTotal)

	fmt.Fprintf(rw, "# HELP replenisher_attempts_total Placement attempts by outcome.\n")
	fmt.Fprintf(rw, "# TYPE replenisher_attempts_total counter\n")
	fmt.Fprintf(rw, "replenisher_attempts_total{world=%q,outcome=%q} %d\n", worldID, "placed", m.PlacedTotal)
	fmt.Fprintf(rw, "replenisher_attempts_total{world=%q,outcome=%q} %d\n", worldID, "blocked", m.BlockedTotal)
	fmt.Fprintf(rw, "replenisher_attempts_total{world=%q,outcome=%q} %d\n", worldID, "fault", m.FaultsTotal)
	fmt.Fprintf(rw, "replenisher_attempts_total{world=%q,outcome=%q} %d\n", worldID, "all", m.AttemptsTotal)

	fmt.Fprintf(rw, "# HELP replenisher_chests_swept_total Empty chests removed by sweeps.\n")
	fmt.Fprintf(rw, "# TYPE replenisher_chests_swept_total counter\n")
	fmt.Fprintf(rw, "replenisher_chests_swept_total{world=%q} %d\n", worldID, m.SweptTotal)

	fmt.Fprintf(rw, "# HELP replenisher_sink_errors_total Run record sink failures.\n")
	fmt.Fprintf(rw, "# TYPE replenisher_sink_errors_total counter\n")
	fmt.Fprintf(rw, "replenisher_sink_errors_total{world=%q} %d\n", worldID, m.SinkErrorsTotal)

	fmt.Fprintf(rw, "# HELP replenisher_exec_queue_depth Pending operator commands.\n")
	fmt.Fprintf(rw, "# TYPE replenisher_exec_queue_depth gauge\n")
	fmt.Fprintf(rw, "replenisher_exec_queue_depth{world=%q} %d\n", worldID, m.ExecQueueDepth)

	if a.idx == nil {
		return
	}
	s := a.idx.Stats()
	fmt.Fprintf(rw, "# HELP replenisher_index_queue_depth Run index write queue depth.\n")
	fmt.Fprintf(rw, "# TYPE replenisher_index_queue_depth gauge\n")
	fmt.Fprintf(rw, "replenisher_index_queue_depth{world=%q} %d\n", worldID, s.QueueDepth)

	fmt.Fprintf(rw, "# HELP replenisher_index_queue_capacity Run index write queue capacity.\n")
	fmt.Fprintf(rw, "# TYPE replenisher_index_queue_capacity gauge\n")
	fmt.Fprintf(rw, "replenisher_index_queue_capacity{world=%q} %d\n", worldID, s.QueueCapacity)

	fmt.Fprintf(rw, "# HELP replenisher_index_dropped_total Index writes dropped because the queue was full.\n")
	fmt.Fprintf(rw, "# TYPE replenisher_index_dropped_total counter\n")
	fmt.Fprintf(rw, "replenisher_index_dropped_total{world=%q,kind=%q} %d\n", worldID, "run", s.DropRunTotal)
	fmt.Fprintf(rw, "replenisher_index_dropped_total{world=%q,kind=%q} %d\n", worldID, "snapshot", s.DropSnapshotTotal)

	fmt.Fprintf(rw, "# HELP replenisher_index_written_runs_total Runs committed to the index.\n")
	fmt.Fprintf(rw, "# TYPE replenisher_index_written_runs_total counter\n")
	fmt.Fprintf(rw, "replenisher_index_written_runs_total{world=%q} %d\n", worldID, s.WrittenRunTotal)

	fmt.Fprintf(rw, "# HELP replenisher_index_write_errors_total Index write failures.\n")
	fmt.Fprintf(rw, "# TYPE replenisher_index_write_errors_total counter\n")
	fmt.Fprintf(rw, "replenisher_index_write_errors_total{world=%q} %d\n", worldID, s.WriteErrorTotal)
}
