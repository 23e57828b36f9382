package server

import (
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/scheduler"
	"github.com/aristath/allocator/internal/server/response"
)

// CacheStats reports how many results are cached. *cache.Store satisfies it.
type CacheStats interface {
	Len() int
}

// JobRunner runs a job outside its schedule. *scheduler.Scheduler satisfies it.
type JobRunner interface {
	RunNow(job scheduler.Job) error
}

// EventsReporter is a job that keeps the rebalance events of its last
// successful run. *scheduler.RebalanceJob satisfies it.
type EventsReporter interface {
	LastEvents() []domain.RebalanceEvent
}

var _ EventsReporter = (*scheduler.RebalanceJob)(nil)

// SystemStatusResponse represents the system status payload
type SystemStatusResponse struct {
	Status        string   `json:"status"`
	Version       string   `json:"version"`
	Uptime        string   `json:"uptime"`
	Goroutines    int      `json:"goroutines"`
	CPUPercent    float64  `json:"cpu_percent"`
	MemoryPercent float64  `json:"memory_percent"`
	CacheEntries  int      `json:"cache_entries"`
	Jobs          []string `json:"jobs"`
}

// JobStatus describes one registered job.
type JobStatus struct {
	Name    string `json:"name"`
	Running bool   `json:"running"`
	LastRun string `json:"last_run,omitempty"`
	LastErr string `json:"last_error,omitempty"`
}

// SystemHandlers serves status and manual job triggers.
type SystemHandlers struct {
	log         zerolog.Logger
	startupTime time.Time
	cache       CacheStats
	runner      JobRunner

	mu     sync.Mutex
	jobs   map[string]scheduler.Job
	status map[string]*JobStatus
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(cache CacheStats, runner JobRunner, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		startupTime: time.Now(),
		cache:       cache,
		runner:      runner,
		jobs:        make(map[string]scheduler.Job),
		status:      make(map[string]*JobStatus),
	}
}

// AddJob makes a job available for manual triggering.
func (h *SystemHandlers) AddJob(job scheduler.Job) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.jobs[job.Name()] = job
	h.status[job.Name()] = &JobStatus{Name: job.Name()}
}

// RegisterRoutes registers the system routes
func (h *SystemHandlers) RegisterRoutes(r chi.Router) {
	r.Get("/system/status", h.HandleSystemStatus)
	r.Get("/jobs", h.HandleJobsStatus)
	r.Get("/jobs/{name}/events", h.HandleJobEvents)
	r.Post("/jobs/{name}/run", h.HandleTriggerJob)
}

// HandleSystemStatus returns process and host status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.getSystemStats()

	resp := SystemStatusResponse{
		Status:        "healthy",
		Version:       Version,
		Uptime:        time.Since(h.startupTime).Round(time.Second).String(),
		Goroutines:    runtime.NumGoroutine(),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		Jobs:          h.jobNames(),
	}
	if h.cache != nil {
		resp.CacheEntries = h.cache.Len()
	}

	response.Data(w, r, resp, h.log)
}

// HandleJobsStatus lists registered jobs and their last outcome
func (h *SystemHandlers) HandleJobsStatus(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	out := make([]JobStatus, 0, len(h.status))
	for _, st := range h.status {
		out = append(out, *st)
	}
	h.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	response.Data(w, r, out, h.log)
}

// HandleJobEvents returns the events of a job's last successful run
// GET /api/jobs/{name}/events
func (h *SystemHandlers) HandleJobEvents(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	h.mu.Lock()
	job, ok := h.jobs[name]
	h.mu.Unlock()
	if !ok {
		response.Write(w, r, http.StatusNotFound, response.ErrorBody{Error: fmt.Sprintf("unknown job %q", name)}, h.log)
		return
	}
	reporter, ok := job.(EventsReporter)
	if !ok {
		response.Write(w, r, http.StatusNotFound, response.ErrorBody{Error: fmt.Sprintf("job %q does not produce events", name)}, h.log)
		return
	}

	evs := reporter.LastEvents()
	if evs == nil {
		evs = []domain.RebalanceEvent{}
	}
	response.Data(w, r, evs, h.log)
}

// HandleTriggerJob starts a registered job in the background
// POST /api/jobs/{name}/run
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	h.mu.Lock()
	job, ok := h.jobs[name]
	st := h.status[name]
	running := ok && st.Running
	if ok && !running {
		st.Running = true
	}
	h.mu.Unlock()

	switch {
	case !ok:
		response.Write(w, r, http.StatusNotFound, response.ErrorBody{Error: fmt.Sprintf("unknown job %q", name)}, h.log)
		return
	case running:
		response.Write(w, r, http.StatusConflict, response.ErrorBody{Error: fmt.Sprintf("job %q is already running", name)}, h.log)
		return
	}

	run := job.Run
	if h.runner != nil {
		run = func() error { return h.runner.RunNow(job) }
	}

	h.log.Info().Str("job", name).Msg("Manual job triggered")
	go func() {
		h.finish(name, run())
	}()

	response.Write(w, r, http.StatusAccepted, map[string]string{
		"status": "started",
		"job":    name,
	}, h.log)
}

func (h *SystemHandlers) finish(name string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	st := h.status[name]
	st.Running = false
	st.LastRun = time.Now().Format(time.RFC3339)
	st.LastErr = ""
	if err != nil {
		st.LastErr = err.Error()
	}
}

func (h *SystemHandlers) jobNames() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, 0, len(h.jobs))
	for name := range h.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// getSystemStats returns CPU and RAM usage percentages. The CPU sample
// blocks for 100ms.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}
