package pipeline

import (
	"sync"
	"time"
)

// RunInfo is what the API surfaces about one run: its status plus the
// per-table row counts captured when it completed.
type RunInfo struct {
	Status    RunStatus      `json:"runStatus"`
	RowCounts map[string]int `json:"rowCounts,omitempty"`
}

// SafeMapRunInfo wraps map[string]RunInfo with locking, via Load() and
// Store() methods. Keyed by run GUID.
type SafeMapRunInfo struct {
	sync.RWMutex
	Internal map[string]RunInfo
}

func NewSafeMapRunInfo() *SafeMapRunInfo {
	ri := SafeMapRunInfo{}
	ri.Internal = make(map[string]RunInfo)
	return &ri
}

func (r *SafeMapRunInfo) Load(key string) (ri RunInfo, ok bool) {
	r.RLock()
	ri, ok = r.Internal[key]
	r.RUnlock()
	return
}

func (r *SafeMapRunInfo) Store(key string, value RunInfo) {
	r.Lock()
	r.Internal[key] = value
	r.Unlock()
}

func (r *SafeMapRunInfo) Delete(key string) {
	r.Lock()
	delete(r.Internal, key)
	r.Unlock()
}

// Guids returns the known run GUIDs, unordered.
func (r *SafeMapRunInfo) Guids() []string {
	r.RLock()
	defer r.RUnlock()
	retval := make([]string, 0, len(r.Internal))
	for k := range r.Internal {
		retval = append(retval, k)
	}
	return retval
}

// ConsumeRunStatusChanges loops until chanStatus is closed and updates
// r.Internal[runGuid] with any statuses received.
func (r *SafeMapRunInfo) ConsumeRunStatusChanges(runGuid string, chanStatus chan RunStatus) {
	for status := range chanStatus {
		ri, _ := r.Load(runGuid)
		switch status.Status {
		case StatusRunning:
			ri.Status.Status = status.Status
			ri.Status.StartTime = time.Now()
		case StatusComplete:
			ri.Status.Status = status.Status
			ri.Status.EndTime = time.Now()
		case StatusFailed:
			ri.Status.Status = status.Status
			ri.Status.EndTime = time.Now()
			ri.Status.FailedStage = status.FailedStage
			ri.Status.Error = status.Error
		}
		r.Store(runGuid, ri)
	}
}
