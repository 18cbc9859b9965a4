package pipeline

import (
	"time"

	"github.com/rs/xid"

	"github.com/paracelsus/martpipe/logger"
)

// LaunchRun executes the pipeline, tracking its status in ri under a fresh
// run GUID which is returned. If blockUntilComplete is false the run
// proceeds in a goroutine and the caller polls ri for the outcome.
// The returned error is the run's FatalStageError when blocking, nil
// otherwise.
func LaunchRun(log logger.Logger, ri *SafeMapRunInfo, p *Pipeline, blockUntilComplete bool) (guid string, err error) {
	guid = xid.New().String()
	chanStatus := make(chan RunStatus, 1) // channel for us to receive status messages back from the run.
	ri.Store(guid, RunInfo{Status: RunStatus{Status: StatusStarting, StartTime: time.Now()}})
	// Launch a goroutine to consume status messages from the run, saving them to our instance of RunInfo.
	go ri.ConsumeRunStatusChanges(guid, chanStatus)
	log.Info("Launching run ", guid)
	runFn := func() error {
		chanStatus <- RunStatus{Status: StatusRunning}
		rowCounts, runErr := p.Run()
		if runErr != nil { // if a stage failed...
			status := RunStatus{Status: StatusFailed, Error: runErr.Error()}
			if fse, ok := runErr.(*FatalStageError); ok {
				status.FailedStage = fse.Stage
			}
			chanStatus <- status
			close(chanStatus)
			return runErr
		}
		// Save the row counts before the final status lands so pollers that
		// see "complete" also see the counts.
		info, _ := ri.Load(guid)
		info.RowCounts = rowCounts
		ri.Store(guid, info)
		chanStatus <- RunStatus{Status: StatusComplete}
		close(chanStatus)
		return nil
	}
	if blockUntilComplete {
		err = runFn()
	} else {
		go func() {
			_ = runFn() // the failure is recorded in ri for pollers.
		}()
	}
	return
}
