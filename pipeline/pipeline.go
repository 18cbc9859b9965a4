// Package pipeline runs the staged DAG that carries raw source rows
// through staging and intermediate feeds into the marts. Stages launch in
// a fixed order; the nodes inside a stage run concurrently and the next
// stage waits for all of them (join barrier). A stage's output tables are
// committed to the store only after every node in the stage succeeds, so
// a failed run never clobbers the last good tables.
package pipeline

import (
	"fmt"
	"sync"

	"github.com/paracelsus/martpipe/logger"
	"github.com/paracelsus/martpipe/stats"
	"github.com/paracelsus/martpipe/table"
	"github.com/pkg/errors"
)

// Stage launch order. Every node belongs to exactly one stage.
const (
	StageLanding      = "landing"
	StageStaging      = "staging"
	StageIntermediate = "intermediate"
	StageMarts        = "marts"
)

// StageSequence is the fixed launch order of the stages.
var StageSequence = []string{StageLanding, StageStaging, StageIntermediate, StageMarts}

// StatsManager abstracts the run stats dumper so tests can supply a mock.
type StatsManager interface {
	StartDumping()
	StopDumping()
	AddStepWatcher(stepName string) *stats.StepWatcher
}

// BuildFunc produces one output table from the tables built by earlier
// stages, fetched via the Context.
type BuildFunc func(ctx *Context) (*table.Table, error)

// Node is one unit of work in the DAG: a named build with declared input
// tables, assigned to a stage.
type Node struct {
	Name   string   // output table name.
	Stage  string   // one of the Stage* constants.
	Inputs []string // tables this node reads, all built by earlier stages.
	Build  BuildFunc
}

// FatalStageError reports the stage that sank a run. Nothing from the
// failed stage (or any later stage) reaches the store.
type FatalStageError struct {
	Stage string
	Err   error
}

func (e *FatalStageError) Error() string {
	return fmt.Sprintf("stage %v failed: %v", e.Stage, e.Err)
}

func (e *FatalStageError) Unwrap() error {
	return e.Err
}

// Context carries the tables built so far in the current run, the logger
// and the stats manager into each node's build func.
type Context struct {
	Log   logger.Logger
	Stats StatsManager
	mu    sync.RWMutex
	built map[string]*table.Table
}

// Table fetches a table built by an earlier node of this run. A miss means
// the DAG declared an input that nothing built, which is fatal for the stage.
func (c *Context) Table(name string) (*table.Table, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.built[name]
	if !ok {
		return nil, errors.Errorf("table %q has not been built by an earlier stage", name)
	}
	return t, nil
}

func (c *Context) put(t *table.Table) {
	c.mu.Lock()
	c.built[t.Name] = t
	c.mu.Unlock()
}

// Pipeline is an ordered set of nodes plus the store that receives each
// stage's committed outputs.
type Pipeline struct {
	Log   logger.Logger
	Store *table.Store
	Stats StatsManager
	nodes []*Node
}

func New(log logger.Logger, store *table.Store, sm StatsManager) *Pipeline {
	return &Pipeline{Log: log, Store: store, Stats: sm, nodes: make([]*Node, 0)}
}

// AddNode registers a node. Panics on an unknown stage or a duplicate
// output name since both are wiring mistakes, not runtime conditions.
func (p *Pipeline) AddNode(n *Node) *Pipeline {
	if !validStage(n.Stage) {
		p.Log.Panic("node ", n.Name, " uses unknown stage ", n.Stage)
	}
	for _, existing := range p.nodes {
		if existing.Name == n.Name {
			p.Log.Panic("duplicate pipeline node ", n.Name)
		}
	}
	p.nodes = append(p.nodes, n)
	return p
}

func validStage(stage string) bool {
	for _, s := range StageSequence {
		if s == stage {
			return true
		}
	}
	return false
}

// nodeResult carries one node's outcome back over the stage's join barrier.
type nodeResult struct {
	node *Node
	tbl  *table.Table
	err  error
}

// Run executes the stages in sequence and returns per-table row counts.
// The first node failure (error or panic) fails its whole stage; committed
// tables from earlier stages are left as they were.
func (p *Pipeline) Run() (rowCounts map[string]int, err error) {
	rowCounts = make(map[string]int)
	ctx := &Context{Log: p.Log, Stats: p.Stats, built: make(map[string]*table.Table)}
	p.Stats.StartDumping()
	defer p.Stats.StopDumping()
	for _, stage := range StageSequence { // for each stage in launch order...
		stageNodes := p.stageNodes(stage)
		if len(stageNodes) == 0 {
			continue
		}
		p.Log.Info("Launching stage ", stage, " with ", len(stageNodes), " node(s)")
		outputs, stageErr := p.runStage(ctx, stage, stageNodes)
		if stageErr != nil { // if any node failed, the whole stage failed...
			p.Log.Error("Stage ", stage, " failed: ", stageErr)
			return nil, stageErr
		}
		for name, t := range outputs {
			rowCounts[name] = t.Len()
		}
		p.Store.Commit(outputs) // commit only once the whole stage succeeded.
		p.Log.Info("Stage ", stage, " complete, committed ", len(outputs), " table(s)")
	}
	return rowCounts, nil
}

// runStage executes one stage's nodes in dependency waves: every node
// whose declared inputs are already built runs concurrently, then the
// next wave launches. Inputs from earlier stages are available from the
// start; inputs built by same-stage siblings gate their consumers into a
// later wave.
func (p *Pipeline) runStage(ctx *Context, stage string, stageNodes []*Node) (map[string]*table.Table, error) {
	outputs := make(map[string]*table.Table, len(stageNodes))
	pending := append([]*Node{}, stageNodes...)
	for len(pending) > 0 { // until every node in the stage has run...
		wave := make([]*Node, 0, len(pending))
		rest := make([]*Node, 0)
		for _, n := range pending {
			if p.inputsReady(ctx, n) {
				wave = append(wave, n)
			} else {
				rest = append(rest, n)
			}
		}
		if len(wave) == 0 { // every remaining node is blocked...
			names := make([]string, 0, len(rest))
			for _, n := range rest {
				names = append(names, n.Name)
			}
			return nil, &FatalStageError{Stage: stage,
				Err: errors.Errorf("nodes %v wait on inputs that nothing builds", names)}
		}
		results := make(chan nodeResult, len(wave))
		var wg sync.WaitGroup
		for _, n := range wave { // launch the wave's nodes concurrently...
			wg.Add(1)
			go p.runNode(ctx, n, results, &wg)
		}
		wg.Wait() // join barrier - later waves and stages must not start early.
		close(results)
		var err error
		for res := range results {
			if res.err != nil {
				if err == nil { // keep the first failure...
					err = &FatalStageError{Stage: stage, Err: res.err}
				}
				continue
			}
			outputs[res.tbl.Name] = res.tbl
			ctx.put(res.tbl)
		}
		if err != nil {
			return nil, err
		}
		pending = rest
	}
	return outputs, nil
}

func (p *Pipeline) inputsReady(ctx *Context, n *Node) bool {
	for _, name := range n.Inputs {
		ctx.mu.RLock()
		_, ok := ctx.built[name]
		ctx.mu.RUnlock()
		if !ok {
			return false
		}
	}
	return true
}

// runNode executes one node, converting a panic from the node's component
// goroutine chain into a stage failure rather than sinking the process.
func (p *Pipeline) runNode(ctx *Context, n *Node, results chan<- nodeResult, wg *sync.WaitGroup) {
	defer wg.Done()
	defer func() {
		if r := recover(); r != nil { // if the build panicked...
			results <- nodeResult{node: n, err: errors.Errorf("node %v panicked: %v", n.Name, r)}
		}
	}()
	p.Log.Info("Building ", n.Name)
	tbl, err := n.Build(ctx)
	if err != nil {
		results <- nodeResult{node: n, err: errors.Wrapf(err, "node %v", n.Name)}
		return
	}
	if tbl == nil {
		results <- nodeResult{node: n, err: errors.Errorf("node %v produced no table", n.Name)}
		return
	}
	results <- nodeResult{node: n, tbl: tbl}
}

func (p *Pipeline) stageNodes(stage string) []*Node {
	retval := make([]*Node, 0)
	for _, n := range p.nodes {
		if n.Stage == stage {
			retval = append(retval, n)
		}
	}
	return retval
}
