package server

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/paracelsus/martpipe/components"
	"github.com/paracelsus/martpipe/helper"
	"github.com/paracelsus/martpipe/logger"
	"github.com/paracelsus/martpipe/pipeline"
	"github.com/paracelsus/martpipe/stream"
	"github.com/paracelsus/martpipe/table"
)

type WebServerResponse uint32

const (
	Okay WebServerResponse = iota + 1
	Error
)

func (w WebServerResponse) MarshalJSON() ([]byte, error) {
	var retval string
	switch w {
	case Okay:
		retval = "ok"
	case Error:
		retval = "error"
	default:
		err := fmt.Errorf("unhandled WebServerResponse value in MarshalJSON() conversion")
		return nil, err
	}
	return json.Marshal(retval)
}

type ResponseSimple struct {
	ServerStatus WebServerResponse `json:"status"`
}

type ResponseRunLaunch struct {
	Status  WebServerResponse `json:"status"`
	Message string            `json:"message"`
	RunId   string            `json:"runId"`
}

type ResponseRunList struct {
	Status  WebServerResponse `json:"status"`
	RunList []RunListItem     `json:"runs"`
}

type RunListItem struct {
	RunId     string          `json:"runId"`
	RunStatus pipeline.Status `json:"runStatus"`
}

type ResponseRunStatus struct {
	Status  WebServerResponse `json:"status"`
	Message string            `json:"message"`
	RunInfo pipeline.RunInfo  `json:"runInfo"`
}

type ResponseMartRows struct {
	Status  WebServerResponse        `json:"status"`
	Message string                   `json:"message"`
	Table   string                   `json:"table"`
	Count   int                      `json:"count"`
	Rows    []map[string]interface{} `json:"rows"`
}

// QueryRequest is the body of a mart query: a JSON Logic rule applied to
// each row, plus the same limit/order controls as the plain rows endpoint.
type QueryRequest struct {
	Rule  json.RawMessage `json:"rule"`
	Limit int             `json:"limit"`
	Order string          `json:"order"`
}

func GetHandlerHealth(log logger.Logger) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		respond(log, w, ResponseSimple{ServerStatus: Okay})
	}
}

func GetHandlerStopServer(log logger.Logger, chanStop chan string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		chanStop <- "stop"
		log.Info("Stop signal sent")
		respond(log, w, ResponseSimple{ServerStatus: Okay})
	}
}

// GetHandlerRunLaunch builds a fresh pipeline and launches it without
// blocking. The caller polls /runs/{runId}/status for the outcome.
func GetHandlerRunLaunch(log logger.Logger, allRunInfo *pipeline.SafeMapRunInfo, newPipeline PipelineFn) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := newPipeline()
		if err != nil {
			log.Error(err)
			w.WriteHeader(http.StatusInternalServerError)
			respond(log, w, ResponseRunLaunch{Status: Error, Message: fmt.Sprintf("error building pipeline: %v", err)})
			return
		}
		guid, _ := pipeline.LaunchRun(log, allRunInfo, p, false)
		w.WriteHeader(http.StatusOK)
		respond(log, w, ResponseRunLaunch{Status: Okay, Message: "run launched", RunId: guid})
	}
}

func GetHandlerRunList(log logger.Logger, allRunInfo *pipeline.SafeMapRunInfo) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		// Get a list of all run IDs.
		runs := make([]RunListItem, 0, len(allRunInfo.Internal))
		allRunInfo.RLock()
		for runId, v := range allRunInfo.Internal { // for each registered run key...
			runs = append(runs, RunListItem{RunId: runId, RunStatus: v.Status.Status})
		}
		allRunInfo.RUnlock()
		sort.Slice(runs, func(i, j int) bool { return runs[i].RunId < runs[j].RunId })
		w.WriteHeader(http.StatusOK)
		respond(log, w, ResponseRunList{Status: Okay, RunList: runs})
	}
}

func GetHandlerRunStatus(log logger.Logger, allRunInfo *pipeline.SafeMapRunInfo) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		id := vars["runId"]
		ri, ok := allRunInfo.Load(id)
		if ok { // if the run exists...
			w.WriteHeader(http.StatusOK)
			respond(log, w, ResponseRunStatus{Status: Okay, RunInfo: ri})
		} else { // else the run doesn't exist...
			w.WriteHeader(http.StatusBadRequest)
			log.Info("HTTP request for status of run ", id, " that doesn't exist.")
			respond(log, w, ResponseRunStatus{Status: Error, Message: fmt.Sprintf("run %v does not exist", id)})
		}
	}
}

// GetHandlerMartRows serves the committed rows of one mart table. Query
// params: limit caps the row count; order names a column to sort by,
// descending.
func GetHandlerMartRows(log logger.Logger, store *table.Store) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		name := vars["table"]
		t, err := store.Get(name)
		if err != nil {
			w.WriteHeader(http.StatusNotFound)
			log.Info("HTTP request for mart table ", name, " that doesn't exist.")
			respond(log, w, ResponseMartRows{Status: Error, Message: err.Error(), Table: name})
			return
		}
		limit, err := parseLimit(r.URL.Query().Get("limit"))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			respond(log, w, ResponseMartRows{Status: Error, Message: err.Error(), Table: name})
			return
		}
		rows := rowMaps(log, t.Rows, r.URL.Query().Get("order"), limit)
		w.WriteHeader(http.StatusOK)
		respond(log, w, ResponseMartRows{Status: Okay, Table: name, Count: len(rows), Rows: rows})
	}
}

// GetHandlerMartQuery filters one mart table's committed rows through the
// JSON Logic rule in the request body.
func GetHandlerMartQuery(log logger.Logger, store *table.Store) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		name := vars["table"]
		t, err := store.Get(name)
		if err != nil {
			w.WriteHeader(http.StatusNotFound)
			respond(log, w, ResponseMartRows{Status: Error, Message: err.Error(), Table: name})
			return
		}
		b, _ := ioutil.ReadAll(r.Body)
		q := QueryRequest{}
		if err := json.Unmarshal(b, &q); err != nil {
			logAndRespond(log, err, w,
				ResponseMartRows{Status: Error, Message: fmt.Sprintf("error unmarshalling JSON: %v", err), Table: name})
			return
		}
		rule := string(q.Rule)
		if err := components.ValidateJsonLogic(rule); err != nil {
			logAndRespond(log, err, w,
				ResponseMartRows{Status: Error, Message: fmt.Sprintf("invalid rule supplied: %v", err), Table: name})
			return
		}
		matched := make([]stream.Record, 0)
		for _, rec := range t.Rows {
			ok, err := components.JsonLogicMatches(rec, rule)
			if err != nil {
				logAndRespond(log, err, w,
					ResponseMartRows{Status: Error, Message: fmt.Sprintf("error applying rule: %v", err), Table: name})
				return
			}
			if ok {
				matched = append(matched, rec)
			}
		}
		rows := rowMaps(log, matched, q.Order, q.Limit)
		w.WriteHeader(http.StatusOK)
		respond(log, w, ResponseMartRows{Status: Okay, Table: name, Count: len(rows), Rows: rows})
	}
}

func parseLimit(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(s)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("bad limit %q, want a non-negative integer", s)
	}
	return limit, nil
}

// rowMaps converts records to JSON-ready maps, sorted descending by
// orderField if one is given, capped at limit rows when limit > 0.
func rowMaps(log logger.Logger, recs []stream.Record, orderField string, limit int) []map[string]interface{} {
	out := append([]stream.Record{}, recs...)
	if orderField != "" {
		sort.SliceStable(out, func(i, j int) bool {
			a, _ := out[i].GetDataOk(orderField)
			b, _ := out[j].GetDataOk(orderField)
			return valueLess(log, b, a) // descending.
		})
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	rows := make([]map[string]interface{}, 0, len(out))
	for _, rec := range out {
		rows = append(rows, rec.GetDataMap())
	}
	return rows
}

// valueLess orders the mixed column types the marts carry. Numbers sort
// numerically across int64/float64, times chronologically and everything
// else by its string rendering; nils sort first.
func valueLess(log logger.Logger, a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b != nil
	}
	af, aNum := asFloat(a)
	bf, bNum := asFloat(b)
	if aNum && bNum {
		return af < bf
	}
	at, aTime := a.(time.Time)
	bt, bTime := b.(time.Time)
	if aTime && bTime {
		return at.Before(bt)
	}
	return helper.GetStringFromInterfaceUseUtcTime(log, a) < helper.GetStringFromInterfaceUseUtcTime(log, b)
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// logAndRespond will log the error, write a http.StatusBadRequest and r to w.
func logAndRespond(log logger.Logger, err error, w http.ResponseWriter, r interface{}) {
	log.Error(err)
	w.WriteHeader(http.StatusBadRequest)
	respond(log, w, r)
}

// respond will marshal i to a string and write it to w.
func respond(log logger.Logger, w http.ResponseWriter, i interface{}) {
	j, err := json.MarshalIndent(i, "", "  ")
	if err != nil {
		log.Panic(err)
	}
	_, err = fmt.Fprint(w, string(j))
	if err != nil {
		log.Panic(err)
	}
}
