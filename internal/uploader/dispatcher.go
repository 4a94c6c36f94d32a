// Package uploader owns the background file-upload worker.
//
// File parsing and upload are heavy enough to freeze an interactive UI, so
// they run on a single long-lived worker goroutine. The worker boundary is
// the concurrency primitive: exactly one upload in flight, no queue, no
// cancellation once dispatched. Requests and replies cross the boundary as
// JSON envelopes (see messages.go) so the wire contract stays explicit.
package uploader

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/fyrsmithlabs/dbstudio/internal/api"
	"github.com/fyrsmithlabs/dbstudio/internal/logging"
	"github.com/fyrsmithlabs/dbstudio/internal/notify"
	"github.com/fyrsmithlabs/dbstudio/internal/registry"
	"github.com/fyrsmithlabs/dbstudio/internal/selection"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// defaultErrorText is shown when the worker reports a failure without a
// message.
const defaultErrorText = "File upload failed. Please try again."

// Errors for dispatch operations.
var (
	// ErrUploadBusy rejects a second dispatch while one is in flight.
	// The UI disables the trigger while busy; this enforces it anyway.
	ErrUploadBusy = errors.New("an upload is already in progress")
	// ErrClosed rejects dispatches after teardown.
	ErrClosed = errors.New("upload dispatcher is closed")
)

// Uploader performs the actual file upload. Implemented by api.Client.
type Uploader interface {
	UploadFiles(ctx context.Context, paths []string) (api.CreateResult, error)
}

// Metrics receives upload instrumentation. Implemented by telemetry.
type Metrics interface {
	ObserveUpload(status string)
}

type nopMetrics struct{}

func (nopMetrics) ObserveUpload(string) {}

// Result tells the UI an upload round-trip finished. Err is nil on
// success, in which case Name holds the created project.
type Result struct {
	Name string
	Err  error
}

// task is one dispatch round-trip, ephemeral by design.
type task struct {
	id          string
	raw         []byte // UPLOAD_FILE envelope
	paths       []string
	submittedAt time.Time
}

// Dispatcher forwards upload requests to the worker and reconciles its
// replies into the registry, selection, and notifications.
type Dispatcher struct {
	uploader Uploader
	reg      *registry.Registry
	sel      *selection.Controller
	notes    *notify.Center
	log      *logging.Logger
	metrics  Metrics
	token    string

	mu      sync.Mutex
	busy    bool
	started bool
	closed  bool

	requests chan task
	replies  chan []byte
	done     chan Result
	wg       sync.WaitGroup
}

// Options wires the dispatcher's collaborators. Logger and Metrics may be
// nil.
type Options struct {
	Uploader  Uploader
	Registry  *registry.Registry
	Selection *selection.Controller
	Notify    *notify.Center
	Logger    *logging.Logger
	Metrics   Metrics
	Token     string
}

// NewDispatcher creates a dispatcher. The worker goroutine is not started
// until the first Dispatch.
func NewDispatcher(opts Options) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Dispatcher{
		uploader: opts.Uploader,
		reg:      opts.Registry,
		sel:      opts.Selection,
		notes:    opts.Notify,
		log:      logger.Named("uploader"),
		metrics:  metrics,
		token:    opts.Token,
		requests: make(chan task, 1),
		replies:  make(chan []byte, 1),
		done:     make(chan Result, 1),
	}
}

// BindSelection attaches the selection controller when it is built after
// the dispatcher (the TUI creates its own controller). Call before the
// first Dispatch.
func (d *Dispatcher) BindSelection(sel *selection.Controller) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sel = sel
}

// Busy reports whether an upload round-trip is in flight.
func (d *Dispatcher) Busy() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.busy
}

// Done delivers one Result per finished round-trip. The TUI waits on it to
// refresh after an upload.
func (d *Dispatcher) Done() <-chan Result {
	return d.done
}

// Dispatch sends paths to the worker. It returns immediately: the caller
// learns the outcome through Done and the notification center. Only one
// upload may be outstanding; a second dispatch returns ErrUploadBusy.
func (d *Dispatcher) Dispatch(paths []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}
	if d.busy {
		return ErrUploadBusy
	}
	if len(paths) == 0 {
		return errors.New("no files to upload")
	}

	// Worker is a lazily created process-wide resource.
	if !d.started {
		d.started = true
		d.wg.Add(2)
		go d.workerLoop()
		go d.receiveLoop()
	}

	t := task{
		id:          uuid.New().String(),
		paths:       paths,
		submittedAt: time.Now(),
	}
	raw, err := json.Marshal(envelope{
		Type:  TypeUploadFile,
		Token: d.token,
		Files: paths,
	})
	if err != nil {
		return err
	}
	t.raw = raw

	d.busy = true
	d.requests <- t
	d.log.Debug(context.Background(), "upload dispatched",
		zap.String("task", t.id), zap.Int("files", len(paths)))
	return nil
}

// Close terminates the worker after any in-flight upload completes.
// Idempotent. Uploads cannot be cancelled once dispatched.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	started := d.started
	d.mu.Unlock()

	close(d.requests)
	if started {
		d.wg.Wait()
	} else {
		close(d.replies)
	}
}

// workerLoop is the background worker: it performs uploads one at a time
// and posts a reply envelope for each request. It never touches the
// registry; reconciliation happens on the receive side.
func (d *Dispatcher) workerLoop() {
	defer d.wg.Done()
	defer close(d.replies)

	for t := range d.requests {
		var req envelope
		if err := json.Unmarshal(t.raw, &req); err != nil || req.Type != TypeUploadFile {
			d.replies <- mustMarshal(envelope{Type: TypeUploadError, Error: "malformed upload request"})
			continue
		}

		ctx := logging.WithRequestID(context.Background(), t.id)
		result, err := d.uploader.UploadFiles(ctx, req.Files)
		if err != nil {
			d.replies <- mustMarshal(envelope{Type: TypeUploadError, Error: err.Error()})
			continue
		}
		meta := result.Metadata
		d.replies <- mustMarshal(envelope{
			Type:   TypeUploadSuccess,
			DBName: result.Name,
			DBInfo: &meta,
		})
	}
}

// receiveLoop plays the main-context message handler: it decodes worker
// replies, applies registry and selection mutations, and emits
// notifications. All registry writes for uploads happen here.
func (d *Dispatcher) receiveLoop() {
	defer d.wg.Done()

	for raw := range d.replies {
		reply, err := decodeReply(raw)
		if err != nil {
			d.log.Error(context.Background(), "dropping worker message", zap.Error(err))
			d.finish(Result{Err: err})
			continue
		}

		switch r := reply.(type) {
		case Succeeded:
			d.reg.Upsert(r.Name, r.Metadata)
			if d.sel != nil {
				d.sel.Created(r.Name)
			}
			d.metrics.ObserveUpload("success")
			d.notes.Successf("Project " + r.Name + " created from uploaded files")
			d.finish(Result{Name: r.Name})

		case Failed:
			msg := r.Message
			if msg == "" {
				msg = defaultErrorText
			}
			d.metrics.ObserveUpload("error")
			d.notes.Errorf(msg)
			d.finish(Result{Err: errors.New(msg)})

		case Unknown:
			// Not a round-trip terminator: log, drop, keep waiting.
			d.log.Warn(context.Background(), "unknown worker message",
				zap.String("type", r.Type))
		}
	}
}

// finish clears the busy flag and wakes the UI.
func (d *Dispatcher) finish(res Result) {
	d.mu.Lock()
	d.busy = false
	d.mu.Unlock()

	select {
	case d.done <- res:
	default:
	}
}

func mustMarshal(env envelope) []byte {
	raw, err := json.Marshal(env)
	if err != nil {
		// envelope contains only marshalable fields
		panic(err)
	}
	return raw
}
