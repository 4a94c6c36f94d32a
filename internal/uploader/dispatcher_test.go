package uploader

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fyrsmithlabs/dbstudio/internal/api"
	"github.com/fyrsmithlabs/dbstudio/internal/logging"
	"github.com/fyrsmithlabs/dbstudio/internal/notify"
	"github.com/fyrsmithlabs/dbstudio/internal/registry"
	"github.com/fyrsmithlabs/dbstudio/internal/selection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

type fakeUploader struct {
	calls  int32
	result api.CreateResult
	err    error
	block  chan struct{}
}

func (f *fakeUploader) UploadFiles(ctx context.Context, paths []string) (api.CreateResult, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.block != nil {
		<-f.block
	}
	return f.result, f.err
}

type fixture struct {
	reg   *registry.Registry
	sel   *selection.Controller
	notes *notify.Center
	disp  *Dispatcher
}

func newFixture(t *testing.T, up Uploader) *fixture {
	t.Helper()
	f := &fixture{}
	f.reg = registry.New(nil, nil, nil)
	f.sel = selection.NewController(f.reg, nil, nil)
	f.notes = notify.NewCenter(nil)
	f.disp = NewDispatcher(Options{
		Uploader:  up,
		Registry:  f.reg,
		Selection: f.sel,
		Notify:    f.notes,
		Token:     "tok",
	})
	t.Cleanup(f.disp.Close)
	return f
}

func boolPtr(b bool) *bool { return &b }

func TestDispatchSuccess(t *testing.T) {
	up := &fakeUploader{result: api.CreateResult{
		Name: "new_proj",
		Metadata: registry.Metadata{
			Tables:             []registry.Table{{Name: "t1"}},
			ColumnDescriptions: []registry.ColumnDescription{{Description: "x"}},
			CanConnect:         boolPtr(true),
		},
	}}
	f := newFixture(t, up)
	f.sel.SelectNewProject()

	require.NoError(t, f.disp.Dispatch([]string{"a.csv", "b.csv"}))

	res := <-f.disp.Done()
	require.NoError(t, res.Err)
	assert.Equal(t, "new_proj", res.Name)

	meta, ok := f.reg.Get("new_proj")
	require.True(t, ok)
	assert.Equal(t, registry.Full, meta.DetailLevel)
	assert.True(t, f.sel.Current().IsExisting("new_proj"))
	assert.False(t, f.disp.Busy())

	n := <-f.notes.C()
	assert.Equal(t, notify.Success, n.Level)
	assert.Contains(t, n.Text, "new_proj")
}

func TestDispatchErrorLeavesRegistryUntouched(t *testing.T) {
	up := &fakeUploader{err: errors.New("bad format")}
	f := newFixture(t, up)

	require.NoError(t, f.disp.Dispatch([]string{"a.csv", "b.csv"}))

	res := <-f.disp.Done()
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "bad format")

	assert.Equal(t, 0, f.reg.Len())
	assert.False(t, f.disp.Busy())

	n := <-f.notes.C()
	assert.Equal(t, notify.Error, n.Level)
	assert.Equal(t, "bad format", n.Text)
}

func TestSecondDispatchWhileBusyRejected(t *testing.T) {
	up := &fakeUploader{block: make(chan struct{})}
	f := newFixture(t, up)

	require.NoError(t, f.disp.Dispatch([]string{"a.csv"}))
	require.Eventually(t, f.disp.Busy, time.Second, time.Millisecond)

	err := f.disp.Dispatch([]string{"b.csv"})
	require.ErrorIs(t, err, ErrUploadBusy)
	assert.EqualValues(t, 1, atomic.LoadInt32(&up.calls))

	close(up.block)
	<-f.disp.Done()

	// Once idle, dispatching works again.
	up.block = nil
	require.NoError(t, f.disp.Dispatch([]string{"b.csv"}))
	<-f.disp.Done()
	assert.EqualValues(t, 2, atomic.LoadInt32(&up.calls))
}

func TestDispatchEmptyRejected(t *testing.T) {
	f := newFixture(t, &fakeUploader{})
	assert.Error(t, f.disp.Dispatch(nil))
}

func TestDispatchAfterCloseRejected(t *testing.T) {
	f := newFixture(t, &fakeUploader{})
	f.disp.Close()
	assert.ErrorIs(t, f.disp.Dispatch([]string{"a.csv"}), ErrClosed)
}

func TestCloseIdempotentAndWaitsForInFlight(t *testing.T) {
	up := &fakeUploader{block: make(chan struct{}), result: api.CreateResult{Name: "p"}}
	f := newFixture(t, up)

	require.NoError(t, f.disp.Dispatch([]string{"a.csv"}))

	go func() {
		time.Sleep(10 * time.Millisecond)
		close(up.block)
	}()
	f.disp.Close()
	f.disp.Close()

	// The in-flight upload still landed.
	assert.True(t, f.reg.Has("p"))
}

func TestDecodeReply(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Reply
	}{
		{
			name: "success",
			raw:  `{"type":"UPLOAD_SUCCESS","dbName":"p","dbInfo":{"db_name":"p"}}`,
			want: Succeeded{Name: "p", Metadata: registry.Metadata{Name: "p"}},
		},
		{
			name: "error with message",
			raw:  `{"type":"UPLOAD_ERROR","error":"bad format"}`,
			want: Failed{Message: "bad format"},
		},
		{
			name: "error without message",
			raw:  `{"type":"UPLOAD_ERROR"}`,
			want: Failed{},
		},
		{
			name: "unknown type",
			raw:  `{"type":"UPLOAD_PROGRESS"}`,
			want: Unknown{Type: "UPLOAD_PROGRESS"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeReply([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := decodeReply([]byte(`{not json`))
	assert.Error(t, err)
}

func TestRequestEnvelopeShape(t *testing.T) {
	raw, err := json.Marshal(envelope{
		Type:  TypeUploadFile,
		Token: "tok",
		Files: []string{"a.csv"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"UPLOAD_FILE","token":"tok","files":["a.csv"]}`, string(raw))
}

func TestUnknownWorkerMessageLoggedNotFatal(t *testing.T) {
	tl := logging.NewTestLogger()
	up := &fakeUploader{result: api.CreateResult{Name: "p"}}
	f := &fixture{}
	f.reg = registry.New(nil, nil, nil)
	f.sel = selection.NewController(f.reg, nil, nil)
	f.notes = notify.NewCenter(nil)
	f.disp = NewDispatcher(Options{
		Uploader:  up,
		Registry:  f.reg,
		Selection: f.sel,
		Notify:    f.notes,
		Logger:    tl.Logger,
	})
	t.Cleanup(f.disp.Close)

	require.NoError(t, f.disp.Dispatch([]string{"a.csv"}))
	<-f.disp.Done()

	// Inject an unrecognized message while idle; it must be logged and
	// dropped without clearing state or crashing the loop.
	f.disp.replies <- []byte(`{"type":"UPLOAD_PROGRESS"}`)

	require.Eventually(t, func() bool {
		return len(tl.FilterMessage("unknown worker message").All()) == 1
	}, time.Second, time.Millisecond)
	tl.AssertLogged(t, zapcore.WarnLevel, "unknown worker message")
}
