package tui

import (
	"time"

	"github.com/fyrsmithlabs/dbstudio/internal/api"
	"github.com/fyrsmithlabs/dbstudio/internal/notify"
	"github.com/fyrsmithlabs/dbstudio/internal/uploader"
)

// Messages for async operations. Each remote round-trip re-enters the
// update loop as exactly one of these.

// namesLoadedMsg is sent when the bulk database listing returns.
type namesLoadedMsg struct {
	Names []string
	Err   error
}

// detailsLoadedMsg is sent when a lazy detail fetch finishes. A fetch that
// completes after the user moved on still carries its own Name; the update
// loop only reacts visually if it matches the current selection.
type detailsLoadedMsg struct {
	Name string
	Took time.Duration
	Err  error
}

// credentialsSubmittedMsg is sent when a credential create/update returns.
type credentialsSubmittedMsg struct {
	Result api.CreateResult
	Err    error
}

// deleteFinishedMsg is sent when the remote delete returns. The local
// registry entry is already gone by then; Err is reported, never rolled
// back.
type deleteFinishedMsg struct {
	Name string
	Err  error
}

// uploadFinishedMsg is sent when the upload worker round-trip completes.
type uploadFinishedMsg struct {
	Result uploader.Result
}

// noteMsg carries one notification from the notification center.
type noteMsg notify.Notification
