package uploader

import (
	"encoding/json"
	"fmt"

	"github.com/fyrsmithlabs/dbstudio/internal/registry"
)

// Wire message types exchanged with the upload worker. This is the one
// bit-exact contract in the core: the envelope field names and type tags
// must not drift.
const (
	TypeUploadFile    = "UPLOAD_FILE"
	TypeUploadSuccess = "UPLOAD_SUCCESS"
	TypeUploadError   = "UPLOAD_ERROR"
)

// envelope is the raw worker message shape, both directions.
type envelope struct {
	Type   string             `json:"type"`
	Token  string             `json:"token,omitempty"`
	Files  []string           `json:"files,omitempty"`
	DBName string             `json:"dbName,omitempty"`
	DBInfo *registry.Metadata `json:"dbInfo,omitempty"`
	Error  string             `json:"error,omitempty"`
}

// Reply is the closed set of decoded worker replies.
type Reply interface{ isReply() }

// Succeeded reports a finished upload: the backend created (or replaced)
// a project and returned its full metadata.
type Succeeded struct {
	Name     string
	Metadata registry.Metadata
}

// Failed reports an upload error. Message may be empty; the dispatcher
// substitutes a default.
type Failed struct {
	Message string
}

// Unknown is the fallback for a message the dispatcher does not recognize.
// It is logged and dropped, never silently ignored.
type Unknown struct {
	Type string
}

func (Succeeded) isReply() {}
func (Failed) isReply()    {}
func (Unknown) isReply()   {}

// decodeReply parses a raw worker message into the Reply sum.
func decodeReply(raw []byte) (Reply, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("malformed worker message: %w", err)
	}
	switch env.Type {
	case TypeUploadSuccess:
		meta := registry.Metadata{}
		if env.DBInfo != nil {
			meta = *env.DBInfo
		}
		return Succeeded{Name: env.DBName, Metadata: meta}, nil
	case TypeUploadError:
		return Failed{Message: env.Error}, nil
	default:
		return Unknown{Type: env.Type}, nil
	}
}
