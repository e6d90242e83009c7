package event

import (
	"time"

	"github.com/mediamirror/mediamirror/internal/classify"
)

// Type identifies the kind of event.
type Type int

const (
	WalkStarted   Type = iota + 1
	FileConverted      // transformed output committed
	FileCopied         // verbatim copy committed
	FileSkipped        // mirror target already exists
	FileExcluded       // matched an exclude pattern
	EncodeRetried      // hardware tier failed, software tier attempted
	VerifyOK
	VerifyFailed
	WalkComplete
)

var typeNames = [...]string{
	WalkStarted:   "WalkStarted",
	FileConverted: "FileConverted",
	FileCopied:    "FileCopied",
	FileSkipped:   "FileSkipped",
	FileExcluded:  "FileExcluded",
	EncodeRetried: "EncodeRetried",
	VerifyOK:      "VerifyOK",
	VerifyFailed:  "VerifyFailed",
	WalkComplete:  "WalkComplete",
}

func (t Type) String() string {
	if t > 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Unknown"
}

// CopyReason explains why a file was copied verbatim instead of converted.
type CopyReason int

const (
	CopyNone         CopyReason = iota
	CopyNotMedia                // classified Other, no strategy applies
	CopyRejected                // converted output not small enough to keep
	CopyEncodeFailed            // every encoder tier failed
)

var reasonNames = [...]string{
	CopyNone:         "",
	CopyNotMedia:     "not media",
	CopyRejected:     "converted output too large",
	CopyEncodeFailed: "encode failed",
}

func (r CopyReason) String() string {
	if int(r) < len(reasonNames) {
		return reasonNames[r]
	}
	return "unknown"
}

// Event is a single progress notification from the mirror pipeline.
type Event struct {
	Type      Type
	Timestamp time.Time
	Path      string // relative to the source root
	Kind      classify.Kind
	Reason    CopyReason // set on FileCopied
	OrigSize  int64
	NewSize   int64
	Err       error // soft diagnostic, e.g. the encoder failure behind a copy
}
