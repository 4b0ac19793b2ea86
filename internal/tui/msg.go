package tui

import "github.com/vilaca/triage-dashboard/internal/triage"

// MsgPolled is sent when a poll finishes, successfully or not.
type MsgPolled struct {
	Result triage.Result
}

// MsgExported is sent when a CSV export finishes.
type MsgExported struct {
	Path string
	Err  error
}
