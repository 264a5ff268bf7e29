package show

import (
	"time"

	"github.com/robmorgan/lightplan/chat"
	"github.com/robmorgan/lightplan/cuelist"
)

// Update is a notification for the front end. It is one of RunUpdate or ChatUpdate.
type Update interface {
	isUpdate()
}

// RunUpdate carries an event of the run identified by RunID.
type RunUpdate struct {
	RunID string
	Event cuelist.Event
}

// ChatUpdate carries a chat connection event.
type ChatUpdate struct {
	Event chat.Event
	// Attempt counts consecutive connection attempts that did not stay joined.
	Attempt int
	// Retrying is set when the host will reconnect on its own after RetryIn.
	Retrying bool
	RetryIn  time.Duration
}

func (RunUpdate) isUpdate()  {}
func (ChatUpdate) isUpdate() {}
