package errors

import "fmt"

var (
	ErrEditWindowClosed  = fmt.Errorf("edit window has closed")
	ErrNotMessageOwner   = fmt.Errorf("message belongs to another participant")
	ErrMessageNotFound   = fmt.Errorf("message not found")
	ErrAlreadySubscribed = fmt.Errorf("group already has an active subscription")
	ErrNotSubscribed     = fmt.Errorf("group has no active subscription")
	ErrNoPendingDelete   = fmt.Errorf("no delete awaiting confirmation for this message")
	ErrPipelineClosed    = fmt.Errorf("command pipeline is closed")
	ErrUnknownEvent      = fmt.Errorf("unknown event name")
	ErrWorkerPanic       = fmt.Errorf("worker panic")
)
