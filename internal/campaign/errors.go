package campaign

import (
	"errors"
	"fmt"
)

var (
	ErrCampaignNotFound = errors.New("campaign: not found")
	ErrInvalidCampaign  = errors.New("campaign: invalid")
)

// CheckpointError reports checkpoints of a stored campaign that could not
// all be queued. It is temporary: running the task again re-plans them.
type CheckpointError struct {
	CampaignID int64
	Err        error
}

func (e *CheckpointError) Error() string {
	return fmt.Sprintf("schedule checkpoints of campaign %d: %v", e.CampaignID, e.Err)
}

func (e *CheckpointError) Unwrap() error   { return e.Err }
func (e *CheckpointError) Temporary() bool { return true }
