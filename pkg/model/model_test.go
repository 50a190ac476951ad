package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTask_AttemptDefaultsToOne(t *testing.T) {
	var task Task
	require.NoError(t, json.Unmarshal([]byte(`{"id":"x","type":"campaign.stats","payload":{"campaign_id":3}}`), &task))
	assert.Equal(t, 1, task.CurrentAttempt())

	next := task.Retry(time.Time{})
	assert.Equal(t, 2, next.Attempt)
	assert.NotEqual(t, task.ID, next.ID)
	assert.Equal(t, task.Type, next.Type)

	var ref CampaignRef
	require.NoError(t, next.Decode(&ref))
	assert.Equal(t, int64(3), ref.CampaignID)
}

func TestTask_RetryKeepsPayload(t *testing.T) {
	task, err := NewTask(TaskListModify, ListModification{
		SegmentID:     9,
		Additions:     map[string]int64{"a@x.io": 1},
		RemovalEmails: []string{"b@x.io"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, task.Attempt)

	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	retry := task.Retry(at).Retry(at)
	assert.Equal(t, 3, retry.Attempt)
	assert.True(t, retry.NotBefore.Equal(at))

	var mod ListModification
	require.NoError(t, retry.Decode(&mod))
	assert.Equal(t, int64(9), mod.SegmentID)
	assert.Equal(t, []string{"b@x.io"}, mod.RemovalEmails)
}

func TestTask_DecodeEmpty(t *testing.T) {
	task := Task{Type: TaskCampaignStats}
	var ref CampaignRef
	require.Error(t, task.Decode(&ref))
}
