package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildEnqueued_ImplementsEvent(t *testing.T) {
	var e Event = &BuildEnqueued{
		Job:       &BuildJob{ID: "test"},
		Timestamp: time.Now(),
	}
	assert.NotNil(t, e)
}

func TestBuildClaimed_ImplementsEvent(t *testing.T) {
	var e Event = &BuildClaimed{
		Job:       &BuildJob{ID: "test"},
		WorkerID:  "worker-1",
		Reclaimed: true,
		Timestamp: time.Now(),
	}
	assert.NotNil(t, e)
}

func TestBuildSucceeded_ImplementsEvent(t *testing.T) {
	var e Event = &BuildSucceeded{
		Job:       &BuildJob{ID: "test"},
		Timestamp: time.Now(),
	}
	assert.NotNil(t, e)
}

func TestBuildFailed_ImplementsEvent(t *testing.T) {
	var e Event = &BuildFailed{
		Job:       &BuildJob{ID: "test"},
		Error:     "gradle exited with status 1",
		Timestamp: time.Now(),
	}
	assert.NotNil(t, e)
}

func TestBuildRequeued_ImplementsEvent(t *testing.T) {
	var e Event = &BuildRequeued{
		Job:       &BuildJob{ID: "test"},
		Timestamp: time.Now(),
	}
	assert.NotNil(t, e)
}

func TestLeasesSwept_ImplementsEvent(t *testing.T) {
	var e Event = &LeasesSwept{
		Count:     3,
		Timestamp: time.Now(),
	}
	assert.NotNil(t, e)
}
