package transition

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/pawbridge/console-backend/internal/realtimedb"
	"github.com/pawbridge/console-backend/internal/utils/errors"
	"github.com/stretchr/testify/assert"
)

var application = Machine{
	Name: "application",
	Edges: map[string][]string{
		"pending": {"approved", "rejected"},
	},
	Normalize: func(stored string) string {
		s := strings.ToLower(strings.TrimSpace(stored))
		if s == "" {
			return "pending"
		}
		return s
	},
}

func TestCheck(t *testing.T) {
	assert.Nil(t, application.Check("", "approved"))
	assert.Nil(t, application.Check("PENDING", "rejected"))
	assert.Equal(t, &errors.FailedPreconditionError{Msg: "application is already approved"}, application.Check("approved", "rejected"))
	assert.Equal(t, &errors.FailedPreconditionError{Msg: "application cannot move from pending to pending"}, application.Check("", "pending"))
	assert.True(t, application.Terminal("rejected"))
	assert.Equal(t, []string{"approved", "rejected"}, application.Allowed(""))
}

func TestApplyIsMonotonic(t *testing.T) {
	ctx := context.Background()
	db := realtimedb.NewMemoryClient()
	db.Seed("adoptionApplications/a1", map[string]interface{}{"petId": "p1"})

	from, err := Apply(ctx, db, "adoptionApplications/a1/status", application, "approved")
	assert.Nil(t, err)
	assert.Equal(t, "pending", from)

	_, err = Apply(ctx, db, "adoptionApplications/a1/status", application, "rejected")
	_, ok := err.(*errors.FailedPreconditionError)
	assert.True(t, ok)

	snap, _ := db.Get(ctx, "adoptionApplications/a1/status")
	var status string
	assert.Nil(t, snap.Unmarshal(&status))
	assert.Equal(t, "approved", status)
}

func TestApplyConcurrentReviewersOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	db := realtimedb.NewMemoryClient()
	db.Seed("adoptionApplications/a1", map[string]interface{}{"petId": "p1"})

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			to := "approved"
			if i%2 == 1 {
				to = "rejected"
			}
			if _, err := Apply(ctx, db, "adoptionApplications/a1/status", application, to); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestApplyRecordWritesFieldsWithStatus(t *testing.T) {
	ctx := context.Background()
	db := realtimedb.NewMemoryClient()
	db.Seed("adoptionApplications/a1", map[string]interface{}{"petId": "p1", "reviewer": "o1"})

	onlyO2 := func(tn realtimedb.TransactionNode) error {
		var record struct {
			Reviewer string `json:"reviewer"`
		}
		if err := tn.Unmarshal(&record); err != nil {
			return err
		}
		if record.Reviewer != "o2" {
			return &errors.PermissionDeniedError{Msg: "not yours"}
		}
		return nil
	}

	_, err := ApplyRecord(ctx, db, "adoptionApplications/a1", application, "approved", onlyO2, map[string]interface{}{"reviewedBy": "o2"})
	assert.Equal(t, &errors.PermissionDeniedError{Msg: "not yours"}, err)

	from, err := ApplyRecord(ctx, db, "adoptionApplications/a1", application, "approved", nil, map[string]interface{}{"reviewedBy": "o1"})
	assert.Nil(t, err)
	assert.Equal(t, "pending", from)

	snap, _ := db.Get(ctx, "adoptionApplications/a1")
	var stored map[string]interface{}
	assert.Nil(t, snap.Unmarshal(&stored))
	assert.Equal(t, map[string]interface{}{"petId": "p1", "reviewer": "o1", "status": "approved", "reviewedBy": "o1"}, stored)

	_, err = ApplyRecord(ctx, db, "adoptionApplications/nope", application, "approved", nil, nil)
	assert.Equal(t, &errors.NotFoundError{Msg: "application not found"}, err)
}
