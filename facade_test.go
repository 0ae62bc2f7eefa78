package applyn_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	applyn "github.com/techwithparamesh/applyn-sub004"
	"github.com/techwithparamesh/applyn-sub004/pkg/core"
	"github.com/techwithparamesh/applyn-sub004/pkg/storage"
)

func newFacadeStorage(t *testing.T) *applyn.GormStorage {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, storage.ConfigurePool(db, storage.MaxOpenConns(1), storage.MaxIdleConns(1)))

	store := applyn.NewGormStorage(db)
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestFacade_QueueLifecycle(t *testing.T) {
	store := newFacadeStorage(t)
	ctx := context.Background()

	q := applyn.New(store,
		applyn.WithLeaseTTL(30*time.Minute),
		applyn.WithMaxAttempts(2),
	)

	app := &applyn.App{OwnerID: "owner-1", Name: "storefront", PackageName: "com.example.storefront"}
	require.NoError(t, store.CreateApp(ctx, app))

	job, err := q.Enqueue(ctx, app.OwnerID, app.ID)
	require.NoError(t, err)
	assert.Equal(t, applyn.StatusQueued, job.Status)

	// First attempt fails and goes back to the queue.
	claimed, reclaimed, err := q.ClaimNext(ctx, "builder-1")
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.False(t, reclaimed)
	assert.Equal(t, 1, claimed.Attempts)

	applied, err := q.Requeue(ctx, claimed.ID, claimed.LockToken)
	require.NoError(t, err)
	assert.True(t, applied)

	// Second attempt succeeds.
	claimed, _, err = q.ClaimNext(ctx, "builder-1")
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, 2, claimed.Attempts)

	applied, err = q.Complete(ctx, claimed.ID, claimed.LockToken, applyn.StatusSucceeded, "")
	require.NoError(t, err)
	assert.True(t, applied)

	final, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, applyn.StatusSucceeded, final.Status)

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Succeeded)
}

func TestFacade_AttemptBudgetExhausts(t *testing.T) {
	store := newFacadeStorage(t)
	ctx := context.Background()

	q := applyn.New(store)
	app := &applyn.App{OwnerID: "owner-1", Name: "storefront"}
	require.NoError(t, store.CreateApp(ctx, app))

	_, err := q.Enqueue(ctx, app.OwnerID, app.ID, applyn.Attempts(1))
	require.NoError(t, err)

	claimed, _, err := q.ClaimNext(ctx, "builder-1")
	require.NoError(t, err)
	require.NotNil(t, claimed)

	applied, err := q.Requeue(ctx, claimed.ID, claimed.LockToken)
	require.NoError(t, err)
	assert.True(t, applied)

	// Budget spent: the job is queued but no longer claimable.
	next, _, err := q.ClaimNext(ctx, "builder-2")
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestFacade_BillingSettlement(t *testing.T) {
	store := newFacadeStorage(t)
	ctx := context.Background()

	app := &applyn.App{OwnerID: "owner-1", Name: "storefront"}
	require.NoError(t, store.CreateApp(ctx, app))

	b := applyn.NewBillingService(store)
	p := &applyn.Payment{OwnerID: app.OwnerID, AppID: app.ID, Plan: "pro", AmountCents: 4900}
	require.NoError(t, b.CreatePayment(ctx, p))

	settled, updated, err := b.Settle(ctx, p.ID, applyn.PaymentCompleted, "ch_42")
	require.NoError(t, err)
	assert.True(t, updated)
	assert.Equal(t, applyn.PaymentCompleted, settled.Status)

	upgraded, err := store.GetApp(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, "pro", upgraded.Plan)

	// Replayed webhook settles nothing further.
	_, updated, err = b.Settle(ctx, p.ID, applyn.PaymentCompleted, "ch_42")
	require.NoError(t, err)
	assert.False(t, updated)
}

func TestFacade_WorkerBuildsJob(t *testing.T) {
	path := fmt.Sprintf("/tmp/applyn_facade_test_%d.db", os.Getpid())
	t.Cleanup(func() { os.Remove(path) })

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	store := applyn.NewGormStorage(db)
	require.NoError(t, store.Migrate(context.Background()))

	ctx := context.Background()
	q := applyn.New(store)

	app := &applyn.App{OwnerID: "owner-1", Name: "storefront", PackageName: "com.example.storefront"}
	require.NoError(t, store.CreateApp(ctx, app))
	job, err := q.Enqueue(ctx, app.OwnerID, app.ID)
	require.NoError(t, err)

	builder := applyn.BuilderFunc(func(ctx context.Context, app *core.App, job *core.BuildJob) (*core.BuildResult, error) {
		return &core.BuildResult{
			PackageName:  app.PackageName,
			VersionCode:  app.VersionCode + 1,
			ArtifactPath: "/tmp/" + app.ID + ".apk",
			ArtifactMime: "application/vnd.android.package-archive",
			ArtifactSize: 2 << 20,
		}, nil
	})

	w := applyn.NewWorker(q, builder, store,
		applyn.WithWorkerID("facade-worker"),
		applyn.Concurrency(1),
		applyn.WithPollInterval(20*time.Millisecond),
		applyn.WithJanitor(nil),
	)

	workerCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- w.Start(workerCtx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		j, err := q.GetJob(ctx, job.ID)
		return err == nil && j.Status == applyn.StatusSucceeded
	}, 5*time.Second, 20*time.Millisecond, "job never succeeded")

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}

	built, err := store.GetApp(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, core.BuildStateReady, built.BuildStatus)
	assert.Equal(t, 1, built.VersionCode)
}

func TestFacade_NoRetryMarker(t *testing.T) {
	err := applyn.NoRetry(errors.New("manifest is not valid XML"))
	assert.True(t, applyn.IsNoRetry(err))
	assert.False(t, applyn.IsNoRetry(errors.New("plain")))
}

func TestFacade_Schedules(t *testing.T) {
	now := time.Now()

	next := applyn.Every(time.Minute).Next(now)
	assert.WithinDuration(t, now.Add(time.Minute), next, time.Second)

	daily := applyn.Daily(3, 30).Next(now)
	assert.Equal(t, 3, daily.Hour())
	assert.Equal(t, 30, daily.Minute())
	assert.True(t, daily.After(now))

	cron := applyn.Cron("*/5 * * * *").Next(now)
	assert.True(t, cron.After(now))
}
