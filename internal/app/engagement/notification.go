package engagement

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/errgroup"

	"github.com/rejectly/rejectly/internal/domain"
	"github.com/rejectly/rejectly/internal/infra/metrics"
	"github.com/rejectly/rejectly/internal/infra/sqlite"
)

// Notifier records and delivers notifications.
type Notifier interface {
	Dispatch(ctx context.Context, n domain.Notification) (domain.DispatchResult, error)
}

// BatchNotifier is a Notifier that can fan many notifications out at once.
type BatchNotifier interface {
	Notifier
	DispatchMany(ctx context.Context, ns []domain.Notification) ([]domain.DispatchResult, error)
}

// DispatcherOptions tune a Dispatcher.
type DispatcherOptions struct {
	BatchSize           int // concurrent push sends per batch (default 10)
	PreferenceCacheSize int // users whose preferences are cached (default 1024)
}

// Dispatcher records in-app notifications and pushes them to a user's
// devices. Preferences gate the push only; the in-app record is always
// written.
type Dispatcher struct {
	db        *sqlite.DB
	push      domain.PushGateway
	prefs     *lru.Cache
	batchSize int
	now       func() time.Time
}

var _ BatchNotifier = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher. push may be nil to record only.
func NewDispatcher(db *sqlite.DB, push domain.PushGateway, opts DispatcherOptions) (*Dispatcher, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.PreferenceCacheSize <= 0 {
		opts.PreferenceCacheSize = 1024
	}
	cache, err := lru.New(opts.PreferenceCacheSize)
	if err != nil {
		return nil, fmt.Errorf("preference cache: %w", err)
	}
	return &Dispatcher{
		db:        db,
		push:      push,
		prefs:     cache,
		batchSize: opts.BatchSize,
		now:       time.Now,
	}, nil
}

// pushJob is one (notification, device) send.
type pushJob struct {
	idx int
	msg domain.PushMessage
}

// Dispatch records n and pushes it.
func (d *Dispatcher) Dispatch(ctx context.Context, n domain.Notification) (domain.DispatchResult, error) {
	results, err := d.DispatchMany(ctx, []domain.Notification{n})
	if err != nil {
		return domain.DispatchResult{}, err
	}
	return results[0], nil
}

// DispatchMany records every notification, then fans pushes out in
// batches: each batch's sends run concurrently and are awaited before the
// next batch starts. A notification without a user rejects the whole call
// before anything is recorded. A store failure stops recording, but
// notifications already recorded are still pushed; the returned results
// cover those. Push failures are counted in the results.
func (d *Dispatcher) DispatchMany(ctx context.Context, ns []domain.Notification) ([]domain.DispatchResult, error) {
	for _, n := range ns {
		if n.UserID == "" {
			return nil, domain.ErrMissingUser
		}
	}

	results := make([]domain.DispatchResult, len(ns))
	var jobs []pushJob

	for i, n := range ns {
		if n.ID == "" {
			n.ID = uuid.NewString()
		}
		if n.CreatedAt.IsZero() {
			n.CreatedAt = d.now()
		}
		results[i].Notification = n

		inserted, err := d.db.InsertNotification(ctx, n)
		if err != nil {
			d.sendBatches(ctx, jobs, results)
			return results[:i], fmt.Errorf("record notification: %w", err)
		}
		if !inserted {
			metrics.NotificationsRecorded.WithLabelValues(string(n.Type), "deduplicated").Inc()
			continue
		}
		results[i].Recorded = true
		metrics.NotificationsRecorded.WithLabelValues(string(n.Type), "recorded").Inc()

		jobs = append(jobs, d.pushJobs(ctx, i, n, &results[i])...)
	}

	d.sendBatches(ctx, jobs, results)
	return results, nil
}

// pushJobs returns one send per device of n's user, or none when the user
// opted out of n's type.
func (d *Dispatcher) pushJobs(ctx context.Context, idx int, n domain.Notification, res *domain.DispatchResult) []pushJob {
	enabled, err := d.enabled(ctx, n.UserID, n.Type)
	if err != nil {
		log.Printf("[dispatch] preferences for %s: %v", n.UserID, err)
		return nil
	}
	if !enabled {
		res.OptedOut = true
		return nil
	}
	if d.push == nil {
		return nil
	}

	devices, err := d.db.ListDevices(ctx, n.UserID)
	if err != nil {
		log.Printf("[dispatch] devices for %s: %v", n.UserID, err)
		return nil
	}
	jobs := make([]pushJob, 0, len(devices))
	for _, dev := range devices {
		jobs = append(jobs, pushJob{idx: idx, msg: domain.PushMessage{
			Token: dev.Token,
			Title: n.Title,
			Body:  n.Message,
			Data:  pushData(n),
		}})
	}
	return jobs
}

func (d *Dispatcher) sendBatches(ctx context.Context, jobs []pushJob, results []domain.DispatchResult) {
	var mu sync.Mutex
	for start := 0; start < len(jobs); start += d.batchSize {
		end := start + d.batchSize
		if end > len(jobs) {
			end = len(jobs)
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, job := range jobs[start:end] {
			job := job
			g.Go(func() error {
				res := d.push.Send(gctx, job.msg)
				mu.Lock()
				defer mu.Unlock()
				if res.Success {
					results[job.idx].PushSent++
					metrics.PushSends.WithLabelValues(d.push.Name(), "ok").Inc()
				} else {
					results[job.idx].PushFailed++
					metrics.PushSends.WithLabelValues(d.push.Name(), "failed").Inc()
					log.Printf("[push] %s to %s failed: %s", d.push.Name(), job.msg.Token, res.Error)
				}
				return nil
			})
		}
		_ = g.Wait() // sends never return errors
	}
}

// pendingNotice is a sweep item waiting on a batched dispatch.
type pendingNotice struct {
	itemID string
	n      domain.Notification
}

// dispatchSweep sends a sweep's notices in one call when notifier batches,
// one by one otherwise, and turns the outcomes into sweep results.
// Deduplicated notices are skipped with dupReason.
func dispatchSweep(ctx context.Context, notifier Notifier, pending []pendingNotice, dupReason string) []domain.ItemResult {
	if len(pending) == 0 {
		return nil
	}
	results := make([]domain.DispatchResult, len(pending))
	errs := make([]error, len(pending))

	if b, ok := notifier.(BatchNotifier); ok {
		ns := make([]domain.Notification, len(pending))
		for i, p := range pending {
			ns[i] = p.n
		}
		got, err := b.DispatchMany(ctx, ns)
		copy(results, got)
		if err != nil {
			for i := len(got); i < len(pending); i++ {
				errs[i] = err
			}
		}
	} else {
		for i, p := range pending {
			results[i], errs[i] = notifier.Dispatch(ctx, p.n)
		}
	}

	out := make([]domain.ItemResult, len(pending))
	for i, p := range pending {
		switch {
		case errs[i] != nil:
			out[i] = domain.SoftFail(p.itemID, errs[i])
		case !results[i].Recorded:
			out[i] = domain.Skip(p.itemID, dupReason)
		default:
			out[i] = domain.OK(p.itemID)
		}
	}
	return out
}

func pushData(n domain.Notification) map[string]string {
	data := map[string]string{"notification_id": n.ID, "type": string(n.Type)}
	for k, v := range n.Data {
		data[k] = fmt.Sprint(v)
	}
	return data
}

// ─── Preferences ────────────────────────────────────────────────────────────

func (d *Dispatcher) enabled(ctx context.Context, userID string, typ domain.NotificationType) (bool, error) {
	var prefs map[domain.NotificationType]bool
	if cached, ok := d.prefs.Get(userID); ok {
		prefs = cached.(map[domain.NotificationType]bool)
	} else {
		loaded, err := d.db.Preferences(ctx, userID)
		if err != nil {
			return false, err
		}
		d.prefs.Add(userID, loaded)
		prefs = loaded
	}
	enabled, set := prefs[typ]
	return !set || enabled, nil
}

// SetPreference opts a user in or out of pushes for one type.
func (d *Dispatcher) SetPreference(ctx context.Context, userID string, typ domain.NotificationType, enabled bool) error {
	if userID == "" {
		return domain.ErrMissingUser
	}
	if !typ.Valid() {
		return domain.ErrInvalidNotifyType
	}
	if err := d.db.SetPreference(ctx, userID, typ, enabled); err != nil {
		return err
	}
	d.prefs.Remove(userID)
	return nil
}

// RegisterDevice stores a push token for a user.
func (d *Dispatcher) RegisterDevice(ctx context.Context, userID, token, platform string) error {
	if userID == "" {
		return domain.ErrMissingUser
	}
	if token == "" {
		return domain.ErrInvalidDevice
	}
	return d.db.RegisterDevice(ctx, domain.DeviceToken{
		UserID: userID, Token: token, Platform: platform, CreatedAt: d.now(),
	})
}

// Recent returns a user's latest notifications.
func (d *Dispatcher) Recent(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	if userID == "" {
		return nil, domain.ErrMissingUser
	}
	return d.db.ListNotifications(ctx, userID, limit)
}
