package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bagwatch/internal/activity"
	"bagwatch/internal/catalog"
	"bagwatch/internal/dispatch"
	"bagwatch/internal/policy"
	"bagwatch/pkg/logx"
)

type fakeSource struct {
	mu      sync.Mutex
	entries []catalog.Entry
	err     error
	calls   int
	block   chan struct{} // when set, Fetch waits until closed
}

func (f *fakeSource) Fetch(ctx context.Context) ([]catalog.Entry, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.entries, nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeStore struct {
	mu         sync.Mutex
	previous   []catalog.Entry
	loadErr    error
	replaceErr error
	replaced   [][]catalog.Entry
}

func (f *fakeStore) Load(ctx context.Context) ([]catalog.Entry, error) {
	return f.previous, f.loadErr
}

func (f *fakeStore) Replace(ctx context.Context, entries []catalog.Entry) error {
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.mu.Lock()
	f.replaced = append(f.replaced, entries)
	f.mu.Unlock()
	return nil
}

func (f *fakeStore) replaceCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.replaced)
}

type fakeNotifier struct {
	mu       sync.Mutex
	sent     []policy.Alert
	notices  []string
	failIdx  map[int]error
	sendRuns int
}

func (f *fakeNotifier) Send(ctx context.Context, alerts []policy.Alert) []dispatch.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendRuns++
	outcomes := make([]dispatch.Outcome, 0, len(alerts))
	for i, a := range alerts {
		f.sent = append(f.sent, a)
		out := dispatch.Outcome{Alert: a, Delivered: true}
		if err, ok := f.failIdx[i]; ok {
			out.Delivered = false
			out.ErrorKind = dispatch.ErrKindDelivery
			out.Err = err
		}
		outcomes = append(outcomes, out)
	}
	return outcomes
}

func (f *fakeNotifier) Notify(ctx context.Context, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, body)
	return nil
}

type fakeActivity struct {
	mu      sync.Mutex
	records []activity.Record
}

func (f *fakeActivity) Append(ctx context.Context, r activity.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, r)
	return nil
}

func (f *fakeActivity) Recent(ctx context.Context, n int) ([]activity.Record, error) {
	return nil, nil
}

func (f *fakeActivity) Stats(ctx context.Context) (activity.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := activity.Stats{TotalCycles: len(f.records)}
	for _, r := range f.records {
		if r.Success {
			st.Successful++
		}
		st.TotalAlerts += r.AlertsSent
	}
	if st.TotalCycles > 0 {
		st.SuccessRate = float64(st.Successful) / float64(st.TotalCycles)
	}
	return st, nil
}

func (f *fakeActivity) Close() error { return nil }

func (f *fakeActivity) lastRecord(t *testing.T) activity.Record {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.records) == 0 {
		t.Fatalf("no activity records appended")
	}
	return f.records[len(f.records)-1]
}

func price(v float64) *float64 { return &v }

func entry(id, name string, p *float64, av catalog.Availability) catalog.Entry {
	return catalog.Entry{ID: id, Name: name, Price: p, Availability: av}
}

func allAlerts() Settings {
	return Settings{
		Policy: policy.Config{
			AlertOnNew:          true,
			AlertOnPrice:        true,
			AlertOnAvailability: true,
		},
		SMSEnabled: true,
	}
}

func newTestCoordinator(src *fakeSource, store *fakeStore, n *fakeNotifier, act *fakeActivity, s Settings) *Coordinator {
	c := NewCoordinator(src, store, n, act, logx.Nop())
	c.Apply(s)
	return c
}

func TestRunCycleSuccess(t *testing.T) {
	t.Parallel()
	src := &fakeSource{entries: []catalog.Entry{
		entry("a", "Birkin 25", price(120), catalog.StatusAvailable),
		entry("b", "Kelly 28", price(300), catalog.StatusAvailable),
	}}
	store := &fakeStore{previous: []catalog.Entry{
		entry("a", "Birkin 25", price(100), catalog.StatusAvailable),
	}}
	notifier := &fakeNotifier{}
	act := &fakeActivity{}
	c := newTestCoordinator(src, store, notifier, act, allAlerts())

	sum, err := c.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if !sum.Success {
		t.Fatalf("cycle not successful: %+v", sum)
	}
	if sum.ProductsFound != 2 || sum.NewItems != 1 || sum.PriceChanges != 1 {
		t.Fatalf("counts = %+v", sum)
	}
	if sum.AlertsSent != 2 {
		t.Fatalf("AlertsSent = %d, want 2", sum.AlertsSent)
	}
	if store.replaceCount() != 1 {
		t.Fatalf("snapshot replaced %d times, want 1", store.replaceCount())
	}
	rec := act.lastRecord(t)
	if !rec.Success || rec.ProductsFound != 2 || rec.AlertsSent != 2 {
		t.Fatalf("record = %+v", rec)
	}
	if c.Phase() != PhaseIdle {
		t.Fatalf("phase = %v after cycle, want idle", c.Phase())
	}
}

func TestRunCycleFetchErrorLeavesSnapshot(t *testing.T) {
	t.Parallel()
	src := &fakeSource{err: errors.New("connection refused")}
	store := &fakeStore{previous: []catalog.Entry{entry("a", "Birkin 25", price(100), catalog.StatusAvailable)}}
	notifier := &fakeNotifier{}
	act := &fakeActivity{}
	c := newTestCoordinator(src, store, notifier, act, allAlerts())

	sum, err := c.RunCycle(context.Background())
	if err == nil {
		t.Fatalf("expected fetch error")
	}
	if sum.ErrorKind != ErrKindFetch {
		t.Fatalf("ErrorKind = %q, want %q", sum.ErrorKind, ErrKindFetch)
	}
	if store.replaceCount() != 0 {
		t.Fatalf("snapshot replaced after failed fetch")
	}
	if len(notifier.sent) != 0 {
		t.Fatalf("alerts sent after failed fetch")
	}
	rec := act.lastRecord(t)
	if rec.Success {
		t.Fatalf("failed cycle recorded as success")
	}
}

func TestRunCyclePersistError(t *testing.T) {
	t.Parallel()
	src := &fakeSource{entries: []catalog.Entry{entry("a", "Birkin 25", price(100), catalog.StatusAvailable)}}
	store := &fakeStore{replaceErr: errors.New("disk full")}
	act := &fakeActivity{}
	c := newTestCoordinator(src, store, &fakeNotifier{}, act, allAlerts())

	sum, err := c.RunCycle(context.Background())
	if err == nil {
		t.Fatalf("expected persist error")
	}
	if sum.ErrorKind != ErrKindPersistence {
		t.Fatalf("ErrorKind = %q, want %q", sum.ErrorKind, ErrKindPersistence)
	}
	// The record still lands, with counts gathered before the failure.
	rec := act.lastRecord(t)
	if rec.Success || rec.ProductsFound != 1 {
		t.Fatalf("record = %+v", rec)
	}
}

func TestRunCycleSingleFlight(t *testing.T) {
	t.Parallel()
	block := make(chan struct{})
	src := &fakeSource{block: block, entries: []catalog.Entry{}}
	act := &fakeActivity{}
	c := newTestCoordinator(src, &fakeStore{}, &fakeNotifier{}, act, allAlerts())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.RunCycle(context.Background())
	}()

	// Wait for the first cycle to reach Fetching.
	deadline := time.After(2 * time.Second)
	for src.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatalf("first cycle never started fetching")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if _, err := c.RunCycle(context.Background()); !errors.Is(err, ErrCycleInProgress) {
		t.Fatalf("overlapping cycle err = %v, want ErrCycleInProgress", err)
	}

	close(block)
	<-done
	if src.callCount() != 1 {
		t.Fatalf("source fetched %d times, want 1", src.callCount())
	}
}

func TestRunCycleSMSDisabledSuppressesDelivery(t *testing.T) {
	t.Parallel()
	src := &fakeSource{entries: []catalog.Entry{entry("a", "Birkin 25", price(100), catalog.StatusAvailable)}}
	notifier := &fakeNotifier{}
	act := &fakeActivity{}
	settings := allAlerts()
	settings.SMSEnabled = false
	c := newTestCoordinator(src, &fakeStore{}, notifier, act, settings)

	sum, err := c.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if notifier.sendRuns != 0 {
		t.Fatalf("dispatcher invoked with sms disabled")
	}
	if sum.AlertsSent != 0 || !sum.Success {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestRunCycleDeliveryFailureDoesNotFailCycle(t *testing.T) {
	t.Parallel()
	src := &fakeSource{entries: []catalog.Entry{
		entry("a", "Birkin 25", price(100), catalog.StatusAvailable),
		entry("b", "Kelly 28", price(300), catalog.StatusAvailable),
	}}
	store := &fakeStore{}
	notifier := &fakeNotifier{failIdx: map[int]error{0: errors.New("carrier rejected")}}
	act := &fakeActivity{}
	c := newTestCoordinator(src, store, notifier, act, allAlerts())

	sum, err := c.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if !sum.Success {
		t.Fatalf("delivery failure failed the cycle: %+v", sum)
	}
	if sum.AlertsSent != 1 {
		t.Fatalf("AlertsSent = %d, want 1", sum.AlertsSent)
	}
	if sum.ErrorKind != ErrKindDelivery || sum.Err == nil {
		t.Fatalf("delivery failure not surfaced: %+v", sum)
	}
	if store.replaceCount() != 1 {
		t.Fatalf("snapshot not persisted after partial delivery")
	}
}

func TestRunCycleEmptyFetchRemovesAll(t *testing.T) {
	t.Parallel()
	src := &fakeSource{entries: []catalog.Entry{}}
	store := &fakeStore{previous: []catalog.Entry{
		entry("a", "Birkin 25", price(100), catalog.StatusAvailable),
		entry("b", "Kelly 28", price(300), catalog.StatusAvailable),
	}}
	act := &fakeActivity{}
	c := newTestCoordinator(src, store, &fakeNotifier{}, act, allAlerts())

	sum, err := c.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if sum.Removed != 2 || sum.ProductsFound != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	if store.replaceCount() != 1 {
		t.Fatalf("empty scan must still replace the snapshot")
	}
}
