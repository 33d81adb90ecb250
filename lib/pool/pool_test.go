package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// mockResource is a mock resource for testing.
type mockResource struct {
	id     int
	user   string
	mu     sync.Mutex
	valid  bool
	inTx   bool
	closed bool
}

func (m *mockResource) Valid() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.valid && !m.closed
}

func (m *mockResource) HasOpenTransaction() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inTx
}

func (m *mockResource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockResource) setValid(v bool) {
	m.mu.Lock()
	m.valid = v
	m.mu.Unlock()
}

func (m *mockResource) setInTx(v bool) {
	m.mu.Lock()
	m.inTx = v
	m.mu.Unlock()
}

func (m *mockResource) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// mockFactory creates mock resources and counts destroys.
type mockFactory struct {
	created   atomic.Int32
	destroyed atomic.Int32
	fail      atomic.Bool
	delay     time.Duration
}

var errDial = errors.New("dial failed")

func (f *mockFactory) Create(ctx context.Context, cred Credential) (Resource, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.fail.Load() {
		return nil, errDial
	}
	id := f.created.Add(1)
	return &mockResource{id: int(id), user: cred.User, valid: true}, nil
}

func (f *mockFactory) Destroy(r Resource) error {
	f.destroyed.Add(1)
	return r.Close()
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MinimumSize = 0
	cfg.MaximumSize = 3
	cfg.MaximumCheckoutWait = 100 * time.Millisecond
	return cfg
}

func newTestPool(t *testing.T, f Factory, cfg Config) *Pool {
	t.Helper()
	p, err := New(f, Credential{User: "scott", Secret: "tiger"}, cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestPoolScenario(t *testing.T) {
	f := &mockFactory{}
	cfg := DefaultConfig()
	cfg.MinimumSize = 4
	cfg.MaximumSize = 8
	cfg.CleanupInterval = 2000 * time.Millisecond
	cfg.ResourceTimeout = 6000 * time.Millisecond

	p := newTestPool(t, f, cfg)

	stats := p.Statistics(time.Time{})
	if stats.Available != 4 {
		t.Errorf("Expected 4 available after construction, got %d", stats.Available)
	}

	res, err := p.Checkout(context.Background())
	if err != nil {
		t.Fatalf("Checkout failed: %v", err)
	}
	stats = p.Statistics(time.Time{})
	if stats.InUse != 1 || stats.Available != 3 || stats.Created != 4 {
		t.Errorf("Expected inUse=1 available=3 created=4, got inUse=%d available=%d created=%d",
			stats.InUse, stats.Available, stats.Created)
	}

	if err := p.Checkin(res); err != nil {
		t.Fatalf("Checkin failed: %v", err)
	}
	stats = p.Statistics(time.Time{})
	if stats.Available != 4 || stats.InUse != 0 {
		t.Errorf("Expected available=4 inUse=0, got available=%d inUse=%d", stats.Available, stats.InUse)
	}

	if err := p.SetEnabled(false); err != nil {
		t.Fatalf("SetEnabled(false) failed: %v", err)
	}
	if _, err := p.Checkout(context.Background()); !errors.Is(err, ErrPoolDisabled) {
		t.Errorf("Expected ErrPoolDisabled, got %v", err)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := p.Checkout(context.Background()); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Expected ErrPoolClosed, got %v", err)
	}
	if got := p.Statistics(time.Time{}).Available; got != 0 {
		t.Errorf("Expected 0 available after close, got %d", got)
	}
	if f.destroyed.Load() != 4 {
		t.Errorf("Expected 4 destroyed on close, got %d", f.destroyed.Load())
	}
}

func TestPoolCheckoutBeyondMaximum(t *testing.T) {
	f := &mockFactory{}
	cfg := DefaultConfig()
	cfg.MinimumSize = 4
	cfg.MaximumSize = 8
	cfg.MaximumCheckoutWait = 50 * time.Millisecond

	p := newTestPool(t, f, cfg)

	for i := 0; i < 8; i++ {
		if _, err := p.Checkout(context.Background()); err != nil {
			t.Fatalf("Checkout %d failed: %v", i+1, err)
		}
	}

	stats := p.Statistics(time.Time{})
	if stats.InUse != 8 || stats.Available != 0 {
		t.Errorf("Expected inUse=8 available=0, got inUse=%d available=%d", stats.InUse, stats.Available)
	}

	start := time.Now()
	_, err := p.Checkout(context.Background())
	if !errors.Is(err, ErrNoResourceAvailable) {
		t.Fatalf("Expected ErrNoResourceAvailable, got %v", err)
	}
	if waited := time.Since(start); waited < 50*time.Millisecond {
		t.Errorf("Checkout returned after %v, expected to wait the full budget", waited)
	}

	stats = p.Statistics(time.Time{})
	if stats.Delayed != 1 {
		t.Errorf("Expected 1 delayed request, got %d", stats.Delayed)
	}
	if stats.Requests != 9 {
		t.Errorf("Expected 9 requests, got %d", stats.Requests)
	}
	if f.created.Load() != 8 {
		t.Errorf("Expected 8 resources created, got %d", f.created.Load())
	}
}

func TestPoolCheckoutWaitsForCheckin(t *testing.T) {
	f := &mockFactory{}
	cfg := testConfig()
	cfg.MaximumSize = 1
	cfg.MaximumCheckoutWait = 2 * time.Second

	p := newTestPool(t, f, cfg)

	res, err := p.Checkout(context.Background())
	if err != nil {
		t.Fatalf("Checkout failed: %v", err)
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		p.Checkin(res)
	}()

	got, err := p.Checkout(context.Background())
	if err != nil {
		t.Fatalf("Blocked checkout failed: %v", err)
	}
	if got != res {
		t.Error("Expected the returned resource to be handed to the waiter")
	}
	if d := p.Statistics(time.Time{}).Delayed; d != 1 {
		t.Errorf("Expected 1 delayed request, got %d", d)
	}
}

func TestPoolCheckoutContextCanceled(t *testing.T) {
	f := &mockFactory{}
	cfg := testConfig()
	cfg.MaximumSize = 1
	cfg.MaximumCheckoutWait = 5 * time.Second

	p := newTestPool(t, f, cfg)
	if _, err := p.Checkout(context.Background()); err != nil {
		t.Fatalf("Checkout failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := p.Checkout(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}

	ctx, cancel = context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Checkout(ctx)
	if !errors.Is(err, ErrNoResourceAvailable) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected ErrNoResourceAvailable wrapping DeadlineExceeded, got %v", err)
	}
}

func TestPoolLIFO(t *testing.T) {
	f := &mockFactory{}
	p := newTestPool(t, f, testConfig())

	r1, _ := p.Checkout(context.Background())
	r2, _ := p.Checkout(context.Background())
	p.Checkin(r1)
	p.Checkin(r2)

	got, err := p.Checkout(context.Background())
	if err != nil {
		t.Fatalf("Checkout failed: %v", err)
	}
	if got != r2 {
		t.Error("Expected the most recently returned resource")
	}
}

func TestPoolCheckinInvalid(t *testing.T) {
	f := &mockFactory{}
	cfg := testConfig()
	cfg.MinimumSize = 2
	p := newTestPool(t, f, cfg)

	res, _ := p.Checkout(context.Background())
	res.(*mockResource).setValid(false)

	before := p.Statistics(time.Time{})
	if err := p.Checkin(res); err != nil {
		t.Fatalf("Checkin failed: %v", err)
	}
	after := p.Statistics(time.Time{})

	if after.Destroyed != before.Destroyed+1 {
		t.Errorf("Expected destroyed to grow by 1, got %d -> %d", before.Destroyed, after.Destroyed)
	}
	if !res.(*mockResource).IsClosed() {
		t.Error("Invalid resource should be closed")
	}
	// the floor of 2 is restored with a fresh resource
	if after.Available != 2 {
		t.Errorf("Expected 2 available after replacement, got %d", after.Available)
	}
	if after.Created != before.Created+1 {
		t.Errorf("Expected one replacement created, got %d -> %d", before.Created, after.Created)
	}

	for i := 0; i < 2; i++ {
		got, _ := p.Checkout(context.Background())
		if got == res {
			t.Fatal("Invalid resource must never return to available")
		}
	}
}

func TestPoolCheckinInvalidAboveMinimum(t *testing.T) {
	f := &mockFactory{}
	p := newTestPool(t, f, testConfig())

	res, _ := p.Checkout(context.Background())
	res.(*mockResource).setValid(false)
	p.Checkin(res)

	stats := p.Statistics(time.Time{})
	if stats.Available != 0 || stats.Size != 0 {
		t.Errorf("Expected empty pool, got available=%d size=%d", stats.Available, stats.Size)
	}
	if stats.Created != 1 {
		t.Errorf("Expected no replacement, got created=%d", stats.Created)
	}
}

func TestPoolCheckinOpenTransaction(t *testing.T) {
	f := &mockFactory{}
	p := newTestPool(t, f, testConfig())

	res, _ := p.Checkout(context.Background())
	res.(*mockResource).setInTx(true)

	before := p.Statistics(time.Time{})
	if err := p.Checkin(res); !errors.Is(err, ErrTransactionOpen) {
		t.Fatalf("Expected ErrTransactionOpen, got %v", err)
	}
	after := p.Statistics(time.Time{})

	if before.Requests != after.Requests || before.Created != after.Created ||
		before.Destroyed != after.Destroyed || before.InUse != after.InUse || before.Available != after.Available {
		t.Errorf("Counters changed on rejected checkin: before=%+v after=%+v", before, after)
	}

	res.(*mockResource).setInTx(false)
	if err := p.Checkin(res); err != nil {
		t.Errorf("Checkin after resolving transaction failed: %v", err)
	}
}

func TestPoolCheckinForeign(t *testing.T) {
	p := newTestPool(t, &mockFactory{}, testConfig())

	if err := p.Checkin(&mockResource{valid: true}); !errors.Is(err, ErrForeignResource) {
		t.Errorf("Expected ErrForeignResource, got %v", err)
	}
	if err := p.Checkin(nil); !errors.Is(err, ErrForeignResource) {
		t.Errorf("Expected ErrForeignResource for nil, got %v", err)
	}

	res, _ := p.Checkout(context.Background())
	p.Checkin(res)
	if err := p.Checkin(res); !errors.Is(err, ErrForeignResource) {
		t.Errorf("Expected ErrForeignResource on double checkin, got %v", err)
	}
}

func TestPoolDisabledRejectsCheckin(t *testing.T) {
	p := newTestPool(t, &mockFactory{}, testConfig())

	res, _ := p.Checkout(context.Background())
	p.SetEnabled(false)

	if err := p.Checkin(res); !errors.Is(err, ErrPoolDisabled) {
		t.Fatalf("Expected ErrPoolDisabled, got %v", err)
	}
	if p.Enabled() {
		t.Error("Enabled() should be false")
	}

	p.SetEnabled(true)
	if err := p.Checkin(res); err != nil {
		t.Errorf("Checkin after re-enable failed: %v", err)
	}
}

func TestPoolDisableWakesWaiters(t *testing.T) {
	cfg := testConfig()
	cfg.MaximumSize = 1
	cfg.MaximumCheckoutWait = 5 * time.Second
	p := newTestPool(t, &mockFactory{}, cfg)

	p.Checkout(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := p.Checkout(context.Background())
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	p.SetEnabled(false)

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrPoolDisabled) {
			t.Errorf("Expected ErrPoolDisabled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Waiter was not woken by disable")
	}
}

func TestPoolClose(t *testing.T) {
	f := &mockFactory{}
	cfg := testConfig()
	cfg.MinimumSize = 2
	p, err := New(f, Credential{User: "scott"}, cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	out, _ := p.Checkout(context.Background())

	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !p.Closed() {
		t.Error("Closed() should be true")
	}
	if f.destroyed.Load() != 1 {
		t.Errorf("Expected 1 idle resource destroyed, got %d", f.destroyed.Load())
	}
	if out.(*mockResource).IsClosed() {
		t.Error("Checked out resource must not be touched by Close")
	}

	if err := p.Checkin(out); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Expected ErrPoolClosed on checkin, got %v", err)
	}
	if !out.(*mockResource).IsClosed() {
		t.Error("Resource checked in after close should be destroyed")
	}

	if err := p.Close(); err != ErrPoolClosed {
		t.Errorf("Expected ErrPoolClosed on double close, got %v", err)
	}
	if err := p.SetEnabled(true); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Expected ErrPoolClosed from SetEnabled, got %v", err)
	}
	if err := p.SetMaximumSize(10); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Expected ErrPoolClosed from SetMaximumSize, got %v", err)
	}
}

func TestPoolCloseWakesWaiters(t *testing.T) {
	cfg := testConfig()
	cfg.MaximumSize = 1
	cfg.MaximumCheckoutWait = 5 * time.Second
	p, _ := New(&mockFactory{}, Credential{}, cfg)

	p.Checkout(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := p.Checkout(context.Background())
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	p.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrPoolClosed) {
			t.Errorf("Expected ErrPoolClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Waiter was not woken by close")
	}
}

func TestPoolFactoryError(t *testing.T) {
	f := &mockFactory{}
	p := newTestPool(t, f, testConfig())

	f.fail.Store(true)
	_, err := p.Checkout(context.Background())
	if !errors.Is(err, ErrResourceCreation) {
		t.Errorf("Expected ErrResourceCreation, got %v", err)
	}
	if !errors.Is(err, errDial) {
		t.Errorf("Expected factory error to be preserved, got %v", err)
	}

	stats := p.Statistics(time.Time{})
	if stats.Size != 0 {
		t.Errorf("Expected size 0 after failed create, got %d", stats.Size)
	}
	if stats.CreationFailures != 1 {
		t.Errorf("Expected 1 creation failure, got %d", stats.CreationFailures)
	}

	f.fail.Store(false)
	if _, err := p.Checkout(context.Background()); err != nil {
		t.Errorf("Checkout after factory recovery failed: %v", err)
	}
}

func TestNewFactoryError(t *testing.T) {
	f := &mockFactory{}
	f.fail.Store(true)

	cfg := testConfig()
	cfg.MinimumSize = 2
	if _, err := New(f, Credential{}, cfg); !errors.Is(err, ErrResourceCreation) {
		t.Errorf("Expected ErrResourceCreation, got %v", err)
	}
	if _, err := New(nil, Credential{}, cfg); !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("Expected ErrInvalidConfiguration for nil factory, got %v", err)
	}
}

func TestPoolDiscard(t *testing.T) {
	f := &mockFactory{}
	p := newTestPool(t, f, testConfig())

	res, _ := p.Checkout(context.Background())
	if err := p.Discard(res); err != nil {
		t.Fatalf("Discard failed: %v", err)
	}

	stats := p.Statistics(time.Time{})
	if stats.Size != 0 || stats.Destroyed != 1 {
		t.Errorf("Expected size=0 destroyed=1, got size=%d destroyed=%d", stats.Size, stats.Destroyed)
	}
	if !res.(*mockResource).IsClosed() {
		t.Error("Discarded resource should be closed")
	}
	if err := p.Discard(res); !errors.Is(err, ErrForeignResource) {
		t.Errorf("Expected ErrForeignResource on second discard, got %v", err)
	}
}

func TestPoolDiscardWakesWaiter(t *testing.T) {
	cfg := testConfig()
	cfg.MaximumSize = 1
	cfg.MaximumCheckoutWait = 2 * time.Second
	p := newTestPool(t, &mockFactory{}, cfg)

	res, _ := p.Checkout(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		p.Discard(res)
	}()

	got, err := p.Checkout(context.Background())
	if err != nil {
		t.Fatalf("Checkout after discard failed: %v", err)
	}
	if got == res {
		t.Error("Expected a freshly created resource")
	}
}

func TestPoolNewResourceThreshold(t *testing.T) {
	f := &mockFactory{}
	cfg := testConfig()
	cfg.MaximumSize = 2
	cfg.NewResourceThreshold = 40 * time.Millisecond
	cfg.MaximumCheckoutWait = time.Second
	p := newTestPool(t, f, cfg)

	start := time.Now()
	if _, err := p.Checkout(context.Background()); err != nil {
		t.Fatalf("Checkout failed: %v", err)
	}
	if waited := time.Since(start); waited < 40*time.Millisecond {
		t.Errorf("Expected checkout to wait for the threshold, waited %v", waited)
	}
	if f.created.Load() != 1 {
		t.Errorf("Expected 1 created after threshold, got %d", f.created.Load())
	}
	if d := p.Statistics(time.Time{}).Delayed; d != 1 {
		t.Errorf("Expected the threshold wait to count as delayed, got %d", d)
	}
}

func TestPoolCheckoutWaitCapsThreshold(t *testing.T) {
	f := &mockFactory{}
	cfg := testConfig()
	cfg.MaximumSize = 4
	cfg.MaximumCheckoutWait = 20 * time.Millisecond
	cfg.NewResourceThreshold = 200 * time.Millisecond
	p := newTestPool(t, f, cfg)

	start := time.Now()
	res, err := p.Checkout(context.Background())
	if err != nil {
		t.Fatalf("Checkout with room to grow failed: %v", err)
	}
	waited := time.Since(start)
	if waited < 20*time.Millisecond || waited >= 200*time.Millisecond {
		t.Errorf("Expected creation once the checkout wait elapsed, waited %v", waited)
	}
	if f.created.Load() != 1 {
		t.Errorf("Expected 1 created, got %d", f.created.Load())
	}
	stats := p.Statistics(time.Time{})
	if stats.Delayed != 1 || stats.InUse != 1 {
		t.Errorf("Expected delayed=1 in_use=1, got delayed=%d in_use=%d", stats.Delayed, stats.InUse)
	}
	p.Checkin(res)

	// a zero wait creates straight away whatever the threshold
	if err := p.SetMaximumCheckoutWait(0); err != nil {
		t.Fatalf("SetMaximumCheckoutWait failed: %v", err)
	}
	a, _ := p.Checkout(context.Background())
	start = time.Now()
	if _, err := p.Checkout(context.Background()); err != nil {
		t.Fatalf("Checkout with zero wait failed: %v", err)
	}
	if waited := time.Since(start); waited >= 200*time.Millisecond {
		t.Errorf("Expected no threshold wait, waited %v", waited)
	}
	if f.created.Load() != 2 {
		t.Errorf("Expected 2 created, got %d", f.created.Load())
	}
	p.Checkin(a)
}

func TestPoolNewResourceThresholdPrefersReturn(t *testing.T) {
	f := &mockFactory{}
	cfg := testConfig()
	cfg.MaximumSize = 2
	p := newTestPool(t, f, cfg)

	res, _ := p.Checkout(context.Background())
	if err := p.SetNewResourceThreshold(time.Second); err != nil {
		t.Fatalf("SetNewResourceThreshold failed: %v", err)
	}

	go func() {
		time.Sleep(30 * time.Millisecond)
		p.Checkin(res)
	}()

	got, err := p.Checkout(context.Background())
	if err != nil {
		t.Fatalf("Checkout failed: %v", err)
	}
	if got != res {
		t.Error("Expected the returned resource rather than a new one")
	}
	if f.created.Load() != 1 {
		t.Errorf("Expected no extra creation, got %d", f.created.Load())
	}
}

func TestPoolMaximumLoweredDestroysExcess(t *testing.T) {
	f := &mockFactory{}
	p := newTestPool(t, f, testConfig())

	r1, _ := p.Checkout(context.Background())
	r2, _ := p.Checkout(context.Background())
	if err := p.SetMaximumSize(1); err != nil {
		t.Fatalf("SetMaximumSize failed: %v", err)
	}

	p.Checkin(r1)
	p.Checkin(r2)

	stats := p.Statistics(time.Time{})
	if stats.Size != 1 || stats.Available != 1 {
		t.Errorf("Expected size=1 available=1, got size=%d available=%d", stats.Size, stats.Available)
	}
	if !r1.(*mockResource).IsClosed() {
		t.Error("Excess resource should be destroyed")
	}
}

func TestPoolSetCredential(t *testing.T) {
	f := &mockFactory{}
	p := newTestPool(t, f, testConfig())

	old, _ := p.Checkout(context.Background())
	if err := p.SetCredential(Credential{User: "adams", Secret: "rotated"}); err != nil {
		t.Fatalf("SetCredential failed: %v", err)
	}
	fresh, _ := p.Checkout(context.Background())

	if fresh.(*mockResource).user != "adams" {
		t.Errorf("Expected new resources for the new user, got %q", fresh.(*mockResource).user)
	}
	if err := p.Checkin(old); err != nil {
		t.Errorf("Existing resource should stay valid after rotation: %v", err)
	}
	if p.Credential().User != "adams" {
		t.Errorf("Credential() = %v", p.Credential())
	}
}

func TestCredentialStringHidesSecret(t *testing.T) {
	s := Credential{User: "scott", Secret: "tiger"}.String()
	if s != `Credential{User: "scott"}` {
		t.Errorf("String() = %q", s)
	}
}

func TestPoolConcurrentCheckoutCheckin(t *testing.T) {
	f := &mockFactory{}
	cfg := testConfig()
	cfg.MaximumSize = 5
	cfg.MaximumCheckoutWait = 5 * time.Second
	p := newTestPool(t, f, cfg)

	var wg sync.WaitGroup
	var failures atomic.Int32
	var inUse, peak atomic.Int32

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				res, err := p.Checkout(context.Background())
				if err != nil {
					failures.Add(1)
					continue
				}
				n := inUse.Add(1)
				for {
					m := peak.Load()
					if n <= m || peak.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				inUse.Add(-1)
				if err := p.Checkin(res); err != nil {
					failures.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	if failures.Load() != 0 {
		t.Errorf("Expected no failures, got %d", failures.Load())
	}
	if peak.Load() > 5 {
		t.Errorf("More than MaximumSize resources out at once: %d", peak.Load())
	}
	if f.created.Load() > 5 {
		t.Errorf("Created %d resources, more than MaximumSize", f.created.Load())
	}

	stats := p.Statistics(time.Time{})
	if stats.InUse != 0 {
		t.Errorf("Expected 0 in use, got %d", stats.InUse)
	}
	if stats.Requests != 200 {
		t.Errorf("Expected 200 requests, got %d", stats.Requests)
	}
}

func TestPoolCreatesOutsideLock(t *testing.T) {
	f := &mockFactory{delay: 100 * time.Millisecond}
	cfg := testConfig()
	cfg.MaximumSize = 2
	p := newTestPool(t, f, cfg)

	// a slow creation must not block statistics reads
	go p.Checkout(context.Background())
	time.Sleep(20 * time.Millisecond)

	done := make(chan Statistics, 1)
	go func() { done <- p.Statistics(time.Time{}) }()

	select {
	case stats := <-done:
		if stats.Size != 1 || stats.InUse != 0 {
			t.Errorf("Expected reserved slot size=1 inUse=0, got size=%d inUse=%d", stats.Size, stats.InUse)
		}
	case <-time.After(50 * time.Millisecond):
		t.Fatal("Statistics blocked behind resource creation")
	}
}
