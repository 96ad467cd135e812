package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/olzhas-a/dispatch-core/internal/domain/models"
	"github.com/olzhas-a/dispatch-core/internal/domain/types"
	"github.com/olzhas-a/dispatch-core/internal/service/fare"
	"github.com/olzhas-a/dispatch-core/pkg/logger"
	"github.com/olzhas-a/dispatch-core/pkg/uuid"
)

type fakeRepo struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*models.Request

	updateErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byID: make(map[uuid.UUID]*models.Request)}
}

func (r *fakeRepo) Create(ctx context.Context, req *models.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[req.ID] = req
	return nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.byID[id]
	if !ok {
		return nil, types.ErrRequestNotFound
	}
	return req, nil
}

func (r *fakeRepo) Update(ctx context.Context, req *models.Request) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[req.ID] = req
	return nil
}

func (r *fakeRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Request
	for _, req := range r.byID {
		if req.OwnerID == ownerID {
			out = append(out, *req)
		}
	}
	return out, nil
}

type fakeRegistry struct {
	drivers map[uuid.UUID]*models.Driver
}

func (r *fakeRegistry) FindByID(ctx context.Context, id uuid.UUID) (*models.Driver, error) {
	d, ok := r.drivers[id]
	if !ok {
		return nil, types.ErrDriverNotFound
	}
	return d, nil
}

type fakeMatcher struct {
	driver *models.Driver
	err    error
}

func (m *fakeMatcher) Match(ctx context.Context, req *models.Request) (*models.Driver, error) {
	return m.driver, m.err
}

type fakeSettings struct {
	cfg fare.PricingConfig
	err error
	set []fare.PricingConfig
}

func (s *fakeSettings) Pricing(ctx context.Context) (fare.PricingConfig, error) {
	if s.err != nil {
		return fare.PricingConfig{}, s.err
	}
	return s.cfg, nil
}

func (s *fakeSettings) SetPricing(ctx context.Context, cfg fare.PricingConfig) error {
	s.set = append(s.set, cfg)
	return nil
}

type fakeGeo struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (g *fakeGeo) UpdateDriverPosition(ctx context.Context, driverID uuid.UUID, lat, lng float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.err
}

type recordingBus struct {
	mu     sync.Mutex
	events []models.Event
}

func (b *recordingBus) Publish(ctx context.Context, e models.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *recordingBus) byType(t string) []models.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []models.Event
	for _, e := range b.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

type nopTxManager struct{}

func (nopTxManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fixture struct {
	svc      *Service
	repo     *fakeRepo
	registry *fakeRegistry
	matcher  *fakeMatcher
	settings *fakeSettings
	geo      *fakeGeo
	bus      *recordingBus
}

func newFixture() *fixture {
	f := &fixture{
		repo:     newFakeRepo(),
		registry: &fakeRegistry{drivers: make(map[uuid.UUID]*models.Driver)},
		matcher:  &fakeMatcher{},
		settings: &fakeSettings{cfg: fare.DefaultPricing()},
		geo:      &fakeGeo{},
		bus:      &recordingBus{},
	}
	f.svc = New(
		f.repo,
		f.registry,
		f.matcher,
		f.settings,
		f.geo,
		f.bus,
		nopTxManager{},
		logger.InitLogger("dispatch-test", logger.LevelError),
	)
	return f
}

func (f *fixture) addDriver(d models.Driver) *models.Driver {
	f.registry.drivers[d.ID] = &d
	return &d
}

func (f *fixture) seedRequest(t *testing.T, status types.RequestStatus) *models.Request {
	t.Helper()
	req, err := f.svc.Create(context.Background(), CreateParams{
		OwnerID:     uuid.New(),
		Title:       "trip to the airport",
		Origin:      &models.Location{Lat: 43.238, Lng: 76.945},
		Destination: &models.Location{Lat: 43.354, Lng: 77.040},
	})
	if err != nil {
		t.Fatalf("seed request: %v", err)
	}
	req.Status = status
	return req
}

func availableDriver() models.Driver {
	return models.Driver{
		ID:              uuid.New(),
		Name:            "Nurlan",
		IsAvailable:     true,
		Gender:          types.GenderMale,
		CurrentLocation: &models.Location{Lat: 43.24, Lng: 76.95},
	}
}

func TestCreate_SeedsHistoryAndEstimate(t *testing.T) {
	f := newFixture()

	owner := uuid.New()
	req, err := f.svc.Create(context.Background(), CreateParams{
		OwnerID:     owner,
		Title:       "  trip to the airport  ",
		Origin:      &models.Location{Lat: 43.238, Lng: 76.945},
		Destination: &models.Location{Lat: 43.354, Lng: 77.040},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if req.Status != types.StatusDraft {
		t.Errorf("default status should be DRAFT, got %s", req.Status)
	}
	if req.Title != "trip to the airport" {
		t.Errorf("title should be trimmed, got %q", req.Title)
	}
	if len(req.StatusHistory) != 1 {
		t.Fatalf("expected 1 seeded history entry, got %d", len(req.StatusHistory))
	}
	if req.StatusHistory[0].Status != types.StatusDraft || req.StatusHistory[0].ChangedBy != owner.String() {
		t.Errorf("unexpected seed entry: %+v", req.StatusHistory[0])
	}
	if req.EstimatedPrice == nil || *req.EstimatedPrice <= fare.DefaultBaseFee {
		t.Errorf("estimate should be computed from coordinates, got %v", req.EstimatedPrice)
	}
	if _, err := f.repo.GetByID(context.Background(), req.ID); err != nil {
		t.Errorf("request should be persisted: %v", err)
	}
}

func TestCreate_NoEstimateWithoutCoordinates(t *testing.T) {
	f := newFixture()

	req, err := f.svc.Create(context.Background(), CreateParams{
		OwnerID: uuid.New(),
		Title:   "errand",
		Status:  types.StatusPending,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.EstimatedPrice != nil {
		t.Errorf("estimate must stay unset without coordinates, got %v", *req.EstimatedPrice)
	}
	if req.Status != types.StatusPending {
		t.Errorf("caller-specified status should be kept, got %s", req.Status)
	}
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture()

	cases := []struct {
		name   string
		params CreateParams
	}{
		{"missing owner", CreateParams{Title: "x"}},
		{"blank title", CreateParams{OwnerID: uuid.New(), Title: "   "}},
		{"terminal status", CreateParams{OwnerID: uuid.New(), Title: "x", Status: types.StatusCompleted}},
		{"bad coordinates", CreateParams{OwnerID: uuid.New(), Title: "x", Origin: &models.Location{Lat: 123, Lng: 0}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.svc.Create(context.Background(), tc.params); types.ErrCode(err) != types.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestAssign_HappyPath(t *testing.T) {
	f := newFixture()
	req := f.seedRequest(t, types.StatusPending)
	driver := f.addDriver(availableDriver())
	admin := uuid.New().String()

	got, err := f.svc.Assign(context.Background(), req.ID, driver.ID, "manual", admin)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Status != types.StatusConfirmed {
		t.Errorf("status should be forced to CONFIRMED, got %s", got.Status)
	}
	if got.DriverID == nil || *got.DriverID != driver.ID {
		t.Errorf("driver ref not set")
	}
	if got.AssignedAt == nil {
		t.Errorf("assignedAt not stamped")
	}
	last := got.StatusHistory[len(got.StatusHistory)-1]
	if last.Status != types.StatusConfirmed || last.ChangedBy != admin || last.Note != "manual" {
		t.Errorf("unexpected history entry: %+v", last)
	}

	events := f.bus.byType(models.DriverAssignedEvent{}.EventType())
	if len(events) != 1 {
		t.Fatalf("expected 1 DriverAssigned event, got %d", len(events))
	}
	e := events[0].(models.DriverAssignedEvent)
	if e.RequestID != req.ID || e.DriverID != driver.ID || e.OwnerID != req.OwnerID {
		t.Errorf("unexpected event payload: %+v", e)
	}
}

func TestAssign_ReassignmentWhileConfirmed(t *testing.T) {
	f := newFixture()
	req := f.seedRequest(t, types.StatusPending)
	first := f.addDriver(availableDriver())
	second := f.addDriver(availableDriver())

	if _, err := f.svc.Assign(context.Background(), req.ID, first.ID, "", "admin"); err != nil {
		t.Fatalf("first assign: %v", err)
	}
	got, err := f.svc.Assign(context.Background(), req.ID, second.ID, "swap", "admin")
	if err != nil {
		t.Fatalf("re-assign while CONFIRMED should be allowed: %v", err)
	}
	if *got.DriverID != second.ID {
		t.Errorf("driver ref should point at the new driver")
	}
}

func TestAssign_Preconditions(t *testing.T) {
	f := newFixture()

	okDriver := f.addDriver(availableDriver())
	busy := availableDriver()
	busy.IsAvailable = false
	busyDriver := f.addDriver(busy)
	banned := availableDriver()
	banned.IsBanned = true
	bannedDriver := f.addDriver(banned)

	cases := []struct {
		name      string
		reqStatus types.RequestStatus
		driverID  uuid.UUID
		wantErr   error
		wantCode  types.ErrorCode
	}{
		{"draft request", types.StatusDraft, okDriver.ID, nil, types.CodePrecondition},
		{"in-progress request", types.StatusInProgress, okDriver.ID, nil, types.CodePrecondition},
		{"unavailable driver", types.StatusPending, busyDriver.ID, types.ErrDriverNotAvailable, types.CodePrecondition},
		{"banned driver", types.StatusPending, bannedDriver.ID, types.ErrDriverBanned, types.CodePrecondition},
		{"missing driver", types.StatusPending, uuid.New(), types.ErrDriverNotFound, types.CodeNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := f.seedRequest(t, tc.reqStatus)
			_, err := f.svc.Assign(context.Background(), req.ID, tc.driverID, "", "admin")
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if types.ErrCode(err) != tc.wantCode {
				t.Fatalf("expected code %s, got %s (%v)", tc.wantCode, types.ErrCode(err), err)
			}
		})
	}

	if _, err := f.svc.Assign(context.Background(), uuid.New(), okDriver.ID, "", "admin"); !errors.Is(err, types.ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound, got %v", err)
	}
}

func TestAcceptByDriver(t *testing.T) {
	f := newFixture()
	driver := f.addDriver(availableDriver())

	t.Run("success on PENDING", func(t *testing.T) {
		req := f.seedRequest(t, types.StatusPending)
		got, err := f.svc.AcceptByDriver(context.Background(), req.ID, driver.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		last := got.StatusHistory[len(got.StatusHistory)-1]
		if last.ChangedBy != driver.ID.String() {
			t.Errorf("history changedBy should be the driver, got %q", last.ChangedBy)
		}
	})

	t.Run("rejected when not PENDING", func(t *testing.T) {
		req := f.seedRequest(t, types.StatusConfirmed)
		_, err := f.svc.AcceptByDriver(context.Background(), req.ID, driver.ID)
		if types.ErrCode(err) != types.CodePrecondition {
			t.Fatalf("expected precondition error, got %v", err)
		}
	})

	t.Run("eligibility filter", func(t *testing.T) {
		req := f.seedRequest(t, types.StatusPending)
		req.Metadata = map[string]string{models.MetadataKeyEligibilityFilter: string(types.GenderFemale)}

		_, err := f.svc.AcceptByDriver(context.Background(), req.ID, driver.ID)
		if !errors.Is(err, types.ErrDriverNotEligible) {
			t.Fatalf("expected ErrDriverNotEligible, got %v", err)
		}
		if !strings.Contains(types.UserMessage(err), "female driver") {
			t.Fatalf("message should name the restriction, got %q", types.UserMessage(err))
		}

		eligible := availableDriver()
		eligible.Gender = types.GenderFemale
		d := f.addDriver(eligible)
		if _, err := f.svc.AcceptByDriver(context.Background(), req.ID, d.ID); err != nil {
			t.Fatalf("eligible driver should be accepted: %v", err)
		}
	})
}

func TestAssignAuto(t *testing.T) {
	f := newFixture()
	req := f.seedRequest(t, types.StatusPending)
	driver := f.addDriver(availableDriver())
	f.matcher.driver = driver

	got, err := f.svc.AssignAuto(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.DriverID == nil || *got.DriverID != driver.ID {
		t.Errorf("matched driver should be assigned")
	}
	last := got.StatusHistory[len(got.StatusHistory)-1]
	if last.ChangedBy != SystemActor {
		t.Errorf("auto-assignment should be attributed to %q, got %q", SystemActor, last.ChangedBy)
	}
}

func TestAssignAuto_MatcherErrorPassesThrough(t *testing.T) {
	f := newFixture()
	req := f.seedRequest(t, types.StatusPending)
	f.matcher.err = types.ErrNoDriversAvailable

	if _, err := f.svc.AssignAuto(context.Background(), req.ID); !errors.Is(err, types.ErrNoDriversAvailable) {
		t.Fatalf("expected ErrNoDriversAvailable, got %v", err)
	}
}

func TestUpdateStatus_TimestampsAndHistory(t *testing.T) {
	f := newFixture()
	req := f.seedRequest(t, types.StatusConfirmed)

	got, err := f.svc.UpdateStatus(context.Background(), req.ID, types.StatusInProgress, "driver arrived", "driver-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.PickedUpAt == nil {
		t.Fatal("pickedUpAt must be stamped on entering IN_PROGRESS")
	}
	pickedUp := *got.PickedUpAt

	// idempotent self-transition keeps the first stamp but still audits
	before := len(got.StatusHistory)
	got, err = f.svc.UpdateStatus(context.Background(), req.ID, types.StatusInProgress, "retry", "driver-1")
	if err != nil {
		t.Fatalf("self-transition should be a no-op, got %v", err)
	}
	if !got.PickedUpAt.Equal(pickedUp) {
		t.Error("pickedUpAt must be set exactly once")
	}
	if len(got.StatusHistory) != before+1 {
		t.Error("self-transition should still append a history entry")
	}

	got, err = f.svc.UpdateStatus(context.Background(), req.ID, types.StatusCompleted, "", "driver-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.CompletedAt == nil {
		t.Fatal("completedAt must be stamped on COMPLETED")
	}

	events := f.bus.byType(models.StatusChangedEvent{}.EventType())
	if len(events) != 3 {
		t.Fatalf("expected 3 StatusChanged events, got %d", len(events))
	}
	last := events[len(events)-1].(models.StatusChangedEvent)
	if last.OldStatus != types.StatusInProgress || last.NewStatus != types.StatusCompleted {
		t.Errorf("unexpected event transition: %s -> %s", last.OldStatus, last.NewStatus)
	}
}

func TestUpdateStatus_InvalidTransitionCarriesAllowedSet(t *testing.T) {
	f := newFixture()
	req := f.seedRequest(t, types.StatusDraft)

	_, err := f.svc.UpdateStatus(context.Background(), req.ID, types.StatusCompleted, "", "admin")
	if err == nil {
		t.Fatal("expected error")
	}
	var de *types.DomainError
	if !errors.As(err, &de) {
		t.Fatalf("expected DomainError, got %T", err)
	}
	if de.Code != types.CodePrecondition {
		t.Errorf("expected PRECONDITION_FAILED, got %s", de.Code)
	}
	want := map[types.RequestStatus]bool{types.StatusPending: true, types.StatusCancelled: true}
	if len(de.AllowedStatuses) != len(want) {
		t.Fatalf("unexpected allowed set: %v", de.AllowedStatuses)
	}
	for _, s := range de.AllowedStatuses {
		if !want[s] {
			t.Errorf("unexpected allowed status %s", s)
		}
	}
}

func TestCancel(t *testing.T) {
	f := newFixture()

	t.Run("records reason", func(t *testing.T) {
		req := f.seedRequest(t, types.StatusPending)
		got, err := f.svc.Cancel(context.Background(), req.ID, "changed my mind", "owner-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Status != types.StatusCancelled {
			t.Errorf("status should be CANCELLED, got %s", got.Status)
		}
		if got.CancellationReason == nil || *got.CancellationReason != "changed my mind" {
			t.Errorf("reason not recorded")
		}
	})

	t.Run("completed request", func(t *testing.T) {
		req := f.seedRequest(t, types.StatusCompleted)
		_, err := f.svc.Cancel(context.Background(), req.ID, "", "owner-1")
		if !errors.Is(err, types.ErrCancelCompleted) {
			t.Fatalf("expected ErrCancelCompleted, got %v", err)
		}
	})

	t.Run("already cancelled", func(t *testing.T) {
		req := f.seedRequest(t, types.StatusCancelled)
		_, err := f.svc.Cancel(context.Background(), req.ID, "", "owner-1")
		if !errors.Is(err, types.ErrAlreadyCancelled) {
			t.Fatalf("expected ErrAlreadyCancelled, got %v", err)
		}
		if errors.Is(err, types.ErrCancelCompleted) {
			t.Fatal("the two cancel rejections must stay distinct")
		}
	})
}

func TestUpdateDriverLocation_RingAndTimestamp(t *testing.T) {
	f := newFixture()
	req := f.seedRequest(t, types.StatusInProgress)
	driver := availableDriver()
	req.DriverID = &driver.ID

	const updates = 150
	for i := 0; i < updates; i++ {
		if _, err := f.svc.UpdateDriverLocation(context.Background(), req.ID, float64(i)/1000, 76.9); err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
	}

	got, err := f.svc.Get(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.RouteHistory) != models.MaxRoutePoints {
		t.Fatalf("route history should be trimmed to %d, got %d", models.MaxRoutePoints, len(got.RouteHistory))
	}
	// oldest 50 points evicted, arrival order preserved
	if got.RouteHistory[0].Lat != float64(updates-models.MaxRoutePoints)/1000 {
		t.Errorf("oldest point should be update %d, got lat %v", updates-models.MaxRoutePoints, got.RouteHistory[0].Lat)
	}
	for i := 1; i < len(got.RouteHistory); i++ {
		if got.RouteHistory[i].Lat <= got.RouteHistory[i-1].Lat {
			t.Fatal("route points out of arrival order")
		}
	}

	if got.DriverLocation == nil || got.DriverLocation.Lat != float64(updates-1)/1000 {
		t.Errorf("driverLocation should hold the latest point")
	}
	if got.DriverLocation.UpdatedAt.IsZero() {
		t.Error("driverLocation timestamp must be fresh, not zero")
	}

	if f.geo.calls != updates {
		t.Errorf("geo-index should track every update, got %d", f.geo.calls)
	}
	if n := len(f.bus.byType(models.LocationUpdatedEvent{}.EventType())); n != updates {
		t.Errorf("expected %d LocationUpdated events, got %d", updates, n)
	}
}

func TestUpdateDriverLocation_GeoFailureIsSwallowed(t *testing.T) {
	f := newFixture()
	req := f.seedRequest(t, types.StatusInProgress)
	driver := availableDriver()
	req.DriverID = &driver.ID
	f.geo.err = errors.New("redis down")

	if _, err := f.svc.UpdateDriverLocation(context.Background(), req.ID, 43.2, 76.9); err != nil {
		t.Fatalf("geo-index failure must not fail the update: %v", err)
	}
}

func TestUpdateDriverLocation_InvalidCoordinates(t *testing.T) {
	f := newFixture()
	req := f.seedRequest(t, types.StatusInProgress)

	if _, err := f.svc.UpdateDriverLocation(context.Background(), req.ID, 91, 0); types.ErrCode(err) != types.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := f.svc.UpdateDriverLocation(context.Background(), uuid.New(), 43.2, 76.9); !errors.Is(err, types.ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound, got %v", err)
	}
}

func TestRecalculateFare(t *testing.T) {
	f := newFixture()
	req := f.seedRequest(t, types.StatusPending)
	initial := *req.EstimatedPrice

	f.settings.cfg = fare.PricingConfig{BaseFee: 500, PerKmRate: 240}
	got, quote, err := f.svc.RecalculateFare(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.EstimatedPrice == nil || *got.EstimatedPrice == initial {
		t.Errorf("estimate should change with the new tariff")
	}
	if quote.EstimatedPrice != *got.EstimatedPrice {
		t.Errorf("returned quote and stored estimate disagree")
	}
}

func TestRecalculateFare_RequiresCoordinates(t *testing.T) {
	f := newFixture()
	req, err := f.svc.Create(context.Background(), CreateParams{OwnerID: uuid.New(), Title: "errand"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, _, err := f.svc.RecalculateFare(context.Background(), req.ID); types.ErrCode(err) != types.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestQuoteFee_UsesSettingsWithDefaultFallback(t *testing.T) {
	f := newFixture()
	origin := models.Location{Lat: 43.238, Lng: 76.945}
	dest := models.Location{Lat: 43.354, Lng: 77.040}

	f.settings.err = errors.New("store down")
	quote, err := f.svc.QuoteFee(context.Background(), origin, dest)
	if err != nil {
		t.Fatalf("settings failure must fall back to defaults: %v", err)
	}
	if quote.Breakdown.BaseFee != fare.DefaultBaseFee {
		t.Errorf("expected default base fee, got %v", quote.Breakdown.BaseFee)
	}
}
