package tests

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

func newCourierFixture() (*service.CourierService, *MockCourierRepository, *MockLocationStore, *MockNotifier) {
	courierRepo := NewMockCourierRepository()
	locationStore := NewMockLocationStore()
	notifier := NewMockNotifier()

	svc := service.NewCourierService(locationStore, nil, courierRepo, notifier)
	return svc, courierRepo, locationStore, notifier
}

func TestReportLocation_StoresAndMarksOnline(t *testing.T) {
	ctx := context.Background()
	svc, courierRepo, _, notifier := newCourierFixture()

	courierRepo.AddCourier(&domain.Courier{ID: "courier-1", BranchID: "branch-1", IsActive: true, IsOnline: false})

	reportedAt := time.Now()
	err := svc.ReportLocation(ctx, service.ReportLocationRequest{
		CourierID:  "courier-1",
		Lat:        41.3111,
		Lng:        69.2797,
		ReportedAt: reportedAt,
	})
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}

	point, err := svc.GetLocation(ctx, "courier-1")
	if err != nil {
		t.Fatalf("get location failed: %v", err)
	}
	if point == nil || point.Lat != 41.3111 || point.Lng != 69.2797 {
		t.Errorf("expected stored location, got %+v", point)
	}
	if !courierRepo.GetCourier("courier-1").IsOnline {
		t.Error("expected reporting courier marked online")
	}
	if len(notifier.CourierLocations) != 1 {
		t.Errorf("expected one location event, got %v", notifier.CourierLocations)
	}
}

func TestReportLocation_OlderReportIsNoOp(t *testing.T) {
	ctx := context.Background()
	svc, courierRepo, _, notifier := newCourierFixture()

	courierRepo.AddCourier(&domain.Courier{ID: "courier-1", IsActive: true, IsOnline: true})

	now := time.Now()
	if err := svc.ReportLocation(ctx, service.ReportLocationRequest{
		CourierID: "courier-1", Lat: 41.30, Lng: 69.24, ReportedAt: now,
	}); err != nil {
		t.Fatalf("first report failed: %v", err)
	}

	// A delayed retry carrying an older fix must not clobber the
	// current position.
	if err := svc.ReportLocation(ctx, service.ReportLocationRequest{
		CourierID: "courier-1", Lat: 40.00, Lng: 68.00, ReportedAt: now.Add(-time.Minute),
	}); err != nil {
		t.Fatalf("stale report should be silent, got %v", err)
	}

	point, _ := svc.GetLocation(ctx, "courier-1")
	if point.Lat != 41.30 || point.Lng != 69.24 {
		t.Errorf("expected newer position kept, got %+v", point)
	}
	if len(notifier.CourierLocations) != 1 {
		t.Errorf("expected no event for stale report, got %v", notifier.CourierLocations)
	}
}

func TestReportLocation_Validation(t *testing.T) {
	ctx := context.Background()
	svc, courierRepo, locationStore, _ := newCourierFixture()

	courierRepo.AddCourier(&domain.Courier{ID: "courier-1", IsActive: true})
	courierRepo.AddCourier(&domain.Courier{ID: "courier-fired", IsActive: false})

	cases := []struct {
		name string
		req  service.ReportLocationRequest
		want error
	}{
		{"empty id", service.ReportLocationRequest{Lat: 41, Lng: 69}, service.ErrInvalidCourierID},
		{"bad latitude", service.ReportLocationRequest{CourierID: "courier-1", Lat: 91, Lng: 69}, service.ErrInvalidLocation},
		{"bad longitude", service.ReportLocationRequest{CourierID: "courier-1", Lat: 41, Lng: -181}, service.ErrInvalidLocation},
		{"inactive courier", service.ReportLocationRequest{CourierID: "courier-fired", Lat: 41, Lng: 69}, service.ErrCourierInactive},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := svc.ReportLocation(ctx, tc.req); !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}

	locationStore.ReportError = errors.New("redis: connection refused")
	if err := svc.ReportLocation(ctx, service.ReportLocationRequest{
		CourierID: "courier-1", Lat: 41, Lng: 69,
	}); !errors.Is(err, service.ErrStoreUnavailable) {
		t.Errorf("expected store unavailable, got %v", err)
	}
	if got := atomic.LoadInt32(&locationStore.ReportCallCount); got != 3 {
		t.Errorf("expected 3 report attempts, got %d", got)
	}
}

func TestReportLocation_RetriesTransientStoreFailure(t *testing.T) {
	ctx := context.Background()
	svc, courierRepo, locationStore, _ := newCourierFixture()

	courierRepo.AddCourier(&domain.Courier{ID: "courier-1", IsActive: true, IsOnline: true})
	locationStore.ReportError = errors.New("i/o timeout")
	locationStore.FailReports = 1

	if err := svc.ReportLocation(ctx, service.ReportLocationRequest{
		CourierID: "courier-1", Lat: 41.30, Lng: 69.24,
	}); err != nil {
		t.Fatalf("expected report to survive a transient store failure, got %v", err)
	}

	point, err := svc.GetLocation(ctx, "courier-1")
	if err != nil || point == nil {
		t.Fatalf("expected location stored after retry, got %+v (%v)", point, err)
	}
	if got := atomic.LoadInt32(&locationStore.ReportCallCount); got != 2 {
		t.Errorf("expected 2 report attempts, got %d", got)
	}
}

func TestListCandidates_Ranking(t *testing.T) {
	ctx := context.Background()
	svc, courierRepo, locationStore, _ := newCourierFixture()

	now := time.Now()

	// Busy but fresh.
	courierRepo.AddCourier(&domain.Courier{ID: "courier-busy", BranchID: "branch-1", IsActive: true, IsOnline: true, IsAvailable: false, Rating: 5.0})
	// Available with a stale fix.
	courierRepo.AddCourier(&domain.Courier{ID: "courier-stale", BranchID: "branch-1", IsActive: true, IsOnline: true, IsAvailable: true, Rating: 4.9})
	// Available, fresh, lower rating.
	courierRepo.AddCourier(&domain.Courier{ID: "courier-fresh-low", BranchID: "branch-1", IsActive: true, IsOnline: true, IsAvailable: true, Rating: 4.2})
	// Available, fresh, higher rating.
	courierRepo.AddCourier(&domain.Courier{ID: "courier-fresh-high", BranchID: "branch-1", IsActive: true, IsOnline: true, IsAvailable: true, Rating: 4.8})
	// Another branch, must not appear.
	courierRepo.AddCourier(&domain.Courier{ID: "courier-elsewhere", BranchID: "branch-2", IsActive: true, IsOnline: true, IsAvailable: true})

	locationStore.Report(ctx, "courier-busy", 41.30, 69.24, now)
	locationStore.Report(ctx, "courier-stale", 41.31, 69.25, now.Add(-domain.LocationFreshness-time.Minute))
	locationStore.Report(ctx, "courier-fresh-low", 41.32, 69.26, now)
	locationStore.Report(ctx, "courier-fresh-high", 41.33, 69.27, now)

	candidates, err := svc.ListCandidates(ctx, "branch-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	got := make([]string, len(candidates))
	for i, c := range candidates {
		got[i] = c.Courier.ID
	}

	want := []string{"courier-fresh-high", "courier-fresh-low", "courier-stale", "courier-busy"}
	if len(got) != len(want) {
		t.Fatalf("expected %d candidates, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}

	// Freshness flags come back with the entries.
	if candidates[0].Location == nil || !candidates[0].Fresh {
		t.Error("expected fresh flag on courier-fresh-high")
	}
	for _, c := range candidates {
		if c.Courier.ID == "courier-stale" && c.Fresh {
			t.Error("expected courier-stale marked stale")
		}
	}
}

func TestListCandidates_LocationStoreDownDegrades(t *testing.T) {
	ctx := context.Background()
	svc, courierRepo, locationStore, _ := newCourierFixture()

	courierRepo.AddCourier(&domain.Courier{ID: "courier-1", BranchID: "branch-1", IsActive: true, IsAvailable: true})
	locationStore.GetBatchError = errors.New("redis: connection refused")

	candidates, err := svc.ListCandidates(ctx, "branch-1")
	if err != nil {
		t.Fatalf("expected degraded listing, got %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected one candidate, got %d", len(candidates))
	}
	if candidates[0].Location != nil || candidates[0].Fresh {
		t.Errorf("expected unknown location, got %+v", candidates[0])
	}
}

func TestSetOnline_OfflineKeepsLastLocation(t *testing.T) {
	ctx := context.Background()
	svc, courierRepo, _, notifier := newCourierFixture()

	courierRepo.AddCourier(&domain.Courier{ID: "courier-1", IsActive: true, IsOnline: true})

	if err := svc.ReportLocation(ctx, service.ReportLocationRequest{
		CourierID: "courier-1", Lat: 41.30, Lng: 69.24,
	}); err != nil {
		t.Fatalf("report failed: %v", err)
	}

	if err := svc.SetOnline(ctx, "courier-1", false); err != nil {
		t.Fatalf("set offline failed: %v", err)
	}

	if courierRepo.GetCourier("courier-1").IsOnline {
		t.Error("expected courier offline")
	}

	// Going off shift keeps the trail until the next report.
	point, err := svc.GetLocation(ctx, "courier-1")
	if err != nil || point == nil {
		t.Fatalf("expected last location retained, got %+v (%v)", point, err)
	}
	if len(notifier.CourierOnline) != 1 {
		t.Errorf("expected one online event, got %v", notifier.CourierOnline)
	}
}

func TestDeactivate_DropsLiveState(t *testing.T) {
	ctx := context.Background()
	svc, courierRepo, _, _ := newCourierFixture()

	courierRepo.AddCourier(&domain.Courier{ID: "courier-1", BranchID: "branch-1", IsActive: true})

	if err := svc.ReportLocation(ctx, service.ReportLocationRequest{
		CourierID: "courier-1", Lat: 41.30, Lng: 69.24,
	}); err != nil {
		t.Fatalf("report failed: %v", err)
	}

	if err := svc.Deactivate(ctx, "courier-1"); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}

	if courierRepo.GetCourier("courier-1").IsActive {
		t.Error("expected courier inactive")
	}
	point, err := svc.GetLocation(ctx, "courier-1")
	if err != nil {
		t.Fatalf("get location failed: %v", err)
	}
	if point != nil {
		t.Errorf("expected location removed, got %+v", point)
	}
}

func TestFindNearby_SkipsInactiveAndDecoratesFreshness(t *testing.T) {
	ctx := context.Background()
	svc, courierRepo, locationStore, _ := newCourierFixture()

	now := time.Now()
	courierRepo.AddCourier(&domain.Courier{ID: "courier-1", IsActive: true, IsAvailable: true})
	courierRepo.AddCourier(&domain.Courier{ID: "courier-fired", IsActive: false})
	locationStore.Report(ctx, "courier-1", 41.30, 69.24, now)
	locationStore.Report(ctx, "courier-fired", 41.31, 69.25, now)

	candidates, err := svc.FindNearby(ctx, 41.30, 69.24, 5)
	if err != nil {
		t.Fatalf("nearby failed: %v", err)
	}

	if len(candidates) != 1 || candidates[0].Courier.ID != "courier-1" {
		t.Fatalf("expected only courier-1, got %d candidates", len(candidates))
	}
	if candidates[0].Location == nil || !candidates[0].Fresh {
		t.Errorf("expected fresh location attached, got %+v", candidates[0])
	}

	if _, err := svc.FindNearby(ctx, 141.0, 69.24, 5); !errors.Is(err, service.ErrInvalidLocation) {
		t.Errorf("expected location validation error, got %v", err)
	}
}

func TestListAvailable_FallsBackToRepository(t *testing.T) {
	ctx := context.Background()
	svc, courierRepo, _, _ := newCourierFixture()

	courierRepo.AddCourier(&domain.Courier{ID: "courier-free", IsActive: true, IsAvailable: true})
	courierRepo.AddCourier(&domain.Courier{ID: "courier-busy", IsActive: true, IsAvailable: false})
	courierRepo.AddCourier(&domain.Courier{ID: "courier-fired", IsActive: false, IsAvailable: true})

	couriers, err := svc.ListAvailable(ctx)
	if err != nil {
		t.Fatalf("list available failed: %v", err)
	}

	if len(couriers) != 1 || couriers[0].ID != "courier-free" {
		got := make([]string, len(couriers))
		for i, c := range couriers {
			got[i] = c.ID
		}
		t.Errorf("expected only courier-free, got %v", got)
	}
}

func TestGetCourier(t *testing.T) {
	ctx := context.Background()
	svc, courierRepo, _, _ := newCourierFixture()

	courierRepo.AddCourier(&domain.Courier{ID: "courier-1", BranchID: "branch-1", IsActive: true})

	courier, err := svc.GetCourier(ctx, "courier-1")
	if err != nil {
		t.Fatalf("get courier failed: %v", err)
	}
	if courier.BranchID != "branch-1" {
		t.Errorf("expected branch-1, got %q", courier.BranchID)
	}

	if _, err := svc.GetCourier(ctx, ""); !errors.Is(err, service.ErrInvalidCourierID) {
		t.Errorf("expected id validation error, got %v", err)
	}
}

func TestRegister_DefaultsOfflineAvailable(t *testing.T) {
	ctx := context.Background()
	svc, courierRepo, _, _ := newCourierFixture()

	courier, err := svc.Register(ctx, service.RegisterCourierRequest{
		BranchID:    "branch-1",
		Name:        "Bekzod",
		Phone:       "+998901234567",
		VehicleType: domain.VehicleTypeBike,
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if courier.ID == "" {
		t.Error("expected generated id")
	}
	if courier.IsOnline {
		t.Error("expected new courier offline")
	}
	if !courier.IsAvailable || !courier.IsActive {
		t.Error("expected new courier available and active")
	}
	if courierRepo.GetCourier(courier.ID) == nil {
		t.Error("expected courier persisted")
	}

	if _, err := svc.Register(ctx, service.RegisterCourierRequest{Name: "no branch"}); !errors.Is(err, service.ErrInvalidBranchID) {
		t.Errorf("expected branch validation error, got %v", err)
	}
}
