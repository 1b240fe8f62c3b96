package fraud

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

type MockHistoryStore struct {
	mock.Mock
}

func (m *MockHistoryStore) RecentCheckIn(ctx context.Context, employeeID uuid.UUID, within time.Duration) (*domain.CheckInEvent, error) {
	args := m.Called(ctx, employeeID, within)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CheckInEvent), args.Error(1)
}

func (m *MockHistoryStore) HistoricalCheckIns(ctx context.Context, employeeID uuid.UUID, lookbackDays int) ([]domain.HistoricalCheckIn, error) {
	args := m.Called(ctx, employeeID, lookbackDays)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.HistoricalCheckIn), args.Error(1)
}

func (m *MockHistoryStore) OpenSessions(ctx context.Context, employeeID uuid.UUID, within time.Duration) ([]domain.OpenSession, error) {
	args := m.Called(ctx, employeeID, within)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.OpenSession), args.Error(1)
}

var (
	hq     = domain.GeoPoint{Latitude: -23.5505, Longitude: -46.6333}
	branch = domain.GeoPoint{Latitude: -23.5520, Longitude: -46.6350} // ~230m from hq
	suburb = domain.GeoPoint{Latitude: -23.1462, Longitude: -46.6333} // ~45km from hq
	rio    = domain.GeoPoint{Latitude: -22.9068, Longitude: -43.1729} // ~360km from hq
)

// clusterAround returns n historical check-ins tightly spread around a point.
func clusterAround(center domain.GeoPoint, n int) []domain.HistoricalCheckIn {
	out := make([]domain.HistoricalCheckIn, n)
	for i := range out {
		p := domain.GeoPoint{
			Latitude:  center.Latitude + float64(i%3)*0.0001,
			Longitude: center.Longitude + float64(i%2)*0.0001,
		}
		out[i] = domain.HistoricalCheckIn{
			At:    time.Now().UTC().Add(-time.Duration(i+1) * 24 * time.Hour),
			Point: &p,
		}
	}
	return out
}

func TestDetectImpossibleTravel(t *testing.T) {
	employeeID := uuid.New()

	tests := []struct {
		name         string
		last         *domain.CheckInEvent
		current      domain.GeoPoint
		wantAlert    bool
		wantSeverity domain.Severity
	}{
		{
			name:      "no recent check-in",
			last:      nil,
			current:   hq,
			wantAlert: false,
		},
		{
			name: "reasonable commute",
			last: &domain.CheckInEvent{
				At:    time.Now().UTC().Add(-30 * time.Minute),
				Point: branch,
			},
			current:   hq,
			wantAlert: false,
		},
		{
			name: "45km in 15 minutes is high",
			last: &domain.CheckInEvent{
				// required speed ~180km/h, ratio ~2.25 -> high
				At:    time.Now().UTC().Add(-15 * time.Minute),
				Point: suburb,
			},
			current:      hq,
			wantAlert:    true,
			wantSeverity: domain.SeverityHigh,
		},
		{
			name: "360km in 15 minutes is critical",
			last: &domain.CheckInEvent{
				At:    time.Now().UTC().Add(-15 * time.Minute),
				Point: rio,
			},
			current:      hq,
			wantAlert:    true,
			wantSeverity: domain.SeverityCritical,
		},
		{
			name: "360km in 150 minutes is barely over the limit",
			last: &domain.CheckInEvent{
				// required speed ~144km/h, ratio ~1.8 -> medium
				At:    time.Now().UTC().Add(-150 * time.Minute),
				Point: rio,
			},
			current:      hq,
			wantAlert:    true,
			wantSeverity: domain.SeverityMedium,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(MockHistoryStore)
			store.On("RecentCheckIn", mock.Anything, employeeID, time.Hour).Return(tt.last, nil)

			detector := NewDetector(store, DefaultConfig())
			alert, err := detector.DetectImpossibleTravel(context.Background(), employeeID, tt.current)
			require.NoError(t, err)

			if !tt.wantAlert {
				assert.Nil(t, alert)
				return
			}

			require.NotNil(t, alert)
			assert.Equal(t, domain.AlertImpossibleTravel, alert.Type)
			assert.Equal(t, tt.wantSeverity, alert.Severity)
			assert.Contains(t, alert.Message, "Impossible travel detected")

			details, ok := alert.Details.(domain.ImpossibleTravelDetails)
			require.True(t, ok)
			assert.Greater(t, details.RequiredSpeedKmh, 80.0)
			assert.Equal(t, 80.0, details.MaxReasonableSpeedKmh)
		})
	}
}

func TestDetectImpossibleTravel_SubMinuteElapsed(t *testing.T) {
	employeeID := uuid.New()
	store := new(MockHistoryStore)
	store.On("RecentCheckIn", mock.Anything, employeeID, time.Hour).Return(&domain.CheckInEvent{
		At:    time.Now().UTC().Add(-10 * time.Second),
		Point: rio,
	}, nil)

	detector := NewDetector(store, DefaultConfig())
	alert, err := detector.DetectImpossibleTravel(context.Background(), employeeID, hq)
	require.NoError(t, err)

	// Elapsed time floors to one minute, so the required speed stays finite.
	require.NotNil(t, alert)
	details := alert.Details.(domain.ImpossibleTravelDetails)
	assert.InDelta(t, 1.0, details.ElapsedMinutes, 0.2)
	assert.Equal(t, domain.SeverityCritical, alert.Severity)
}

func TestDetectLocationAnomaly(t *testing.T) {
	employeeID := uuid.New()

	t.Run("too little history", func(t *testing.T) {
		store := new(MockHistoryStore)
		store.On("HistoricalCheckIns", mock.Anything, employeeID, 30).
			Return(clusterAround(hq, 4), nil)

		detector := NewDetector(store, DefaultConfig())
		alert, err := detector.DetectLocationAnomaly(context.Background(), employeeID, rio)
		require.NoError(t, err)
		assert.Nil(t, alert)
	})

	t.Run("check-in near usual spot", func(t *testing.T) {
		store := new(MockHistoryStore)
		store.On("HistoricalCheckIns", mock.Anything, employeeID, 30).
			Return(clusterAround(hq, 10), nil)

		detector := NewDetector(store, DefaultConfig())
		alert, err := detector.DetectLocationAnomaly(context.Background(), employeeID, hq)
		require.NoError(t, err)
		assert.Nil(t, alert)
	})

	t.Run("check-in far from usual spot is critical", func(t *testing.T) {
		store := new(MockHistoryStore)
		store.On("HistoricalCheckIns", mock.Anything, employeeID, 30).
			Return(clusterAround(hq, 10), nil)

		detector := NewDetector(store, DefaultConfig())
		alert, err := detector.DetectLocationAnomaly(context.Background(), employeeID, rio)
		require.NoError(t, err)

		require.NotNil(t, alert)
		assert.Equal(t, domain.AlertLocationAnomaly, alert.Type)
		assert.Equal(t, domain.SeverityCritical, alert.Severity)
		assert.Equal(t, 0.98, alert.Confidence)

		details, ok := alert.Details.(domain.LocationAnomalyDetails)
		require.True(t, ok)
		assert.Equal(t, 10, details.HistoricalCheckIns)
		assert.Greater(t, details.ZScore, 6.0)
	})

	t.Run("entries without coordinates are skipped", func(t *testing.T) {
		history := clusterAround(hq, 6)
		history[0].Point = nil
		history[3].Point = nil

		store := new(MockHistoryStore)
		store.On("HistoricalCheckIns", mock.Anything, employeeID, 30).Return(history, nil)

		detector := NewDetector(store, DefaultConfig())
		alert, err := detector.DetectLocationAnomaly(context.Background(), employeeID, rio)
		require.NoError(t, err)
		// Only 4 usable points remain, below the significance minimum.
		assert.Nil(t, alert)
	})
}

func TestDetectConcurrentCheckIns(t *testing.T) {
	employeeID := uuid.New()

	t.Run("single open session is normal", func(t *testing.T) {
		store := new(MockHistoryStore)
		store.On("OpenSessions", mock.Anything, employeeID, 5*time.Minute).
			Return([]domain.OpenSession{{RecordID: uuid.New()}}, nil)

		detector := NewDetector(store, DefaultConfig())
		alert, err := detector.DetectConcurrentCheckIns(context.Background(), employeeID)
		require.NoError(t, err)
		assert.Nil(t, alert)
	})

	t.Run("two open sessions is critical", func(t *testing.T) {
		sessions := []domain.OpenSession{
			{RecordID: uuid.New(), CheckInAt: time.Now().UTC().Add(-3 * time.Minute)},
			{RecordID: uuid.New(), CheckInAt: time.Now().UTC().Add(-1 * time.Minute)},
		}
		store := new(MockHistoryStore)
		store.On("OpenSessions", mock.Anything, employeeID, 5*time.Minute).Return(sessions, nil)

		detector := NewDetector(store, DefaultConfig())
		alert, err := detector.DetectConcurrentCheckIns(context.Background(), employeeID)
		require.NoError(t, err)

		require.NotNil(t, alert)
		assert.Equal(t, domain.AlertConcurrentCheckIns, alert.Type)
		assert.Equal(t, domain.SeverityCritical, alert.Severity)
		assert.Equal(t, 0.99, alert.Confidence)
		assert.Contains(t, alert.Message, "2 active sessions")
	})
}

func TestDetectDeviceAnomaly(t *testing.T) {
	employeeID := uuid.New()

	withDevices := func(devices ...string) []domain.HistoricalCheckIn {
		out := make([]domain.HistoricalCheckIn, len(devices))
		for i, d := range devices {
			out[i] = domain.HistoricalCheckIn{
				At:                time.Now().UTC().Add(-time.Duration(i+1) * time.Hour),
				DeviceFingerprint: d,
			}
		}
		return out
	}

	t.Run("too little history", func(t *testing.T) {
		store := new(MockHistoryStore)
		store.On("HistoricalCheckIns", mock.Anything, employeeID, 30).
			Return(withDevices("a", "b"), nil)

		detector := NewDetector(store, DefaultConfig())
		alert, err := detector.DetectDeviceAnomaly(context.Background(), employeeID, "a")
		require.NoError(t, err)
		assert.Nil(t, alert)
	})

	t.Run("consistent single device", func(t *testing.T) {
		store := new(MockHistoryStore)
		store.On("HistoricalCheckIns", mock.Anything, employeeID, 30).
			Return(withDevices("a", "a", "a", "a"), nil)

		detector := NewDetector(store, DefaultConfig())
		alert, err := detector.DetectDeviceAnomaly(context.Background(), employeeID, "a")
		require.NoError(t, err)
		assert.Nil(t, alert)
	})

	t.Run("four devices is medium", func(t *testing.T) {
		store := new(MockHistoryStore)
		store.On("HistoricalCheckIns", mock.Anything, employeeID, 30).
			Return(withDevices("a", "b", "c", "d", "a", "b"), nil)

		detector := NewDetector(store, DefaultConfig())
		alert, err := detector.DetectDeviceAnomaly(context.Background(), employeeID, "a")
		require.NoError(t, err)

		require.NotNil(t, alert)
		assert.Equal(t, domain.AlertDeviceAnomaly, alert.Type)
		assert.Equal(t, domain.SeverityMedium, alert.Severity)

		details := alert.Details.(domain.DeviceAnomalyDetails)
		assert.Equal(t, 4, details.UniqueDevices)
		assert.True(t, details.CurrentKnown)
	})

	t.Run("six devices is high", func(t *testing.T) {
		store := new(MockHistoryStore)
		store.On("HistoricalCheckIns", mock.Anything, employeeID, 30).
			Return(withDevices("a", "b", "c", "d", "e", "f"), nil)

		detector := NewDetector(store, DefaultConfig())
		alert, err := detector.DetectDeviceAnomaly(context.Background(), employeeID, "a")
		require.NoError(t, err)

		require.NotNil(t, alert)
		assert.Equal(t, domain.SeverityHigh, alert.Severity)
	})

	t.Run("new device after long single-device history", func(t *testing.T) {
		history := withDevices("a", "a", "a", "a", "a", "a", "a", "a", "a", "a", "a")

		store := new(MockHistoryStore)
		store.On("HistoricalCheckIns", mock.Anything, employeeID, 30).Return(history, nil)

		detector := NewDetector(store, DefaultConfig())
		alert, err := detector.DetectDeviceAnomaly(context.Background(), employeeID, "never-seen")
		require.NoError(t, err)

		require.NotNil(t, alert)
		assert.Equal(t, domain.SeverityMedium, alert.Severity)
		assert.Equal(t, 0.75, alert.Confidence)

		details := alert.Details.(domain.DeviceAnomalyDetails)
		assert.True(t, details.NewDevice)
		assert.False(t, details.CurrentKnown)
	})

	t.Run("blank fingerprints are ignored", func(t *testing.T) {
		store := new(MockHistoryStore)
		store.On("HistoricalCheckIns", mock.Anything, employeeID, 30).
			Return(withDevices("", "", "a", "a"), nil)

		detector := NewDetector(store, DefaultConfig())
		alert, err := detector.DetectDeviceAnomaly(context.Background(), employeeID, "a")
		require.NoError(t, err)
		// Only 2 fingerprinted check-ins remain, below the minimum.
		assert.Nil(t, alert)
	})
}

func TestCheck(t *testing.T) {
	employeeID := uuid.New()

	t.Run("clean attempt yields no alerts", func(t *testing.T) {
		store := new(MockHistoryStore)
		store.On("RecentCheckIn", mock.Anything, employeeID, time.Hour).Return(nil, nil)
		store.On("HistoricalCheckIns", mock.Anything, employeeID, 30).
			Return(clusterAround(hq, 10), nil)
		store.On("OpenSessions", mock.Anything, employeeID, 5*time.Minute).
			Return([]domain.OpenSession{}, nil)

		detector := NewDetector(store, DefaultConfig())
		alerts, err := detector.Check(context.Background(), employeeID, &hq, "kiosk-1", true)
		require.NoError(t, err)
		assert.Empty(t, alerts)
		store.AssertExpectations(t)
	})

	t.Run("no point skips geo checks", func(t *testing.T) {
		store := new(MockHistoryStore)
		store.On("HistoricalCheckIns", mock.Anything, employeeID, 30).
			Return([]domain.HistoricalCheckIn{}, nil)
		store.On("OpenSessions", mock.Anything, employeeID, 5*time.Minute).
			Return([]domain.OpenSession{}, nil)

		detector := NewDetector(store, DefaultConfig())
		alerts, err := detector.Check(context.Background(), employeeID, nil, "kiosk-1", true)
		require.NoError(t, err)
		assert.Empty(t, alerts)
		store.AssertNotCalled(t, "RecentCheckIn", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("check-out skips concurrent session check", func(t *testing.T) {
		store := new(MockHistoryStore)
		store.On("RecentCheckIn", mock.Anything, employeeID, time.Hour).Return(nil, nil)
		store.On("HistoricalCheckIns", mock.Anything, employeeID, 30).
			Return(clusterAround(hq, 10), nil)

		detector := NewDetector(store, DefaultConfig())
		_, err := detector.Check(context.Background(), employeeID, &hq, "kiosk-1", false)
		require.NoError(t, err)
		store.AssertNotCalled(t, "OpenSessions", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("alerts come back in fixed order", func(t *testing.T) {
		sessions := []domain.OpenSession{
			{RecordID: uuid.New()},
			{RecordID: uuid.New()},
		}
		store := new(MockHistoryStore)
		store.On("RecentCheckIn", mock.Anything, employeeID, time.Hour).Return(&domain.CheckInEvent{
			At:    time.Now().UTC().Add(-10 * time.Minute),
			Point: hq,
		}, nil)
		store.On("HistoricalCheckIns", mock.Anything, employeeID, 30).
			Return(clusterAround(hq, 10), nil)
		store.On("OpenSessions", mock.Anything, employeeID, 5*time.Minute).Return(sessions, nil)

		detector := NewDetector(store, DefaultConfig())
		alerts, err := detector.Check(context.Background(), employeeID, &rio, "", true)
		require.NoError(t, err)

		// Current point rio vs hq history: travel and location both fire,
		// plus the concurrent sessions; device skipped (no fingerprint).
		require.Len(t, alerts, 3)
		assert.Equal(t, domain.AlertImpossibleTravel, alerts[0].Type)
		assert.Equal(t, domain.AlertConcurrentCheckIns, alerts[1].Type)
		assert.Equal(t, domain.AlertLocationAnomaly, alerts[2].Type)
	})

	t.Run("store failure aborts", func(t *testing.T) {
		store := new(MockHistoryStore)
		store.On("RecentCheckIn", mock.Anything, employeeID, time.Hour).
			Return(nil, errors.New("connection refused"))
		store.On("HistoricalCheckIns", mock.Anything, employeeID, 30).
			Return([]domain.HistoricalCheckIn{}, nil).Maybe()
		store.On("OpenSessions", mock.Anything, employeeID, 5*time.Minute).
			Return([]domain.OpenSession{}, nil).Maybe()

		detector := NewDetector(store, DefaultConfig())
		_, err := detector.Check(context.Background(), employeeID, &hq, "kiosk-1", true)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "fraud detection")
	})
}
