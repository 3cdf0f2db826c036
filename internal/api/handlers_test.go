package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/fittrack/internal/auth"
	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/motion"
	"example.com/fittrack/internal/outbox"
	"example.com/fittrack/internal/persistence"
	"example.com/fittrack/internal/session"
)

var now = time.Date(2025, time.March, 5, 9, 0, 0, 0, time.UTC)

type fixture struct {
	mux     *http.ServeMux
	hub     *motion.Hub
	session *session.Session
	store   *domain.Store
}

func newFixture(t *testing.T, gw domain.Gateway, opts ...Option) *fixture {
	t.Helper()
	quiet := log.New(io.Discard, "", 0)
	clock := func() time.Time { return now }

	store := domain.NewStore(gw, domain.WithLogger(quiet), domain.WithClock(clock))
	hub := motion.NewHub()
	sess := session.New(hub, store, session.WithTimerTick(0), session.WithLogger(quiet), session.WithClock(clock))
	t.Cleanup(func() { _ = sess.Close() })

	opts = append([]Option{WithLogger(quiet), WithClock(clock)}, opts...)
	handler := NewHandler(domain.NewService(store), sess, opts...)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	return &fixture{mux: mux, hub: hub, session: sess, store: store}
}

func (f *fixture) do(t *testing.T, method, target string, body any, scopes ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	if scopes != nil {
		set := make(map[string]struct{}, len(scopes))
		for _, s := range scopes {
			set[s] = struct{}{}
		}
		req = req.WithContext(auth.WithClaims(req.Context(), &auth.Claims{
			Subject:   "tester",
			Scopes:    set,
			ExpiresAt: time.Now().Add(time.Hour),
		}))
	}
	rr := httptest.NewRecorder()
	f.mux.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

type brokenGateway struct{}

func (brokenGateway) Get(context.Context, string) (string, bool, error) { return "", false, nil }
func (brokenGateway) Set(context.Context, string, string) error {
	return errors.New("disk full")
}

func TestScopesAreEnforced(t *testing.T) {
	f := newFixture(t, persistence.NewMemory())

	rr := f.do(t, http.MethodGet, "/v1/dashboard", nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = f.do(t, http.MethodPost, "/v1/session/start", nil, auth.ScopeTrackerRead)
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = f.do(t, http.MethodGet, "/v1/dashboard", nil, auth.ScopeTrackerWrite)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(t, http.MethodDelete, "/v1/dashboard", nil, auth.ScopeTrackerWrite)
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	f := newFixture(t, persistence.NewMemory())

	rr := f.do(t, http.MethodPut, "/v1/session/type", SetActivityTypeRequest{ActivityType: "running"}, auth.ScopeTrackerWrite)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(t, http.MethodPost, "/v1/session/start", nil, auth.ScopeTrackerWrite)
	require.Equal(t, http.StatusOK, rr.Code)
	snap := decode[session.Snapshot](t, rr)
	require.True(t, snap.Running)
	require.Equal(t, "running", snap.ActivityType)

	at := now
	for i := 0; i < 40; i++ {
		at = at.Add(150 * time.Millisecond)
		f.hub.Push(motion.Sample{X: 1, Y: 1, Z: 1, T: at})
	}
	for i := 0; i < 120; i++ {
		f.session.Timer().Tick()
	}

	rr = f.do(t, http.MethodPut, "/v1/session/type", SetActivityTypeRequest{ActivityType: "cycling"}, auth.ScopeTrackerWrite)
	require.Equal(t, http.StatusConflict, rr.Code, "type is locked once time has elapsed")

	rr = f.do(t, http.MethodPost, "/v1/session/finish", nil, auth.ScopeTrackerWrite)
	require.Equal(t, http.StatusCreated, rr.Code)
	finished := decode[FinishResponse](t, rr)
	require.True(t, finished.Persisted)
	require.Empty(t, finished.Warning)
	require.Equal(t, "02:00", finished.Record.Duration)
	require.Equal(t, 22, finished.Record.Calories)
	require.Equal(t, 40, finished.Record.Steps)
	require.Equal(t, 40, finished.TotalSteps)

	rr = f.do(t, http.MethodPost, "/v1/session/finish", nil, auth.ScopeTrackerWrite)
	require.Equal(t, http.StatusConflict, rr.Code, "a fresh session has nothing to finish")

	rr = f.do(t, http.MethodGet, "/v1/session", nil, auth.ScopeTrackerRead)
	require.Equal(t, session.StateConfiguring, decode[session.Snapshot](t, rr).State)
}

func TestPushSamplesRequiresHub(t *testing.T) {
	f := newFixture(t, persistence.NewMemory())
	rr := f.do(t, http.MethodPost, "/v1/motion/samples", PushSamplesRequest{Samples: []SampleView{{Z: 1}}}, auth.ScopeTrackerWrite)
	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestPushSamplesFanOut(t *testing.T) {
	hub := motion.NewHub()
	f := newFixture(t, persistence.NewMemory(), WithHub(hub))

	var got []motion.Sample
	sub, err := hub.Subscribe(func(s motion.Sample) { got = append(got, s) })
	require.NoError(t, err)
	defer sub.Cancel()

	rr := f.do(t, http.MethodPost, "/v1/motion/samples", PushSamplesRequest{Samples: []SampleView{
		{X: 0, Y: 0, Z: 1.5, T: 1741165200000},
		{X: 0, Y: 0, Z: 0.9},
	}}, auth.ScopeTrackerWrite)
	require.Equal(t, http.StatusAccepted, rr.Code)
	resp := decode[PushSamplesResponse](t, rr)
	require.Equal(t, 2, resp.Accepted)
	require.Equal(t, 2, resp.Delivered)
	require.Len(t, got, 2)
	require.Equal(t, int64(1741165200000), got[0].T.UnixMilli())
	require.True(t, got[1].T.Equal(now), "missing timestamps use the server clock")
}

func TestCreateManualActivity(t *testing.T) {
	f := newFixture(t, persistence.NewMemory())

	rr := f.do(t, http.MethodPost, "/v1/activities", map[string]any{
		"type":     "Yoga",
		"duration": "45:00",
		"calories": 180,
	}, auth.ScopeTrackerWrite)
	require.Equal(t, http.StatusCreated, rr.Code)
	created := decode[CreateActivityResponse](t, rr)
	require.True(t, created.Persisted)
	require.Equal(t, "Yoga", created.Activity.Type)
	require.Equal(t, 0, created.Activity.Steps)
	require.Equal(t, 0, f.store.DailySteps(), "manual entries never touch the step counter")

	rr = f.do(t, http.MethodGet, "/v1/activities?q=yo", nil, auth.ScopeTrackerRead)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, decode[ListActivitiesResponse](t, rr).Items, 1)
}

func TestCreateManualActivityValidation(t *testing.T) {
	f := newFixture(t, persistence.NewMemory())

	rr := f.do(t, http.MethodPost, "/v1/activities", map[string]any{
		"type":     "",
		"duration": "45",
		"calories": "lots",
	}, auth.ScopeTrackerWrite)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var body struct {
		Type   string            `json:"type"`
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "validation_failed", body.Type)
	require.Contains(t, body.Fields, "type")
	require.Contains(t, body.Fields, "duration")
	require.Contains(t, body.Fields, "calories")
	require.Empty(t, f.store.Activities())

	rr = f.do(t, http.MethodPost, "/v1/activities", nil, auth.ScopeTrackerWrite)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPersistenceFailureIsAWarning(t *testing.T) {
	f := newFixture(t, brokenGateway{})

	rr := f.do(t, http.MethodPost, "/v1/activities", map[string]any{
		"type":     "walking",
		"duration": "10:00",
		"calories": "40",
	}, auth.ScopeTrackerWrite)
	require.Equal(t, http.StatusCreated, rr.Code)
	created := decode[CreateActivityResponse](t, rr)
	require.False(t, created.Persisted)
	require.Contains(t, created.Warning, "disk full")
	require.Len(t, f.store.Activities(), 1)

	rr = f.do(t, http.MethodPut, "/v1/goal", GoalRequest{DailyGoal: 12000}, auth.ScopeTrackerWrite)
	require.Equal(t, http.StatusOK, rr.Code)
	goal := decode[GoalResponse](t, rr)
	require.Equal(t, 12000, goal.DailyGoal)
	require.False(t, goal.Persisted)
}

func TestGoalValidation(t *testing.T) {
	f := newFixture(t, persistence.NewMemory())

	rr := f.do(t, http.MethodPut, "/v1/goal", GoalRequest{DailyGoal: 500}, auth.ScopeTrackerWrite)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "between 1,000 and 100,000")
	require.Equal(t, domain.DefaultDailyGoal, f.store.DailyGoal())

	rr = f.do(t, http.MethodPut, "/v1/goal", GoalRequest{DailyGoal: 15000}, auth.ScopeTrackerWrite)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(t, http.MethodGet, "/v1/goal", nil, auth.ScopeTrackerRead)
	require.Equal(t, 15000, decode[GoalResponse](t, rr).DailyGoal)
}

func TestProfileEndpoints(t *testing.T) {
	f := newFixture(t, persistence.NewMemory())

	rr := f.do(t, http.MethodPut, "/v1/profile/image", ImageRequest{Image: "file:///avatar.png"}, auth.ScopeTrackerWrite)
	require.Equal(t, http.StatusOK, rr.Code)
	partial := decode[ProfileResponse](t, rr)
	require.NotNil(t, partial.Profile)
	require.Equal(t, "file:///avatar.png", partial.Profile.Image)

	rr = f.do(t, http.MethodPut, "/v1/profile", map[string]any{
		"firstName": "Ada",
		"lastName":  "Lovelace",
		"height":    170,
		"weight":    "60.5",
		"dailyGoal": "8000",
	}, auth.ScopeTrackerWrite)
	require.Equal(t, http.StatusOK, rr.Code)
	full := decode[ProfileResponse](t, rr)
	require.Equal(t, "Ada", full.Profile.FirstName)
	require.Equal(t, "170", full.Profile.Height)
	require.Equal(t, 8000, full.DailyGoal)
	require.True(t, full.Persisted)

	rr = f.do(t, http.MethodPut, "/v1/profile", map[string]any{
		"firstName": "Ada",
		"dailyGoal": 50,
	}, auth.ScopeTrackerWrite)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, 8000, f.store.DailyGoal(), "an invalid form changes nothing")

	rr = f.do(t, http.MethodPut, "/v1/profile/image", ImageRequest{Image: "  "}, auth.ScopeTrackerWrite)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSummaryDashboardCalendar(t *testing.T) {
	f := newFixture(t, persistence.NewMemory())
	_, _, err := f.store.AddActivity(context.Background(), domain.NewActivity{
		Date: now.Add(-time.Hour), Type: "running", Duration: "30:00", Calories: 330, Steps: 4000, Source: domain.SourceManual,
	})
	require.NoError(t, err)

	rr := f.do(t, http.MethodGet, "/v1/summary?period=weekly", nil, auth.ScopeTrackerRead)
	require.Equal(t, http.StatusOK, rr.Code)
	sum := decode[domain.Summary](t, rr)
	require.Equal(t, domain.PeriodWeekly, sum.Period)
	require.Equal(t, 4000, sum.TotalSteps)

	rr = f.do(t, http.MethodGet, "/v1/summary?period=yearly", nil, auth.ScopeTrackerRead)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(t, http.MethodGet, "/v1/dashboard", nil, auth.ScopeTrackerRead)
	require.Equal(t, http.StatusOK, rr.Code)
	dash := decode[domain.DashboardStats](t, rr)
	require.Equal(t, 330, dash.DailyCalories)
	require.Equal(t, "30:00", dash.ActiveTime)

	rr = f.do(t, http.MethodGet, "/v1/calendar", nil, auth.ScopeTrackerRead)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, []string{"2025-03-05"}, decode[map[string][]string](t, rr)["markedDates"])
}

func TestExportActivities(t *testing.T) {
	f := newFixture(t, persistence.NewMemory())
	_, _, err := f.store.AddActivity(context.Background(), domain.NewActivity{
		Date: now, Type: "walking", Duration: "05:00", Calories: 20, Steps: 600, Source: domain.SourceManual,
	})
	require.NoError(t, err)

	rr := f.do(t, http.MethodGet, "/v1/activities/export", nil, auth.ScopeTrackerRead)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "text/csv", rr.Header().Get("Content-Type"))
	require.Contains(t, rr.Header().Get("Content-Disposition"), "fitness_activities_2025-03-05.csv")
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "Date,Type,Duration,Steps,Calories", lines[0])

	rr = f.do(t, http.MethodGet, "/v1/activities/export?format=parquet", nil, auth.ScopeTrackerRead)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "PAR1", rr.Body.String()[:4])

	rr = f.do(t, http.MethodGet, "/v1/activities/export?format=xml", nil, auth.ScopeTrackerRead)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, persistence.NewMemory())
	rr := f.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}

type stubOutbox struct {
	stats    outbox.Stats
	requeues int
}

func (o *stubOutbox) Stats() outbox.Stats { return o.stats }

func (o *stubOutbox) Requeue() int {
	o.requeues++
	moved := o.stats.DeadLetters
	o.stats.Queued += moved
	o.stats.DeadLetters = 0
	return moved
}

func TestOutboxAdminRoutes(t *testing.T) {
	ob := &stubOutbox{stats: outbox.Stats{Queued: 1, DeadLetters: 3}}
	f := newFixture(t, persistence.NewMemory(), WithOutbox(ob))

	rr := f.do(t, http.MethodPost, "/v1/admin/outbox/requeue", nil, auth.ScopeTrackerWrite)
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Zero(t, ob.requeues)

	rr = f.do(t, http.MethodGet, "/v1/admin/outbox", nil, auth.ScopeTrackerAdmin)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, outbox.Stats{Queued: 1, DeadLetters: 3}, decode[outbox.Stats](t, rr))

	rr = f.do(t, http.MethodPost, "/v1/admin/outbox/requeue", nil, auth.ScopeTrackerAdmin)
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[RequeueResponse](t, rr)
	require.Equal(t, 3, resp.Requeued)
	require.Equal(t, outbox.Stats{Queued: 4}, resp.Stats)
}

func TestOutboxAdminDisabled(t *testing.T) {
	f := newFixture(t, persistence.NewMemory())
	rr := f.do(t, http.MethodPost, "/v1/admin/outbox/requeue", nil, auth.ScopeTrackerAdmin)
	require.Equal(t, http.StatusConflict, rr.Code)
}
