package httptransport

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"pps/internal/beneficiary"
	"pps/internal/catalog"
	"pps/internal/economy"
	jwttoken "pps/internal/jwt_token"
	"pps/internal/platform/metrics"
	"pps/internal/shop"
	"pps/internal/storage"
	"pps/internal/tasks"
	"pps/pkg/domain"
	"pps/pkg/testutil"
)

const objectivePath = "prepuberty/corporality/1.1/"

type HandlerSuite struct {
	suite.Suite
	ctx    context.Context
	router http.Handler
	jwt    *jwttoken.JWTService
	people *beneficiary.Service
	items  *shop.Service
	tokens map[string]string
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctx = context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := func() time.Time { return time.Date(2028, time.March, 1, 10, 0, 0, 0, time.UTC) }

	tables := storage.NewMemory()
	cat, err := catalog.Default()
	s.Require().NoError(err)

	s.people = beneficiary.New(tables.Beneficiaries, beneficiary.WithLogger(logger), beneficiary.WithClock(now))
	s.items = shop.New(tables.Items, shop.WithLogger(logger), shop.WithClock(now))
	econ := economy.New(tables.Beneficiaries, economy.WithLogger(logger), economy.WithItems(s.items))
	taskSvc := tasks.New(tables, cat, tasks.WithLogger(logger), tasks.WithClock(now))

	s.jwt = jwttoken.NewJWTService("test-signing-key", "pps", "pps-api")
	s.router = NewRouter(RouterDeps{
		Handler:   New(s.people, econ, s.items, taskSvc, logger),
		Validator: jwttoken.NewJWTServiceAdapter(s.jwt),
		Metrics:   metrics.New(prometheus.NewRegistry()),
		Logger:    logger,
	})

	s.tokens = map[string]string{}
	for _, u := range []string{"alice", "bob", "carol"} {
		tok, err := s.jwt.GenerateAccessToken(u, time.Hour)
		s.Require().NoError(err)
		s.tokens[u] = tok
	}
	for _, u := range []string{"alice", "bob"} {
		birth, err := domain.ParseDate("01-01-2018")
		s.Require().NoError(err)
		_, err = s.people.Create(s.ctx, beneficiary.Registration{
			User:      u,
			District:  "d1",
			Group:     "g1",
			Unit:      domain.UnitScouts,
			FullName:  "Full " + u,
			Nickname:  u,
			Birthdate: birth,
		})
		s.Require().NoError(err)
	}
}

func (s *HandlerSuite) do(user, method, path string, body any) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = testutil.NewJSONRequest(s.T(), method, path, body)
	} else {
		req = testutil.NewRequest(s.T(), method, path)
	}
	if user != "" {
		req = testutil.WithBearer(req, s.tokens[user])
	}
	return testutil.DoRequest(s.router, req)
}

func (s *HandlerSuite) assign(user string) {
	rr := s.do(user, http.MethodPost, "/api/users/"+user+"/tasks/"+objectivePath, AssignRequest{
		Description: "run twice a week",
		SubTasks:    []string{"buy shoes", "run"},
	})
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
}

// =============================================================================
// Auth
// =============================================================================

func (s *HandlerSuite) TestAuth() {
	s.Run("health is public", func() {
		rr := s.do("", http.MethodGet, "/health", nil)
		testutil.AssertStatusOK(s.T(), rr)
	})

	s.Run("missing token is rejected", func() {
		rr := s.do("", http.MethodGet, "/api/beneficiaries/alice/", nil)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
	})

	s.Run("token of another user is forbidden", func() {
		rr := s.do("bob", http.MethodGet, "/api/beneficiaries/alice/", nil)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")
	})

	s.Run("expired token is rejected", func() {
		tok, err := s.jwt.GenerateAccessToken("alice", -time.Minute)
		s.Require().NoError(err)
		req := testutil.WithBearer(testutil.NewRequest(s.T(), http.MethodGet, "/api/beneficiaries/alice/"), tok)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
	})
}

// =============================================================================
// Beneficiaries
// =============================================================================

func (s *HandlerSuite) TestBeneficiaries() {
	s.Run("owner reads own profile", func() {
		rr := s.do("alice", http.MethodGet, "/api/beneficiaries/alice/", nil)
		testutil.AssertStatusOK(s.T(), rr)
		b := testutil.UnmarshalResponse[beneficiary.Beneficiary](s.T(), rr)
		s.Equal("alice", b.User)
		s.Equal("d1::g1", b.Group)
		s.Equal(domain.StagePrepuberty, b.Stage)
		s.Nil(b.Target)
	})

	s.Run("lists a group", func() {
		rr := s.do("alice", http.MethodGet, "/api/districts/d1/groups/g1/beneficiaries/", nil)
		testutil.AssertStatusOK(s.T(), rr)
		list := testutil.UnmarshalResponse[ListResponse[beneficiary.Beneficiary]](s.T(), rr)
		s.Equal(2, list.Count)
	})

	s.Run("lists a unit", func() {
		rr := s.do("alice", http.MethodGet, "/api/districts/d1/groups/g1/beneficiaries/guides/", nil)
		testutil.AssertStatusOK(s.T(), rr)
		list := testutil.UnmarshalResponse[ListResponse[beneficiary.Beneficiary]](s.T(), rr)
		s.Zero(list.Count)
		s.NotNil(list.Items)
	})

	s.Run("unknown unit is a validation error", func() {
		rr := s.do("alice", http.MethodGet, "/api/districts/d1/groups/g1/beneficiaries/rovers/", nil)
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})
}

func (s *HandlerSuite) TestRegister() {
	path := "/api/districts/d1/groups/g1/beneficiaries/"
	body := RegisterRequest{Unit: "guides", FullName: "Carol Smith", Nickname: "caro", Birthdate: "15-06-2014"}

	s.Run("subject registers itself", func() {
		rr := s.do("carol", http.MethodPost, path, body)
		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		b := testutil.UnmarshalResponse[beneficiary.Beneficiary](s.T(), rr)
		s.Equal("carol", b.User)
		s.Equal("guides::carol", b.UnitUser)
		s.Nil(b.Target)

		rr = s.do("carol", http.MethodGet, "/api/districts/d1/groups/g1/beneficiaries/guides/", nil)
		list := testutil.UnmarshalResponse[ListResponse[beneficiary.Beneficiary]](s.T(), rr)
		s.Equal(1, list.Count)
	})

	s.Run("registering twice conflicts", func() {
		rr := s.do("carol", http.MethodPost, path, body)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "conflict")
	})

	s.Run("bad birthdate is rejected", func() {
		bad := body
		bad.Birthdate = "2014-06-15"
		rr := s.do("carol", http.MethodPost, "/api/districts/d1/groups/g2/beneficiaries/", bad)
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})

	s.Run("requires a token", func() {
		rr := s.do("", http.MethodPost, path, body)
		testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
	})
}

// =============================================================================
// Tasks
// =============================================================================

func (s *HandlerSuite) TestTaskLifecycle() {
	testutil.Given(s.T(), "an assigned task", func(t *testing.T) {
		s.assign("alice")

		testutil.When(t, "it is read back", func(t *testing.T) {
			rr := s.do("alice", http.MethodGet, "/api/users/alice/tasks/active/", nil)
			testutil.AssertStatusOK(t, rr)
			resp := testutil.UnmarshalResponse[ActiveTaskResponse](t, rr)
			require.NotNil(t, resp.Target)
			assert.Equal(t, "prepuberty::corporality::1.1", resp.Target.Objective)
			assert.Len(t, resp.Target.Tasks, 2)
		})

		testutil.When(t, "a second task is assigned", func(t *testing.T) {
			rr := s.do("alice", http.MethodPost, "/api/users/alice/tasks/prepuberty/creativity/1.1/", AssignRequest{})
			testutil.Then(t, "it conflicts", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusConflict, "conflict")
			})
		})

		testutil.When(t, "sub-tasks are updated", func(t *testing.T) {
			rr := s.do("alice", http.MethodPut, "/api/users/alice/tasks/active/", map[string]any{
				"sub-tasks": []map[string]any{
					{"description": "buy shoes", "completed": true},
					{"description": "run", "completed": false},
				},
			})
			testutil.AssertStatusOK(t, rr)
			task := testutil.UnmarshalResponse[tasks.ActiveTask](t, rr)
			require.Len(t, task.Tasks, 2)
			assert.True(t, task.Tasks[0].Completed)
			assert.Equal(t, "run twice a week", task.PersonalObjective)
		})

		testutil.When(t, "it is completed", func(t *testing.T) {
			rr := s.do("alice", http.MethodPost, "/api/users/alice/tasks/active/complete/", nil)
			testutil.AssertStatusOK(t, rr)
			resp := testutil.UnmarshalResponse[CompletionResponse](t, rr)

			testutil.Then(t, "the score is credited and the task archived", func(t *testing.T) {
				assert.Equal(t, int64(60), resp.Credited)
				assert.True(t, resp.Archived)
				assert.Empty(t, resp.Warning)

				b, err := s.people.Get(s.ctx, "alice")
				require.NoError(t, err)
				assert.Nil(t, b.Target)
				assert.Equal(t, int64(60), b.Score["corporality"])
				assert.Equal(t, int64(1), b.NTasks["corporality"])

				rr := s.do("alice", http.MethodGet, "/api/users/alice/tasks/prepuberty/corporality/", nil)
				testutil.AssertStatusOK(t, rr)
				list := testutil.UnmarshalResponse[ListResponse[tasks.ArchivedTask]](t, rr)
				require.Equal(t, 1, list.Count)
				assert.True(t, list.Items[0].Completed)
			})
		})

		testutil.When(t, "the archived task is read", func(t *testing.T) {
			rr := s.do("alice", http.MethodGet, "/api/users/alice/tasks/"+objectivePath, nil)
			testutil.AssertStatusOK(t, rr)
			archived := testutil.UnmarshalResponse[tasks.ArchivedTask](t, rr)
			assert.Equal(t, "alice", archived.User)
			assert.Equal(t, int64(60), archived.Score)
			assert.True(t, archived.Completed)
		})

		testutil.When(t, "the completed objective is assigned again", func(t *testing.T) {
			rr := s.do("alice", http.MethodPost, "/api/users/alice/tasks/"+objectivePath, AssignRequest{})
			testutil.AssertStatus(t, rr, http.StatusConflict)
		})
	})
}

func (s *HandlerSuite) TestTaskErrors() {
	s.Run("unknown objective is not found", func() {
		rr := s.do("alice", http.MethodPost, "/api/users/alice/tasks/prepuberty/corporality/9.9/", AssignRequest{})
		testutil.AssertStatus(s.T(), rr, http.StatusNotFound)
	})

	s.Run("invalid stage is a validation error", func() {
		rr := s.do("alice", http.MethodPost, "/api/users/alice/tasks/adult/corporality/1.1/", AssignRequest{})
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})

	s.Run("complete without a task is not found", func() {
		rr := s.do("bob", http.MethodPost, "/api/users/bob/tasks/active/complete/", nil)
		testutil.AssertStatus(s.T(), rr, http.StatusNotFound)
	})

	s.Run("empty update is rejected", func() {
		rr := s.do("bob", http.MethodPut, "/api/users/bob/tasks/active/", map[string]any{})
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})

	s.Run("unknown fields are rejected", func() {
		rr := s.do("bob", http.MethodPut, "/api/users/bob/tasks/active/", map[string]any{"score": 1000})
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})

	s.Run("archived task that does not exist is not found", func() {
		rr := s.do("bob", http.MethodGet, "/api/users/bob/tasks/"+objectivePath, nil)
		testutil.AssertStatus(s.T(), rr, http.StatusNotFound)
	})

	s.Run("invalid credit flag is rejected", func() {
		rr := s.do("bob", http.MethodDelete, "/api/users/bob/tasks/active/?credit=maybe", nil)
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})
}

func (s *HandlerSuite) TestClear() {
	s.Run("without credit leaves the ledger untouched", func() {
		s.assign("bob")
		rr := s.do("bob", http.MethodDelete, "/api/users/bob/tasks/active/", nil)
		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[CompletionResponse](s.T(), rr)
		s.Zero(resp.Credited)
		s.False(resp.Archived)

		b, err := s.people.Get(s.ctx, "bob")
		s.Require().NoError(err)
		s.Nil(b.Target)
		s.Zero(b.Score["corporality"])
	})

	s.Run("with credit archives the task", func() {
		s.assign("alice")
		rr := s.do("alice", http.MethodDelete, "/api/users/alice/tasks/active/?credit=true", nil)
		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[CompletionResponse](s.T(), rr)
		s.Equal(int64(60), resp.Credited)
		s.True(resp.Archived)
	})
}

// =============================================================================
// Shop
// =============================================================================

func (s *HandlerSuite) TestBuy() {
	item, err := s.items.Create(s.ctx, shop.NewItem{Category: "badges", Release: 3, Name: "Knot badge", Price: 25})
	s.Require().NoError(err)
	path := "/api/beneficiaries/alice/shop/badges/3/" + itoa(item.ID()) + "/"

	s.Run("insufficient balance conflicts", func() {
		rr := s.do("alice", http.MethodPost, path, BuyRequest{Area: "corporality", Amount: 1})
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "conflict")
	})

	s.Run("debits price times amount", func() {
		s.assign("alice")
		rr := s.do("alice", http.MethodPost, "/api/users/alice/tasks/active/complete/", nil)
		testutil.AssertStatusOK(s.T(), rr)

		rr = s.do("alice", http.MethodPost, path, BuyRequest{Area: "corporality", Amount: 2})
		testutil.AssertStatusOK(s.T(), rr)
		bal := testutil.UnmarshalResponse[economy.Balance](s.T(), rr)
		s.Equal(int64(10), bal.Score)
		s.Equal(int64(2), bal.Bought)
	})

	s.Run("oversized amount is rejected before any debit", func() {
		before, err := s.people.Get(s.ctx, "alice")
		s.Require().NoError(err)

		rr := s.do("alice", http.MethodPost, path, BuyRequest{Area: "corporality", Amount: 6148914691236517206})
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")

		after, err := s.people.Get(s.ctx, "alice")
		s.Require().NoError(err)
		s.Equal(before.Score, after.Score)
		s.Equal(before.BoughtItems, after.BoughtItems)
	})

	s.Run("unknown item is not found", func() {
		rr := s.do("alice", http.MethodPost, "/api/beneficiaries/alice/shop/badges/3/99999/", BuyRequest{Area: "corporality"})
		testutil.AssertStatus(s.T(), rr, http.StatusNotFound)
	})

	s.Run("invalid area is rejected", func() {
		rr := s.do("alice", http.MethodPost, path, BuyRequest{Area: "luck"})
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})

	s.Run("buying for someone else is forbidden", func() {
		rr := s.do("bob", http.MethodPost, path, BuyRequest{Area: "corporality"})
		testutil.AssertStatus(s.T(), rr, http.StatusForbidden)
	})
}

func (s *HandlerSuite) TestListItems() {
	_, err := s.items.Seed(s.ctx, []shop.SeedItem{
		{Category: "gear", Release: 0, ID: 1, Name: "Compass", Price: 120},
		{Category: "gear", Release: 2, ID: 1, Name: "Lantern", Price: 90},
	})
	s.Require().NoError(err)

	rr := s.do("bob", http.MethodGet, "/api/shop/gear/1/", nil)
	testutil.AssertStatusOK(s.T(), rr)
	list := testutil.UnmarshalResponse[ListResponse[shop.Item]](s.T(), rr)
	s.Require().Equal(1, list.Count)
	s.Equal("Compass", list.Items[0].Name)

	rr = s.do("bob", http.MethodGet, "/api/shop/gear/latest/", nil)
	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}

func (s *HandlerSuite) TestRequireOwnerDirect() {
	h := New(s.people, nil, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	params := map[string]string{"sub": "alice"}

	s.Run("no subject in context is unauthorized", func() {
		req := testutil.WithURLParams(testutil.NewRequest(s.T(), http.MethodGet, "/beneficiaries/alice/"), params)
		rr := testutil.DoRequest(http.HandlerFunc(h.HandleGetBeneficiary), req)
		testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
	})

	s.Run("matching subject is served", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/beneficiaries/alice/")
		req = testutil.WithSubject(testutil.WithURLParams(req, params), "alice")
		rr := testutil.DoRequest(http.HandlerFunc(h.HandleGetBeneficiary), req)
		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "nickname", "alice")
	})
}
