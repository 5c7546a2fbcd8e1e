package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/akeren/waitlist-api/config"
	"github.com/akeren/waitlist-api/config/router"
	"github.com/akeren/waitlist-api/domain"
	"github.com/akeren/waitlist-api/internal/log"
	"github.com/akeren/waitlist-api/internal/models"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type WaitlistAPITestSuite struct {
	suite.Suite
	db        *gorm.DB
	server    *httptest.Server
	baseURL   string
	logger    *log.Logger
	appConfig *config.ApplicationConfig
}

func (s *WaitlistAPITestSuite) SetupSuite() {
	// The whole suite shares one client IP; the per-endpoint join limiter
	// would otherwise throttle later tests.
	s.T().Setenv("JOIN_RATE_LIMIT_REQUESTS", "100000")

	var err error
	s.db, err = gorm.Open(sqlite.Open("file::memory:?cache=shared&_busy_timeout=10000"), &gorm.Config{})
	s.Require().NoError(err)

	// SQLite serializes writes at the database level. Limiting to one open
	// connection prevents "database is locked" errors under concurrent load.
	sqlDB, err := s.db.DB()
	s.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)

	err = s.db.AutoMigrate(&models.WaitlistEntry{})
	s.Require().NoError(err)

	s.logger = log.NewLoggerWithJSONOutput()

	s.appConfig = &config.ApplicationConfig{
		DB:     config.NewStaticDatabase(s.db),
		Logger: s.logger,
	}

	s.appConfig.RouterService = router.CreateRouterService(s.logger, nil, &router.RouterConfig{
		RateLimitRequests: 10000,
		RateLimitWindow:   time.Minute,
		RequestTimeout:    30 * time.Second,
	})

	domain.SetupCoreDomain(s.appConfig)

	s.server = httptest.NewServer(s.appConfig.RouterService.GetEngine())
	s.baseURL = s.server.URL
}

func (s *WaitlistAPITestSuite) TearDownSuite() {
	if s.server != nil {
		s.server.Close()
	}
	if s.db != nil {
		sqlDB, _ := s.db.DB()
		sqlDB.Close()
	}
}

func (s *WaitlistAPITestSuite) SetupTest() {
	s.db.Exec("DELETE FROM waitlist_entries")
}

// Helper methods

func (s *WaitlistAPITestSuite) postJSON(path string, payload any) (*http.Response, map[string]any) {
	body, err := json.Marshal(payload)
	s.Require().NoError(err)

	resp, err := http.Post(s.baseURL+path, "application/json", bytes.NewBuffer(body))
	s.Require().NoError(err)
	defer resp.Body.Close()

	var response map[string]any
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&response))
	return resp, response
}

func (s *WaitlistAPITestSuite) getJSON(path string) (*http.Response, map[string]any) {
	resp, err := http.Get(s.baseURL + path)
	s.Require().NoError(err)
	defer resp.Body.Close()

	var response map[string]any
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&response))
	return resp, response
}

func (s *WaitlistAPITestSuite) join(email string) (*http.Response, map[string]any) {
	return s.postJSON("/waitlist", map[string]string{"email": email})
}

// Tests

func (s *WaitlistAPITestSuite) TestJoinWaitlist() {
	resp, response := s.join("alice@example.com")

	s.Equal(http.StatusCreated, resp.StatusCode)
	s.Equal(true, response["success"])
	s.Equal("Successfully joined the waitlist", response["message"])

	data := response["data"].(map[string]any)
	s.Equal("alice@example.com", data["email"])
	s.NotZero(data["id"])
}

func (s *WaitlistAPITestSuite) TestJoinWaitlistNormalizesEmail() {
	resp, response := s.join("  BOB@Example.COM  ")

	s.Equal(http.StatusCreated, resp.StatusCode)
	data := response["data"].(map[string]any)
	s.Equal("bob@example.com", data["email"])
}

func (s *WaitlistAPITestSuite) TestJoinWaitlistInvalidEmail() {
	for _, email := range []string{"not-an-email", "user@localhost", "a@b", "@example.com"} {
		resp, response := s.join(email)
		s.Equal(http.StatusBadRequest, resp.StatusCode, "email %q", email)
		s.Equal(false, response["success"])
		s.NotEmpty(response["message"])
	}
}

func (s *WaitlistAPITestSuite) TestJoinWaitlistMissingEmail() {
	resp, response := s.postJSON("/waitlist", map[string]string{})
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	s.Equal(false, response["success"])
}

func (s *WaitlistAPITestSuite) TestJoinWaitlistDuplicate() {
	resp, _ := s.join("carol@example.com")
	s.Equal(http.StatusCreated, resp.StatusCode)

	resp, response := s.join("carol@example.com")
	s.Equal(http.StatusConflict, resp.StatusCode)
	s.Equal(false, response["success"])
	s.Equal("This email is already on the waitlist", response["message"])
}

func (s *WaitlistAPITestSuite) TestJoinWaitlistCaseAndWhitespaceCollision() {
	resp, _ := s.join("dave@example.com")
	s.Equal(http.StatusCreated, resp.StatusCode)

	resp, response := s.join("  DAVE@EXAMPLE.COM ")
	s.Equal(http.StatusConflict, resp.StatusCode)
	s.Equal("This email is already on the waitlist", response["message"])
}

func (s *WaitlistAPITestSuite) TestConcurrentJoinSameEmail() {
	const callers = 10

	var wg sync.WaitGroup
	statuses := make(chan int, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			body, _ := json.Marshal(map[string]string{"email": "race@example.com"})
			resp, err := http.Post(s.baseURL+"/waitlist", "application/json", bytes.NewBuffer(body))
			if err != nil {
				statuses <- 0
				return
			}
			resp.Body.Close()
			statuses <- resp.StatusCode
		}()
	}
	wg.Wait()
	close(statuses)

	created, conflicts := 0, 0
	for code := range statuses {
		switch code {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
			conflicts++
		default:
			s.Failf("unexpected status", "got %d", code)
		}
	}

	s.Equal(1, created)
	s.Equal(callers-1, conflicts)

	var count int64
	s.db.Model(&models.WaitlistEntry{}).Where("email = ?", "race@example.com").Count(&count)
	s.Equal(int64(1), count)
}

func (s *WaitlistAPITestSuite) TestCheckEmail() {
	s.join("erin@example.com")

	resp, response := s.postJSON("/waitlist/check", map[string]string{"email": "ERIN@example.com"})
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(true, response["success"])
	s.Equal(true, response["exists"])

	resp, response = s.postJSON("/waitlist/check", map[string]string{"email": "ghost@example.com"})
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(true, response["success"])
	s.Equal(false, response["exists"])
}

func (s *WaitlistAPITestSuite) TestCheckEmailInvalid() {
	resp, response := s.postJSON("/waitlist/check", map[string]string{"email": "nope"})
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	s.Equal(false, response["success"])
}

func (s *WaitlistAPITestSuite) TestStats() {
	for i := 0; i < 3; i++ {
		s.join(fmt.Sprintf("stats%d@example.com", i))
	}

	resp, response := s.getJSON("/waitlist/stats")
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(true, response["success"])

	data := response["data"].(map[string]any)
	s.Equal(float64(3), data["totalCount"])
	s.NotEmpty(data["timestamp"])
}

func (s *WaitlistAPITestSuite) TestAdminListing() {
	emails := []string{"c@example.com", "a@example.com", "b@example.com"}
	for _, email := range emails {
		s.join(email)
	}

	resp, response := s.getJSON("/admin/waitlist?page=1&limit=2&sortBy=email&sortOrder=asc")
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(true, response["success"])

	data := response["data"].(map[string]any)
	entries := data["entries"].([]any)
	s.Require().Len(entries, 2)

	first := entries[0].(map[string]any)
	s.Equal("a@example.com", first["email"])
	s.NotEmpty(first["createdAt"])
	s.Equal(models.WaitlistSource, first["source"])

	// Provenance never leaves the database.
	_, hasIP := first["ipAddress"]
	s.False(hasIP)
	_, hasUA := first["userAgent"]
	s.False(hasUA)

	pagination := data["pagination"].(map[string]any)
	s.Equal(float64(1), pagination["currentPage"])
	s.Equal(float64(2), pagination["totalPages"])
	s.Equal(float64(3), pagination["totalCount"])
	s.Equal(true, pagination["hasNextPage"])
	s.Equal(false, pagination["hasPrevPage"])
	s.Equal(float64(2), pagination["limit"])

	sorting := data["sorting"].(map[string]any)
	s.Equal("email", sorting["sortBy"])
	s.Equal("asc", sorting["sortOrder"])
}

func (s *WaitlistAPITestSuite) TestAdminListingClampsLimit() {
	s.join("clamp@example.com")

	resp, response := s.getJSON("/admin/waitlist?limit=9999")
	s.Equal(http.StatusOK, resp.StatusCode)

	data := response["data"].(map[string]any)
	pagination := data["pagination"].(map[string]any)
	s.Equal(float64(100), pagination["limit"])
}

func (s *WaitlistAPITestSuite) TestAdminListingBadParamsFallBack() {
	s.join("fallback@example.com")

	resp, response := s.getJSON("/admin/waitlist?page=-2&sortBy=ipAddress&sortOrder=sideways")
	s.Equal(http.StatusOK, resp.StatusCode)

	data := response["data"].(map[string]any)
	pagination := data["pagination"].(map[string]any)
	s.Equal(float64(1), pagination["currentPage"])

	sorting := data["sorting"].(map[string]any)
	s.Equal("createdAt", sorting["sortBy"])
	s.Equal("desc", sorting["sortOrder"])
}

func (s *WaitlistAPITestSuite) TestHealth() {
	resp, response := s.getJSON("/health")
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(true, response["success"])
	s.Equal("ok", response["status"])
	s.Equal("Connected", response["database"])
	s.NotEmpty(response["timestamp"])
}

func (s *WaitlistAPITestSuite) TestUnknownRouteEnvelope() {
	resp, response := s.getJSON("/no/such/route")
	s.Equal(http.StatusNotFound, resp.StatusCode)
	s.Equal(false, response["success"])
	s.NotEmpty(response["message"])
}

func TestWaitlistAPITestSuite(t *testing.T) {
	if os.Getenv("RUN_INTEGRATION_TESTS") != "true" {
		t.Skip("Skipping integration tests. Set RUN_INTEGRATION_TESTS=true to run them")
	}
	suite.Run(t, new(WaitlistAPITestSuite))
}
