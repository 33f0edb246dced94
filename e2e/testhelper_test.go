package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	"github.com/buildforge/api/internal/client"
	"github.com/buildforge/api/internal/config"
	"github.com/buildforge/api/internal/handler"
	"github.com/buildforge/api/internal/middleware"
	"github.com/buildforge/api/internal/model"
	"github.com/buildforge/api/internal/queue"
	"github.com/buildforge/api/internal/security"
	"github.com/buildforge/api/internal/service"
	"github.com/buildforge/api/internal/worker"
	ws "github.com/buildforge/api/internal/websocket"
)

const testJWTSecret = "test-secret-for-e2e"

// testApp holds all components needed for testing
type testApp struct {
	app *fiber.App
}

// setupApp creates a Fiber app identical to main.go but with an unconfigured
// LLM client (mock worker output) and a redis client pointed at an unused
// port, so the rate limiter fails open and no external service is required.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	redisClient := redis.NewClient(&redis.Options{
		Addr: "localhost:1", // nothing listens here
	})
	t.Cleanup(func() { redisClient.Close() })

	validate := validator.New()

	hub := ws.NewHub()
	go hub.Run()

	recorder := security.LogRecorder{}
	guard := security.NewGuard(config.FeatureConfig{}, recorder)

	jobQueue := queue.New(queue.Options{JobTimeout: 5 * time.Second})

	llmClient := client.NewLLMClient(&config.LLMConfig{}) // no API key → mock
	jobQueue.Register(model.JobTypeGeneration, worker.NewGenerator(jobQueue, llmClient, hub).Process)
	jobQueue.Register(model.JobTypeModification, worker.NewModifier(jobQueue, llmClient, hub).Process)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	jobQueue.Run(ctx)

	// Services
	generateService := service.NewGenerateService(guard, jobQueue)
	modifyService := service.NewModifyService(guard, jobQueue)
	analyzeService := service.NewAnalyzeService(guard, llmClient)
	jobService := service.NewJobService(jobQueue)

	// Handlers
	generateHandler := handler.NewGenerateHandler(generateService, validate)
	modifyHandler := handler.NewModifyHandler(modifyService, validate)
	analyzeHandler := handler.NewAnalyzeHandler(analyzeService, validate)
	jobHandler := handler.NewJobHandler(jobService)

	authMiddleware := middleware.NewAuthMiddleware(testJWTSecret)
	rateLimiter := middleware.NewRateLimiter(redisClient, recorder)

	app := fiber.New(fiber.Config{
		BodyLimit: 20 * 1024 * 1024,
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api", authMiddleware.Authenticate())

	limits := config.FeatureLimit{PerHour: 10000, PerDay: 10000}
	api.Post("/generate", rateLimiter.Limit(string(model.JobTypeGeneration), limits), generateHandler.Start)
	api.Post("/modify", rateLimiter.Limit(string(model.JobTypeModification), limits), modifyHandler.Start)
	api.Post("/analyze", rateLimiter.Limit(security.FeatureAnalysis, limits), analyzeHandler.Analyze)
	api.Get("/jobs/:jobId", jobHandler.Status)

	return &testApp{app: app}
}

// generateToken creates an HMAC JWT token for test requests.
func generateToken(t *testing.T) string {
	t.Helper()
	claims := middleware.UserClaims{
		UserID: "test-user-123",
		Email:  "test@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "buildforge-api",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return signed
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs an authenticated request.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, error) {
	t.Helper()
	token := generateToken(t)
	return doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// pollJob polls the status endpoint until the job reaches a terminal state.
func pollJob(t *testing.T, ta *testApp, jobID string) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/jobs/"+jobID, "")
		if err != nil {
			t.Fatalf("status request failed: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("unexpected status code %d while polling", resp.StatusCode)
		}
		result := parseJSON(t, resp)
		status, _ := result["status"].(string)
		if status == "completed" || status == "failed" {
			return result
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job did not reach a terminal state in time")
	return nil
}
