package support

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/shapectx/internal/cache"
	"github.com/MeKo-Tech/shapectx/internal/pipeline"
	"github.com/MeKo-Tech/shapectx/internal/server"
)

// HTTPTestServerWrapper hosts a real analysis server on an httptest listener.
type HTTPTestServerWrapper struct {
	*httptest.Server
	TestServer *server.Server
}

// RegisterServerSteps registers HTTP API steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the analysis server is running$`, testCtx.theAnalysisServerIsRunning)
	sc.Step(`^the analysis server is running with caching$`, testCtx.theAnalysisServerIsRunningWithCaching)
	sc.Step(`^the analysis server is running with a limit of (\d+) requests per minute$`,
		testCtx.theAnalysisServerIsRunningWithRateLimit)
	sc.Step(`^the shapectx server process is running$`, testCtx.theServerProcessIsRunning)
	sc.Step(`^I GET "([^"]*)"$`, testCtx.iGET)
	sc.Step(`^I upload "([^"]*)" to "([^"]*)"$`, testCtx.iUploadTo)
	sc.Step(`^I upload "([^"]*)" to "([^"]*)" with format "([^"]*)"$`, testCtx.iUploadToWithFormat)
	sc.Step(`^I POST to "([^"]*)" with JSON:$`, testCtx.iPOSTJSON)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)
	sc.Step(`^the response header "([^"]*)" should contain "([^"]*)"$`, testCtx.theResponseHeaderShouldContain)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^the response JSON field "([^"]*)" should equal "([^"]*)"$`, testCtx.theResponseJSONFieldShouldEqual)
	sc.Step(`^the response JSON field "([^"]*)" should have (\d+) entries$`,
		testCtx.theResponseJSONFieldShouldHaveEntries)
}

func (testCtx *TestContext) startTestHTTPServer(cfg server.Config) error {
	if testCtx.HTTPTestServer != nil {
		testCtx.stopTestHTTPServer()
	}
	srv, err := server.NewServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	mux := http.NewServeMux()
	srv.SetupRoutes(mux)
	testCtx.HTTPTestServer = &HTTPTestServerWrapper{
		Server:     httptest.NewServer(mux),
		TestServer: srv,
	}
	return nil
}

func (testCtx *TestContext) stopTestHTTPServer() {
	testCtx.HTTPTestServer.Close()
	_ = testCtx.HTTPTestServer.TestServer.Close()
	testCtx.HTTPTestServer = nil
}

func baseServerConfig() server.Config {
	return server.Config{
		Host:           "127.0.0.1",
		CORSOrigin:     "*",
		MaxUploadMB:    10,
		TimeoutSec:     30,
		PipelineConfig: pipeline.DefaultConfig(),
		OverlayEnabled: true,
		OverlayStyle:   pipeline.DefaultOverlayStyle(),
	}
}

func (testCtx *TestContext) theAnalysisServerIsRunning() error {
	return testCtx.startTestHTTPServer(baseServerConfig())
}

func (testCtx *TestContext) theAnalysisServerIsRunningWithCaching() error {
	c, err := cache.NewMemory(64, time.Minute)
	if err != nil {
		return err
	}
	cfg := baseServerConfig()
	cfg.Cache = c
	return testCtx.startTestHTTPServer(cfg)
}

func (testCtx *TestContext) theAnalysisServerIsRunningWithRateLimit(perMinute int) error {
	cfg := baseServerConfig()
	cfg.RateLimit = server.RateLimitConfig{Enabled: true, RequestsPerMinute: perMinute}
	return testCtx.startTestHTTPServer(cfg)
}

func (testCtx *TestContext) theServerProcessIsRunning() error {
	return testCtx.StartServerProcess()
}

func (testCtx *TestContext) iGET(path string) error {
	resp, err := http.Get(testCtx.GetServerURL() + path) //nolint:noctx // test request
	if err != nil {
		return fmt.Errorf("GET %s failed: %w", path, err)
	}
	return testCtx.recordResponse(resp)
}

func (testCtx *TestContext) iUploadTo(name, path string) error {
	return testCtx.iUploadToWithFormat(name, path, "")
}

func (testCtx *TestContext) iUploadToWithFormat(name, path, format string) error {
	data, err := os.ReadFile(testCtx.Path(name))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", filepath.Base(name))
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if format != "" {
		if err := mw.WriteField("format", format); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}

	resp, err := http.Post(testCtx.GetServerURL()+path, mw.FormDataContentType(), &body) //nolint:noctx // test request
	if err != nil {
		return fmt.Errorf("POST %s failed: %w", path, err)
	}
	return testCtx.recordResponse(resp)
}

func (testCtx *TestContext) iPOSTJSON(path string, doc *godog.DocString) error {
	resp, err := http.Post(testCtx.GetServerURL()+path, "application/json", //nolint:noctx // test request
		strings.NewReader(doc.Content))
	if err != nil {
		return fmt.Errorf("POST %s failed: %w", path, err)
	}
	return testCtx.recordResponse(resp)
}

func (testCtx *TestContext) recordResponse(resp *http.Response) error {
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = body
	testCtx.LastHTTPHeaders = make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		testCtx.LastHTTPHeaders[k] = resp.Header.Get(k)
	}
	return nil
}

func (testCtx *TestContext) theResponseStatusShouldBe(code int) error {
	if testCtx.LastHTTPStatusCode != code {
		return fmt.Errorf("status is %d, expected %d\nbody: %s",
			testCtx.LastHTTPStatusCode, code, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBe(name, expected string) error {
	got := testCtx.LastHTTPHeaders[http.CanonicalHeaderKey(name)]
	if got != expected {
		return fmt.Errorf("header %s is %q, expected %q", name, got, expected)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldContain(name, expected string) error {
	got := testCtx.LastHTTPHeaders[http.CanonicalHeaderKey(name)]
	if !strings.Contains(got, expected) {
		return fmt.Errorf("header %s is %q, expected it to contain %q", name, got, expected)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldContain(expected string) error {
	if !strings.Contains(string(testCtx.LastHTTPResponse), expected) {
		return fmt.Errorf("response does not contain %q\nbody: %s", expected, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseJSONFieldShouldEqual(path, expected string) error {
	v, err := jsonField(testCtx.LastHTTPResponse, path)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(v); got != expected {
		return fmt.Errorf("response field %q is %q, expected %q", path, got, expected)
	}
	return nil
}

func (testCtx *TestContext) theResponseJSONFieldShouldHaveEntries(path string, n int) error {
	v, err := jsonField(testCtx.LastHTTPResponse, path)
	if err != nil {
		return err
	}
	arr, ok := v.([]any)
	if !ok {
		return fmt.Errorf("response field %q is not an array", path)
	}
	if len(arr) != n {
		return fmt.Errorf("response field %q has %d entries, expected %d", path, len(arr), n)
	}
	return nil
}
