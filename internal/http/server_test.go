package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/vallabhkhomane11/Patient-Risk-Analysis/internal/auth"
	"github.com/vallabhkhomane11/Patient-Risk-Analysis/internal/config"
	"github.com/vallabhkhomane11/Patient-Risk-Analysis/internal/model"
	"github.com/vallabhkhomane11/Patient-Risk-Analysis/internal/repository"
	"github.com/vallabhkhomane11/Patient-Risk-Analysis/internal/scoring"
)

type fixedRecommender struct {
	text string
}

func (f fixedRecommender) Generate(_ context.Context, _ string, _ model.PatientFeatures) string {
	return f.text
}

func testScorer(t *testing.T) *scoring.Scorer {
	t.Helper()
	artifacts := &scoring.Artifacts{}
	artifacts.Scaler.Mean = make([]float64, model.FeatureCount)
	artifacts.Scaler.Scale = []float64{1, 1, 1, 1, 1, 1, 1, 1}
	low := make([]float64, model.FeatureCount)
	medium := make([]float64, model.FeatureCount)
	high := make([]float64, model.FeatureCount)
	for i := range medium {
		medium[i] = 10
		high[i] = 20
	}
	artifacts.KMeans.Centers = [][]float64{low, medium, high}
	return scoring.NewScorer(artifacts)
}

func newTestServer(t *testing.T) (*httptest.Server, *auth.TokenService) {
	t.Helper()
	cfg := config.Config{
		HTTPAddr:       ":0",
		JWTIssuer:      "test-issuer",
		AccessTokenTTL: 30 * time.Minute,
	}
	tokens := auth.NewTokenService([]byte("test-secret"), cfg.JWTIssuer, cfg.AccessTokenTTL)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server := NewServer(cfg, repository.NewMemoryStore(), tokens, testScorer(t), fixedRecommender{text: "stay active"}, nil, logger)

	app := httptest.NewServer(server.Router())
	t.Cleanup(app.Close)
	return app, tokens
}

func doReq(t *testing.T, method, url, token string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode error: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("http error: %v", err)
	}
	return resp
}

func doLogin(t *testing.T, baseURL, email, password string) *http.Response {
	t.Helper()
	resp, err := http.PostForm(baseURL+"/login", url.Values{
		"username": {email},
		"password": {password},
	})
	if err != nil {
		t.Fatalf("http error: %v", err)
	}
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

var samplePatient = map[string]interface{}{
	"Pregnancies":      5,
	"Glucose":          190,
	"BloodPressure":    90,
	"SkinThickness":    40,
	"Insulin":          150,
	"BMI":              35.0,
	"DiabetesPedigree": 0.9,
	"Age":              50,
}

func TestSignupLoginPredictFlow(t *testing.T) {
	app, _ := newTestServer(t)

	resp := doReq(t, http.MethodPost, app.URL+"/signup", "", map[string]string{
		"name": "Alice", "email": "a@x.com", "password": "pw1",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	signupBody := readBody(t, resp)
	var created struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal([]byte(signupBody), &created); err != nil {
		t.Fatalf("decode signup: %v", err)
	}
	if created.ID == "" || created.Name != "Alice" || created.Email != "a@x.com" {
		t.Fatalf("unexpected signup response: %s", signupBody)
	}
	if strings.Contains(strings.ToLower(signupBody), "password") || strings.Contains(signupBody, "pw1") {
		t.Fatalf("signup response leaks the password: %s", signupBody)
	}

	resp = doLogin(t, app.URL, "a@x.com", "pw1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var login struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	decodeBody(t, resp, &login)
	if login.AccessToken == "" || login.TokenType != "bearer" {
		t.Fatalf("unexpected login response: %+v", login)
	}

	resp = doReq(t, http.MethodPost, app.URL+"/predict", login.AccessToken, samplePatient)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var prediction struct {
		Risk           string `json:"risk"`
		Recommendation string `json:"recommendation"`
	}
	decodeBody(t, resp, &prediction)
	valid := map[string]bool{"Low Risk": true, "Medium Risk": true, "High Risk": true, "Unknown Risk": true}
	if !valid[prediction.Risk] {
		t.Fatalf("unexpected risk label: %q", prediction.Risk)
	}
	if prediction.Recommendation == "" {
		t.Fatalf("expected non-empty recommendation")
	}

	resp = doReq(t, http.MethodGet, app.URL+"/users/me", login.AccessToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var me struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	decodeBody(t, resp, &me)
	if me.ID != created.ID || me.Email != "a@x.com" {
		t.Fatalf("unexpected me response: %+v", me)
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	app, _ := newTestServer(t)

	body := map[string]string{"name": "Alice", "email": "a@x.com", "password": "pw1"}
	resp := doReq(t, http.MethodPost, app.URL+"/signup", "", body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doReq(t, http.MethodPost, app.URL+"/signup", "", body)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if got := readBody(t, resp); !strings.Contains(got, "email_already_registered") {
		t.Fatalf("unexpected error body: %s", got)
	}
}

func TestSignupMissingFields(t *testing.T) {
	app, _ := newTestServer(t)

	resp := doReq(t, http.MethodPost, app.URL+"/signup", "", map[string]string{"name": "Alice"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestLoginErrorsAreIndistinguishable(t *testing.T) {
	app, _ := newTestServer(t)

	resp := doReq(t, http.MethodPost, app.URL+"/signup", "", map[string]string{
		"name": "Alice", "email": "a@x.com", "password": "pw1",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	wrongPassword := doLogin(t, app.URL, "a@x.com", "wrong")
	if wrongPassword.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", wrongPassword.StatusCode)
	}
	wrongPasswordBody := readBody(t, wrongPassword)

	unknownEmail := doLogin(t, app.URL, "nobody@x.com", "pw1")
	if unknownEmail.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", unknownEmail.StatusCode)
	}
	unknownEmailBody := readBody(t, unknownEmail)

	if wrongPasswordBody != unknownEmailBody {
		t.Fatalf("login errors differ: %q vs %q", wrongPasswordBody, unknownEmailBody)
	}
}

func TestPredictRequiresToken(t *testing.T) {
	app, tokens := newTestServer(t)

	resp := doReq(t, http.MethodPost, app.URL+"/predict", "", samplePatient)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doReq(t, http.MethodPost, app.URL+"/predict", "garbage-token", samplePatient)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with garbage token, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	expired, err := tokens.IssueWithTTL("a@x.com", -time.Minute)
	if err != nil {
		t.Fatalf("issue error: %v", err)
	}
	resp = doReq(t, http.MethodPost, app.URL+"/predict", expired, samplePatient)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with expired token, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestPredictTokenForDeletedUser(t *testing.T) {
	app, tokens := newTestServer(t)

	// Valid signature, but no matching store record.
	token, err := tokens.Issue("ghost@x.com")
	if err != nil {
		t.Fatalf("issue error: %v", err)
	}
	resp := doReq(t, http.MethodPost, app.URL+"/predict", token, samplePatient)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestPredictValidation(t *testing.T) {
	app, _ := newTestServer(t)

	resp := doReq(t, http.MethodPost, app.URL+"/signup", "", map[string]string{
		"name": "Alice", "email": "a@x.com", "password": "pw1",
	})
	resp.Body.Close()
	login := doLogin(t, app.URL, "a@x.com", "pw1")
	var creds struct {
		AccessToken string `json:"access_token"`
	}
	decodeBody(t, login, &creds)

	missing := map[string]interface{}{"Pregnancies": 5, "Glucose": 190}
	resp = doReq(t, http.MethodPost, app.URL+"/predict", creds.AccessToken, missing)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing fields, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	negative := map[string]interface{}{}
	for k, v := range samplePatient {
		negative[k] = v
	}
	negative["Glucose"] = -1
	resp = doReq(t, http.MethodPost, app.URL+"/predict", creds.AccessToken, negative)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative value, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestHealth(t *testing.T) {
	app, _ := newTestServer(t)

	resp := doReq(t, http.MethodGet, app.URL+"/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var health struct {
		Status       string `json:"status"`
		Database     string `json:"database"`
		ModelsLoaded bool   `json:"models_loaded"`
	}
	decodeBody(t, resp, &health)
	if health.Status != "healthy" || health.Database != "connected" || !health.ModelsLoaded {
		t.Fatalf("unexpected health response: %+v", health)
	}
}

func TestLoginLimiter(t *testing.T) {
	limiter := newIPLimiter(loginRate, loginBurst)

	for i := 0; i < loginBurst; i++ {
		if !limiter.allow("203.0.113.7") {
			t.Fatalf("attempt %d unexpectedly throttled", i)
		}
	}
	if limiter.allow("203.0.113.7") {
		t.Fatalf("expected throttle after burst")
	}
	if !limiter.allow("203.0.113.8") {
		t.Fatalf("other clients must not be throttled")
	}
}
