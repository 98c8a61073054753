package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vallabhkhomane11/Patient-Risk-Analysis/internal/auth"
	"github.com/vallabhkhomane11/Patient-Risk-Analysis/internal/config"
	"github.com/vallabhkhomane11/Patient-Risk-Analysis/internal/crypto"
	"github.com/vallabhkhomane11/Patient-Risk-Analysis/internal/model"
	"github.com/vallabhkhomane11/Patient-Risk-Analysis/internal/repository"
	"github.com/vallabhkhomane11/Patient-Risk-Analysis/internal/scoring"
)

// Recommender is what the predict handler needs from the recommendation
// pipeline; it never fails, falling back to fixed text instead.
type Recommender interface {
	Generate(ctx context.Context, riskLabel string, features model.PatientFeatures) string
}

type PredictionRecorder interface {
	RecordPrediction(risk string)
}

type Server struct {
	cfg          config.Config
	store        repository.UserStore
	tokens       *auth.TokenService
	scorer       *scoring.Scorer
	recommender  Recommender
	metrics      PredictionRecorder
	logger       *slog.Logger
	loginLimiter *ipLimiter
}

func NewServer(cfg config.Config, store repository.UserStore, tokens *auth.TokenService, scorer *scoring.Scorer, recommender Recommender, metrics PredictionRecorder, logger *slog.Logger) *Server {
	return &Server{
		cfg:          cfg,
		store:        store,
		tokens:       tokens,
		scorer:       scorer,
		recommender:  recommender,
		metrics:      metrics,
		logger:       logger,
		loginLimiter: newIPLimiter(loginRate, loginBurst),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.recoverMiddleware)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/signup", s.handleSignup)
	r.With(s.loginRateLimit).Post("/login", s.handleLogin)

	r.With(s.authMiddleware).Post("/predict", s.handlePredict)
	r.With(s.authMiddleware).Get("/users/me", s.handleGetMe)

	return r
}

// Auth

type userKey struct{}

// authMiddleware is the single checkpoint for protected routes: bearer token
// → valid claims → live user record. Every failure mode collapses to 401.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}

		email, err := s.tokens.Parse(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}

		user, err := s.store.GetUserByEmail(r.Context(), email)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				writeError(w, http.StatusUnauthorized, "invalid_token")
				return
			}
			s.logger.Error("user lookup failed", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "server_error")
			return
		}

		ctx := context.WithValue(r.Context(), userKey{}, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFromContext(ctx context.Context) model.User {
	user, _ := ctx.Value(userKey{}).(model.User)
	return user
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic in handler",
					slog.String("path", r.URL.Path),
					slog.Any("panic", rec),
				)
				writeError(w, http.StatusInternalServerError, "server_error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Signup

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	if !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "invalid_email")
		return
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("password hash failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	user := model.User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			writeError(w, http.StatusBadRequest, "email_already_registered")
			return
		}
		s.logger.Error("user create failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	writeJSON(w, http.StatusCreated, userResponse{ID: user.ID, Name: user.Name, Email: user.Email})
}

// Login

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// handleLogin accepts an OAuth2 password form (username holds the email).
// Unknown email and wrong password produce byte-identical responses so the
// caller cannot enumerate accounts.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	email := strings.TrimSpace(strings.ToLower(r.PostFormValue("username")))
	password := r.PostFormValue("password")
	if email == "" || password == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials")
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "incorrect_email_or_password")
			return
		}
		s.logger.Error("user lookup failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	if err := crypto.CheckPassword(user.PasswordHash, password); err != nil {
		writeError(w, http.StatusUnauthorized, "incorrect_email_or_password")
		return
	}

	token, err := s.tokens.Issue(user.Email)
	if err != nil {
		s.logger.Error("token issue failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

// Predict

type predictRequest struct {
	Pregnancies      *int     `json:"Pregnancies"`
	Glucose          *float64 `json:"Glucose"`
	BloodPressure    *float64 `json:"BloodPressure"`
	SkinThickness    *float64 `json:"SkinThickness"`
	Insulin          *float64 `json:"Insulin"`
	BMI              *float64 `json:"BMI"`
	DiabetesPedigree *float64 `json:"DiabetesPedigree"`
	Age              *int     `json:"Age"`
}

func (req *predictRequest) features() (model.PatientFeatures, string) {
	if req.Pregnancies == nil || req.Glucose == nil || req.BloodPressure == nil || req.SkinThickness == nil ||
		req.Insulin == nil || req.BMI == nil || req.DiabetesPedigree == nil || req.Age == nil {
		return model.PatientFeatures{}, "missing_fields"
	}
	if *req.Pregnancies < 0 || *req.Glucose < 0 || *req.BloodPressure < 0 || *req.SkinThickness < 0 ||
		*req.Insulin < 0 || *req.BMI < 0 || *req.DiabetesPedigree < 0 {
		return model.PatientFeatures{}, "negative_value"
	}
	if *req.Age < 1 {
		return model.PatientFeatures{}, "invalid_age"
	}
	return model.PatientFeatures{
		Pregnancies:      *req.Pregnancies,
		Glucose:          *req.Glucose,
		BloodPressure:    *req.BloodPressure,
		SkinThickness:    *req.SkinThickness,
		Insulin:          *req.Insulin,
		BMI:              *req.BMI,
		DiabetesPedigree: *req.DiabetesPedigree,
		Age:              *req.Age,
	}, ""
}

type predictResponse struct {
	Risk           string `json:"risk"`
	Recommendation string `json:"recommendation"`
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	features, errCode := req.features()
	if errCode != "" {
		writeError(w, http.StatusBadRequest, errCode)
		return
	}

	user := userFromContext(r.Context())
	risk := s.scorer.Score(features)
	if s.metrics != nil {
		s.metrics.RecordPrediction(risk)
	}

	recommendation := s.recommender.Generate(r.Context(), risk, features)

	s.logger.Info("prediction served",
		slog.String("user_id", user.ID),
		slog.String("risk", risk),
	)
	writeJSON(w, http.StatusOK, predictResponse{Risk: risk, Recommendation: recommendation})
}

// Me

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	writeJSON(w, http.StatusOK, userResponse{ID: user.ID, Name: user.Name, Email: user.Email})
}

// Health

type healthResponse struct {
	Status       string `json:"status"`
	Database     string `json:"database"`
	ModelsLoaded bool   `json:"models_loaded"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	modelsLoaded := s.scorer != nil
	if err := s.store.Ping(r.Context()); err != nil || !modelsLoaded {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{
			Status:       "unhealthy",
			Database:     databaseState(err),
			ModelsLoaded: modelsLoaded,
		})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:       "healthy",
		Database:     "connected",
		ModelsLoaded: true,
	})
}

func databaseState(err error) string {
	if err != nil {
		return "disconnected"
	}
	return "connected"
}
