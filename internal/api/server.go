// Package api serves verification results and map layers over HTTP for a
// rendering front end.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/muw-verify/verify-cli/internal/report"
	"github.com/muw-verify/verify-cli/internal/verify"
	"github.com/muw-verify/verify-cli/pkg/geocode"
)

// KeyHeader carries the caller's geocoding API key.
const KeyHeader = "X-Geocode-Key"

const maxBodyBytes = 1 << 16

// GeocoderFactory builds a geocoder bound to an API key. An empty key yields
// a geocoder that reports every address as not found.
type GeocoderFactory func(apiKey string) geocode.Client

// Options configures a Server.
type Options struct {
	Datasets  *verify.Datasets
	Geocoders GeocoderFactory
	// DefaultAPIKey is used when a request carries no key of its own.
	DefaultAPIKey string
	TileLayers    []report.TileLayer
	CORSOrigins   []string
}

// Server holds the shared, read-only state behind the HTTP handlers.
type Server struct {
	data       *verify.Datasets
	geocoders  GeocoderFactory
	defaultKey string
	tiles      []report.TileLayer
	origins    []string
}

// NewServer creates a Server. Missing tile layers fall back to the default
// imagery catalogue.
func NewServer(opts Options) *Server {
	tiles := opts.TileLayers
	if len(tiles) == 0 {
		tiles = report.DefaultTileLayers()
	}
	return &Server{
		data:       opts.Datasets,
		geocoders:  opts.Geocoders,
		defaultKey: opts.DefaultAPIKey,
		tiles:      tiles,
		origins:    opts.CORSOrigins,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", KeyHeader},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/verify", s.handleVerify)
		r.Route("/layers", func(r chi.Router) {
			r.Get("/burn-scar", s.handleBurnScarLayer)
			r.Get("/buildings", s.handleBuildingLayer)
			r.Get("/tiles", s.handleTiles)
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"burn_scar_regions": len(s.data.BurnScar.Regions),
		"buildings":         len(s.data.Buildings.Records),
	})
}

type verifyRequest struct {
	Address string `json:"address"`
	APIKey  string `json:"api_key"`
}

type verifyResponse struct {
	report.Document
	Marker *geojson.FeatureCollection `json:"marker,omitempty"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Address) == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return
	}

	key := req.APIKey
	if key == "" {
		key = r.Header.Get(KeyHeader)
	}
	if key == "" {
		key = s.defaultKey
	}

	v := verify.NewVerifier(s.geocoders(key), s.data)
	res, err := v.Verify(r.Context(), req.Address)
	doc := report.NewDocument(res, err)

	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, verifyResponse{Document: doc, Marker: report.MarkerLayer(res)})
	case errors.Is(err, geocode.ErrAddressNotFound):
		writeJSON(w, http.StatusUnprocessableEntity, verifyResponse{Document: doc})
	default:
		zap.L().Error("api: verification failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "verification failed")
	}
}

func (s *Server) handleBurnScarLayer(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, report.BurnScarLayer(s.data.BurnScar, s.data.Precedence))
}

func (s *Server) handleBuildingLayer(w http.ResponseWriter, r *http.Request) {
	damaged := true
	if raw := r.URL.Query().Get("damaged"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "damaged must be true or false")
			return
		}
		damaged = parsed
	}
	writeJSON(w, http.StatusOK, report.BuildingLayer(s.data.Buildings, damaged))
}

func (s *Server) handleTiles(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tile_layers": s.tiles})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("api: request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
