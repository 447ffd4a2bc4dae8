package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/mspdash/internal/accredit"
	"github.com/sells-group/mspdash/internal/dataset"
	"github.com/sells-group/mspdash/internal/model"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the JSON API for the dashboard frontend",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			return err
		}

		api := &apiServer{
			loader:  newLoader(),
			store:   store,
			service: newSyncService(store),
		}

		r := chi.NewRouter()
		r.Use(cors.Handler(cors.Options{
			AllowedMethods: []string{"GET", "POST"},
			AllowedHeaders: []string{"Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
		r.Route("/api", func(r chi.Router) {
			r.Get("/companies", api.handleCompanies)
			r.Get("/stats", api.handleStats)
			r.Get("/options", api.handleOptions)
			r.Post("/accreditation/sync", api.handleSync)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

type apiServer struct {
	loader  *dataset.Loader
	store   accredit.Store
	service *accredit.Service
}

// loadAttached returns the dataset with stored accreditation snapshots
// resolved onto each record.
func (s *apiServer) loadAttached(r *http.Request) ([]model.CompanyRecord, error) {
	cached, err := s.loader.Load()
	if err != nil {
		return nil, err
	}
	snapshots, err := s.service.Snapshots(r.Context(), dataset.INNs(cached))
	if err != nil {
		return nil, err
	}
	// The loader's slice is shared across requests; attach on a copy so
	// concurrent handlers never observe each other's snapshot set.
	records := make([]model.CompanyRecord, len(cached))
	copy(records, cached)
	return dataset.Attach(records, snapshots), nil
}

func (s *apiServer) handleCompanies(w http.ResponseWriter, r *http.Request) {
	records, err := s.loadAttached(r)
	if err != nil {
		writeError(w, err)
		return
	}
	filtered := dataset.Apply(records, dataset.ParseFilterValues(r.URL.Query()))
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(filtered),
		"records": filtered,
	})
}

func (s *apiServer) handleStats(w http.ResponseWriter, r *http.Request) {
	records, err := s.loadAttached(r)
	if err != nil {
		writeError(w, err)
		return
	}
	filtered := dataset.Apply(records, dataset.ParseFilterValues(r.URL.Query()))
	writeJSON(w, http.StatusOK, map[string]any{
		"total":    dataset.Stats(records),
		"filtered": dataset.Stats(filtered),
		"bounds":   dataset.Bounds(records),
	})
}

func (s *apiServer) handleOptions(w http.ResponseWriter, r *http.Request) {
	records, err := s.loader.Load()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dataset.Options(records))
}

func (s *apiServer) handleSync(w http.ResponseWriter, r *http.Request) {
	var req struct {
		INNs []string `json:"inns"`
		All  bool     `json:"all"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}

	inns := req.INNs
	if req.All {
		records, err := s.loader.Load()
		if err != nil {
			writeError(w, err)
			return
		}
		inns = dataset.INNs(records)
	}
	if len(inns) == 0 {
		http.Error(w, `{"error":"inns or all is required"}`, http.StatusBadRequest)
		return
	}

	outcomes, err := s.service.Sync(r.Context(), inns)
	if err != nil {
		writeError(w, err)
		return
	}

	// Conservative invalidation: the CSV itself has no accreditation
	// column, but aggregate views cache attached records downstream.
	s.loader.Invalidate()

	writeJSON(w, http.StatusOK, map[string]any{"outcomes": outcomes})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	zap.L().Error("request failed", zap.Error(err))
	status := http.StatusInternalServerError
	if eris.Is(err, dataset.ErrDataFileMissing) {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
