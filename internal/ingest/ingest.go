// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"slices"
	"time"

	"github.com/apex/log"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mrdp/mrdp/internal/aws"
	"github.com/mrdp/mrdp/internal/server"
)

const (
	// ServiceName identifies the service in health checks and metrics.
	ServiceName = "data-ingestion"

	// DefaultBatchType applies when a batch names no type.
	DefaultBatchType = "telemetry"

	keyTimeLayout = "20060102150405"
)

var (
	telemetryRequired = []string{"procedure_id", "timestamp", "robot_id"}
	procedureRequired = []string{"procedure_id", "robot_id", "procedure_type", "procedure_category", "start_time"}

	// batchKinds are the batch types counted under their own metric label.
	batchKinds = []string{"telemetry", "procedure", "outcome", "maintenance"}

	// safeSegment guards values that become object key segments.
	safeSegment = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

	errNoBucket = errors.New("raw bucket is not configured")
)

// Service handles the ingestion endpoints.
type Service struct {
	S3     aws.S3API
	Bucket string
	Store  Store
	// MaxBody caps request bodies. Defaults to server.DefaultMaxBody.
	MaxBody int64

	now      func() time.Time
	newID    func() string
	ingested *prometheus.CounterVec
}

// New returns a Service writing raw objects to bucket.
func New(s3 aws.S3API, bucket string, store Store) *Service {
	return &Service{
		S3:     s3,
		Bucket: bucket,
		Store:  store,
		now:    time.Now,
		newID:  func() string { return uuid.NewString()[:8] },
		ingested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mrdp",
			Name:      "ingested_records_total",
			Help:      "Number of records accepted by the ingestion service.",
		}, []string{"kind"}),
	}
}

// Routes mounts the endpoints on r and registers the service metrics with
// reg when it is not nil.
func (s *Service) Routes(r chi.Router, reg prometheus.Registerer) {
	if reg != nil {
		reg.MustRegister(s.ingested)
	}
	r.Get("/health", s.health)
	r.Route("/ingest", func(r chi.Router) {
		r.Post("/telemetry", s.telemetry)
		r.Post("/procedure", s.procedure)
		r.Post("/batch", s.batch)
		r.Get("/stats", s.stats)
	})
}

func (s *Service) health(w http.ResponseWriter, r *http.Request) {
	server.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": ServiceName})
}

// decode reads a non-empty JSON object body.
func (s *Service) decode(w http.ResponseWriter, r *http.Request, empty string) (map[string]any, error) {
	var data map[string]any
	if err := server.DecodeJSON(w, r, s.MaxBody, &data); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, server.Errorf(http.StatusBadRequest, "%s", empty)
	}
	return data, nil
}

func requireFields(data map[string]any, fields []string) error {
	for _, f := range fields {
		if _, ok := data[f]; !ok {
			return server.Errorf(http.StatusBadRequest, "Missing required field: %s", f)
		}
	}
	return nil
}

// segment validates a value used inside an object key.
func segment(name string, v any) (string, error) {
	s, ok := v.(string)
	if !ok || !safeSegment.MatchString(s) {
		return "", server.Errorf(http.StatusBadRequest, "invalid %s: must be a string of letters, digits, '.', '_' or '-'", name)
	}
	return s, nil
}

// key names a raw object. The random suffix keeps two payloads for the same
// procedure in the same second apart.
func (s *Service) key(prefix string) string {
	return fmt.Sprintf("%s/%s-%s.json", prefix, s.now().UTC().Format(keyTimeLayout), s.newID())
}

func (s *Service) put(r *http.Request, key string, v any) error {
	if s.Bucket == "" {
		return errNoBucket
	}
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return aws.PutBytes(r.Context(), s.S3, s.Bucket, key, body, "application/json", "")
}

func (s *Service) telemetry(w http.ResponseWriter, r *http.Request) {
	data, err := s.decode(w, r, "No data provided")
	if err != nil {
		server.Fail(w, r, err)
		return
	}
	if err := requireFields(data, telemetryRequired); err != nil {
		server.Fail(w, r, err)
		return
	}
	procedureID, err := segment("procedure_id", data["procedure_id"])
	if err != nil {
		server.Fail(w, r, err)
		return
	}

	key := s.key("telemetry/" + procedureID)
	if err := s.put(r, key, data); err != nil {
		server.Fail(w, r, fmt.Errorf("failed to store telemetry: %w", err))
		return
	}
	s.ingested.WithLabelValues("telemetry").Inc()
	log.WithField("key", key).Debug("telemetry stored")

	server.WriteJSON(w, http.StatusCreated, map[string]string{
		"status":  "success",
		"message": "Telemetry data ingested",
		"s3_key":  key,
	})
}

func (s *Service) procedure(w http.ResponseWriter, r *http.Request) {
	data, err := s.decode(w, r, "No data provided")
	if err != nil {
		server.Fail(w, r, err)
		return
	}
	if err := requireFields(data, procedureRequired); err != nil {
		server.Fail(w, r, err)
		return
	}
	for _, c := range procedureColumns {
		switch data[c].(type) {
		case map[string]any, []any:
			server.Fail(w, r, server.Errorf(http.StatusBadRequest, "invalid %s: must be a scalar", c))
			return
		}
	}
	if _, ok := data["status"]; !ok {
		data["status"] = "completed"
	}

	if err := s.Store.UpsertProcedure(r.Context(), data); err != nil {
		server.Fail(w, r, err)
		return
	}
	s.ingested.WithLabelValues("procedure").Inc()

	server.WriteJSON(w, http.StatusCreated, map[string]any{
		"status":       "success",
		"message":      "Procedure data ingested",
		"procedure_id": data["procedure_id"],
	})
}

func (s *Service) batch(w http.ResponseWriter, r *http.Request) {
	data, err := s.decode(w, r, "No records provided")
	if err != nil {
		server.Fail(w, r, err)
		return
	}
	raw, ok := data["records"]
	if !ok {
		server.WriteError(w, http.StatusBadRequest, "No records provided")
		return
	}
	records, ok := raw.([]any)
	if !ok {
		server.WriteError(w, http.StatusBadRequest, "records must be a list")
		return
	}
	typ := DefaultBatchType
	if v, ok := data["type"]; ok {
		if typ, err = segment("type", v); err != nil {
			server.Fail(w, r, err)
			return
		}
	}

	key := s.key("batch/" + typ)
	if err := s.put(r, key, records); err != nil {
		server.Fail(w, r, fmt.Errorf("failed to store batch: %w", err))
		return
	}
	s.ingested.WithLabelValues(batchKind(typ)).Add(float64(len(records)))

	server.WriteJSON(w, http.StatusCreated, map[string]any{
		"status":  "success",
		"message": fmt.Sprintf("Batch of %d records ingested", len(records)),
		"s3_key":  key,
		"count":   len(records),
	})
}

// batchKind maps a client-supplied batch type onto a bounded label set.
func batchKind(typ string) string {
	if slices.Contains(batchKinds, typ) {
		return typ
	}
	return "other"
}

func (s *Service) stats(w http.ResponseWriter, r *http.Request) {
	st, err := s.Store.Stats(r.Context())
	if err != nil {
		server.Fail(w, r, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, st)
}
