package vaultsecrets

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/systmms/apivault/internal/cloud"
	apierrors "github.com/systmms/apivault/internal/errors"
	"github.com/systmms/apivault/internal/secretcache"
)

const maxRequestBytes = 64 << 10

// AuthRequest is the body of POST /authenticate
type AuthRequest struct {
	Provider    cloud.ProviderName `json:"provider"`
	Credentials json.RawMessage    `json:"credentials"`
}

// SecretRequest is the body of POST /secret
type SecretRequest struct {
	AuthRequest
	SecretID string              `json:"secretId"`
	Config   *cloud.SecretConfig `json:"config,omitempty"`
}

// MaxAgeRequest is the body of POST /cache/max-age
type MaxAgeRequest struct {
	MaxAge float64          `json:"maxAge"`
	Unit   secretcache.Unit `json:"unit,omitempty"`
}

// Handler exposes the service over HTTP for local clients:
//
//	POST   /authenticate   -> ServiceResult[Identity]
//	POST   /secret         -> ServiceResult[Secret]
//	DELETE /cache          -> 204
//	POST   /cache/max-age  -> 204
//
// Provider failures are reported inside the 200 envelope. Bad requests and
// unknown providers get a 400 with {"error": "..."}.
func Handler(svc *Service) http.Handler {
	r := chi.NewRouter()

	r.Post("/authenticate", func(w http.ResponseWriter, r *http.Request) {
		var in AuthRequest
		if !decode(w, r, &in) {
			return
		}
		cred, err := cloud.ParseCredential(in.Provider, in.Credentials)
		if err != nil {
			badRequest(w, err)
			return
		}
		result, err := svc.Authorize(r.Context(), in.Provider, cred)
		if err != nil {
			badRequest(w, err)
			return
		}
		respond(w, http.StatusOK, result)
	})

	r.Post("/secret", func(w http.ResponseWriter, r *http.Request) {
		var in SecretRequest
		if !decode(w, r, &in) {
			return
		}
		if in.SecretID == "" {
			badRequest(w, apierrors.InvalidArgument("secretId is required"))
			return
		}
		cred, err := cloud.ParseCredential(in.Provider, in.Credentials)
		if err != nil {
			badRequest(w, err)
			return
		}
		result, err := svc.GetSecret(r.Context(), in.Provider, cred, in.SecretID, in.Config)
		if err != nil {
			badRequest(w, err)
			return
		}
		respond(w, http.StatusOK, result)
	})

	r.Delete("/cache", func(w http.ResponseWriter, r *http.Request) {
		svc.ClearCache()
		w.WriteHeader(http.StatusNoContent)
	})

	r.Post("/cache/max-age", func(w http.ResponseWriter, r *http.Request) {
		var in MaxAgeRequest
		if !decode(w, r, &in) {
			return
		}
		unit, ok := secretcache.ParseUnit(string(in.Unit))
		if !ok {
			respond(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("unknown time unit %q", in.Unit)})
			return
		}
		svc.SetCacheMaxAge(in.MaxAge, unit)
		w.WriteHeader(http.StatusNoContent)
	})

	return r
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(v); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return false
	}
	return true
}

func badRequest(w http.ResponseWriter, err error) {
	msg := err.Error()
	if !errors.Is(err, apierrors.ErrInvalidArgument) && !errors.Is(err, apierrors.ErrUnknownProvider) {
		msg = "request failed"
	}
	respond(w, http.StatusBadRequest, map[string]string{"error": msg})
}

func respond(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
