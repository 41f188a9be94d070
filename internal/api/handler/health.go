package handler

import (
	"context"
	"net/http"

	"github.com/kiranshivaraju/pixelrelay/internal/api/response"
)

// Pinger is a dependency whose connectivity the health check reports.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CredentialedProvider is any upstream whose credential presence is reported.
type CredentialedProvider interface {
	Name() string
	HasCredentials() bool
}

// NewHealthHandler returns an http.HandlerFunc for GET /api/health.
// services maps a name to its Pinger; a nil Pinger is reported as "disabled".
// Missing provider credentials are reported but do not degrade the service.
func NewHealthHandler(services map[string]Pinger, providers []CredentialedProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := make(map[string]string, len(services))
		degraded := false
		for name, p := range services {
			switch {
			case p == nil:
				checks[name] = "disabled"
			case p.Ping(r.Context()) != nil:
				checks[name] = "degraded"
				degraded = true
			default:
				checks[name] = "ok"
			}
		}

		creds := make(map[string]string, len(providers))
		for _, p := range providers {
			if p.HasCredentials() {
				creds[p.Name()] = "configured"
			} else {
				creds[p.Name()] = "missing_credentials"
			}
		}

		status, code := "ok", http.StatusOK
		if degraded {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		response.JSON(w, code, map[string]any{
			"status":    status,
			"services":  checks,
			"providers": creds,
		})
	}
}
