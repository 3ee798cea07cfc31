package auth

import (
	"net/http"
	"strings"
)

// Policy determines required roles by request.
type Policy struct {
	ExemptPaths    map[string]struct{}
	ExemptPrefixes []string
}

// NewDefaultPolicy builds a default policy with exemptions.
func NewDefaultPolicy(exemptPaths []string, exemptPrefixes []string) Policy {
	set := make(map[string]struct{}, len(exemptPaths))
	for _, path := range exemptPaths {
		set[path] = struct{}{}
	}
	return Policy{ExemptPaths: set, ExemptPrefixes: exemptPrefixes}
}

// IsExempt returns true when a request should skip auth/RBAC.
func (p Policy) IsExempt(r *http.Request) bool {
	if r == nil {
		return true
	}
	if _, ok := p.ExemptPaths[r.URL.Path]; ok {
		return true
	}
	for _, prefix := range p.ExemptPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// RequiredRole resolves the required role for the request. Members create,
// submit and read claims; association admins validate and refuse them;
// the national board handles second validation, payment and rate edits.
func (p Policy) RequiredRole(r *http.Request) (Role, bool) {
	if r == nil {
		return "", false
	}
	path := r.URL.Path
	method := r.Method

	switch {
	case path == "/api/v1/claims":
		return RoleMember, true
	case path == "/api/v1/claims/calculate":
		return RoleMember, true
	case strings.HasPrefix(path, "/api/v1/claims/"):
		switch {
		case strings.HasSuffix(path, "/validate"), strings.HasSuffix(path, "/refuse"):
			return RoleAssociationAdmin, true
		case strings.HasSuffix(path, "/approve"), strings.HasSuffix(path, "/pay"):
			return RoleNationalBoard, true
		default:
			return RoleMember, true
		}
	case path == "/api/v1/exports/claims.xlsx":
		return RoleAssociationAdmin, true
	case strings.HasPrefix(path, "/api/v1/rates/"):
		if method == http.MethodGet {
			return RoleMember, true
		}
		return RoleNationalBoard, true
	}

	if strings.HasPrefix(path, "/api/") {
		if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
			return RoleMember, true
		}
		return RoleAssociationAdmin, true
	}
	return "", false
}
