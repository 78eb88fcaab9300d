package bridge

import (
	"errors"
	"net/http"
	"strings"
)

// ErrInvalidAttachRequest indicates the attach request carried no usable
// session identity.
var ErrInvalidAttachRequest = errors.New("attach request missing tenant or call identity")

// SessionKeys identify one media stream attach request.
type SessionKeys struct {
	TenantID string
	CallID   string
}

// ExtractSessionKeys reads the session identity from an attach request.
// Query parameters win; the /media/{tenantId}/{callId} path form is the
// fallback for providers that cannot set query strings on stream URLs.
func ExtractSessionKeys(r *http.Request) (SessionKeys, error) {
	keys := SessionKeys{
		TenantID: strings.TrimSpace(r.URL.Query().Get("tenantId")),
		CallID:   strings.TrimSpace(r.URL.Query().Get("callId")),
	}
	if keys.TenantID != "" && keys.CallID != "" {
		return keys, nil
	}

	segments := splitPath(r.URL.Path)
	if len(segments) >= 3 && segments[0] == "media" {
		if keys.TenantID == "" {
			keys.TenantID = segments[1]
		}
		if keys.CallID == "" {
			keys.CallID = segments[2]
		}
	}

	if keys.TenantID == "" || keys.CallID == "" {
		return SessionKeys{}, ErrInvalidAttachRequest
	}
	return keys, nil
}

func splitPath(path string) []string {
	var segments []string
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	return segments
}
