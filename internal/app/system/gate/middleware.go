package gate

import (
	"net/http"
	"path"
	"strings"

	"github.com/dalemusser/airodental/internal/app/system/auth"
	"github.com/dalemusser/airodental/internal/app/system/metrics"
	"github.com/dalemusser/airodental/internal/app/system/respond"
	"github.com/dalemusser/airodental/internal/app/system/routeclass"
	"go.uber.org/zap"
)

// HeaderOrgSelection carries the organization slug (or "personal") named by
// the URL to the upstream UI. Client-supplied values are discarded.
const HeaderOrgSelection = "X-Airodental-Org-Selection"

// Middleware enforces an Engine on every request. It expects the session to
// be attached already (auth.SessionLoader runs first).
type Middleware struct {
	engine  *Engine
	metrics *metrics.Metrics
	log     *zap.Logger
}

// NewMiddleware builds the gate. m may be nil.
func NewMiddleware(engine *Engine, m *metrics.Metrics, logger *zap.Logger) *Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Middleware{engine: engine, metrics: m, log: logger}
}

// Handler wraps next.
//
// Page requests are redirected with 303 (or HX-Redirect for htmx). API
// requests get 401 when signed out and 403 for every other denial.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Header.Del(HeaderOrgSelection)

		// Non-canonical paths are redirected before classification so that
		// dot segments and doubled slashes cannot step around a rule.
		if cp := cleanPath(r.URL.Path); cp != r.URL.Path {
			u := *r.URL
			u.Path = cp
			u.RawPath = ""
			http.Redirect(w, r, u.RequestURI(), http.StatusPermanentRedirect)
			return
		}

		path := r.URL.Path
		if routeclass.SkipsGate(path) {
			next.ServeHTTP(w, r)
			return
		}

		class := m.engine.Classify(path)
		rule := m.engine.RuleFor(path)
		s := auth.CurrentSession(r)
		d := m.engine.Decide(s, class, rule, OriginalURL(r))
		api := auth.IsAPIRequest(r)

		if d.Outcome == AfterOnboarding && api {
			d = Decision{Outcome: Continue}
		}
		m.metrics.GateDecision(m.engine.policy.Profile, class.String(), string(d.Outcome))

		if d.Continues() {
			if sel := m.engine.OrgSelection(path); sel.Matched {
				v := sel.Organization
				if sel.Personal {
					v = "personal"
				}
				if v != "" {
					r.Header.Set(HeaderOrgSelection, v)
				}
			}
			next.ServeHTTP(w, r)
			return
		}

		m.log.Debug("gate redirect",
			zap.String("path", path),
			zap.String("class", class.String()),
			zap.String("outcome", string(d.Outcome)),
			zap.String("user_id", s.UserID),
			zap.String("location", d.Location))

		status := http.StatusForbidden
		if d.Outcome == SignIn {
			status = http.StatusUnauthorized
		}

		switch {
		case api:
			msg := "Forbidden"
			if status == http.StatusUnauthorized {
				msg = "Unauthorized"
			}
			respond.JSON(w, status, map[string]string{
				"error":    msg,
				"reason":   string(d.Outcome),
				"location": d.Location,
			})
		case auth.IsHTMX(r):
			w.Header().Set("HX-Redirect", d.Location)
			w.WriteHeader(status)
		default:
			http.Redirect(w, r, d.Location, http.StatusSeeOther)
		}
	})
}

// cleanPath returns the canonical form of p the way net/http.ServeMux does,
// keeping a trailing slash.
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	np := path.Clean(p)
	if p[len(p)-1] == '/' && np != "/" {
		if len(p) == len(np)+1 && strings.HasPrefix(p, np) {
			return p
		}
		np += "/"
	}
	return np
}

// OriginalURL reconstructs the absolute URL the client requested, honouring
// X-Forwarded-Proto and X-Forwarded-Host from a fronting proxy.
func OriginalURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := firstHeaderValue(r, "X-Forwarded-Proto"); p == "http" || p == "https" {
		scheme = p
	}
	host := r.Host
	if h := firstHeaderValue(r, "X-Forwarded-Host"); h != "" {
		host = h
	}
	if host == "" {
		return r.URL.RequestURI()
	}
	return scheme + "://" + host + r.URL.RequestURI()
}

func firstHeaderValue(r *http.Request, name string) string {
	v := r.Header.Get(name)
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = v[:i]
	}
	return strings.ToLower(strings.TrimSpace(v))
}
