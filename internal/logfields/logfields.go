package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyArticle    = "article"
	KeyVersion    = "version"
	KeyURLPath    = "url_path"
	KeyTenant     = "tenant"
	KeyJobID      = "job_id"
	KeyJobStatus  = "job_status"
	KeyProvider   = "provider"
	KeyStage      = "stage"
	KeyDurationMS = "duration_ms"
	KeyMethod     = "method"
	KeyPath       = "path"
	KeyStatus     = "status"
	KeyRemoteAddr = "remote_addr"
	KeyUserAgent  = "user_agent"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Article(n int64) slog.Attr        { return slog.Int64(KeyArticle, n) }
func Version(v int) slog.Attr          { return slog.Int(KeyVersion, v) }
func URLPath(p string) slog.Attr       { return slog.String(KeyURLPath, p) }
func Tenant(id string) slog.Attr       { return slog.String(KeyTenant, id) }
func JobID(id string) slog.Attr        { return slog.String(KeyJobID, id) }
func JobStatus(s string) slog.Attr     { return slog.String(KeyJobStatus, s) }
func Provider(name string) slog.Attr   { return slog.String(KeyProvider, name) }
func Stage(name string) slog.Attr      { return slog.String(KeyStage, name) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }
func Method(m string) slog.Attr        { return slog.String(KeyMethod, m) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func Status(code int) slog.Attr        { return slog.Int(KeyStatus, code) }
func RemoteAddr(addr string) slog.Attr { return slog.String(KeyRemoteAddr, addr) }
func UserAgent(ua string) slog.Attr    { return slog.String(KeyUserAgent, ua) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
