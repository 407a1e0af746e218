package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/km-arc/go-modular/framework/errs"
)

const maxMemory = 32 << 20 // 32 MB

// Request wraps *http.Request with input helpers. Actions may take it in
// place of *http.Request for the request role.
type Request struct {
	raw *http.Request
}

func NewRequest(r *http.Request) *Request {
	return &Request{raw: r}
}

func (req *Request) Raw() *http.Request { return req.raw }

// Context is the request context; it is cancelled when the client goes away.
func (req *Request) Context() context.Context { return req.raw.Context() }

// ID is the request id assigned by the router, empty outside it.
func (req *Request) ID() string { return middleware.GetReqID(req.raw.Context()) }

// ── Binding ──────────────────────────────────────────────────────────────────

// Bind decodes the request body into v according to its media type. A
// missing Content-Type is read as JSON. Form encodings map onto the same
// `json` tags. Failures are bad-request errors.
func (req *Request) Bind(v any) error {
	var err error
	switch ct := req.MediaType(); ct {
	case "", "application/json":
		err = req.bindJSON(v)
	case "multipart/form-data":
		if err = req.raw.ParseMultipartForm(maxMemory); err == nil {
			err = bindForm(req.raw.MultipartForm.Value, v)
		}
	case "application/x-www-form-urlencoded":
		if err = req.raw.ParseForm(); err == nil {
			err = bindForm(req.raw.PostForm, v)
		}
	default:
		err = errors.New("unsupported content type " + ct)
	}
	if err != nil {
		return errs.BadRequest(err, "invalid request body")
	}
	return nil
}

func (req *Request) bindJSON(v any) error {
	if req.raw.Body == nil || req.raw.Body == http.NoBody {
		return errors.New("empty request body")
	}
	defer req.raw.Body.Close()
	err := json.NewDecoder(req.raw.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return errors.New("empty request body")
	}
	return err
}

// bindForm maps form values onto v through a JSON round-trip.
func bindForm(values map[string][]string, v any) error {
	m := make(map[string]any, len(values))
	for k, vals := range values {
		if len(vals) == 1 {
			m[k] = vals[0]
		} else {
			m[k] = vals
		}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// ── Input helpers ────────────────────────────────────────────────────────────

// Query returns a query-string value, or fallback when it is empty.
func (req *Request) Query(key string, fallback ...string) string {
	if v := req.raw.URL.Query().Get(key); v != "" || len(fallback) == 0 {
		return v
	}
	return fallback[0]
}

// RouteParam returns the path segment bound to a ":key" placeholder.
func (req *Request) RouteParam(key string) string {
	return chi.URLParam(req.raw, key)
}

// BearerToken is the credential of an "Authorization: Bearer" header.
func (req *Request) BearerToken() string {
	token, ok := strings.CutPrefix(req.raw.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// MediaType is the lower-cased Content-Type without parameters.
func (req *Request) MediaType() string {
	ct := req.raw.Header.Get("Content-Type")
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(ct))
	}
	return mt
}
