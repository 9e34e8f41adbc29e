package msgrelay

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/gorilla/mux"
)

// Page names looked up in the pages file system.
const (
	IndexPage    = "index.html"
	MessagePage  = "message.html"
	NotFoundPage = "error.html"
	StaticDir    = "static"
)

// Bodies of the replies to a submission.
const (
	SentReply   = "Message sent!"
	FailedReply = "Failed to send message"
)

// DefaultMaxFormSize limits the submission body when FrontDoorOptions has no MaxFormSize.
const DefaultMaxFormSize = 1 << 20

// ErrSubmissionTooLarge is returned for a form body over the size limit.
var ErrSubmissionTooLarge = errors.New("submission too large")

var contentTypes = map[string]string{
	".html": "text/html",
	".css":  "text/css",
	".png":  "image/png",
}

// FrontDoorOptions tune a FrontDoor. The zero value is usable.
type FrontDoorOptions struct {
	Logger *slog.Logger

	// MaxFormSize is the largest submission body accepted. A larger body is
	// refused rather than truncated.
	MaxFormSize int64
}

// FrontDoor is the HTTP handler facing the web clients. It serves the pages
// unmodified and relays submitted messages through a Deliverer.
type FrontDoor struct {
	pages       fs.FS
	relay       Deliverer
	log         *slog.Logger
	maxFormSize int64
	handler     http.Handler
}

// NewFrontDoor returns a FrontDoor serving pages and relaying through relay.
func NewFrontDoor(pages fs.FS, relay Deliverer, opts FrontDoorOptions) *FrontDoor {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.MaxFormSize <= 0 {
		opts.MaxFormSize = DefaultMaxFormSize
	}
	fd := &FrontDoor{
		pages:       pages,
		relay:       relay,
		log:         log,
		maxFormSize: opts.MaxFormSize,
	}

	r := mux.NewRouter()
	// Submissions are accepted on any path. A Methods matcher here would
	// turn every unknown GET into a 405 instead of the not found page.
	r.MatcherFunc(isPost).HandlerFunc(fd.handleSubmit)
	r.Methods(http.MethodGet, http.MethodHead).Path("/").HandlerFunc(fd.servePage(IndexPage))
	r.Methods(http.MethodGet, http.MethodHead).Path("/" + MessagePage).HandlerFunc(fd.servePage(MessagePage))
	r.Methods(http.MethodGet, http.MethodHead).PathPrefix("/" + StaticDir + "/").HandlerFunc(fd.serveStatic)
	r.NotFoundHandler = http.HandlerFunc(fd.serveNotFound)

	fd.handler = RecoverErrors(log, LogRequests(log, r))
	return fd
}

// ServeHTTP ...
func (fd *FrontDoor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fd.handler.ServeHTTP(w, r)
}

func (fd *FrontDoor) servePage(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := fs.ReadFile(fd.pages, name)
		if err != nil {
			fd.log.Warn("page missing", "page", name, "err", err)
			fd.serveNotFound(w, r)
			return
		}
		writeBody(w, http.StatusOK, contentTypes[".html"], data)
	}
}

func (fd *FrontDoor) serveStatic(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/")
	if !fs.ValidPath(name) {
		fd.serveNotFound(w, r)
		return
	}

	data, err := fs.ReadFile(fd.pages, name)
	if err != nil {
		fd.serveNotFound(w, r)
		return
	}

	writeBody(w, http.StatusOK, staticContentType(name), data)
}

// serveNotFound replies with the not found page, or a plain body when even
// that page is missing.
func (fd *FrontDoor) serveNotFound(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(fd.pages, NotFoundPage)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	writeBody(w, http.StatusNotFound, contentTypes[".html"], data)
}

func (fd *FrontDoor) handleSubmit(w http.ResponseWriter, r *http.Request) {
	msg, err := parseSubmission(r.Body, fd.maxFormSize)
	if err != nil {
		fd.log.Warn("refusing submission", "err", err)
		writeBody(w, http.StatusInternalServerError, contentTypes[".html"], []byte(FailedReply))
		return
	}

	select {
	case err = <-DeliverAsync(r.Context(), fd.relay, msg):
	case <-r.Context().Done():
		err = r.Context().Err()
	}

	if err != nil {
		fd.log.Error("failed to send message", "username", msg.Username, "err", err)
		writeBody(w, http.StatusInternalServerError, contentTypes[".html"], []byte(FailedReply))
		return
	}

	fd.log.Debug("message relayed", "username", msg.Username)
	writeBody(w, http.StatusOK, contentTypes[".html"], []byte(SentReply))
}

// parseSubmission reads a URL-encoded body of at most limit bytes. Fields
// that cannot be parsed are left empty.
func parseSubmission(body io.Reader, limit int64) (Message, error) {
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return Message{}, err
	}
	if int64(len(data)) > limit {
		return Message{}, fmt.Errorf("%w: limit %d bytes", ErrSubmissionTooLarge, limit)
	}
	values, _ := url.ParseQuery(string(data))
	return Message{
		Username: values.Get("username"),
		Message:  values.Get("message"),
	}, nil
}

func isPost(r *http.Request, _ *mux.RouteMatch) bool {
	return r.Method == http.MethodPost
}

func staticContentType(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if t, ok := contentTypes[ext]; ok {
		return t
	}
	return mime.TypeByExtension(ext)
}

func writeBody(w http.ResponseWriter, status int, contentType string, data []byte) {
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.WriteHeader(status)
	w.Write(data)
}
