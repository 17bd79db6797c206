package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ironsheep/image-filter-server/internal/imaging"
	"github.com/ironsheep/image-filter-server/internal/raster"
)

const (
	// generatedIDLength is the length of ids assigned by POST /images.
	generatedIDLength = 12

	defaultStatsCount = 5
	maxStatsCount     = 256
)

var (
	idRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

	errUploadTooLarge = errors.New("upload too large")
)

// statusFor maps an error to the HTTP status reported to the client.
func statusFor(err error) int {
	switch {
	case errors.Is(err, imaging.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errUploadTooLarge), errors.Is(err, imaging.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errBadParam),
		errors.Is(err, imaging.ErrInvalidImage),
		errors.Is(err, imaging.ErrUnsupportedFormat),
		errors.Is(err, imaging.ErrInvalidRegion),
		errors.Is(err, raster.ErrOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail logs server-side failures and writes err as a JSON error.
func (s *Server) fail(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		log.Printf("[error] %v", err)
	}
	httpError(w, code, err.Error())
}

// pathID extracts and validates the {id} path value.
func pathID(r *http.Request) (string, error) {
	id := r.PathValue("id")
	if !idRe.MatchString(id) {
		return "", fmt.Errorf("%w: invalid image id %q", errBadParam, id)
	}
	return id, nil
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, "Image Processing API")
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "images": s.store.Len()})
}

func (s *Server) handleListFilters(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"filters": GetFilterDefinitions()})
}

// readUpload returns the image bytes of r, from the multipart "file" field
// when the body is multipart and from the raw body otherwise.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	limit := s.cfg.MaxUploadBytes
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if strings.HasPrefix(mediaType, "multipart/") {
		// Leave room for the multipart framing around the file itself.
		r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
		if err := r.ParseMultipartForm(limit); err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				return nil, errUploadTooLarge
			}
			return nil, fmt.Errorf("%w: malformed multipart body: %v", errBadParam, err)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("%w: missing file field", errBadParam)
		}
		defer file.Close()
		return readLimited(file, limit)
	}

	r.Body = http.MaxBytesReader(w, r.Body, limit+1)
	return readLimited(r.Body, limit)
}

func readLimited(rd io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(rd, limit+1))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, errUploadTooLarge
		}
		return nil, fmt.Errorf("read failed: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, errUploadTooLarge
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", imaging.ErrInvalidImage)
	}
	return data, nil
}

// storeUpload decodes the request body and stores it under id.
func (s *Server) storeUpload(w http.ResponseWriter, r *http.Request, id string) (imaging.Info, error) {
	data, err := s.readUpload(w, r)
	if err != nil {
		return imaging.Info{}, err
	}
	buf, format, err := imaging.Decode(data, s.cfg.MaxPixels)
	if err != nil {
		return imaging.Info{}, err
	}
	info := s.store.Put(id, buf, format)
	log.Printf("[image] uploaded id=%s bytes=%d format=%s size=%dx%dx%d",
		id, len(data), format, info.Width, info.Height, info.Channels)
	return info, nil
}

// generateUniqueID returns a random id the store does not hold yet.
func (s *Server) generateUniqueID() (string, error) {
	for range 5 {
		id, err := randomID(generatedIDLength)
		if err != nil {
			return "", err
		}
		if _, err := s.store.Info(id); errors.Is(err, imaging.ErrNotFound) {
			return id, nil
		}
	}
	return "", fmt.Errorf("could not generate unique id")
}

func (s *Server) handleCreateImage(w http.ResponseWriter, r *http.Request) {
	id, err := s.generateUniqueID()
	if err != nil {
		s.fail(w, err)
		return
	}
	info, err := s.storeUpload(w, r, id)
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Location", "/images/"+id)
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) handlePutImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	info, err := s.storeUpload(w, r, id)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// outputFormat picks the download format: the requested one, else the
// source format when it can be encoded, else the configured default.
func (s *Server) outputFormat(requested, source string) (string, error) {
	if requested != "" {
		return imaging.NormalizeFormat(requested)
	}
	if f, err := imaging.NormalizeFormat(source); err == nil {
		return f, nil
	}
	return s.cfg.OutputFormat, nil
}

// writeImage encodes the current buffer of id to w.
func (s *Server) writeImage(w http.ResponseWriter, id, requested string) error {
	buf, info, err := s.store.Current(id)
	if err != nil {
		return err
	}
	format, err := s.outputFormat(requested, info.Format)
	if err != nil {
		return err
	}

	var out bytes.Buffer
	if err := imaging.Encode(&out, buf, format, s.cfg.JPEGQuality); err != nil {
		return err
	}

	w.Header().Set("Content-Type", imaging.ContentType(format))
	w.Header().Set("Content-Length", strconv.Itoa(out.Len()))
	w.Header().Set("X-Image-Version", strconv.FormatInt(info.Version, 10))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Bytes())
	s.debugf("serve id=%s format=%s bytes=%d version=%d", id, format, out.Len(), info.Version)
	return nil
}

func (s *Server) handleGetImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	if err := s.writeImage(w, id, r.URL.Query().Get("format")); err != nil {
		s.fail(w, err)
	}
}

func (s *Server) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	if !s.store.Delete(id) {
		s.fail(w, fmt.Errorf("%w: %q", imaging.ErrNotFound, id))
		return
	}
	log.Printf("[image] deleted id=%s", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	info, err := s.store.Info(id)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	info, err := s.store.Reset(id)
	if err != nil {
		s.fail(w, err)
		return
	}
	log.Printf("[image] reset id=%s version=%d", id, info.Version)
	writeJSON(w, http.StatusOK, info)
}

// applyFilter runs f on the current image of id. raw is the unparsed
// parameter value; empty selects the default.
func (s *Server) applyFilter(ctx context.Context, id string, f *Filter, raw string) (imaging.Info, error) {
	v, err := f.parseValue(raw)
	if err != nil {
		return imaging.Info{}, err
	}

	if s.cfg.FilterTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.FilterTimeout)
		defer cancel()
	}

	start := time.Now()
	info, err := s.store.Apply(ctx, id, func(b *raster.Buffer) error {
		f.apply(b, v)
		return nil
	})
	if err != nil {
		return imaging.Info{}, err
	}
	log.Printf("[filter] id=%s name=%s value=%q version=%d (%v)", id, f.Name, raw, info.Version, time.Since(start))
	return info, nil
}

func (s *Server) handleApplyFilter(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	name := r.PathValue("name")
	f, ok := lookupFilter(name)
	if !ok {
		httpError(w, http.StatusNotFound, fmt.Sprintf("unknown filter %q", name))
		return
	}
	raw := r.PathValue("value")
	if raw == "" {
		raw = r.URL.Query().Get("value")
	}

	info, err := s.applyFilter(r.Context(), id, f, raw)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// queryInt parses the integer query parameter name. Missing parameters
// yield def, or an error when required is set.
func queryInt(r *http.Request, name string, def int, required bool) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		if required {
			return 0, fmt.Errorf("%w: %s is required", errBadParam, name)
		}
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", errBadParam, name, raw)
	}
	return v, nil
}

// queryRegion reads x1, y1, x2, y2. It returns nil when none is given.
func queryRegion(r *http.Request) (*imaging.Region, error) {
	q := r.URL.Query()
	if !q.Has("x1") && !q.Has("y1") && !q.Has("x2") && !q.Has("y2") {
		return nil, nil
	}
	var coords [4]int
	for i, name := range []string{"x1", "y1", "x2", "y2"} {
		v, err := queryInt(r, name, 0, true)
		if err != nil {
			return nil, err
		}
		coords[i] = v
	}
	return &imaging.Region{X1: coords[0], Y1: coords[1], X2: coords[2], Y2: coords[3]}, nil
}

func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	x, err := queryInt(r, "x", 0, true)
	if err != nil {
		s.fail(w, err)
		return
	}
	y, err := queryInt(r, "y", 0, true)
	if err != nil {
		s.fail(w, err)
		return
	}

	buf, _, err := s.store.Current(id)
	if err != nil {
		s.fail(w, err)
		return
	}
	result, err := imaging.SampleColor(buf, x, y)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	count, err := queryInt(r, "count", defaultStatsCount, false)
	if err != nil {
		s.fail(w, err)
		return
	}
	if count < 1 || count > maxStatsCount {
		s.fail(w, fmt.Errorf("%w: count must be between 1 and %d", errBadParam, maxStatsCount))
		return
	}
	region, err := queryRegion(r)
	if err != nil {
		s.fail(w, err)
		return
	}

	buf, _, err := s.store.Current(id)
	if err != nil {
		s.fail(w, err)
		return
	}
	result, err := imaging.Stats(buf, count, region)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCrop(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, err)
		return
	}

	scale := 1.0
	if raw := r.URL.Query().Get("scale"); raw != "" {
		scale, err = strconv.ParseFloat(raw, 64)
		if err != nil || !(scale > 0) || scale > 16 {
			s.fail(w, fmt.Errorf("%w: scale must be a number in (0, 16], got %q", errBadParam, raw))
			return
		}
	}

	buf, _, err := s.store.Current(id)
	if err != nil {
		s.fail(w, err)
		return
	}

	var result *imaging.CropResult
	if name := r.URL.Query().Get("region"); name != "" {
		result, err = imaging.CropQuadrant(buf, name, scale)
	} else {
		var region *imaging.Region
		region, err = queryRegion(r)
		if err == nil && region == nil {
			err = fmt.Errorf("%w: give region or x1, y1, x2, y2", errBadParam)
		}
		if err == nil {
			result, err = imaging.Crop(buf, region.X1, region.Y1, region.X2, region.Y2, scale)
		}
	}
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
