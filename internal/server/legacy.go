package server

import (
	"net/http"
)

// legacyID is the store slot used by the single-image routes.
const legacyID = "default"

// registerLegacy adds the single-image routes: POST /uploadImage,
// GET /getImage and one POST route per filter under its legacy name.
// They operate on legacyID and answer in plain text.
func (s *Server) registerLegacy(mux *http.ServeMux) {
	mux.HandleFunc("POST /uploadImage", s.handleLegacyUpload)
	mux.HandleFunc("GET /getImage", s.handleLegacyGet)

	for i := range filters {
		f := &filters[i]
		h := s.legacyFilterHandler(f)
		if f.Param == nil {
			mux.HandleFunc("POST /"+f.LegacyRoute, h)
			continue
		}
		mux.HandleFunc("POST /"+f.LegacyRoute+"/{value}", h)
		if f.Param.Default != nil {
			mux.HandleFunc("POST /"+f.LegacyRoute, h)
		}
	}
}

func (s *Server) legacyFail(w http.ResponseWriter, err error) {
	writeText(w, statusFor(err), "Error: "+err.Error())
}

func (s *Server) handleLegacyUpload(w http.ResponseWriter, r *http.Request) {
	if _, err := s.storeUpload(w, r, legacyID); err != nil {
		s.legacyFail(w, err)
		return
	}
	writeText(w, http.StatusOK, "Image uploaded successfully.")
}

func (s *Server) handleLegacyGet(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.Info(legacyID); err != nil {
		writeText(w, http.StatusNotFound, "Image not found.")
		return
	}
	if err := s.writeImage(w, legacyID, r.URL.Query().Get("format")); err != nil {
		s.legacyFail(w, err)
	}
}

func (s *Server) legacyFilterHandler(f *Filter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.applyFilter(r.Context(), legacyID, f, r.PathValue("value")); err != nil {
			s.legacyFail(w, err)
			return
		}
		writeText(w, http.StatusOK, f.legacyMessage)
	}
}
