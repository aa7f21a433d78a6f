package service

import (
	"encoding/json"
	"net/http"

	"github.com/gbjbuzz/service-esign/service/business"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

func addHandler(router *mux.Router, log *logrus.Entry,
	f func(w http.ResponseWriter, r *http.Request) error, path string, name string, method string) {

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		err := f(w, r)
		if err == nil {
			return
		}

		switch e := err.(type) {
		case Error:
			log.WithError(e).Warnf("request %s failed with status %d", name, e.Status())
			writeJSON(w, e.Status(), map[string]any{
				"success": false,
				"msg":     e.Error(),
			})
		default:
			log.WithError(err).Errorf("request %s failed", name)
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"success": false,
				"msg":     http.StatusText(http.StatusInternalServerError),
			})
		}
	})

	router.Methods(method).
		Path(path).
		Name(name).
		Handler(handler)
}

func writeJSON(w http.ResponseWriter, code int, payload any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(payload)
}

// NewRouter registers the e-signature HTTP surface.
func NewRouter(engine business.EsignService, log *logrus.Entry) *mux.Router {

	h := &esignHandler{engine: engine, log: log}

	router := mux.NewRouter().StrictSlash(true)

	addHandler(router, log, h.healthz, "/healthz", "Healthz", http.MethodGet)

	addHandler(router, log, h.sendSigningRequest, "/esign/signRequest", "SendSigningRequest", http.MethodPost)
	addHandler(router, log, h.canProceed, "/esign/sign-document/{fileId}/{userId}", "CanProceed", http.MethodGet)
	addHandler(router, log, h.submitSignature, "/esign/submitSignature", "SubmitSignature", http.MethodPost)
	addHandler(router, log, h.getRecords, "/esign/getRecords", "GetRecords", http.MethodGet)

	return router
}
