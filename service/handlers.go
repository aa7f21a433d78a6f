package service

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gbjbuzz/service-esign/service/business"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// submissions carry the signed document inline; anything bigger than this is
// not a document we host.
const maxSubmissionSize = 32 << 20

type esignHandler struct {
	engine business.EsignService
	log    *logrus.Entry
}

// statusFromError translates workflow sentinel errors into transport codes.
func statusFromError(err error) error {
	switch {
	case errors.Is(err, business.ErrorEmptyValueSupplied):
		return StatusError{Code: http.StatusBadRequest, Err: err}
	case errors.Is(err, business.ErrorNotEligible):
		return StatusError{Code: http.StatusForbidden, Err: err}
	case errors.Is(err, business.ErrorFileNotFound),
		errors.Is(err, business.ErrorSignatureNotFound):
		return StatusError{Code: http.StatusNotFound, Err: err}
	default:
		return err
	}
}

func (h *esignHandler) healthz(w http.ResponseWriter, _ *http.Request) error {
	return writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *esignHandler) sendSigningRequest(w http.ResponseWriter, r *http.Request) error {

	req := &business.SigningRequest{}
	err := json.NewDecoder(r.Body).Decode(req)
	if err != nil {
		return StatusError{Code: http.StatusBadRequest, Err: errors.Wrap(err, "invalid request body")}
	}

	result, err := h.engine.SendSigningRequest(r.Context(), req)
	if err != nil {
		return statusFromError(err)
	}

	return writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"msg":          "Sign request sent",
		"requestId":    result.RequestID,
		"notification": result.Notification,
	})
}

func (h *esignHandler) canProceed(w http.ResponseWriter, r *http.Request) error {

	vars := mux.Vars(r)

	view, err := h.engine.IsValidSigner(r.Context(), vars["userId"], vars["fileId"])
	if err != nil {
		return statusFromError(err)
	}

	return writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"response": view,
	})
}

func (h *esignHandler) submitSignature(w http.ResponseWriter, r *http.Request) error {

	err := r.ParseMultipartForm(maxSubmissionSize)
	if err != nil {
		return StatusError{Code: http.StatusBadRequest, Err: errors.Wrap(err, "invalid multipart form")}
	}

	part, header, err := r.FormFile("file")
	if err != nil {
		return StatusError{Code: http.StatusBadRequest, Err: errors.Wrap(err, "signed document part is required")}
	}
	defer part.Close()

	content, err := io.ReadAll(part)
	if err != nil {
		return errors.Wrap(err, "could not read signed document")
	}

	fileName := r.FormValue("fileName")
	if fileName == "" {
		fileName = header.Filename
	}

	result, err := h.engine.SubmitSignature(r.Context(), &business.SignatureSubmission{
		FileID:      r.FormValue("fileId"),
		FileName:    fileName,
		OwnerID:     r.FormValue("ownerId"),
		SigneeEmail: r.FormValue("signeeEmail"),
		ContentType: header.Header.Get("Content-Type"),
		Content:     content,
	})
	if err != nil {
		return statusFromError(err)
	}

	return writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"msg":     result.Outcome.Message,
		"result":  result,
	})
}

func (h *esignHandler) getRecords(w http.ResponseWriter, r *http.Request) error {

	ownerID := r.URL.Query().Get("ownerId")

	records, err := h.engine.GetSignRecordsForUser(r.Context(), ownerID)
	if err != nil {
		return statusFromError(err)
	}

	return writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"records": records,
	})
}
