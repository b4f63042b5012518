package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stackaudit/stackaudit/analyzer"
	"github.com/stackaudit/stackaudit/parser"
	"github.com/stackaudit/stackaudit/store"
	"github.com/stackaudit/stackaudit/types"
)

// Uploads are capped at the archive total-size limit plus headroom for the
// multipart envelope.
const maxUploadBytes = 110 * 1024 * 1024

type differentialRequest struct {
	BaselineScanID   string             `json:"baselineScanId"`
	ComparisonScanID string             `json:"comparisonScanId"`
	AnalysisType     types.AnalysisType `json:"analysisType"`
	IncludeDetails   bool               `json:"includeDetails"`
	Threshold        types.Threshold    `json:"threshold"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (api *WebAPI) handleHealth(writer http.ResponseWriter, request *http.Request) {
	writeJSON(writer, http.StatusOK, map[string]string{"status": "ok"})
}

func (api *WebAPI) handleCreateScan(writer http.ResponseWriter, request *http.Request) {
	request.Body = http.MaxBytesReader(writer, request.Body, maxUploadBytes)
	if err := request.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(writer, http.StatusBadRequest, errorResponse{Error: "invalid multipart upload"})
		return
	}

	accountID := request.FormValue("accountId")
	if accountID == "" {
		writeJSON(writer, http.StatusBadRequest, errorResponse{Error: "accountId is required"})
		return
	}
	if !api.config.Authorize(request.Context(), accountID) {
		writeJSON(writer, http.StatusForbidden, errorResponse{Error: "not authorized for account"})
		return
	}

	file, header, err := request.FormFile("file")
	if err != nil {
		writeJSON(writer, http.StatusBadRequest, errorResponse{Error: "file is required"})
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeJSON(writer, http.StatusBadRequest, errorResponse{Error: "reading upload failed"})
		return
	}

	hint := types.Format(request.FormValue("format"))
	if hint == "" {
		hint = types.FormatAuto
	}

	result, err := api.config.Dependencies.Scanner.Scan(request.Context(), content, header.Filename, accountID, hint)
	if err != nil {
		var parseError *parser.ParseError
		var safetyError *parser.SafetyError
		if errors.As(err, &parseError) || errors.As(err, &safetyError) {
			writeJSON(writer, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
			return
		}
		api.logger.Errorf("Scan failed: %v", err)
		writeJSON(writer, http.StatusInternalServerError, errorResponse{Error: "scan failed"})
		return
	}

	writeJSON(writer, http.StatusCreated, result)
}

func (api *WebAPI) handleListScans(writer http.ResponseWriter, request *http.Request) {
	accountID := request.URL.Query().Get("accountId")
	if accountID == "" {
		writeJSON(writer, http.StatusBadRequest, errorResponse{Error: "accountId is required"})
		return
	}
	if !api.config.Authorize(request.Context(), accountID) {
		writeJSON(writer, http.StatusForbidden, errorResponse{Error: "not authorized for account"})
		return
	}

	scans, err := api.config.Dependencies.Store.ListScans(request.Context(), accountID)
	if err != nil {
		api.logger.Errorf("Listing scans failed: %v", err)
		writeJSON(writer, http.StatusInternalServerError, errorResponse{Error: "listing scans failed"})
		return
	}
	writeJSON(writer, http.StatusOK, scans)
}

func (api *WebAPI) handleCreateDifferential(writer http.ResponseWriter, request *http.Request) {
	var body differentialRequest
	if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
		writeJSON(writer, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	baseline, err := api.config.Dependencies.Store.GetScan(request.Context(), body.BaselineScanID)
	if err != nil {
		writeJSON(writer, http.StatusNotFound, errorResponse{Error: "baseline scan not found"})
		return
	}
	// Authorization runs against the account the stored scan belongs to,
	// never an account the caller claims. Compare enforces that baseline
	// and comparison share the account.
	if !api.config.Authorize(request.Context(), baseline.AccountID) {
		writeJSON(writer, http.StatusForbidden, errorResponse{Error: "not authorized for account"})
		return
	}
	comparison, err := api.config.Dependencies.Store.GetScan(request.Context(), body.ComparisonScanID)
	if err != nil {
		writeJSON(writer, http.StatusNotFound, errorResponse{Error: "comparison scan not found"})
		return
	}

	analysisType := body.AnalysisType
	if analysisType == "" {
		analysisType = types.AnalysisTypeFull
	}

	result, err := api.config.Dependencies.Differential.Compare(baseline, comparison, analysisType, types.DifferentialOptions{
		IncludeDetails: body.IncludeDetails,
		Threshold:      body.Threshold,
	})
	if err != nil {
		var validationError *analyzer.ValidationError
		if errors.As(err, &validationError) {
			writeJSON(writer, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		api.logger.Errorf("Differential failed: %v", err)
		writeJSON(writer, http.StatusInternalServerError, errorResponse{Error: "differential analysis failed"})
		return
	}

	if err := api.config.Dependencies.Store.PutDifferential(request.Context(), result); err != nil {
		api.logger.Errorf("Storing differential failed: %v", err)
		writeJSON(writer, http.StatusInternalServerError, errorResponse{Error: "storing differential failed"})
		return
	}

	writeJSON(writer, http.StatusCreated, result)
}

func (api *WebAPI) handleGetDifferential(writer http.ResponseWriter, request *http.Request) {
	differentialID := chi.URLParam(request, "differentialID")

	result, err := api.config.Dependencies.Store.GetDifferential(request.Context(), differentialID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(writer, http.StatusNotFound, errorResponse{Error: "differential not found"})
			return
		}
		api.logger.Errorf("Loading differential failed: %v", err)
		writeJSON(writer, http.StatusInternalServerError, errorResponse{Error: "loading differential failed"})
		return
	}
	if !api.config.Authorize(request.Context(), result.AccountID) {
		writeJSON(writer, http.StatusForbidden, errorResponse{Error: "not authorized for account"})
		return
	}

	writeJSON(writer, http.StatusOK, result)
}

func writeJSON(writer http.ResponseWriter, status int, payload any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	_ = json.NewEncoder(writer).Encode(payload)
}
