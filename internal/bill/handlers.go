package bill

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
)

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// handleHealth reports process liveness
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleListExtractions returns a list of all extraction records
func (s *Server) handleListExtractions(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.ListExtractions()
	if err != nil {
		slog.Error("Error listing extractions", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(records); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleUploadDocument handles document upload and runs the extraction
// pipeline synchronously
func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	// 50MB covers multi-page scans and high-resolution phone photos
	maxFormSize := int64(50 << 20)
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		setCORSHeaders(w)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		errorMsg := "Error parsing form"
		if err.Error() == "http: request body too large" {
			errorMsg = "File is too large. Maximum size is 50MB."
		}
		json.NewEncoder(w).Encode(map[string]string{
			"error": errorMsg,
		})
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		setCORSHeaders(w)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		errorMsg := "No file provided"
		if err.Error() == "http: no such file" {
			errorMsg = "No file was selected. Please choose a file to upload."
		}
		json.NewEncoder(w).Encode(map[string]string{
			"error": errorMsg,
		})
		return
	}
	defer f.Close()

	if header.Size > maxFormSize {
		setCORSHeaders(w)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "File is too large. Maximum size is 50MB.",
		})
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		setCORSHeaders(w)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "Error reading file. Please try again.",
		})
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		ext := strings.ToLower(filepath.Ext(header.Filename))
		switch ext {
		case ".jpg", ".jpeg":
			contentType = "image/jpeg"
		case ".png":
			contentType = "image/png"
		case ".pdf":
			contentType = "application/pdf"
		case ".heic":
			contentType = "image/heic"
		case ".heif":
			contentType = "image/heif"
		default:
			contentType = "application/octet-stream"
		}
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))

	record, err := s.service.ProcessDocument(r.Context(), header.Filename, data, contentType)
	if err != nil {
		slog.Error("Error processing document", "filename", header.Filename, "error", err)
		setCORSHeaders(w)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": err.Error(),
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(record); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleGetExtraction returns a single extraction record
func (s *Server) handleGetExtraction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Extraction ID required", http.StatusBadRequest)
		return
	}
	record, err := s.service.GetExtraction(id)
	if err != nil {
		corsError(w, "Extraction not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(record); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleGetReport returns just the reconciled report for a record
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Extraction ID required", http.StatusBadRequest)
		return
	}
	record, err := s.service.GetExtraction(id)
	if err != nil {
		corsError(w, "Extraction not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(record.Report); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleGetDocumentFile returns the original uploaded document
func (s *Server) handleGetDocumentFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Extraction ID required", http.StatusBadRequest)
		return
	}
	data, contentType, err := s.service.GetDocumentFile(id)
	if err != nil {
		corsError(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleDeleteExtraction deletes an extraction record and its artifacts
func (s *Server) handleDeleteExtraction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Extraction ID required", http.StatusBadRequest)
		return
	}
	if err := s.service.DeleteExtraction(id); err != nil {
		corsError(w, "Error deleting extraction", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
