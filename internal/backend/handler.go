package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
)

// Handler serves POST /api/download.
type Handler struct {
	dl     Downloader
	format Format
}

// NewHandler creates the download endpoint. format describes what dl
// produces.
func NewHandler(dl Downloader, format Format) *Handler {
	return &Handler{dl: dl, format: format}
}

type downloadReq struct {
	URL string `json:"url"`
}

type errorResp struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")

	switch r.Method {
	case "OPTIONS":
		w.WriteHeader(http.StatusNoContent)
		return
	case "POST":
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req downloadReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "Invalid JSON body"})
		return
	}
	trackURL := strings.TrimSpace(req.URL)
	if trackURL == "" {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "No URL provided"})
		return
	}

	log.Printf("Download requested: %s", trackURL)
	data, err := h.dl.Download(r.Context(), trackURL)
	if err != nil {
		log.Printf("Download failed for %s: %v", trackURL, err)
		resp := errorResp{Error: "yt-dlp failed", Details: err.Error()}
		var te *ToolError
		if errors.As(err, &te) && te.Details != "" {
			resp.Details = te.Details
		}
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}

	w.Header().Set("Content-Type", h.format.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, h.format.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
