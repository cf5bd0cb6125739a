package api

import (
	"io"
	"net/http"
	"os"
	"strconv"
)

// maxMeterImageBytes caps uploaded meter photos at 10 MiB.
const maxMeterImageBytes = 10 << 20

// handleValidateMeterImage proxies a meter photo to the OCR service and
// checks the extracted reading against the user's claim. The upload is
// spooled to a temp file which is removed on every path.
// @Summary Validate a meter image against a claimed reading
// @Tags billing
// @Accept mpfd
// @Produce json
// @Router /api/v1/consumers/validate-meter-image [post]
func (h *handler) handleValidateMeterImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !h.authorize(w, r, "readings", "write") {
		return
	}

	if err := r.ParseMultipartForm(maxMeterImageBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	number := r.FormValue("consumerNumber")
	if number == "" {
		writeError(w, http.StatusBadRequest, "consumerNumber is required")
		return
	}
	if !h.scopeConsumer(w, r, number) {
		return
	}

	userReading, err := strconv.ParseFloat(r.FormValue("userReading"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "userReading must be a number")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	tmp, err := os.CreateTemp("", "meter-*.img")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not spool upload")
		return
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := io.Copy(tmp, file); err != nil {
		writeError(w, http.StatusInternalServerError, "could not spool upload")
		return
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		writeError(w, http.StatusInternalServerError, "could not spool upload")
		return
	}

	result, err := h.deps.Consumers.ValidateMeterImage(r.Context(), number, tmp, header.Filename, userReading)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
