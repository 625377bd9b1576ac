package routes

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"streamcast/credentials"
	"streamcast/logger"
	"streamcast/utils"
	writerbackends "streamcast/writerBackends"
)

// RegisterCredentialsRequest carries backend access info, e.g.
// {"backend":"s3","access_info":{"bucket":"media","region":"eu-west-1"}}.
type RegisterCredentialsRequest struct {
	Backend    string            `json:"backend"`
	AccessInfo map[string]string `json:"access_info"`
}

// RegisterCredentialsHandler stores backend credentials under a fresh random
// key. Point STREAMCAST_STORAGE_KEY at the key to use them.
func (a *API) RegisterCredentialsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if a.AdminToken == "" {
		http.Error(w, "Credentials registration disabled", http.StatusForbidden)
		return
	}
	token, err := bearerToken(r)
	if err != nil || subtle.ConstantTimeCompare([]byte(token), []byte(a.AdminToken)) != 1 {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var body RegisterCredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	switch body.Backend {
	case writerbackends.KindS3, writerbackends.KindGCS, writerbackends.KindSFTP, writerbackends.KindDirectServe:
	default:
		http.Error(w, "Unknown backend", http.StatusBadRequest)
		return
	}

	keyString, err := utils.GenerateRandomHex(16)
	if err != nil {
		http.Error(w, "Failed to generate key", http.StatusInternalServerError)
		return
	}
	if err := a.Credentials.Put(keyString, credentials.Stored{Backend: body.Backend, AccessInfo: body.AccessInfo}); err != nil {
		logger.Errorf("Failed to store credentials: %v", err)
		http.Error(w, "Failed to store credentials", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"access_key": keyString})
}
