package hcaptcha

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/invisifeed/invisifeed/internal/pkg/env"
)

// siteverifyURL is a var so tests can stand in a local server.
var siteverifyURL = "https://hcaptcha.com/siteverify"

type Response struct {
	Success     bool     `json:"success"`
	ChallengeTS string   `json:"challenge_ts"`
	Hostname    string   `json:"hostname"`
	ErrorCodes  []string `json:"error-codes"`
}

// Verify checks an hCaptcha token against the siteverify API. The feedback
// form is public and unauthenticated, so this is the only spam gate.
// When HCAPTCHA_SECRET is unset (dev, tests) verification is skipped.
func Verify(token string) (bool, error) {
	secret := env.GetEnv("HCAPTCHA_SECRET", "")
	if secret == "" {
		return true, nil
	}
	if token == "" {
		return false, errors.New("hCaptcha token is empty")
	}

	formData := url.Values{
		"secret":   {secret},
		"response": {token},
	}

	resp, err := http.PostForm(siteverifyURL, formData)
	if err != nil {
		return false, fmt.Errorf("failed to send request to hCaptcha API: %v", err)
	}
	defer resp.Body.Close()

	var response Response
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return false, fmt.Errorf("failed to decode hCaptcha API response: %v", err)
	}

	if !response.Success {
		errorMsg := "hCaptcha validation failed"
		if len(response.ErrorCodes) > 0 {
			errorMsg = errorMsg + ": " + strings.Join(response.ErrorCodes, ", ")
		}
		return false, errors.New(errorMsg)
	}

	return true, nil
}
