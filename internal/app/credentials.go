package app

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/shandysiswandi/certsend/internal/pkg/config"
)

const defaultTokenURI = "https://oauth2.googleapis.com/token"

type serviceAccount struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	ClientEmail  string `json:"client_email"`
	ClientID     string `json:"client_id"`
	TokenURI     string `json:"token_uri"`
}

// serviceAccountJSON returns the Google service account key from, in order,
// google.credentials_file, google.credentials_json (base64) or the discrete
// google.* keys. It returns nil when none is configured.
func serviceAccountJSON(cfg config.Config) ([]byte, error) {
	if path := strings.TrimSpace(cfg.GetString("google.credentials_file")); path != "" {
		// #nosec G304 -- path is from trusted config file.
		return os.ReadFile(path)
	}

	if v := cfg.GetBinary("google.credentials_json"); len(v) > 0 {
		return v, nil
	}

	sa := serviceAccount{
		Type:         "service_account",
		ProjectID:    cfg.GetString("google.project_id"),
		PrivateKeyID: cfg.GetString("google.private_key_id"),
		// env files usually carry the PEM with escaped newlines
		PrivateKey:  strings.ReplaceAll(cfg.GetString("google.private_key"), `\n`, "\n"),
		ClientEmail: cfg.GetString("google.client_email"),
		ClientID:    cfg.GetString("google.client_id"),
		TokenURI:    cfg.GetString("google.token_uri"),
	}
	if sa.PrivateKey == "" || sa.ClientEmail == "" {
		return nil, nil
	}
	if sa.TokenURI == "" {
		sa.TokenURI = defaultTokenURI
	}

	return json.Marshal(sa)
}
