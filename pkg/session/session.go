// verge/pkg/session/session.go

package session

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"verge/pkg/logging"
)

// Session is the explicit operator state passed to the orchestrator:
// the API token and the last-chosen service and store, persisted for
// reconnection convenience. Load-on-start, save-on-change; nothing else
// survives the process.
type Session struct {
	APIToken      string
	LastServiceID string
	LastStoreID   string

	path string
	v    *viper.Viper
}

// Load reads the session file at path. A missing file is not an error:
// it yields an empty session that will be created on first save.
func Load(path string) (*Session, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetDefault("api_token", "")
	v.SetDefault("last_service_id", "")
	v.SetDefault("last_store_id", "")

	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read session file: %w", err)
			}
		}
		logging.Logger.Debug().Str("path", path).Msg("No session file, starting empty")
	}

	s := &Session{
		APIToken:      v.GetString("api_token"),
		LastServiceID: v.GetString("last_service_id"),
		LastStoreID:   v.GetString("last_store_id"),
		path:          path,
		v:             v,
	}

	// Environment token wins over the persisted one.
	if env := os.Getenv("VERGE_API_TOKEN"); env != "" {
		s.APIToken = env
	}
	return s, nil
}

// Save writes the session back to its file, creating the parent
// directory on first use.
func (s *Session) Save() error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create session directory: %w", err)
		}
	}
	s.v.Set("api_token", s.APIToken)
	s.v.Set("last_service_id", s.LastServiceID)
	s.v.Set("last_store_id", s.LastStoreID)
	if err := s.v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

// RememberService records the last deployed-to service and persists.
func (s *Session) RememberService(serviceID string) {
	s.LastServiceID = serviceID
	if err := s.Save(); err != nil {
		logging.Logger.Warn().Err(err).Msg("Failed to persist session")
	}
}

// RememberStore records the shared store id and persists.
func (s *Session) RememberStore(storeID string) {
	s.LastStoreID = storeID
	if err := s.Save(); err != nil {
		logging.Logger.Warn().Err(err).Msg("Failed to persist session")
	}
}
