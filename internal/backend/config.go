package backend

import (
	"fmt"

	"kakeibo/internal/config"
)

// FromAppConfig builds the configuration of the primary ledger backend.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	return fromAppConfig(appConfig, appConfig.DataBackend)
}

// MirrorFromAppConfig builds the configuration of the worker's mirror
// backend.
func MirrorFromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	return fromAppConfig(appConfig, appConfig.MirrorBackend)
}

func fromAppConfig(appConfig *config.Config, backend string) (Config, error) {
	backendType := BackendType(backend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", backend)
	}

	return Config{
		Type:             backendType,
		IncomeCategories: appConfig.IncomeCategories,

		LedgerFile:  appConfig.LedgerFile,
		LedgerSheet: appConfig.LedgerSheet,

		SQLiteDBPath: appConfig.SQLiteDBPath,

		GoogleSpreadsheetID:       appConfig.GoogleSpreadsheetID,
		GoogleSheetName:           appConfig.GoogleSheetName,
		GoogleCategoriesSheetName: appConfig.GoogleCategoriesSheetName,
		GoogleServiceAccountJSON:  appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile:  appConfig.GoogleServiceAccountFile,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case XLSXBackend:
		if c.LedgerFile == "" {
			return fmt.Errorf("ledger file is required for xlsx backend")
		}
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case SheetsBackend:
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for sheets backend")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			return fmt.Errorf("service account credentials are required for sheets backend")
		}
	case MemoryBackend:
	}

	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{XLSXBackend, SQLiteBackend, SheetsBackend, MemoryBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}
