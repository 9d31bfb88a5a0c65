package file

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// EnvFileName is the dotenv file read from the application directory.
const EnvFileName = ".env"

// LoadEnvFile loads KEY=value pairs from dir/.env into the process
// environment. Variables already set in the environment win. A missing
// file is not an error.
func LoadEnvFile(dir string) error {
	path := filepath.Join(dir, EnvFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

// EnvSecrets resolves provider API keys from the environment.
// RECALL_<PROVIDER>_API_KEY takes precedence over the provider's
// conventional variable (OPENAI_API_KEY, ANTHROPIC_API_KEY).
func EnvSecrets(provider domain.AIProvider) string {
	if !provider.RequiresAPIKey() {
		return ""
	}
	name := strings.ToUpper(string(provider)) + "_API_KEY"
	if v := strings.TrimSpace(os.Getenv("RECALL_" + name)); v != "" {
		return v
	}
	return strings.TrimSpace(os.Getenv(name))
}
