package di

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/phishguard/phish-detector/internal/adapters/http"
	"github.com/phishguard/phish-detector/internal/application"
	"github.com/phishguard/phish-detector/internal/domain"
	"github.com/phishguard/phish-detector/internal/ports"
)

func TestBuildContainer(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]any
	}{
		{
			name: "File backend",
			overrides: map[string]any{
				"rules.backend":   "file",
				"rules.file_path": filepath.Join(t.TempDir(), "rules.yaml"),
			},
		},
		{
			name: "SQLite backend",
			overrides: map[string]any{
				"rules.backend":     "sqlite",
				"rules.sqlite_path": filepath.Join(t.TempDir(), "data", "rules.db"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.overrides["logging.level"] = "error"
			container, err := BuildContainer("", tt.overrides)
			require.NoError(t, err)

			err = container.Invoke(func(
				service *application.ClassificationService,
				manager *application.RuleManager,
				server *httpadapter.Server,
				store ports.RuleStore,
			) {
				defer store.Close()

				assert.Equal(t, domain.DefaultRuleConfig(), manager.Snapshot())
				result := service.Classify("scammer@paypa1.com", "Urgent: Verify your account", "http://192.168.0.1")
				assert.Equal(t, domain.LabelPhishing, result.Label)
				assert.NotNil(t, server.Routes())
			})
			require.NoError(t, err)
		})
	}
}

func TestBuildContainer_UnknownBackend(t *testing.T) {
	container, err := BuildContainer("", map[string]any{
		"rules.backend": "carrier-pigeon",
		"logging.level": "error",
	})
	require.NoError(t, err)

	err = container.Invoke(func(store ports.RuleStore) {})

	assert.ErrorContains(t, err, "unsupported rule store backend")
}

func TestBuildContainer_MissingExplicitConfigFile(t *testing.T) {
	container, err := BuildContainer(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.NoError(t, err)

	err = container.Invoke(func(store ports.RuleStore) {})

	assert.Error(t, err)
}
