package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/mobilecore/internal/foundation/errors"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("hub:\n  name: test\n"))
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.Hub.Name)
	assert.Equal(t, 1, cfg.Hub.ModuleThreads)
	assert.Equal(t, RetryBackoffFixed, cfg.HitQueue.RetryBackoff)
	assert.Equal(t, 30*time.Second, cfg.RetryDelay())
	assert.Equal(t, DefaultDisposeTimeout, cfg.DisposeTimeout())
	assert.Equal(t, LogLevelInfo, cfg.Log.Level)
	assert.Equal(t, LogFormatText, cfg.Log.Format)
	assert.Equal(t, DefaultAssuranceSubject, cfg.Assurance.SubjectPrefix)
	assert.NotNil(t, cfg.SDK)
}

func TestParseExpandsEnvironment(t *testing.T) {
	t.Setenv("MOBILECORE_ENDPOINT", "https://collect.test")
	cfg, err := Parse([]byte("sdk:\n  signal.endpoint: ${MOBILECORE_ENDPOINT}\n"))
	require.NoError(t, err)
	assert.Equal(t, "https://collect.test", cfg.SDK["signal.endpoint"])
}

func TestParseNormalizesEnums(t *testing.T) {
	cfg, err := Parse([]byte("hit_queue:\n  retry_backoff: EXPONENTIAL\nlog:\n  level: Warning\n  format: JSON\n"))
	require.NoError(t, err)
	assert.Equal(t, RetryBackoffExponential, cfg.HitQueue.RetryBackoff)
	assert.Equal(t, LogLevelWarn, cfg.Log.Level)
	assert.Equal(t, LogFormatJSON, cfg.Log.Format)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"threads":     "hub:\n  module_threads: 17\n",
		"backoff":     "hit_queue:\n  retry_backoff: random\n",
		"duration":    "hit_queue:\n  retry_delay: soon\n",
		"assurance":   "assurance:\n  enabled: true\n",
		"rule id":     "rules:\n  - condition: {key: a, matcher: ex}\n",
		"rule op":     "rules:\n  - id: r1\n    condition: {key: a, matcher: between}\n",
		"duplicate":   "rules:\n  - id: r1\n    condition: {key: a, matcher: ex}\n  - id: r1\n    condition: {key: b, matcher: ex}\n",
		"bad logical": "rules:\n  - id: r1\n    condition: {logic: xor, conditions: [{key: a, matcher: ex}]}\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
			assert.True(t, errors.HasCategory(err, errors.CategoryValidation) || errors.HasCategory(err, errors.CategoryConfig), "unexpected error %v", err)
		})
	}
}

func TestInitThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultPath)
	require.NoError(t, Init(path, false))

	err := Init(path, false)
	require.Error(t, err, "second init without force must fail")
	require.NoError(t, Init(path, true))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mobilecore", cfg.Hub.Name)
	require.Len(t, cfg.Rules, 1)
	assert.Equal(t, "launch-postback", cfg.Rules[0].ID)
	assert.Equal(t, string(PrivacyOptedIn), cfg.SDK["global.privacy"])
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
}

func TestNormalizePrivacy(t *testing.T) {
	assert.Equal(t, PrivacyOptedIn, NormalizePrivacy(" OptedIn "))
	assert.Equal(t, PrivacyOptedOut, NormalizePrivacy("optout"))
	assert.Equal(t, PrivacyUnknown, NormalizePrivacy("maybe"))
}
