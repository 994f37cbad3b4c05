package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/calctra/resmatch/api"
	"github.com/calctra/resmatch/app"
	"github.com/calctra/resmatch/x/matching/types"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func initHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	_, err := execute(t, "init", "--home", home, "--authority", "ops-team")
	require.NoError(t, err)
	return home
}

func TestInitWritesLoadableConfig(t *testing.T) {
	home := initHome(t)
	path := filepath.Join(home, "resmatchd.toml")
	require.FileExists(t, path)

	cfg, err := app.LoadConfig(app.NewViper(), path)
	require.NoError(t, err)
	require.Equal(t, types.Identity("ops-team"), cfg.Authority)
	require.Equal(t, home, cfg.Home)
	require.Len(t, cfg.API.JWTSecret, 2*api.MinSecretLength)

	_, err = execute(t, "init", "--home", home, "--authority", "ops-team")
	require.ErrorContains(t, err, "already exists")

	_, err = execute(t, "init", "--home", home, "--authority", "ops-team", "--overwrite")
	require.NoError(t, err)
}

func TestInitRequiresAuthority(t *testing.T) {
	_, err := execute(t, "init", "--home", t.TempDir())
	require.ErrorContains(t, err, "authority")
}

func TestConfigShowMasksSecret(t *testing.T) {
	home := initHome(t)

	out, err := execute(t, "config", "show", "--home", home)
	require.NoError(t, err)

	var settings map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &settings))
	require.Equal(t, "ops-team", settings["authority"])

	apiSettings, ok := settings["api"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "********", apiSettings["jwt_secret"])
}

func TestTokenIssue(t *testing.T) {
	home := initHome(t)
	cfg, err := app.LoadConfig(app.NewViper(), filepath.Join(home, "resmatchd.toml"))
	require.NoError(t, err)

	out, err := execute(t, "token", "issue", "provider-7", "--home", home, "--ttl", "1h")
	require.NoError(t, err)

	claims, err := api.NewAuthService([]byte(cfg.API.JWTSecret), time.Hour).ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	require.Equal(t, types.Identity("provider-7"), claims.Identity())
	require.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)

	_, err = execute(t, "token", "issue", "provider-7", "--home", home, "--ttl", "-1h")
	require.ErrorContains(t, err, "ttl must be positive")
}

func TestExportEmptyStore(t *testing.T) {
	home := initHome(t)

	out, err := execute(t, "export", "--home", home)
	require.NoError(t, err)

	var gs types.GenesisState
	require.NoError(t, json.Unmarshal([]byte(out), &gs))
	require.NoError(t, gs.Validate())
	require.Equal(t, types.Identity("ops-team"), gs.State.Authority)
	require.Empty(t, gs.Resources)

	path := filepath.Join(t.TempDir(), "genesis.json")
	_, err = execute(t, "export", "--home", home, "--output", path)
	require.NoError(t, err)

	loaded, err := app.LoadGenesis(path)
	require.NoError(t, err)
	require.Equal(t, gs.State, loaded.State)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "resmatchd "))
}
