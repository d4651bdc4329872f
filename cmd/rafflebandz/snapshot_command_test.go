package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/brojonat/rafflebandz/service/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

const testSeed = "0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20"

// newFakeIndexer serves asset 10 (unit BNDZ) and asset 11 (unit RAFL). Any other
// asset answers 503.
func newFakeIndexer(t *testing.T) *httptest.Server {
	t.Helper()

	assets := map[string]map[string]interface{}{
		"10": {"unit": "BNDZ", "transactions": []interface{}{
			axferJSON("t1", config.DefaultIssuerAddress, "HOLDERX", 30),
			axferJSON("t2", config.DefaultIssuerAddress, "HOLDERY", 10),
		}},
		"11": {"unit": "RAFL", "transactions": []interface{}{
			axferJSON("t3", config.DefaultIssuerAddress, "HOLDERY", 5),
		}},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		for id, asset := range assets {
			switch r.URL.Path {
			case "/v2/assets/" + id:
				json.NewEncoder(w).Encode(map[string]interface{}{
					"asset": map[string]interface{}{
						"index":            json.Number(id),
						"created-at-round": 100,
						"params": map[string]interface{}{
							"creator":   config.DefaultIssuerAddress,
							"name":      "Raffle " + asset["unit"].(string),
							"unit-name": asset["unit"],
							"total":     100,
						},
					},
				})
				return
			case "/v2/assets/" + id + "/transactions":
				json.NewEncoder(w).Encode(map[string]interface{}{
					"transactions": asset["transactions"],
				})
				return
			}
		}
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)
	return server
}

func axferJSON(id, sender, receiver string, amount uint64) map[string]interface{} {
	assetID := 10
	if id == "t3" {
		assetID = 11
	}
	return map[string]interface{}{
		"id":      id,
		"tx-type": "axfer",
		"sender":  sender,
		"asset-transfer-transaction": map[string]interface{}{
			"asset-id": assetID,
			"amount":   amount,
			"receiver": receiver,
		},
	}
}

// clearSinkEnv keeps the optional sinks off regardless of the developer's environment.
func clearSinkEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"DATABASE_URL", "NATS_URL", "PUSHGATEWAY_URL", "ISSUER_ADDRESS", "EXCLUDED_ADDRESSES"} {
		t.Setenv(key, "")
	}
}

func readSingle(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(pattern)
	require.NoError(t, err)
	require.Len(t, matches, 1, "pattern %s", pattern)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	return string(data)
}

func TestSnapshotCommand_SingleAsset(t *testing.T) {
	clearSinkEnv(t)
	server := newFakeIndexer(t)
	out := t.TempDir()

	err := newApp().Run([]string{
		"rafflebandz", "--indexer-url", server.URL,
		"snapshot", "-a", "10", "--out", out, "--seed", testSeed,
	})
	require.NoError(t, err)

	roster := readSingle(t, filepath.Join(out, "10", "*", "rafflebandz-snapshot-*.csv"))
	assert.Equal(t, "Wallet,Balance\nHOLDERX,30\nHOLDERY,10", roster)

	sequential := readSingle(t, filepath.Join(out, "10", "*", "rafflebandz-slots-2*.csv"))
	assert.Contains(t, sequential, "Wallet,Tickets Held,Slot\nHOLDERX,30,1\n")
	assert.Contains(t, sequential, "HOLDERY,10,40")

	shuffled := readSingle(t, filepath.Join(out, "10", "*", "rafflebandz-slots-randomized-*.csv"))
	assert.Contains(t, shuffled, "Wallet,Tickets Held,Slot\n")

	_, err = os.Stat(filepath.Join(out, "holders"))
	assert.True(t, os.IsNotExist(err))
}

func TestSnapshotCommand_SameSeedSameShuffle(t *testing.T) {
	clearSinkEnv(t)
	server := newFakeIndexer(t)

	run := func(seed string) string {
		out := t.TempDir()
		err := newApp().Run([]string{
			"rafflebandz", "--indexer-url", server.URL,
			"snapshot", "-a", "10", "--out", out, "--seed", seed,
		})
		require.NoError(t, err)
		return readSingle(t, filepath.Join(out, "10", "*", "rafflebandz-slots-randomized-*.csv"))
	}

	assert.Equal(t, run("raffle night"), run("raffle night"))
}

func TestSnapshotCommand_MultipleAssets(t *testing.T) {
	clearSinkEnv(t)
	server := newFakeIndexer(t)
	out := t.TempDir()

	err := newApp().Run([]string{
		"rafflebandz", "--indexer-url", server.URL,
		"snapshot", "-a", "10", "-a", "11", "--out", out, "--prefix", "bandz",
	})
	require.NoError(t, err)

	totals := readSingle(t, filepath.Join(out, "holders", "*", "bandz-holders-*.csv"))
	assert.Equal(t, "Wallet,BNDZ,RAFL,Total Held\nHOLDERX,30,0,30\nHOLDERY,10,5,15", totals)

	matches, err := filepath.Glob(filepath.Join(out, "10", "*", "*.csv"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSnapshotCommand_FailedAsset(t *testing.T) {
	tests := []struct {
		name     string
		extra    []string
		exitCode int
	}{
		{name: "fails by default", exitCode: 1},
		{name: "allow partial", extra: []string{"--allow-partial"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearSinkEnv(t)
			server := newFakeIndexer(t)
			out := t.TempDir()

			args := append([]string{
				"rafflebandz", "--indexer-url", server.URL,
				"snapshot", "-a", "10", "-a", "99", "--out", out,
			}, tt.extra...)
			err := newApp().Run(args)

			if tt.exitCode == 0 {
				require.NoError(t, err)
			} else {
				var exitErr cli.ExitCoder
				require.True(t, errors.As(err, &exitErr), "expected exit error, got %v", err)
				assert.Equal(t, tt.exitCode, exitErr.ExitCode())
				assert.Contains(t, err.Error(), "asset 99")
			}

			// The surviving asset's totals are written either way.
			totals := readSingle(t, filepath.Join(out, "holders", "*", "rafflebandz-holders-*.csv"))
			assert.Equal(t, "Wallet,BNDZ,Total Held\nHOLDERX,30,30\nHOLDERY,10,10", totals)
		})
	}
}

func TestSnapshotCommand_InvalidFlags(t *testing.T) {
	clearSinkEnv(t)
	server := newFakeIndexer(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "invalid excluded address",
			args: []string{"snapshot", "-a", "10", "--exclude", "NOT-AN-ADDRESS"},
			want: "NOT-AN-ADDRESS",
		},
		{
			name: "invalid issuer",
			args: []string{"snapshot", "-a", "10", "--issuer", "BAD"},
			want: "IssuerAddress",
		},
		{
			name: "empty seed",
			args: []string{"snapshot", "-a", "10", "--seed", ""},
			want: "invalid --seed",
		},
		{
			name: "non-positive max slots",
			args: []string{"snapshot", "-a", "10", "--max-slots", "0"},
			want: "MaxSlots",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"rafflebandz", "--indexer-url", server.URL}, tt.args...)
			args = append(args, "--out", t.TempDir())
			err := newApp().Run(args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestApplySnapshotFlags_UseCreator(t *testing.T) {
	clearSinkEnv(t)

	app := &cli.App{
		Flags: snapshotCommand().Flags,
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			require.NoError(t, err)
			require.Equal(t, config.DefaultIssuerAddress, cfg.IssuerAddress)

			require.NoError(t, applySnapshotFlags(c, cfg))
			assert.Empty(t, cfg.IssuerAddress)
			assert.Empty(t, cfg.ExcludedAddresses)
			return nil
		},
	}
	require.NoError(t, app.Run([]string{"test", "-a", "1", "--use-creator", "--exclude", ""}))
}
