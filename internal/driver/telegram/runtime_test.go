package telegram

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseRuntimeConfig(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
		assert  func(*testing.T, parsedRuntimeConfig)
	}{
		{
			name: "minimal config applies defaults",
			raw:  `{"app_id":17349,"app_hash":"abc","bot_token":"100:secret"}`,
			assert: func(t *testing.T, cfg parsedRuntimeConfig) {
				if cfg.sessionFile != defaultSessionFile {
					t.Fatalf("session file = %q, want default", cfg.sessionFile)
				}
				if cfg.rpcTimeout != defaultRPCTimeout {
					t.Fatalf("rpc timeout = %v, want default", cfg.rpcTimeout)
				}
				if cfg.authTimeout != defaultAuthTimeout {
					t.Fatalf("auth timeout = %v, want default", cfg.authTimeout)
				}
			},
		},
		{
			name: "full config",
			raw: `{
				"app_id": 17349,
				"app_hash": "abc",
				"bot_token": "100:secret",
				"session_file": "/tmp/session.json",
				"rpc_timeout": "5s",
				"auth_timeout": "30s",
				"command_prefix": "!",
				"admin_user_ids": [7, 8],
				"channels": {"summary": {"kind": "channel", "id": 100, "access_hash": 9}}
			}`,
			assert: func(t *testing.T, cfg parsedRuntimeConfig) {
				if cfg.rpcTimeout != 5*time.Second {
					t.Fatalf("rpc timeout = %v, want 5s", cfg.rpcTimeout)
				}
				if cfg.authTimeout != 30*time.Second {
					t.Fatalf("auth timeout = %v, want 30s", cfg.authTimeout)
				}
				if cfg.commandPrefix != "!" {
					t.Fatalf("command prefix = %q, want !", cfg.commandPrefix)
				}
				if len(cfg.adminUserIDs) != 2 {
					t.Fatalf("admin ids = %v, want two entries", cfg.adminUserIDs)
				}
				ref, exists := cfg.channels["summary"]
				if !exists || ref.ID != 100 || ref.AccessHash != 9 {
					t.Fatalf("channels = %v, want summary binding", cfg.channels)
				}
			},
		},
		{name: "empty payload", raw: "", wantErr: true},
		{name: "invalid json", raw: `{`, wantErr: true},
		{name: "missing app id", raw: `{"app_hash":"abc","bot_token":"100:secret"}`, wantErr: true},
		{name: "missing app hash", raw: `{"app_id":1,"bot_token":"100:secret"}`, wantErr: true},
		{name: "missing bot token", raw: `{"app_id":1,"app_hash":"abc"}`, wantErr: true},
		{
			name:    "invalid rpc timeout",
			raw:     `{"app_id":1,"app_hash":"abc","bot_token":"100:secret","rpc_timeout":"soon"}`,
			wantErr: true,
		},
		{
			name:    "non-positive auth timeout",
			raw:     `{"app_id":1,"app_hash":"abc","bot_token":"100:secret","auth_timeout":"-1s"}`,
			wantErr: true,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := parseRuntimeConfig([]byte(testCase.raw))
			if testCase.wantErr {
				if err == nil {
					t.Fatal("expected parse error")
				}

				return
			}
			if err != nil {
				t.Fatalf("unexpected parse error: %v", err)
			}
			if testCase.assert != nil {
				testCase.assert(t, cfg)
			}
		})
	}
}

func TestNewSessionStorageCreatesDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "session.json")
	storage, err := newSessionStorage(path)
	if err != nil {
		t.Fatalf("unexpected storage error: %v", err)
	}
	if storage.Path != path {
		t.Fatalf("storage path = %q, want %q", storage.Path, path)
	}

	info, err := os.Stat(filepath.Dir(path))
	if err != nil {
		t.Fatalf("session directory missing: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("session directory path is not a directory")
	}
}
