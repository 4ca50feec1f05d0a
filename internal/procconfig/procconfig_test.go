package procconfig

import "testing"

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`{"glob": "*.csv", "shell": "echo hi"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !cfg.Enabled {
		t.Error("expected enabled to default to true")
	}
	if cfg.InboxDirectory != defaultInbox {
		t.Errorf("expected default inbox %q, got %q", defaultInbox, cfg.InboxDirectory)
	}
	if cfg.ProcessingDirectory != defaultProcessing {
		t.Errorf("expected default processing %q, got %q", defaultProcessing, cfg.ProcessingDirectory)
	}
	if cfg.ArchiveDirectory != defaultArchive {
		t.Errorf("expected default archive %q, got %q", defaultArchive, cfg.ArchiveDirectory)
	}
	if cfg.ErrorDirectory != defaultError {
		t.Errorf("expected default error dir %q, got %q", defaultError, cfg.ErrorDirectory)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte(`{"glob": "*.csv", "shell": "echo hi", "bogus_key": true}`))
	if err == nil {
		t.Fatal("expected an error for an unknown top-level key")
	}
}

func TestParseRequiresExactlyOneHandler(t *testing.T) {
	_, err := Parse([]byte(`{"glob": "*.csv"}`))
	if err == nil {
		t.Error("expected an error when neither shell nor python is set")
	}

	_, err = Parse([]byte(`{"glob": "*.csv", "shell": "echo hi", "python": {"module": "builtin.checksum"}}`))
	if err == nil {
		t.Error("expected an error when both shell and python are set")
	}
}

func TestParseRequiresGlob(t *testing.T) {
	_, err := Parse([]byte(`{"shell": "echo hi"}`))
	if err == nil {
		t.Error("expected an error when glob is missing")
	}
}

func TestParsePythonCallableDefault(t *testing.T) {
	cfg, err := Parse([]byte(`{"glob": "*.csv", "python": {"module": "builtin.checksum"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Python.Callable != defaultCallable {
		t.Errorf("expected default callable %q, got %q", defaultCallable, cfg.Python.Callable)
	}
}

func TestParseExplicitEnabledFalse(t *testing.T) {
	cfg, err := Parse([]byte(`{"glob": "*.csv", "shell": "echo hi", "enabled": false}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Enabled {
		t.Error("expected enabled to be false when explicitly set")
	}
}

func TestHandlerKind(t *testing.T) {
	shellCfg, _ := Parse([]byte(`{"glob": "*.csv", "shell": "echo hi"}`))
	if shellCfg.Handler() != HandlerShell {
		t.Errorf("expected HandlerShell, got %v", shellCfg.Handler())
	}

	pyCfg, _ := Parse([]byte(`{"glob": "*.csv", "python": {"module": "builtin.checksum"}}`))
	if pyCfg.Handler() != HandlerPython {
		t.Errorf("expected HandlerPython, got %v", pyCfg.Handler())
	}
}

func TestParseInvalidJSON(t *testing.T) {
	_, err := Parse([]byte(`not json`))
	if err == nil {
		t.Error("expected an error for malformed JSON")
	}
}

func TestParseRejectsUnregisteredPythonModule(t *testing.T) {
	_, err := Parse([]byte(`{"glob": "*.csv", "python": {"module": "no.such.handler"}}`))
	if err == nil {
		t.Fatal("expected an error for a python module with no registered handler")
	}
}

func TestParseRegistryRemoveOnDisable(t *testing.T) {
	cfg, err := Parse([]byte(`{"glob": "*.csv", "shell": "echo hi", "registry_remove_on_disable": true}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.RegistryRemoveOnDisable {
		t.Error("expected RegistryRemoveOnDisable to be true")
	}
}
