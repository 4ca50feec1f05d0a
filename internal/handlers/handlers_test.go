package handlers

import (
	"context"
	"testing"
)

func TestRegisterAndLookup(t *testing.T) {
	called := false
	Register("test.echo", func(ctx context.Context, localPath string, opts Options) error {
		called = true
		return nil
	})

	fn, ok := Lookup("test.echo")
	if !ok {
		t.Fatal("expected registered handler to be found")
	}
	if err := fn(context.Background(), "/tmp/x", Options{}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected the registered function to run")
	}
}

func TestLookupUnknownHandler(t *testing.T) {
	_, ok := Lookup("test.does-not-exist")
	if ok {
		t.Error("expected lookup of an unregistered name to fail")
	}
}

func TestErrUnknownHandlerMessage(t *testing.T) {
	err := ErrUnknownHandler("pkg.missing")
	if err == nil {
		t.Fatal("expected a non-nil error")
	}
	if got := err.Error(); got == "" {
		t.Error("expected a non-empty error message")
	}
}

func TestBuiltinChecksumRegistered(t *testing.T) {
	if _, ok := Lookup("builtin.checksum"); !ok {
		t.Error("expected builtin.checksum to be registered via init()")
	}
}
