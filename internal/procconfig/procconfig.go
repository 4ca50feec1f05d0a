// Package procconfig decodes and validates processor config documents: the
// small declarative records describing how a class of files is handled.
package procconfig

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/castiron-io/etlworker/internal/handlers"
)

// PythonHandler describes an in-process handler invocation.
type PythonHandler struct {
	Module                string `json:"module"`
	Callable              string `json:"callable,omitempty"`
	SupportsPizzaTracker  bool   `json:"supports_pizza_tracker,omitempty"`
	SupportsMetadata      bool   `json:"supports_metadata,omitempty"`
}

// Config is a validated processor config document.
type Config struct {
	Enabled             bool           `json:"enabled"`
	InboxDirectory      string         `json:"inbox_directory"`
	ProcessingDirectory string         `json:"processing_directory"`
	ArchiveDirectory    string         `json:"archive_directory"`
	ErrorDirectory      string         `json:"error_directory"`
	Glob                string         `json:"glob"`
	SaveErrorLog        bool           `json:"save_error_log"`
	Shell               string         `json:"shell,omitempty"`
	Python              *PythonHandler `json:"python,omitempty"`

	// RegistryRemoveOnDisable, when true, makes a config-put with
	// enabled=false remove any prior registration under the same id
	// instead of leaving it active (see SPEC_FULL.md §9 open question 1).
	RegistryRemoveOnDisable bool `json:"registry_remove_on_disable,omitempty"`
}

const (
	defaultInbox      = "inbox"
	defaultProcessing = "processing"
	defaultArchive    = "archive"
	defaultError      = "error"
	defaultCallable   = "run"
)

// rawConfig mirrors Config's JSON shape but with pointers so we can detect
// which keys were actually present, in order to reject unknown keys and
// distinguish "absent" from "zero value".
type rawConfig struct {
	Enabled                 *bool          `json:"enabled"`
	InboxDirectory          *string        `json:"inbox_directory"`
	ProcessingDirectory     *string        `json:"processing_directory"`
	ArchiveDirectory        *string        `json:"archive_directory"`
	ErrorDirectory          *string        `json:"error_directory"`
	Glob                    *string        `json:"glob"`
	SaveErrorLog            *bool          `json:"save_error_log"`
	Shell                   *string        `json:"shell"`
	Python                  *PythonHandler `json:"python"`
	RegistryRemoveOnDisable *bool          `json:"registry_remove_on_disable"`
}

// Parse decodes a processor config document, applying defaults and
// rejecting unknown top-level keys. Both parsing and schema failures are
// reported through the returned error.
func Parse(data []byte) (*Config, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()

	var raw rawConfig
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid processor config: %w", err)
	}

	cfg := &Config{
		Enabled:             true,
		InboxDirectory:      defaultInbox,
		ProcessingDirectory: defaultProcessing,
		ArchiveDirectory:    defaultArchive,
		ErrorDirectory:      defaultError,
	}

	if raw.Enabled != nil {
		cfg.Enabled = *raw.Enabled
	}
	if raw.InboxDirectory != nil {
		cfg.InboxDirectory = *raw.InboxDirectory
	}
	if raw.ProcessingDirectory != nil {
		cfg.ProcessingDirectory = *raw.ProcessingDirectory
	}
	if raw.ArchiveDirectory != nil {
		cfg.ArchiveDirectory = *raw.ArchiveDirectory
	}
	if raw.ErrorDirectory != nil {
		cfg.ErrorDirectory = *raw.ErrorDirectory
	}
	if raw.Glob != nil {
		cfg.Glob = *raw.Glob
	}
	if raw.SaveErrorLog != nil {
		cfg.SaveErrorLog = *raw.SaveErrorLog
	}
	if raw.Shell != nil {
		cfg.Shell = *raw.Shell
	}
	if raw.Python != nil {
		p := *raw.Python
		if p.Callable == "" {
			p.Callable = defaultCallable
		}
		cfg.Python = &p
	}
	if raw.RegistryRemoveOnDisable != nil {
		cfg.RegistryRemoveOnDisable = *raw.RegistryRemoveOnDisable
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the "exactly one handler kind" invariant, that a glob
// pattern was provided, and — for a python handler — that the named
// module actually resolves to a registered in-process handler. An
// unresolvable module name is rejected here, at registration time,
// rather than surfacing as a job failure later.
func (c *Config) Validate() error {
	if c.Glob == "" {
		return fmt.Errorf("processor config: glob is required")
	}

	hasShell := c.Shell != ""
	hasPython := c.Python != nil && c.Python.Module != ""

	if hasShell == hasPython {
		return fmt.Errorf("processor config: exactly one of shell or python must be set")
	}

	if hasPython {
		if _, ok := handlers.Lookup(c.Python.Module); !ok {
			return handlers.ErrUnknownHandler(c.Python.Module)
		}
	}

	return nil
}

// HandlerKind reports which handler form is configured.
type HandlerKind int

const (
	HandlerNone HandlerKind = iota
	HandlerShell
	HandlerPython
)

// Handler returns which handler kind this config uses.
func (c *Config) Handler() HandlerKind {
	if c.Shell != "" {
		return HandlerShell
	}
	if c.Python != nil {
		return HandlerPython
	}
	return HandlerNone
}
