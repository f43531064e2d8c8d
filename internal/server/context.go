package server

import (
	"context"
	"sync"

	"github.com/jernst/mailsheets/internal/drive"
	"github.com/jernst/mailsheets/internal/gmail"
	"github.com/jernst/mailsheets/internal/google"
	"github.com/jernst/mailsheets/internal/instrumentation"
	"github.com/jernst/mailsheets/internal/sheets"
)

// ServerContext holds the shared state for the MCP server: the credential
// store and one client per Google service. Each client is built on first use
// and cached for the lifetime of the process, so concurrent sessions share
// the same handles.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc
	store  *google.Store

	// One build lock per service: the first build does network I/O, and
	// holding a shared lock across it would stall sessions that need a
	// different handle.
	gmailMu     sync.Mutex
	gmailClient *gmail.Client
	sheetsMu    sync.Mutex
	sheetClient *sheets.Client
	driveMu     sync.Mutex
	driveClient *drive.Client

	// mu guards lifecycle state only and is never held across I/O.
	mu          sync.Mutex
	shutdown    bool
	metrics     *instrumentation.Metrics
	auditLogger *instrumentation.AuditLogger

	// Constructor hooks, swapped in tests.
	newGmail  func(ctx context.Context, store *google.Store) (*gmail.Client, error)
	newSheets func(ctx context.Context, store *google.Store) (*sheets.Client, error)
	newDrive  func(ctx context.Context, store *google.Store) (*drive.Client, error)
}

// NewServerContext creates a server context around the credential store.
// Clients are not built here; the first tool that needs a service triggers
// the credential check for it.
func NewServerContext(ctx context.Context, store *google.Store) *ServerContext {
	shutdownCtx, cancel := context.WithCancel(ctx)
	return &ServerContext{
		ctx:       shutdownCtx,
		cancel:    cancel,
		store:     store,
		newGmail:  gmail.NewClient,
		newSheets: sheets.NewClient,
		newDrive:  drive.NewClient,
	}
}

// Context returns the server lifetime context.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Store returns the credential store.
func (sc *ServerContext) Store() *google.Store {
	return sc.store
}

// GmailClient returns the Gmail client, building it on first use. Build
// failures are returned and not cached, so a later call can retry once the
// credential problem is fixed.
func (sc *ServerContext) GmailClient() (*gmail.Client, error) {
	sc.gmailMu.Lock()
	defer sc.gmailMu.Unlock()

	if sc.gmailClient != nil {
		return sc.gmailClient, nil
	}
	client, err := sc.newGmail(sc.ctx, sc.store)
	if err != nil {
		return nil, err
	}
	sc.gmailClient = client
	return client, nil
}

// SheetsClient returns the Sheets client, building it on first use.
func (sc *ServerContext) SheetsClient() (*sheets.Client, error) {
	sc.sheetsMu.Lock()
	defer sc.sheetsMu.Unlock()

	if sc.sheetClient != nil {
		return sc.sheetClient, nil
	}
	client, err := sc.newSheets(sc.ctx, sc.store)
	if err != nil {
		return nil, err
	}
	sc.sheetClient = client
	return client, nil
}

// DriveClient returns the Drive client, building it on first use.
func (sc *ServerContext) DriveClient() (*drive.Client, error) {
	sc.driveMu.Lock()
	defer sc.driveMu.Unlock()

	if sc.driveClient != nil {
		return sc.driveClient, nil
	}
	client, err := sc.newDrive(sc.ctx, sc.store)
	if err != nil {
		return nil, err
	}
	sc.driveClient = client
	return client, nil
}

// SetMetrics attaches the metrics recorder.
func (sc *ServerContext) SetMetrics(m *instrumentation.Metrics) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.metrics = m
}

// Metrics returns the metrics recorder, or nil when instrumentation is off.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.metrics
}

// SetAuditLogger attaches the audit logger.
func (sc *ServerContext) SetAuditLogger(a *instrumentation.AuditLogger) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.auditLogger = a
}

// AuditLogger returns the audit logger, or nil when auditing is off.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.auditLogger
}

// IsShutdown returns whether Shutdown has been called.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.shutdown
}

// Shutdown cancels the server context. Safe to call more than once.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}
	sc.shutdown = true
	sc.cancel()
	return nil
}
