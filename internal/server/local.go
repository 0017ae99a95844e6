package server

import (
	"context"
	"fmt"

	"github.com/giancarlothiella/gtsw-engine/internal/metadata"
	"github.com/giancarlothiella/gtsw-engine/internal/remote"
	"github.com/giancarlothiella/gtsw-engine/internal/remote/sqlbackend"
)

// LocalClient is the in-process remote.Client the reference server hands to
// its own engine: page documents come from the PageStore and SQL runs on
// the SQLite backend, with no HTTP loopback.
type LocalClient struct {
	Pages   *PageStore
	Backend *sqlbackend.Backend
}

// FetchPage decodes the stored document for (prjID, formID).
func (c *LocalClient) FetchPage(ctx context.Context, prjID, formID string) (*metadata.Page, error) {
	raw, ok := c.Pages.Raw(prjID, formID)
	if !ok {
		return nil, fmt.Errorf("page %s/%s not found", prjID, formID)
	}
	return metadata.Decode(raw)
}

// GetData delegates to the SQLite backend.
func (c *LocalClient) GetData(ctx context.Context, req remote.DataRequest) (*remote.DataResult, error) {
	return c.Backend.GetData(ctx, req)
}

// ExecProc delegates to the SQLite backend.
func (c *LocalClient) ExecProc(ctx context.Context, req remote.ProcRequest) (*remote.ProcResult, error) {
	return c.Backend.ExecProc(ctx, req)
}
