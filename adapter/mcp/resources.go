package mcp

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/felixgeelhaar/mcp-go"
)

// RegisterResources registers the plan catalog resource.
func RegisterResources(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return errors.New("server is required")
	}
	lifecycle := deps.Lifecycle

	srv.Resource("portal://plans").
		Name("Plans").
		Description("The plan catalog with monthly and annual prices").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			if lifecycle == nil {
				return nil, errors.New("plan catalog is not available")
			}
			data, err := json.MarshalIndent(lifecycle.Plans(ctx), "", "  ")
			if err != nil {
				return nil, err
			}
			return &mcp.ResourceContent{
				URI:      uri,
				MimeType: "application/json",
				Text:     string(data),
			}, nil
		})

	return nil
}
