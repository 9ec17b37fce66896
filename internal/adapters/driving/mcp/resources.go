package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/invoicesync/internal/core/domain"
)

const (
	// URIScheme is the custom URI scheme for invoicesync resources.
	uriScheme = "invoicesync://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	// Static resource for listing mapping profiles.
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "mappings",
		Name:        "mappings",
		Description: "Saved field mapping profiles",
		MIMEType:    "application/json",
	}, s.handleMappingsResource)

	// Template for a single profile.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "mappings/{name}",
		Name:        "mapping-profile",
		Description: "One saved field mapping profile",
		MIMEType:    "application/json",
	}, s.handleMappingResource)

	// Template for the custom fields of a task's list.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "tasks/{taskId}/fields",
		Name:        "task-fields",
		Description: "Custom fields available on the list of a specific task",
		MIMEType:    "application/json",
	}, s.handleTaskFieldsResource)
}

// profileInfo is the JSON form of a mapping profile.
type profileInfo struct {
	Name      string            `json:"name"`
	ListID    string            `json:"list_id,omitempty"`
	Mapping   map[string]string `json:"mapping"`
	UpdatedAt string            `json:"updated_at,omitempty"`
}

func toProfileInfo(p *domain.MappingProfile) profileInfo {
	info := profileInfo{Name: p.Name, ListID: p.ListID, Mapping: p.Mapping}
	if info.Mapping == nil {
		info.Mapping = map[string]string{}
	}
	if !p.UpdatedAt.IsZero() {
		info.UpdatedAt = p.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return info
}

// handleMappingsResource returns a list of all saved profiles.
func (s *Server) handleMappingsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Mappings == nil {
		return jsonResult(req.Params.URI, []profileInfo{})
	}

	profiles, err := s.ports.Mappings.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing mapping profiles: %w", err)
	}

	infos := make([]profileInfo, len(profiles))
	for i := range profiles {
		infos[i] = toProfileInfo(&profiles[i])
	}
	return jsonResult(req.Params.URI, infos)
}

// handleMappingResource returns one profile.
func (s *Server) handleMappingResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Mappings == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	// Extract name from URI: invoicesync://mappings/{name}
	name := extractProfileName(req.Params.URI)
	if name == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	profile, err := s.ports.Mappings.Get(ctx, name)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting mapping profile: %w", err)
	}
	return jsonResult(req.Params.URI, toProfileInfo(profile))
}

// handleTaskFieldsResource returns the custom fields of a task's list.
func (s *Server) handleTaskFieldsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	// Extract taskId from URI: invoicesync://tasks/{taskId}/fields
	taskID := extractTaskID(req.Params.URI)
	if taskID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	schema, err := s.ports.Reconciler.InspectFields(ctx, taskID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("inspecting fields: %w", err)
	}

	fields := schema.Fields()
	return jsonResult(req.Params.URI, FieldsOutput{ListID: schema.ListID, Fields: fields, Count: len(fields)})
}

func jsonResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractProfileName extracts the profile name from a URI like invoicesync://mappings/{name}.
func extractProfileName(uri string) string {
	const prefix = uriScheme + "mappings/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	name := strings.TrimPrefix(uri, prefix)
	if strings.Contains(name, "/") {
		return ""
	}
	return name
}

// extractTaskID extracts the task ID from a URI like invoicesync://tasks/{taskId}/fields.
func extractTaskID(uri string) string {
	const prefix = uriScheme + "tasks/"
	const suffix = "/fields"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	uri = strings.TrimPrefix(uri, prefix)
	if !strings.HasSuffix(uri, suffix) {
		return ""
	}

	return strings.TrimSuffix(uri, suffix)
}
