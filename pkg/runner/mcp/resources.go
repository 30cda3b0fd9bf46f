package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/Aziz-Madhi/nafsy-sub001/pkg/record"
)

func registerResources(srv *server.MCPServer, svc *Service) {
	registerChannelsResource(srv, svc)
	registerSessionTemplate(srv, svc)
}

func registerChannelsResource(srv *server.MCPServer, svc *Service) {
	resource := mcp.NewResource(
		"nafsy://channels",
		"Channels",
		mcp.WithResourceDescription("Every channel with its sessions and message counts."),
		mcp.WithMIMEType("application/json"),
	)

	srv.AddResource(resource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		channels := make(map[string][]SessionSummary, len(record.Channels()))
		for _, ch := range record.Channels() {
			sessions, err := svc.Sessions(ctx, ch)
			if err != nil {
				return nil, err
			}
			channels[ch] = sessions
		}

		payload := map[string]any{
			"channels": channels,
			"count":    len(channels),
		}
		return encodeResourceJSON(request.Params.URI, payload)
	})
}

func registerSessionTemplate(srv *server.MCPServer, svc *Service) {
	template := mcp.NewResourceTemplate(
		"nafsy://channels/{channel}/sessions/{session}",
		"Session Messages",
		mcp.WithTemplateDescription("Messages of one session, oldest first."),
		mcp.WithTemplateMIMEType("application/json"),
	)

	srv.AddResourceTemplate(template, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		channel := argument(request, "channel")
		session := argument(request, "session")
		if channel == "" {
			return nil, fmt.Errorf("channel is required")
		}

		msgs, err := svc.History(ctx, channel, session, 0)
		if err != nil {
			return nil, err
		}

		payload := map[string]any{
			"channel":  channel,
			"session":  record.NormalizeSession(session),
			"count":    len(msgs),
			"messages": msgs,
		}
		return encodeResourceJSON(request.Params.URI, payload)
	})
}

// argument reads a URI template variable. Depending on the matcher the value
// arrives as a string or a single element slice.
func argument(request mcp.ReadResourceRequest, name string) string {
	switch v := request.Params.Arguments[name].(type) {
	case string:
		return v
	case []string:
		if len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

func encodeResourceJSON(uri string, payload any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
