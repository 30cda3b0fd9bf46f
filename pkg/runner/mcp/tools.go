package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/Aziz-Madhi/nafsy-sub001/pkg/record"
)

func registerTools(srv *server.MCPServer, svc *Service) {
	registerSendMessageTool(srv, svc)
	registerListMessagesTool(srv, svc)
	registerListSessionsTool(srv, svc)
	registerDeleteSessionTool(srv, svc)
	registerLogMoodTool(srv, svc)
	registerMoodCalendarTool(srv, svc)
	registerWhoAmITool(srv, svc)
}

func registerSendMessageTool(srv *server.MCPServer, svc *Service) {
	tool := mcp.NewTool(
		"send_message",
		mcp.WithDescription("Append a message to a channel session. Repeating a client_key returns the original message."),
		mcp.WithString("channel",
			mcp.Required(),
			mcp.Description("Channel to write to."),
			mcp.Enum(record.Channels()...),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("Message text."),
		),
		mcp.WithString("session",
			mcp.Description("Session identifier; defaults to \"default\"."),
		),
		mcp.WithString("role",
			mcp.Description("Author of the message."),
			mcp.Enum(string(record.RoleUser), string(record.RoleAssistant)),
		),
		mcp.WithString("client_key",
			mcp.Description("Optional idempotency key."),
		),
	)

	srv.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args struct {
			Channel   string `json:"channel"`
			Content   string `json:"content"`
			Session   string `json:"session"`
			Role      string `json:"role"`
			ClientKey string `json:"client_key"`
		}
		if err := request.BindArguments(&args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		dto, err := svc.Send(ctx, SendOptions{
			Channel:   args.Channel,
			Session:   args.Session,
			Role:      args.Role,
			Content:   args.Content,
			ClientKey: args.ClientKey,
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return toJSONResult(dto)
	})
}

func registerListMessagesTool(srv *server.MCPServer, svc *Service) {
	tool := mcp.NewTool(
		"list_messages",
		mcp.WithDescription("List the messages of a channel session, oldest first."),
		mcp.WithString("channel",
			mcp.Required(),
			mcp.Description("Channel to read."),
		),
		mcp.WithString("session",
			mcp.Description("Session identifier; defaults to \"default\"."),
		),
		mcp.WithNumber("limit",
			mcp.Description("Only return the last N messages."),
		),
	)

	srv.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args struct {
			Channel string `json:"channel"`
			Session string `json:"session"`
			Limit   int    `json:"limit"`
		}
		if err := request.BindArguments(&args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		msgs, err := svc.History(ctx, args.Channel, args.Session, args.Limit)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return toJSONResult(map[string]any{
			"channel":  args.Channel,
			"session":  record.NormalizeSession(args.Session),
			"count":    len(msgs),
			"messages": msgs,
		})
	})
}

func registerListSessionsTool(srv *server.MCPServer, svc *Service) {
	tool := mcp.NewTool(
		"list_sessions",
		mcp.WithDescription("List the sessions of a channel with message counts."),
		mcp.WithString("channel",
			mcp.Required(),
			mcp.Description("Channel to inspect."),
		),
	)

	srv.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		channel, err := request.RequireString("channel")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		sessions, err := svc.Sessions(ctx, channel)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return toJSONResult(map[string]any{
			"channel":  channel,
			"count":    len(sessions),
			"sessions": sessions,
		})
	})
}

func registerDeleteSessionTool(srv *server.MCPServer, svc *Service) {
	tool := mcp.NewTool(
		"delete_session",
		mcp.WithDescription("Delete every message of a session."),
		mcp.WithString("channel",
			mcp.Required(),
			mcp.Description("Channel that owns the session."),
		),
		mcp.WithString("session",
			mcp.Required(),
			mcp.Description("Session to delete."),
		),
	)

	srv.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		channel, err := request.RequireString("channel")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		session, err := request.RequireString("session")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		if err := svc.DeleteSession(ctx, channel, session); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return toJSONResult(map[string]any{
			"channel": channel,
			"session": session,
			"deleted": true,
		})
	})
}

func registerLogMoodTool(srv *server.MCPServer, svc *Service) {
	tool := mcp.NewTool(
		"log_mood",
		mcp.WithDescription("Log a mood rating from 1 (sad) to 10 (excited)."),
		mcp.WithNumber("rating",
			mcp.Required(),
			mcp.Description("Rating between 1 and 10."),
			mcp.Min(1),
			mcp.Max(10),
		),
		mcp.WithString("note",
			mcp.Description("Optional note."),
		),
	)

	srv.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args struct {
			Rating int    `json:"rating"`
			Note   string `json:"note"`
		}
		if err := request.BindArguments(&args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		dto, err := svc.LogMood(ctx, args.Rating, args.Note)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return toJSONResult(dto)
	})
}

func registerMoodCalendarTool(srv *server.MCPServer, svc *Service) {
	tool := mcp.NewTool(
		"mood_calendar",
		mcp.WithDescription("Average mood per day for a month."),
		mcp.WithNumber("year",
			mcp.Description("Four digit year; defaults to the current year."),
		),
		mcp.WithNumber("month",
			mcp.Description("Month 1-12; defaults to the current month."),
		),
	)

	srv.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args struct {
			Year  int `json:"year"`
			Month int `json:"month"`
		}
		if err := request.BindArguments(&args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		now := time.Now()
		if args.Year == 0 {
			args.Year = now.Year()
		}
		if args.Month == 0 {
			args.Month = int(now.Month())
		}

		cal, err := svc.MoodCalendar(ctx, args.Year, time.Month(args.Month))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return toJSONResult(cal)
	})
}

func registerWhoAmITool(srv *server.MCPServer, svc *Service) {
	tool := mcp.NewTool(
		"whoami",
		mcp.WithDescription("Return the current user."),
	)

	srv.AddTool(tool, func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		u, err := svc.WhoAmI(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return toJSONResult(u)
	})
}

func toJSONResult(data any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(data)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal error: %v", err)), nil
	}
	return result, nil
}
