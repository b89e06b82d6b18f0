package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/dida365-mcp/internal/dida"
	"github.com/teemow/dida365-mcp/internal/server"
	"github.com/teemow/dida365-mcp/internal/tools/dida_tools"
)

func newGenerateDocsCmd() *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "generate-docs",
		Short: "Generate MCP tool documentation",
		Long: `Generate markdown documentation for the Dida365 MCP tools.
The registered tool definitions are introspected, so the reference always
matches what the server exposes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerateDocs(cmd.OutOrStdout(), cmd.ErrOrStderr(), outputFile)
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

// registeredTools returns every tool definition along with the names that
// remain in read-only mode.
func registeredTools() ([]mcp.Tool, map[string]bool, error) {
	list := func(readOnly bool) ([]mcp.Tool, error) {
		// No token is needed to describe the tools.
		serverContext, err := server.NewServerContext(context.Background(), dida.NewClient(""))
		if err != nil {
			return nil, fmt.Errorf("failed to create server context: %w", err)
		}
		defer func() {
			_ = serverContext.Shutdown()
		}()

		mcpSrv := mcpserver.NewMCPServer(mcpServerName, version,
			mcpserver.WithToolCapabilities(true),
		)
		if err := dida_tools.RegisterDidaTools(mcpSrv, serverContext, readOnly); err != nil {
			return nil, fmt.Errorf("failed to register Dida365 tools: %w", err)
		}

		serverTools := mcpSrv.ListTools()
		tools := make([]mcp.Tool, 0, len(serverTools))
		for _, serverTool := range serverTools {
			tools = append(tools, serverTool.Tool)
		}
		return tools, nil
	}

	all, err := list(false)
	if err != nil {
		return nil, nil, err
	}
	readTools, err := list(true)
	if err != nil {
		return nil, nil, err
	}
	readOnly := make(map[string]bool, len(readTools))
	for _, t := range readTools {
		readOnly[t.Name] = true
	}
	return all, readOnly, nil
}

func runGenerateDocs(stdout, stderr io.Writer, outputFile string) error {
	tools, readOnly, err := registeredTools()
	if err != nil {
		return err
	}

	markdown := generateToolsMarkdown(tools, readOnly)

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(markdown), 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		fmt.Fprintf(stderr, "Documentation written to: %s\n", outputFile)
		return nil
	}

	_, err = io.WriteString(stdout, markdown)
	return err
}

func generateToolsMarkdown(tools []mcp.Tool, readOnly map[string]bool) string {
	var sb strings.Builder

	sb.WriteString("# MCP Tools Reference\n\n")
	sb.WriteString("This document lists the tools available when running dida365-mcp as an MCP server.\n\n")
	sb.WriteString("**Note:** This documentation is automatically generated from the tool definitions.\n\n")

	toolsByCategory := groupToolsByCategory(tools)

	sb.WriteString("## Table of Contents\n\n")
	categories := make([]string, 0, len(toolsByCategory))
	for category := range toolsByCategory {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	for _, category := range categories {
		anchor := strings.ToLower(strings.ReplaceAll(category, " ", "-"))
		fmt.Fprintf(&sb, "- [%s](#%s)\n", category, anchor)
	}
	sb.WriteString("\n")

	sb.WriteString("## Authorization\n\n")
	sb.WriteString("Every tool calls the Dida365 API with the `DIDA365_TOKEN` stored in the credential file.\n")
	sb.WriteString("Run `dida365-mcp auth` to obtain one and `dida365-mcp refresh` when it expires.\n")
	sb.WriteString("With `--read-only` only the tools marked read-only are registered.\n\n")

	for _, category := range categories {
		categoryTools := toolsByCategory[category]
		sort.Slice(categoryTools, func(i, j int) bool {
			return categoryTools[i].Name < categoryTools[j].Name
		})

		fmt.Fprintf(&sb, "## %s\n\n", category)

		for _, tool := range categoryTools {
			sb.WriteString(generateToolMarkdown(tool, readOnly[tool.Name]))
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

func groupToolsByCategory(tools []mcp.Tool) map[string][]mcp.Tool {
	categories := make(map[string][]mcp.Tool)

	for _, tool := range tools {
		category := getCategoryFromToolName(tool.Name)
		categories[category] = append(categories[category], tool)
	}

	return categories
}

// getCategoryFromToolName groups the camel-cased tool names by the resource
// they act on (createTask, getProjects, ...).
func getCategoryFromToolName(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, "task"), strings.HasSuffix(lower, "tasks"):
		return "Task Tools"
	case strings.HasSuffix(lower, "project"), strings.HasSuffix(lower, "projects"):
		return "Project Tools"
	default:
		return "Other"
	}
}

func generateToolMarkdown(tool mcp.Tool, readOnly bool) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "### %s\n\n", tool.Name)

	if tool.Description != "" {
		fmt.Fprintf(&sb, "%s\n\n", tool.Description)
	}
	if readOnly {
		sb.WriteString("*Read-only: available with `--read-only`.*\n\n")
	}

	if len(tool.InputSchema.Properties) > 0 {
		sb.WriteString("**Arguments:**\n")

		// Sort properties for consistent output
		propNames := make([]string, 0, len(tool.InputSchema.Properties))
		for name := range tool.InputSchema.Properties {
			propNames = append(propNames, name)
		}
		sort.Strings(propNames)

		for _, name := range propNames {
			propMap, ok := tool.InputSchema.Properties[name].(map[string]interface{})
			if !ok {
				continue
			}

			requiredStr := "optional"
			if slices.Contains(tool.InputSchema.Required, name) {
				requiredStr = "required"
			}
			propType := getPropertyType(propMap)

			fmt.Fprintf(&sb, "- `%s` (%s, %s): ", name, propType, requiredStr)
			if desc, ok := propMap["description"].(string); ok {
				sb.WriteString(desc)
			} else {
				fmt.Fprintf(&sb, "%s parameter", propType)
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func getPropertyType(prop map[string]interface{}) string {
	if t, ok := prop["type"].(string); ok {
		return t
	}
	return "any"
}
