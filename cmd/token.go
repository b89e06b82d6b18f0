package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/dida365-mcp/internal/authflow"
	"github.com/teemow/dida365-mcp/internal/credentials"
	"github.com/teemow/dida365-mcp/internal/dida"
	"github.com/teemow/dida365-mcp/internal/logging"
)

const tokenCheckTimeout = 15 * time.Second

func newTokenCmd() *cobra.Command {
	var checkAPI bool

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Show information about the stored DIDA365_TOKEN",
		Long: `Decode the stored access token without verifying it and print its issuer,
subject and expiry. Opaque tokens are reported as such.

With --check-api the token is sent to the Dida365 open API (GET /project) to
confirm it is still accepted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runToken(ctx, cmd.OutOrStdout(), checkAPI, time.Now())
		},
	}

	cmd.Flags().BoolVar(&checkAPI, "check-api", false, "Verify the token against the Dida365 API")
	return cmd
}

func runToken(ctx context.Context, out io.Writer, checkAPI bool, now time.Time) error {
	store := credentials.NewFileStore(envFilePath())
	raw, _, err := store.Get(credentials.KeyToken)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", credentials.KeyToken, err)
	}

	info, err := authflow.InspectToken(raw)
	if errors.Is(err, authflow.ErrNoToken) {
		return fmt.Errorf("%s not found in %s, run \"dida365-mcp auth\" first", credentials.KeyToken, store.Path())
	}
	if err != nil {
		return err
	}

	printTokenInfo(out, info, now)

	if !checkAPI {
		return nil
	}
	return checkToken(ctx, out, strings.TrimSpace(raw))
}

func printTokenInfo(out io.Writer, info *authflow.TokenInfo, now time.Time) {
	fmt.Fprintf(out, "Token:   %s\n", logging.SanitizeToken(info.Raw))
	if !info.IsJWT {
		fmt.Fprintln(out, "Format:  opaque (expiry unknown)")
		return
	}

	fmt.Fprintln(out, "Format:  JWT")
	if info.Issuer != "" {
		fmt.Fprintf(out, "Issuer:  %s\n", info.Issuer)
	}
	if info.Subject != "" {
		fmt.Fprintf(out, "Subject: %s\n", info.Subject)
	}
	if len(info.Audience) > 0 {
		fmt.Fprintf(out, "Audience: %s\n", strings.Join(info.Audience, ", "))
	}
	if !info.IssuedAt.IsZero() {
		fmt.Fprintf(out, "Issued:  %s\n", info.IssuedAt.UTC().Format(time.RFC3339))
	}
	if !info.HasExpiry() {
		fmt.Fprintln(out, "Expires: never")
		return
	}
	fmt.Fprintf(out, "Expires: %s\n", info.ExpiresAt.UTC().Format(time.RFC3339))
	if info.Expired(now) {
		fmt.Fprintln(out, "Status:  expired, run \"dida365-mcp refresh\"")
		return
	}
	fmt.Fprintf(out, "Status:  valid for %s\n", info.Remaining(now).Truncate(time.Second))
}

// checkToken sends the token to the open API project listing.
func checkToken(ctx context.Context, out io.Writer, token string) error {
	ctx, cancel := context.WithTimeout(ctx, tokenCheckTimeout)
	defer cancel()

	client := dida.NewClient(token,
		dida.WithOpenAPIBaseURL(os.Getenv(envOpenAPIBase)),
		dida.WithUserAgent("dida365-mcp/"+version),
	)

	projects, err := client.ListOpenProjects(ctx)
	if err != nil {
		fmt.Fprintf(out, "API:     failed (status %d): %v\n", dida.StatusCode(err), err)
		if dida.IsUnauthorized(err) {
			fmt.Fprintln(out, "The token was rejected, run \"dida365-mcp refresh\"")
		}
		return fmt.Errorf("token check failed: %w", err)
	}

	fmt.Fprintln(out, "API:     OK")
	if n := dida.CountItems(projects); n >= 0 {
		fmt.Fprintf(out, "Projects: %d\n", n)
	}
	if id, name, ok := dida.FirstItem(projects); ok {
		fmt.Fprintf(out, "First:   %s (%s)\n", name, id)
	}
	return nil
}
