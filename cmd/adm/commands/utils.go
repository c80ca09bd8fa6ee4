package commands

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"learnanalytics/internal/config"
	contextutils "learnanalytics/internal/utils"

	"github.com/spf13/cobra"
)

// maskDatabaseURL masks credentials in the database URL for display
func maskDatabaseURL(url string) string {
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) == 2 {
			return "postgres://***:***@" + parts[1]
		}
	}
	return url
}

// getDatabaseInfo returns database connection information
func getDatabaseInfo(ctx context.Context, db *sql.DB) string {
	if db == nil {
		return "Not connected"
	}

	var dbName string
	if err := db.QueryRowContext(ctx, "SELECT current_database()").Scan(&dbName); err != nil {
		return "Connected (unknown database)"
	}

	var host sql.NullString
	if err := db.QueryRowContext(ctx, "SELECT inet_server_addr()::text").Scan(&host); err != nil || !host.Valid {
		return fmt.Sprintf("Connected to %s", dbName)
	}

	return fmt.Sprintf("Connected to %s on %s", dbName, host.String)
}

// commandContext bounds a command run by the CLI timeout
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, config.CLICommandTimeout)
}

// printJSON writes v as indented JSON
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return contextutils.WrapError(err, "failed to encode output")
	}
	return nil
}

// optionalID turns a zero flag value into "no filter"
func optionalID(id int) *int {
	if id <= 0 {
		return nil
	}
	return &id
}

// requirePositive validates an id flag
func requirePositive(name string, value int) error {
	if value <= 0 {
		return contextutils.WrapErrorf(contextutils.ErrMissingRequired, "--%s must be a positive integer", name)
	}
	return nil
}
