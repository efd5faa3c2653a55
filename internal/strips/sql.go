package strips

import (
	"database/sql"
	"strings"
)

type sqlOpenFunc func(driverName, dsn string) (*sql.DB, error)

// stripColumns is shared by the SQL backends; the order matches scanStrip
// and stripArgs.
var stripColumns = []string{
	"id",
	"name",
	"kind",
	"channel",
	"start_frame",
	"offset_start",
	"final_duration",
	"remote_id",
	"is_synced",
	"shot_name",
	"description",
	"notes",
	"cut_in",
	"cut_out",
	"status",
	"shot_order",
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStrip(row rowScanner) (Strip, error) {
	var (
		strip  Strip
		kind   string
		status string
	)
	err := row.Scan(
		&strip.ID,
		&strip.Name,
		&kind,
		&strip.Channel,
		&strip.Position.Start,
		&strip.Position.OffsetStart,
		&strip.Position.FinalDuration,
		&strip.Binding.RemoteID,
		&strip.Binding.IsSynced,
		&strip.Binding.Name,
		&strip.Binding.Description,
		&strip.Binding.Notes,
		&strip.Binding.CutIn,
		&strip.Binding.CutOut,
		&status,
		&strip.Binding.Order,
	)
	strip.Kind = Kind(kind)
	strip.Binding.Status = Status(status)
	return strip, err
}

func stripArgs(strip Strip) []any {
	return []any{
		strip.ID,
		strip.Name,
		string(strip.Kind),
		strip.Channel,
		strip.Position.Start,
		strip.Position.OffsetStart,
		strip.Position.FinalDuration,
		strip.Binding.RemoteID,
		strip.Binding.IsSynced,
		strip.Binding.Name,
		strip.Binding.Description,
		strip.Binding.Notes,
		strip.Binding.CutIn,
		strip.Binding.CutOut,
		string(strip.Binding.Status),
		strip.Binding.Order,
	}
}

func stripColumnList() string {
	return strings.Join(stripColumns, ", ")
}

// stripUpdateAssignments renders "col = excluded.col" for every column but id.
func stripUpdateAssignments() string {
	parts := make([]string, 0, len(stripColumns)-1)
	for _, column := range stripColumns[1:] {
		parts = append(parts, column+" = excluded."+column)
	}
	return strings.Join(parts, ", ")
}

func stripTableColumnsDDL() string {
	return `
		id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		kind TEXT NOT NULL DEFAULT '',
		channel INTEGER NOT NULL DEFAULT 0,
		start_frame INTEGER NOT NULL DEFAULT 0,
		offset_start INTEGER NOT NULL DEFAULT 0,
		final_duration INTEGER NOT NULL DEFAULT 0,
		remote_id TEXT NOT NULL DEFAULT '',
		is_synced BOOLEAN NOT NULL DEFAULT FALSE,
		shot_name TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		cut_in INTEGER NOT NULL DEFAULT 0,
		cut_out INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT '',
		shot_order INTEGER NOT NULL DEFAULT 0`
}
