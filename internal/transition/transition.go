// Package transition guards status fields of records with explicit state machines.
package transition

import (
	"context"
	"fmt"
	"strings"

	"github.com/pawbridge/console-backend/internal/realtimedb"
	"github.com/pawbridge/console-backend/internal/utils/errors"
)

// Machine lists allowed next statuses per status. Statuses without edges are terminal.
type Machine struct {
	Name  string
	Edges map[string][]string
	// Normalize maps a stored value (possibly absent) to a machine status.
	Normalize func(stored string) string
}

// Status normalizes stored value.
func (m Machine) Status(stored string) string {
	if m.Normalize == nil {
		return stored
	}
	return m.Normalize(stored)
}

// Allowed returns statuses reachable from the current one.
func (m Machine) Allowed(current string) []string {
	return append([]string(nil), m.Edges[m.Status(current)]...)
}

// Terminal reports whether no transition leaves the status.
func (m Machine) Terminal(current string) bool {
	return len(m.Edges[m.Status(current)]) == 0
}

// Check fails with FailedPreconditionError when to is not reachable from current.
func (m Machine) Check(current, to string) error {
	from := m.Status(current)
	for _, next := range m.Edges[from] {
		if next == to {
			return nil
		}
	}
	if m.Terminal(from) {
		return &errors.FailedPreconditionError{Msg: fmt.Sprintf("%v is already %v", m.Name, strings.ToLower(from))}
	}
	return &errors.FailedPreconditionError{Msg: fmt.Sprintf("%v cannot move from %v to %v", m.Name, strings.ToLower(from), strings.ToLower(to))}
}

// Apply atomically moves the status stored at statusPath to the target status and returns the previous one.
// Nothing is written when the transition is not allowed.
func Apply(ctx context.Context, db realtimedb.RealtimeDB, statusPath string, m Machine, to string) (string, error) {
	var from string

	err := db.RunTransaction(ctx, statusPath, func(tn realtimedb.TransactionNode) (interface{}, error) {
		var stored string
		if err := tn.Unmarshal(&stored); err != nil {
			return nil, err
		}
		from = m.Status(stored)
		if err := m.Check(stored, to); err != nil {
			return nil, err
		}
		return to, nil
	})
	if err != nil {
		return "", errors.Remote("changing "+m.Name+" status", err)
	}

	return from, nil
}

// ApplyRecord atomically moves the status field of the record at recordPath to the target status and merges
// fields into the same write. guard sees the record as stored and may veto the change. Returns the previous status.
func ApplyRecord(ctx context.Context, db realtimedb.RealtimeDB, recordPath string, m Machine, to string, guard func(realtimedb.TransactionNode) error, fields map[string]interface{}) (string, error) {
	var from string

	err := db.RunTransaction(ctx, recordPath, func(tn realtimedb.TransactionNode) (interface{}, error) {
		var record map[string]interface{}
		if err := tn.Unmarshal(&record); err != nil {
			return nil, err
		}
		if record == nil {
			return nil, &errors.NotFoundError{Msg: m.Name + " not found"}
		}
		if guard != nil {
			if err := guard(tn); err != nil {
				return nil, err
			}
		}

		stored, _ := record["status"].(string)
		from = m.Status(stored)
		if err := m.Check(stored, to); err != nil {
			return nil, err
		}

		record["status"] = to
		for k, v := range fields {
			record[k] = v
		}
		return record, nil
	})
	if err != nil {
		return "", errors.Remote("changing "+m.Name+" status", err)
	}

	return from, nil
}
