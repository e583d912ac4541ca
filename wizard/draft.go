package wizard

import "context"

// Draft is the serialized in-progress wizard state. Its JSON shape is the
// draft slot's wire format: {"step": n, "form": {...}}.
type Draft struct {
	Step Step `json:"step"`
	Form Form `json:"form"`
}

// DraftStore is the scoped slot a single session's draft lives in. Save
// overwrites any prior value. Restore reports found=false both for an empty
// slot and for a stored value that no longer parses; a corrupt draft is never
// fatal. Clear is called only after a successful commit or an explicit reset.
type DraftStore interface {
	Save(ctx context.Context, draft Draft) error
	Restore(ctx context.Context) (Draft, bool, error)
	Clear(ctx context.Context) error
}
