package postgres

import "context"

// CursorStore stores one named cursor in the oikos_cursors table.
type CursorStore struct {
	Store *Store
	Name  string
}

func (s *CursorStore) Load(ctx context.Context) (int64, bool, error) {
	if s == nil || s.Store == nil {
		return 0, false, nil
	}
	return s.Store.LoadCursor(ctx, s.Name)
}

func (s *CursorStore) Save(ctx context.Context, ts int64) error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.SaveCursor(ctx, s.Name, ts)
}
