package store

// WithOptimisticUpdate applies an in-memory change, then persists it.
//
// apply makes the change and returns the function that undoes it; it
// returns nil when there is nothing to change, in which case commit is not
// called. If commit fails the rollback runs and commit's error is returned.
//
// The rollback must be built from state apply captured itself, so that a
// failing operation only undoes its own change.
func WithOptimisticUpdate(apply func() (rollback func()), commit func() error) error {
	rollback := apply()
	if rollback == nil {
		return nil
	}
	if err := commit(); err != nil {
		rollback()
		return err
	}
	return nil
}
